package task

import (
	"fmt"
	"strings"
)

// ScriptResult is the outcome of running a project script. A non-zero exit code
// is a normal result, not an error.
type ScriptResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Succeeded reports whether the script exited cleanly.
func (r ScriptResult) Succeeded() bool {
	return r.ExitCode == 0
}

func completionMessage(t Type, value any) string {
	switch t {
	case IdentifyDependencies:
		if deps, ok := value.([]string); ok {
			return fmt.Sprintf("Dependency identification finished (%d candidates).", len(deps))
		}
	case GenerateCodeStream:
		return "Code generation finished."
	case InstallDependencies:
		if ok, _ := value.(bool); ok {
			return "Dependency installation succeeded."
		}
		return "Dependency installation failed."
	case RunScript:
		if res, ok := value.(ScriptResult); ok {
			return fmt.Sprintf("Script finished with exit code %d.", res.ExitCode)
		}
	case AttemptConnection:
		if ok, _ := value.(bool); ok {
			return "LLM connection established."
		}
		return "LLM connection failed."
	case ResolveImportPackage:
		return "Package resolution finished."
	case ExportExecutable, ExportSource:
		if path, ok := value.(string); ok && path != "" {
			return fmt.Sprintf("Export written to %s.", path)
		}
	}
	return fmt.Sprintf("%s finished.", t.Label())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
