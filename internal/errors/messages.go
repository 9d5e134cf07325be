package errors

import (
	"fmt"
	"strings"
)

func MissingChatRequest() *CLIError {
	return NewArgumentErrorWithUsage(
		"no request given",
		`pythautom chat --project <name> "<what the program should do>"`,
		"Describe the program in plain language, quoted as one argument",
	)
}

func NoProjectSelected() *CLIError {
	return NewArgumentErrorWithUsage(
		"no project selected",
		"pythautom <command> --project <name>",
		"Pass --project with an existing project name",
		"Run 'pythautom project list' to see available projects",
		"Run 'pythautom project new <name>' to create one",
	)
}

func InvalidProjectName(name string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("invalid project name %q", name),
		"Use letters, digits, '-' and '_'",
	)
}

func ProjectNotFound(name string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("project %q not found", name),
		"Run 'pythautom project list' to see available projects",
		fmt.Sprintf("Run 'pythautom project new %s' to create it", name),
	)
}

func ProjectExists(name string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("project %q already exists", name),
		"Choose another name or delete the existing project first",
	)
}

func UVNotFound(cmd string) *CLIError {
	return NewPrerequisiteError(
		fmt.Sprintf("uv executable %q not found", cmd),
		"Install uv: https://docs.astral.sh/uv/getting-started/installation/",
		"Or point uv_cmd at it: pythautom config set uv_cmd /path/to/uv",
	)
}

// BackendNotConfigured reports settings that must be filled before connecting.
func BackendNotConfigured(backend string, missing ...string) *CLIError {
	steps := make([]string, 0, len(missing))
	for _, key := range missing {
		steps = append(steps, fmt.Sprintf("pythautom config set %s <value>", key))
	}
	return NewConfigError(
		fmt.Sprintf("%s backend is missing %s", backend, strings.Join(missing, ", ")),
		steps...,
	)
}

func BackendConnectionFailed(backend string, err error) *CLIError {
	remediation := []string{"Check the backend settings with 'pythautom config show'"}
	if backend == "ollama" {
		remediation = append(remediation, "Make sure 'ollama serve' is running and the model is pulled")
	} else {
		remediation = append(remediation, "Check the API key and that the model name exists")
	}
	return WrapWithMessage(err, Runtime, fmt.Sprintf("connecting to %s failed", backend), remediation...)
}

func ConfigParseError(path string, err error) *CLIError {
	return WrapWithMessage(err, Configuration, fmt.Sprintf("failed to load config %s", path),
		"Check the file is valid JSON",
		"Run 'pythautom config show' to see the effective settings",
	)
}

func TaskBusy(running string) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("a %s task is already running", running),
		"Wait for it to finish or cancel it first",
	)
}

func TimeoutError(timeout, operation string) *CLIError {
	return NewRuntimeError(
		fmt.Sprintf("%s timed out after %s", operation, timeout),
		"Raise export_timeout with 'pythautom config set export_timeout <seconds>'",
	)
}
