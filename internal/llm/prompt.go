package llm

import (
	"fmt"
	"strings"
)

// Sampling temperatures used by the backends.
const (
	PlanningTemperature   = 0.2
	GenerationTemperature = 0.4
	ResolveTemperature    = 0.1
)

// DependencyPrompt is the system instruction for dependency identification.
func DependencyPrompt(req DependencyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You plan Python project %q.\n", req.ProjectName)
	b.WriteString("List the third-party PyPI packages needed to fulfil the user's request.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Use installable package names (for example `opencv-python`, not `cv2`).\n")
	b.WriteString("- Leave out standard library modules such as os, sys, json, re, math, time, tkinter.\n")
	b.WriteString("- Reply with JSON only: {\"dependencies\": [\"name\", ...]}. Use an empty list when nothing is needed.\n")
	if s := strings.TrimSpace(req.StructureInfo); s != "" {
		b.WriteString("\nCurrent project files:\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

// GenerationPrompt is the full instruction for writing or correcting the main
// script.
func GenerationPrompt(req GenerateRequest) string {
	var b strings.Builder
	deps := validDependencies(req.Dependencies)

	if req.Correction != nil {
		fmt.Fprintf(&b, "The main script of Python project %q failed. Fix it.\n", req.ProjectName)
		b.WriteString("\nError output:\n")
		b.WriteString(strings.TrimSpace(req.Correction.Error))
		b.WriteString("\n")
		if req.Correction.Line > 0 {
			fmt.Fprintf(&b, "\nThe error points at line %d.\n", req.Correction.Line)
		}
		if u := strings.TrimSpace(req.UserRequest); u != "" {
			fmt.Fprintf(&b, "\nOriginal request, for context: %s\n", u)
		}
	} else {
		fmt.Fprintf(&b, "Write the main script of Python project %q.\n", req.ProjectName)
		fmt.Fprintf(&b, "\nRequest: %s\n", strings.TrimSpace(req.UserRequest))
	}

	if len(deps) > 0 {
		fmt.Fprintf(&b, "\nInstalled third-party packages you may use: %s\n", strings.Join(deps, ", "))
	} else {
		b.WriteString("\nOnly the standard library is available.\n")
	}
	if s := strings.TrimSpace(req.StructureInfo); s != "" {
		b.WriteString("\nProject files:\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if c := strings.TrimSpace(req.CurrentCode); c != "" {
		b.WriteString("\nCurrent script:\n```python\n")
		b.WriteString(c)
		b.WriteString("\n```\n")
	}
	b.WriteString("\nReply with the complete script in a single ```python code block and nothing else.\n")
	return b.String()
}

// ResolvePrompt asks for the package that provides module.
func ResolvePrompt(module, errorMessage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A Python script failed to import the module %q.\n", module)
	if e := strings.TrimSpace(errorMessage); e != "" {
		b.WriteString("\nError output:\n")
		b.WriteString(lastLines(e, 15))
		b.WriteString("\n")
	}
	b.WriteString("\nReply with ONLY the pip package name that provides this module (for example `opencv-python` for `cv2`).\n")
	b.WriteString("If you are not sure, reply with UNKNOWN.\n")
	return b.String()
}

func validDependencies(deps []string) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if d = strings.TrimSpace(d); d != "" && !strings.HasPrefix(d, ErrorMarker) {
			out = append(out, d)
		}
	}
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
