// Package task runs one blocking operation at a time on a background goroutine
// and reports its progress as a stream of events.
package task

import "fmt"

// Type identifies the kind of work a task performs. The orchestrator also uses
// it as its phase marker, with Idle meaning no task is active.
type Type int

const (
	Idle Type = iota
	IdentifyDependencies
	GenerateCodeStream
	InstallDependencies
	RunScript
	AttemptConnection
	ResolveImportPackage
	ExportExecutable
	ExportSource
)

var typeNames = [...]string{
	Idle:                 "idle",
	IdentifyDependencies: "identify_dependencies",
	GenerateCodeStream:   "generate_code_stream",
	InstallDependencies:  "install_dependencies",
	RunScript:            "run_script",
	AttemptConnection:    "attempt_connection",
	ResolveImportPackage: "resolve_import_package",
	ExportExecutable:     "export_executable",
	ExportSource:         "export_source",
}

var typeLabels = [...]string{
	Idle:                 "Idle",
	IdentifyDependencies: "Identifying dependencies",
	GenerateCodeStream:   "Generating code",
	InstallDependencies:  "Installing dependencies",
	RunScript:            "Running script",
	AttemptConnection:    "Connecting to LLM",
	ResolveImportPackage: "Resolving import package",
	ExportExecutable:     "Exporting executable",
	ExportSource:         "Exporting source",
}

// String returns the snake_case name used in logs and history files.
func (t Type) String() string {
	if !t.valid() {
		return fmt.Sprintf("task(%d)", int(t))
	}
	return typeNames[t]
}

// Label returns a human readable description for status lines.
func (t Type) Label() string {
	if !t.valid() {
		return t.String()
	}
	return typeLabels[t]
}

func (t Type) valid() bool {
	return t >= Idle && int(t) < len(typeNames)
}

// Runnable reports whether t names real work (anything but Idle).
func (t Type) Runnable() bool {
	return t.valid() && t != Idle
}

// Streams reports whether the task emits incremental text fragments.
func (t Type) Streams() bool {
	return t == GenerateCodeStream
}

// Cancellable reports whether the user may request cancellation of t.
func (t Type) Cancellable() bool {
	return t == GenerateCodeStream
}

// ReportsProgress reports whether the task relays subprocess output lines to
// the console channel.
func (t Type) ReportsProgress() bool {
	switch t {
	case InstallDependencies, RunScript, ExportExecutable, ExportSource:
		return true
	default:
		return false
	}
}

// ParseType is the inverse of String.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown task type %q", name)
}

// Types returns every runnable task type in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames)-1)
	for i := range typeNames {
		if t := Type(i); t.Runnable() {
			out = append(out, t)
		}
	}
	return out
}
