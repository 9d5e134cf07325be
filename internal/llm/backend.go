// Package llm defines the contract every language model backend satisfies and
// the prompt and reply handling they share.
package llm

import (
	"context"
	"errors"
)

// ErrorMarker prefixes entries of a dependency list that describe a failure
// rather than a package.
const ErrorMarker = "ERROR:"

// ErrNotConnected is returned by backends used before a successful Connect.
var ErrNotConnected = errors.New("LLM backend is not connected")

// Backend is a language model able to plan dependencies, write code and name
// the package behind a missing import.
type Backend interface {
	// Name is a short label for status lines, e.g. "Ollama".
	Name() string
	// Model is the model identifier in use.
	Model() string
	// Connect verifies the backend is reachable and the model usable.
	Connect(ctx context.Context) error
	// Available reports whether Connect succeeded.
	Available() bool
	// IdentifyDependencies lists the third-party packages a request needs.
	// Entries prefixed with ErrorMarker report partial failures.
	IdentifyDependencies(ctx context.Context, req DependencyRequest) ([]string, error)
	// GenerateCodeStream writes or corrects code, calling onFragment for each
	// streamed piece and polling cancelled between pieces. It returns the full
	// concatenated reply.
	GenerateCodeStream(ctx context.Context, req GenerateRequest, onFragment func(string), cancelled func() bool) (string, error)
	// ResolvePackage names the installable package providing module.
	ResolvePackage(ctx context.Context, module, errorMessage string) (Resolution, error)
}

// DependencyRequest is the input to IdentifyDependencies.
type DependencyRequest struct {
	ProjectName   string
	UserRequest   string
	StructureInfo string
}

// GenerateRequest is the input to GenerateCodeStream. Correction is set when
// the request asks to fix code that failed to run.
type GenerateRequest struct {
	ProjectName   string
	UserRequest   string
	CurrentCode   string
	Dependencies  []string
	StructureInfo string
	Correction    *Correction
}

// Correction carries the failure a correction request must fix.
type Correction struct {
	Error string
	// Line is the 1-based line the failure points at, or 0 when unknown.
	Line int
}

// Resolution is the answer to a ResolvePackage call. Package is empty when the
// model could not name one, in which case Reason explains why.
type Resolution struct {
	Module  string
	Package string
	Reason  string
}

// Resolved reports whether a package name was found.
func (r Resolution) Resolved() bool {
	return r.Package != ""
}
