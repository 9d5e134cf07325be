// Package shared provides constants, app wiring and the terminal sink used
// across CLI subpackages. It has no dependencies on other CLI packages to
// avoid circular imports.
package shared

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/pythautom/pythautom/internal/errors"
)

// Command group IDs for organizing help output
const (
	GroupProjects      = "projects"
	GroupWorkflow      = "workflow"
	GroupConfiguration = "configuration"
)

// Exit codes for CLI commands
const (
	ExitSuccess           = 0
	ExitFailure           = 1
	ExitInvalidArguments  = 3
	ExitMissingDependency = 4
	ExitTimeout           = 5
	ExitInterrupted       = 130
)

// exitError is a custom error type that carries an exit code.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// NewExitError creates a new exit error with the given code.
func NewExitError(code int) error {
	return &exitError{code: code}
}

// IsExitError reports whether err only carries an exit code and has nothing
// left to print.
func IsExitError(err error) bool {
	var e *exitError
	return errors.As(err, &e)
}

// ExitCode returns the exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeout
	}
	if cliErr := apperrors.AsCLIError(err); cliErr != nil {
		switch cliErr.Category {
		case apperrors.Argument, apperrors.Configuration:
			return ExitInvalidArguments
		case apperrors.Prerequisite:
			return ExitMissingDependency
		}
	}
	return ExitFailure
}
