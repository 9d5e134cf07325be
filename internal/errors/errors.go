// Package errors provides categorised, user-facing errors carrying
// remediation steps for the pythautom command line.
package errors

import (
	goerrors "errors"
)

// ErrorCategory groups errors by what the user has to do about them.
type ErrorCategory int

const (
	Argument ErrorCategory = iota
	Configuration
	Prerequisite
	Runtime
)

func (c ErrorCategory) String() string {
	switch c {
	case Argument:
		return "Argument Error"
	case Configuration:
		return "Configuration Error"
	case Prerequisite:
		return "Prerequisite Error"
	case Runtime:
		return "Runtime Error"
	default:
		return "Error"
	}
}

// CLIError is an error shown to the user with its category, the expected
// usage and the steps that fix it.
type CLIError struct {
	Category    ErrorCategory
	Message     string
	Usage       string
	Remediation []string
	Err         error
}

func (e *CLIError) Error() string {
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

func newError(c ErrorCategory, msg string, remediation []string) *CLIError {
	return &CLIError{Category: c, Message: msg, Remediation: remediation}
}

func NewArgumentError(msg string, remediation ...string) *CLIError {
	return newError(Argument, msg, remediation)
}

// NewArgumentErrorWithUsage is NewArgumentError with a usage line.
func NewArgumentErrorWithUsage(msg, usage string, remediation ...string) *CLIError {
	e := newError(Argument, msg, remediation)
	e.Usage = usage
	return e
}

func NewConfigError(msg string, remediation ...string) *CLIError {
	return newError(Configuration, msg, remediation)
}

func NewPrerequisiteError(msg string, remediation ...string) *CLIError {
	return newError(Prerequisite, msg, remediation)
}

func NewRuntimeError(msg string, remediation ...string) *CLIError {
	return newError(Runtime, msg, remediation)
}

// Wrap turns err into a CLIError of the given category. It returns nil for a
// nil err.
func Wrap(err error, c ErrorCategory, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{Category: c, Message: err.Error(), Remediation: remediation, Err: err}
}

// WrapWithMessage is Wrap with msg prefixed to the message.
func WrapWithMessage(err error, c ErrorCategory, msg string, remediation ...string) *CLIError {
	if err == nil {
		return nil
	}
	return &CLIError{Category: c, Message: msg + ": " + err.Error(), Remediation: remediation, Err: err}
}

func IsCLIError(err error) bool {
	return AsCLIError(err) != nil
}

// AsCLIError returns the first CLIError in err's chain, or nil.
func AsCLIError(err error) *CLIError {
	var cliErr *CLIError
	if goerrors.As(err, &cliErr) {
		return cliErr
	}
	return nil
}
