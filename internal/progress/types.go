// Package progress shows a wait-state indicator while a background task runs
// in the command line front-end.
package progress

import apperrors "github.com/pythautom/pythautom/internal/errors"

// TaskInfo describes the running task shown next to the spinner.
type TaskInfo struct {
	// Label is the human-readable task name, e.g. "Running script".
	Label string
	// Attempt is the correction attempt in progress (0 outside a correction).
	Attempt     int
	MaxAttempts int
}

// Validate checks that the info can be rendered.
func (i TaskInfo) Validate() error {
	if i.Label == "" {
		return apperrors.NewArgumentError("task label cannot be empty")
	}
	if i.Attempt < 0 || i.MaxAttempts < 0 {
		return apperrors.NewArgumentError("attempt counters cannot be negative")
	}
	if i.Attempt > i.MaxAttempts {
		return apperrors.NewArgumentError("attempt cannot exceed max attempts")
	}
	return nil
}

// TerminalCapabilities encapsulates detected terminal features
type TerminalCapabilities struct {
	IsTTY           bool
	SupportsColor   bool
	SupportsUnicode bool
	// Width is the terminal width in columns (0 if unknown/pipe)
	Width int
}

// Symbols defines the character set for visual indicators
type Symbols struct {
	Checkmark string
	Failure   string
	Cancelled string
	// SpinnerSet is the index into spinner.CharSets
	SpinnerSet int
}
