package task

import "time"

// EventKind distinguishes the four notifications a task delivers.
type EventKind int

const (
	// EventLog carries one line for the status or console channel.
	EventLog EventKind = iota
	// EventFragment carries a piece of streamed text.
	EventFragment
	// EventResult carries the task's return value. It is never delivered for a
	// task that was cancelled.
	EventResult
	// EventFinished is always the last event for a task.
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventFragment:
		return "fragment"
	case EventResult:
		return "result"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Source selects the channel a log line belongs to.
type Source int

const (
	// SourceStatus is for short operator facing progress messages.
	SourceStatus Source = iota
	// SourceConsole is for raw subprocess output and error detail.
	SourceConsole
)

// Event is a single notification from a running task.
type Event struct {
	TaskID string
	Type   Type
	Kind   EventKind

	// Source and Text are set for EventLog. Text also holds the fragment for
	// EventFragment.
	Source Source
	Text   string

	// Value and Err are set for EventResult. A task returning an error still
	// produces a result event; failures are data, not exceptions.
	Value any
	Err   error

	// Cancelled and Duration are set for EventFinished.
	Cancelled bool
	Duration  time.Duration
}
