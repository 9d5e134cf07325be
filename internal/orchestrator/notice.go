package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrBusy               = errors.New("another task is running")
	ErrNoProject          = errors.New("no project loaded")
	ErrBackendUnavailable = errors.New("LLM backend is not connected")
	ErrEmptyRequest       = errors.New("request is empty")
	ErrNotCancellable     = errors.New("running task cannot be cancelled")
	ErrNoTask             = errors.New("no task is running")
	// ErrInterrupted is returned by Drive when an interrupt arrives while a
	// task that cannot be cancelled is running.
	ErrInterrupted = errors.New("interrupted")
)

// NoticeLevel is the severity of a Notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Notice is a message the front-end shows prominently, the way a desktop
// application would use a dialog.
type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
}

// Channel selects where a transcript Line is shown.
type Channel int

const (
	ChannelStatus Channel = iota
	ChannelConsole
	ChannelChat
)

// Line is one message produced while classifying a result.
type Line struct {
	Channel Channel
	Text    string
}

// SystemSender is the chat sender of every message the workflow writes.
const SystemSender = "System"
