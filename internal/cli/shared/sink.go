package shared

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/orchestrator"
	"github.com/pythautom/pythautom/internal/progress"
	"github.com/pythautom/pythautom/internal/task"
)

// TerminalSink renders controller output on a terminal: a spinner for the
// running task, status and console lines above it, and one outcome line per
// finished task. It also records finished tasks, which is where the outcome
// lines come from.
type TerminalSink struct {
	display *progress.Display
	code    io.Writer
	next    orchestrator.Recorder

	// ShowCode prints the code of every generation.
	ShowCode bool
	// Quiet hides console lines.
	Quiet bool

	ctrl      *orchestrator.Controller
	shown     task.Type
	received  int
	pending   string
	last      string
	failed    int
	statusFmt func(a ...any) string
	chatFmt   func(a ...any) string
	warnFmt   func(a ...any) string
	errFmt    func(a ...any) string
}

// NewTerminalSink creates a sink drawing progress on status and writing code
// to code. Finished tasks are passed on to next.
func NewTerminalSink(caps progress.TerminalCapabilities, status, code io.Writer, next orchestrator.Recorder) *TerminalSink {
	if !caps.SupportsColor {
		color.NoColor = true
	}
	return &TerminalSink{
		display:   progress.NewDisplay(caps, status),
		code:      code,
		next:      next,
		statusFmt: color.New(color.FgCyan).SprintFunc(),
		chatFmt:   color.New(color.FgMagenta).SprintFunc(),
		warnFmt:   color.New(color.FgYellow).SprintFunc(),
		errFmt:    color.New(color.FgRed, color.Bold).SprintFunc(),
	}
}

// Attach lets the sink read the phase and attempt counter of c.
func (s *TerminalSink) Attach(c *orchestrator.Controller) {
	s.ctrl = c
}

// LastStatus is the history status of the last finished task.
func (s *TerminalSink) LastStatus() string {
	return s.last
}

// Failures counts the failed tasks seen so far.
func (s *TerminalSink) Failures() int {
	return s.failed
}

func (s *TerminalSink) Status(msg string) {
	s.display.Println(s.statusFmt(msg))
}

func (s *TerminalSink) Console(msg string) {
	if s.Quiet {
		return
	}
	s.display.Println(msg)
}

func (s *TerminalSink) Chat(sender, msg string) {
	if sender != orchestrator.SystemSender {
		return
	}
	s.display.Println(s.chatFmt("» ") + msg)
}

func (s *TerminalSink) CodeFragment(text string) {
	s.received += len(text)
}

// CodeReplaced reports generated code, which is printed once its task has
// finished when ShowCode is set. Code loaded with a project is not shown.
func (s *TerminalSink) CodeReplaced(code string) {
	if s.ctrl == nil || s.ctrl.Phase() != task.GenerateCodeStream {
		return
	}
	s.display.Println(fmt.Sprintf("(streamed %d characters, %d lines of code)", max(s.received, len(code)), strings.Count(code, "\n")+1))
	s.received = 0
	if s.ShowCode {
		s.pending = code
	}
}

func (s *TerminalSink) Notice(n orchestrator.Notice) {
	title := n.Title + ":"
	switch n.Level {
	case orchestrator.NoticeError:
		title = s.errFmt(title)
	case orchestrator.NoticeWarning:
		title = s.warnFmt(title)
	default:
		title = s.statusFmt(title)
	}
	s.display.Println(title + " " + n.Message)
}

// Controls starts the spinner for a newly started phase.
func (s *TerminalSink) Controls(c enablement.Controls) {
	if !c.Busy || s.ctrl == nil {
		s.shown = task.Idle
		return
	}
	phase := s.ctrl.Phase()
	if phase == s.shown {
		return
	}
	s.shown = phase

	info := progress.TaskInfo{Label: phase.Label()}
	if st := s.ctrl.Snapshot(); phase == task.GenerateCodeStream && st.StreamIsCorrection {
		info.Attempt = st.CorrectionAttempts
		info.MaxAttempts = max(s.ctrl.Settings().MaxAttempts, st.CorrectionAttempts)
	}
	if err := s.display.Start(info); err != nil {
		s.display.Println(err.Error())
	}
}

// RecordTask prints the outcome line of the finished task and passes it on.
func (s *TerminalSink) RecordTask(project, taskName, status string, duration time.Duration, detail string) {
	s.last = status
	s.shown = task.Idle
	switch status {
	case history.StatusCompleted:
		s.display.Complete()
	case history.StatusCancelled:
		s.display.Cancelled()
	default:
		s.failed++
		reason := detail
		if reason == "" {
			reason = status
		}
		s.display.Fail(errors.New(reason))
	}
	if s.pending != "" {
		fmt.Fprintf(s.code, "%s\n", s.pending)
		s.pending = ""
	}
	if s.next != nil {
		s.next.RecordTask(project, taskName, status, duration, detail)
	}
}

var (
	_ orchestrator.Sink     = (*TerminalSink)(nil)
	_ orchestrator.Recorder = (*TerminalSink)(nil)
)
