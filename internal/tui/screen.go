package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/orchestrator"
)

// maxLines bounds the chat and console transcripts.
const maxLines = 2000

// Screen is the controller sink of the terminal UI. The controller runs inside
// the program's Update, so the model reads Screen without locking.
type Screen struct {
	ctrl *orchestrator.Controller

	status  string
	console []string
	// statusLog and output split the console pane for /savelog.
	statusLog []string
	output    []string
	chat      []string
	code      string
	streaming bool
	controls  enablement.Controls
	notice    *orchestrator.Notice

	// dirty marks the panes that changed since the model last synced them.
	dirty struct{ code, chat, console bool }
}

// NewScreen returns an empty screen.
func NewScreen() *Screen {
	return &Screen{controls: enablement.Compute(enablement.Inputs{})}
}

// Attach lets the screen restore the saved code when a stream is abandoned.
func (s *Screen) Attach(c *orchestrator.Controller) {
	s.ctrl = c
	s.controls = c.Controls()
	s.code = c.Code()
	s.dirty.code = true
}

func (s *Screen) Status(msg string) {
	s.status = msg
	s.statusLog = appendBounded(s.statusLog, splitLines(msg)...)
	s.appendConsole(msg)
}

func (s *Screen) Console(msg string) {
	s.output = appendBounded(s.output, splitLines(msg)...)
	s.appendConsole(msg)
}

func (s *Screen) appendConsole(msg string) {
	s.console = appendBounded(s.console, splitLines(msg)...)
	s.dirty.console = true
}

func splitLines(msg string) []string {
	return strings.Split(strings.TrimRight(msg, "\n"), "\n")
}

func (s *Screen) Chat(sender, msg string) {
	s.chat = appendBounded(s.chat, sender+": "+msg)
	s.dirty.chat = true
}

// CodeFragment appends streamed code. The first fragment of a stream clears
// the previous code.
func (s *Screen) CodeFragment(text string) {
	if !s.streaming {
		s.streaming = true
		s.code = ""
	}
	s.code += text
	s.dirty.code = true
}

func (s *Screen) CodeReplaced(code string) {
	s.streaming = false
	s.code = code
	s.dirty.code = true
}

func (s *Screen) Controls(c enablement.Controls) {
	s.controls = c
	if !c.Busy && s.streaming {
		// Cancelled or failed stream: the saved code is still the project's.
		s.streaming = false
		if s.ctrl != nil {
			s.code = s.ctrl.Code()
		}
		s.dirty.code = true
	}
}

func (s *Screen) Notice(n orchestrator.Notice) {
	s.notice = &n
	s.Console(n.Title + ": " + n.Message)
}

// WriteLog writes the status and execution logs as one report.
func (s *Screen) WriteLog(w io.Writer) error {
	_, err := fmt.Fprintf(w, "=== STATUS ===\n%s\n\n=== EXECUTION/OTHER ===\n%s\n=== END ===\n",
		strings.Join(s.statusLog, "\n"), strings.Join(s.output, "\n"))
	return err
}

// DismissNotice clears the shown notice.
func (s *Screen) DismissNotice() {
	s.notice = nil
}

func appendBounded(lines []string, add ...string) []string {
	lines = append(lines, add...)
	if over := len(lines) - maxLines; over > 0 {
		lines = append(lines[:0], lines[over:]...)
	}
	return lines
}

var _ orchestrator.Sink = (*Screen)(nil)
