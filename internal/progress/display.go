package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Display draws a spinner for the running task and prints one outcome line
// when it ends. Lines printed through Println never interleave with spinner frames.
type Display struct {
	caps    TerminalCapabilities
	symbols Symbols
	out     io.Writer

	mu      sync.Mutex
	spinner *spinner.Spinner
	current *TaskInfo
	started time.Time
	now     func() time.Time
}

// NewDisplay creates a display writing to out.
func NewDisplay(caps TerminalCapabilities, out io.Writer) *Display {
	return &Display{caps: caps, symbols: SelectSymbols(caps), out: out, now: time.Now}
}

// Start begins showing info. A task already shown is replaced.
func (d *Display) Start(info TaskInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.current = &info
	d.started = d.now()
	msg := buildMessage(info)

	if !d.caps.IsTTY {
		fmt.Fprintln(d.out, msg)
		return nil
	}
	d.spinner = spinner.New(spinner.CharSets[d.symbols.SpinnerSet], 100*time.Millisecond, spinner.WithWriter(d.out))
	d.spinner.Suffix = " " + msg
	d.spinner.Start()
	return nil
}

// Println prints line above the spinner.
func (d *Display) Println(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	running := d.spinner != nil && d.spinner.Active()
	if running {
		d.spinner.Stop()
	}
	fmt.Fprintln(d.out, line)
	if running {
		d.spinner.Start()
	}
}

// Complete ends the current task with a success mark.
func (d *Display) Complete() {
	d.finish(paint(d.symbols.Checkmark, color.FgGreen, d.caps.SupportsColor), "done")
}

// Fail ends the current task with a failure mark and err.
func (d *Display) Fail(err error) {
	d.finish(paint(d.symbols.Failure, color.FgRed, d.caps.SupportsColor), fmt.Sprintf("failed: %v", err))
}

// Cancelled ends the current task as cancelled.
func (d *Display) Cancelled() {
	d.finish(paint(d.symbols.Cancelled, color.FgYellow, d.caps.SupportsColor), "cancelled")
}

func (d *Display) finish(mark, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	if d.current == nil {
		return
	}
	fmt.Fprintf(d.out, "%s %s %s (%s)\n", mark, d.current.Label, outcome, formatElapsed(d.now().Sub(d.started)))
	d.current = nil
}

// Stop removes the spinner without printing an outcome.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.current = nil
}

func (d *Display) stopLocked() {
	if d.spinner != nil {
		d.spinner.Stop()
		d.spinner = nil
	}
}
