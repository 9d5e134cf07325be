package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned by Start while another task is still active.
var ErrBusy = errors.New("a task is already running")

// Reporter is handed to a running Func so it can report progress and observe
// cancellation. All methods are safe to call from any goroutine.
type Reporter interface {
	// Status emits a short line on the status channel.
	Status(msg string)
	// Console emits a line of raw output on the console channel.
	Console(msg string)
	// Fragment emits a piece of streamed text.
	Fragment(text string)
	// Cancelled reports whether cancellation was requested.
	Cancelled() bool
}

// Func is the blocking body of a task. A returned error is delivered to the
// consumer as part of the result event.
type Func func(ctx context.Context, r Reporter) (any, error)

// Task is a handle on a started unit of work.
type Task struct {
	ID        string
	Type      Type
	StartedAt time.Time

	cancelled atomic.Bool
	stop      context.CancelFunc
}

// Cancel requests cooperative cancellation. The task's Func observes it through
// Reporter.Cancelled and its context; nothing is interrupted forcibly.
func (t *Task) Cancel() {
	if t.cancelled.CompareAndSwap(false, true) && t.stop != nil {
		t.stop()
	}
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// Runner executes at most one task at a time and publishes its events on a
// single channel. The consumer must keep draining Events.
type Runner struct {
	logger *slog.Logger
	events chan Event

	mu     sync.Mutex
	active *Task
}

// NewRunner creates a runner whose event channel holds up to buffer events
// before a task blocks on delivery.
func NewRunner(logger *slog.Logger, buffer int) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Runner{
		logger: logger,
		events: make(chan Event, buffer),
	}
}

// Events returns the channel every task event is delivered on.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Active returns the running task, or nil.
func (r *Runner) Active() *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Cancel requests cancellation of the active task and reports whether one was
// running.
func (r *Runner) Cancel() bool {
	t := r.Active()
	if t == nil {
		return false
	}
	t.Cancel()
	return true
}

// Start launches fn on a new goroutine. It returns ErrBusy without side effects
// if a task is already active.
func (r *Runner) Start(ctx context.Context, typ Type, fn Func) (*Task, error) {
	if !typ.Runnable() {
		return nil, fmt.Errorf("cannot start task of type %s", typ)
	}
	if fn == nil {
		return nil, fmt.Errorf("task %s has no function", typ)
	}

	r.mu.Lock()
	if r.active != nil {
		running := r.active.Type
		r.mu.Unlock()
		r.logger.Warn("rejected task start, runner busy", "requested", typ, "running", running)
		return nil, fmt.Errorf("%w: %s", ErrBusy, running)
	}
	taskCtx, stop := context.WithCancel(ctx)
	t := &Task{
		ID:        uuid.NewString(),
		Type:      typ,
		StartedAt: time.Now(),
		stop:      stop,
	}
	r.active = t
	r.mu.Unlock()

	r.logger.Debug("task started", "task", typ, "id", t.ID)
	go r.run(ctx, taskCtx, t, fn)
	return t, nil
}

// run executes fn under taskCtx. Events are delivered until the parent context
// ends; cancelling the task itself never drops events.
func (r *Runner) run(parent, taskCtx context.Context, t *Task, fn Func) {
	defer t.stop()
	rep := &reporter{runner: r, task: t, ctx: parent}

	rep.Status(fmt.Sprintf("%s...", t.Type.Label()))
	value, err := invoke(taskCtx, fn, rep)

	if t.Cancelled() {
		r.logger.Debug("task cancelled, result suppressed", "task", t.Type, "id", t.ID)
	} else {
		if err != nil {
			rep.Console(fmt.Sprintf("--- Task error (%s) ---\n%v\n--- End task error ---", t.Type, err))
			rep.Status(fmt.Sprintf("%s failed: %v", t.Type.Label(), firstLine(err.Error())))
		} else {
			rep.Status(completionMessage(t.Type, value))
		}
		r.send(parent, Event{TaskID: t.ID, Type: t.Type, Kind: EventResult, Value: value, Err: err})
	}

	// Release before Finished so a consumer reacting to it can start the next task.
	r.mu.Lock()
	if r.active == t {
		r.active = nil
	}
	r.mu.Unlock()

	elapsed := time.Since(t.StartedAt)
	r.logger.Debug("task finished", "task", t.Type, "id", t.ID, "cancelled", t.Cancelled(), "duration", elapsed)
	r.send(parent, Event{TaskID: t.ID, Type: t.Type, Kind: EventFinished, Cancelled: t.Cancelled(), Duration: elapsed})
}

// send delivers ev unless ctx ends first, at which point nobody is left to
// consume it.
func (r *Runner) send(ctx context.Context, ev Event) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
		r.logger.Debug("event dropped after shutdown", "task", ev.Type, "kind", ev.Kind)
	}
}

func invoke(ctx context.Context, fn Func, rep Reporter) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = fmt.Errorf("task panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx, rep)
}

type reporter struct {
	runner *Runner
	task   *Task
	ctx    context.Context
}

func (p *reporter) Status(msg string) {
	p.log(SourceStatus, msg)
}

func (p *reporter) Console(msg string) {
	p.log(SourceConsole, msg)
}

func (p *reporter) log(src Source, msg string) {
	if p.task.Cancelled() {
		return
	}
	p.runner.send(p.ctx, Event{TaskID: p.task.ID, Type: p.task.Type, Kind: EventLog, Source: src, Text: msg})
}

func (p *reporter) Fragment(text string) {
	if text == "" || p.task.Cancelled() {
		return
	}
	p.runner.send(p.ctx, Event{TaskID: p.task.ID, Type: p.task.Type, Kind: EventFragment, Text: text})
}

func (p *reporter) Cancelled() bool {
	return p.task.Cancelled()
}
