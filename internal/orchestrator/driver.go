package orchestrator

import (
	"context"
	"time"

	"github.com/pythautom/pythautom/internal/task"
)

// DriveOptions configures Drive.
type DriveOptions struct {
	// FlushInterval is how often buffered code fragments are forwarded.
	// Zero flushes only when a task finishes.
	FlushInterval time.Duration
	// Interrupt requests cancellation of the running task, typically on
	// SIGINT.
	Interrupt <-chan struct{}
}

// Drive feeds events into c until the workflow is idle again. An interrupt
// cancels a cancellable task; for any other task Drive gives up and returns
// ErrInterrupted.
func Drive(ctx context.Context, c *Controller, events <-chan task.Event, opts DriveOptions) error {
	var tick <-chan time.Time
	if opts.FlushInterval > 0 {
		ticker := time.NewTicker(opts.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for !c.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			c.HandleEvent(ctx, ev)
		case <-tick:
			c.FlushFragments()
		case <-opts.Interrupt:
			if err := c.CancelCurrentTask(); err != nil {
				return ErrInterrupted
			}
		}
	}
	return nil
}
