package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains events until the Finished event of the given task arrives.
func collect(t *testing.T, r *Runner, id string) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			out = append(out, ev)
			if ev.Kind == EventFinished && ev.TaskID == id {
				return out
			}
		case <-timeout:
			t.Fatalf("timed out waiting for task %s to finish, got %d events", id, len(out))
		}
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestRunner_Start(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		typ        Type
		fn         Func
		wantValue  any
		wantErr    string
		wantResult bool
	}{
		"value is delivered": {
			typ: IdentifyDependencies,
			fn: func(_ context.Context, _ Reporter) (any, error) {
				return []string{"requests"}, nil
			},
			wantValue:  []string{"requests"},
			wantResult: true,
		},
		"error is delivered as data": {
			typ: RunScript,
			fn: func(_ context.Context, _ Reporter) (any, error) {
				return nil, errors.New("boom")
			},
			wantErr:    "boom",
			wantResult: true,
		},
		"panic is recovered into an error": {
			typ: InstallDependencies,
			fn: func(_ context.Context, _ Reporter) (any, error) {
				panic("kaput")
			},
			wantErr:    "task panicked: kaput",
			wantResult: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := NewRunner(nil, 16)
			tk, err := r.Start(context.Background(), tc.typ, tc.fn)
			require.NoError(t, err)

			events := collect(t, r, tk.ID)
			last := events[len(events)-1]
			assert.Equal(t, EventFinished, last.Kind)
			assert.False(t, last.Cancelled)

			var result *Event
			for i := range events {
				assert.Equal(t, tc.typ, events[i].Type)
				if events[i].Kind == EventResult {
					result = &events[i]
				}
			}
			require.Equal(t, tc.wantResult, result != nil)
			if tc.wantErr != "" {
				require.Error(t, result.Err)
				assert.Contains(t, result.Err.Error(), tc.wantErr)
				return
			}
			assert.NoError(t, result.Err)
			assert.Equal(t, tc.wantValue, result.Value)
		})
	}
}

func TestRunner_RejectsWhileBusy(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 16)
	release := make(chan struct{})
	first, err := r.Start(context.Background(), RunScript, func(_ context.Context, _ Reporter) (any, error) {
		<-release
		return ScriptResult{}, nil
	})
	require.NoError(t, err)

	second, err := r.Start(context.Background(), GenerateCodeStream, func(_ context.Context, _ Reporter) (any, error) {
		return "", nil
	})
	assert.Nil(t, second)
	require.ErrorIs(t, err, ErrBusy)
	assert.Same(t, first, r.Active())

	close(release)
	collect(t, r, first.ID)
	assert.Nil(t, r.Active())
}

func TestRunner_StartValidation(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 1)
	_, err := r.Start(context.Background(), Idle, func(_ context.Context, _ Reporter) (any, error) { return nil, nil })
	assert.Error(t, err)

	_, err = r.Start(context.Background(), RunScript, nil)
	assert.Error(t, err)
	assert.Nil(t, r.Active())
}

func TestRunner_CancelSuppressesResult(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 64)
	started := make(chan struct{})
	tk, err := r.Start(context.Background(), GenerateCodeStream, func(ctx context.Context, rep Reporter) (any, error) {
		rep.Fragment("import os\n")
		close(started)
		for !rep.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		rep.Fragment("never seen")
		rep.Console("never seen either")
		return "partial", nil
	})
	require.NoError(t, err)

	<-started
	assert.True(t, r.Cancel())

	events := collect(t, r, tk.ID)
	for _, ev := range events {
		assert.NotEqual(t, EventResult, ev.Kind)
		assert.NotEqual(t, "never seen", ev.Text)
		assert.NotEqual(t, "never seen either", ev.Text)
	}
	last := events[len(events)-1]
	assert.Equal(t, EventFinished, last.Kind)
	assert.True(t, last.Cancelled)
	assert.Contains(t, kinds(events), EventFragment)
}

func TestRunner_CancelWithoutActiveTask(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 1)
	assert.False(t, r.Cancel())
}

func TestRunner_ActiveClearedBeforeFinished(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 0)
	tk, err := r.Start(context.Background(), AttemptConnection, func(_ context.Context, _ Reporter) (any, error) {
		return true, nil
	})
	require.NoError(t, err)

	for ev := range r.Events() {
		if ev.Kind == EventFinished {
			assert.Equal(t, tk.ID, ev.TaskID)
			assert.Nil(t, r.Active())

			next, err := r.Start(context.Background(), RunScript, func(_ context.Context, _ Reporter) (any, error) {
				return ScriptResult{}, nil
			})
			require.NoError(t, err)
			collect(t, r, next.ID)
			return
		}
	}
}

func TestRunner_FinishedIsLast(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, 64)
	tk, err := r.Start(context.Background(), InstallDependencies, func(_ context.Context, rep Reporter) (any, error) {
		rep.Console("Resolved 3 packages")
		rep.Status("installing")
		return true, nil
	})
	require.NoError(t, err)

	events := collect(t, r, tk.ID)
	got := kinds(events)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, EventResult, got[len(got)-2])
	assert.Equal(t, EventFinished, got[len(got)-1])

	var console []string
	for _, ev := range events {
		if ev.Kind == EventLog && ev.Source == SourceConsole {
			console = append(console, ev.Text)
		}
	}
	assert.Equal(t, []string{"Resolved 3 packages"}, console)
}
