package shared

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/orchestrator"
	"github.com/pythautom/pythautom/internal/progress"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/task"
)

// NewTerminalSink sets the global color.NoColor, so these tests do not run in
// parallel.

type record struct {
	task, status, detail string
}

type recorderStub struct {
	records []record
}

func (r *recorderStub) RecordTask(_, taskName, status string, _ time.Duration, detail string) {
	r.records = append(r.records, record{taskName, status, detail})
}

type scriptEnv struct {
	result task.ScriptResult
}

func (scriptEnv) EnsureEnvironment(context.Context, string, func(string)) error { return nil }

func (scriptEnv) InstallDependencies(context.Context, string, []string, func(string)) error {
	return nil
}

func (e scriptEnv) RunScript(_ context.Context, _, _ string, progress func(string)) (task.ScriptResult, error) {
	progress(e.result.Stdout)
	return e.result, nil
}

func newTestSink(next orchestrator.Recorder) (*TerminalSink, *bytes.Buffer, *bytes.Buffer) {
	var status, code bytes.Buffer
	return NewTerminalSink(progress.TerminalCapabilities{}, &status, &code, next), &status, &code
}

func TestTerminalSinkLines(t *testing.T) {
	sink, status, _ := newTestSink(nil)

	sink.Status("Connecting...")
	sink.Console("raw output")
	sink.Chat("User", "hidden request")
	sink.Chat(orchestrator.SystemSender, "Done.")
	sink.Notice(orchestrator.Notice{Level: orchestrator.NoticeWarning, Title: "Busy", Message: "wait"})
	sink.CodeReplaced("print(1)")

	out := status.String()
	assert.Contains(t, out, "Connecting...")
	assert.Contains(t, out, "raw output")
	assert.NotContains(t, out, "hidden request")
	assert.Contains(t, out, "» Done.")
	assert.Contains(t, out, "Busy: wait")
	assert.NotContains(t, out, "streamed", "code loaded without a generation is not reported")
}

func TestTerminalSinkQuiet(t *testing.T) {
	sink, status, _ := newTestSink(nil)
	sink.Quiet = true

	sink.Console("raw output")
	sink.Status("still shown")
	assert.NotContains(t, status.String(), "raw output")
	assert.Contains(t, status.String(), "still shown")
}

func TestTerminalSinkRecordTask(t *testing.T) {
	next := &recorderStub{}
	sink, status, _ := newTestSink(next)

	sink.RecordTask("demo", "run_script", history.StatusFailed, time.Second, "SyntaxError")
	sink.RecordTask("demo", "generate_code_stream", history.StatusCancelled, time.Second, "")
	sink.RecordTask("demo", "install_dependencies", history.StatusCompleted, time.Second, "")

	assert.Equal(t, history.StatusCompleted, sink.LastStatus())
	assert.Equal(t, 1, sink.Failures())
	assert.Equal(t, []record{
		{"run_script", history.StatusFailed, "SyntaxError"},
		{"generate_code_stream", history.StatusCancelled, ""},
		{"install_dependencies", history.StatusCompleted, ""},
	}, next.records)
	assert.Empty(t, status.String(), "no outcome line without a started task")
}

func TestTerminalSinkWithController(t *testing.T) {
	tests := map[string]struct {
		result     task.ScriptResult
		wantStatus string
		wantOut    []string
	}{
		"successful run": {
			result:     task.ScriptResult{Stdout: "Hello from demo!"},
			wantStatus: history.StatusCompleted,
			wantOut:    []string{task.RunScript.Label() + "...", "Hello from demo!", "done"},
		},
		"failed run": {
			result:     task.ScriptResult{ExitCode: 1, Stderr: "Traceback (most recent call last):\nValueError: bad"},
			wantStatus: history.StatusFailed,
			wantOut:    []string{task.RunScript.Label() + "...", "failed"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			next := &recorderStub{}
			sink, status, _ := newTestSink(next)
			runner := task.NewRunner(nil, 32)
			ctrl, err := orchestrator.New(orchestrator.Deps{
				Runner:   runner,
				Env:      scriptEnv{result: tt.result},
				Store:    project.NewStore(t.TempDir(), ""),
				Sink:     sink,
				Recorder: sink,
			}, orchestrator.Settings{AutoCorrect: false})
			require.NoError(t, err)
			sink.Attach(ctrl)

			_, err = ctrl.CreateProject("demo")
			require.NoError(t, err)
			require.NoError(t, ctrl.RunScript(context.Background()))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, orchestrator.Drive(ctx, ctrl, runner.Events(), orchestrator.DriveOptions{}))

			assert.Equal(t, tt.wantStatus, sink.LastStatus())
			require.Len(t, next.records, 1)
			assert.Equal(t, task.RunScript.String(), next.records[0].task)
			for _, w := range tt.wantOut {
				assert.Contains(t, status.String(), w)
			}
		})
	}
}
