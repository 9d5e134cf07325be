package orchestrator

import (
	"context"
	"time"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/task"
)

// Runner starts background tasks one at a time.
//
// Primary implementation: task.Runner. Its event channel must be drained
// into Controller.HandleEvent.
type Runner interface {
	// Start launches fn as a task of type typ. It fails with task.ErrBusy
	// while another task is active.
	Start(ctx context.Context, typ task.Type, fn task.Func) (*task.Task, error)
}

// Environment runs the uv-managed Python environment of a project.
//
// Primary implementation: pyenv.Manager. Methods block and are only called
// from task functions.
type Environment interface {
	// EnsureEnvironment creates the project virtualenv when it is missing.
	EnsureEnvironment(ctx context.Context, projectPath string, progress func(string)) error
	// InstallDependencies installs deps into the project environment.
	InstallDependencies(ctx context.Context, projectPath string, deps []string, progress func(string)) error
	// RunScript runs script inside the environment. A non-zero exit code is
	// a result, not an error.
	RunScript(ctx context.Context, projectPath, script string, progress func(string)) (task.ScriptResult, error)
}

// Store is the project storage the controller reads and writes.
//
// Primary implementation: project.Store.
type Store interface {
	Path(name string) (string, error)
	ScriptName() string
	Create(name string) (string, error)
	Delete(name string) error
	ScriptContent(name string) (string, error)
	SaveScriptContent(name, content string) error
	LoadMetadata(name string) (project.Metadata, error)
	SaveDependencies(name string, deps []string) error
	StructureInfo(name string, maxLen int) (string, error)
	AddItem(name, src string, overwrite bool) (string, error)
}

// Exporter packages a project. Primary implementation: export.Exporter.
type Exporter interface {
	ExportExecutable(ctx context.Context, name, output string, progress func(string)) (string, error)
	ExportSource(ctx context.Context, name, output string, progress func(string)) (string, error)
}

// Sink is the display surface of a front-end. The controller calls it from
// its own goroutine only.
type Sink interface {
	// Status shows a short progress line.
	Status(msg string)
	// Console shows raw output and error detail.
	Console(msg string)
	// Chat appends a transcript message.
	Chat(sender, msg string)
	// CodeFragment appends streamed code to the live code view.
	CodeFragment(text string)
	// CodeReplaced sets the code view to the authoritative code.
	CodeReplaced(code string)
	// Controls applies the enablement state of the interactive controls.
	Controls(c enablement.Controls)
	// Notice shows a prominent message.
	Notice(n Notice)
}

// Recorder keeps the task history. Primary implementation: history.Writer.
type Recorder interface {
	RecordTask(project, taskName, status string, duration time.Duration, detail string)
}

type discardSink struct{}

func (discardSink) Status(string)                {}
func (discardSink) Console(string)               {}
func (discardSink) Chat(string, string)          {}
func (discardSink) CodeFragment(string)          {}
func (discardSink) CodeReplaced(string)          {}
func (discardSink) Controls(enablement.Controls) {}
func (discardSink) Notice(Notice)                {}

type discardRecorder struct{}

func (discardRecorder) RecordTask(string, string, string, time.Duration, string) {}
