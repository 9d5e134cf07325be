package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/task"
)

// Settings tunes the workflow.
type Settings struct {
	AutoCorrect bool
	// MaxAttempts bounds the correction generations of one cycle.
	MaxAttempts int
	// StructureInfoMaxLen caps the project listing sent to the backend.
	StructureInfoMaxLen int
}

// Deps are the collaborators of a Controller. Runner, Env and Store are
// required; the rest default to no-ops.
type Deps struct {
	Runner   Runner
	Env      Environment
	Store    Store
	Exporter Exporter
	Sink     Sink
	Recorder Recorder
	Logger   *slog.Logger
}

// Controller sequences tasks for the loaded project. It is not safe for
// concurrent use.
type Controller struct {
	runner   Runner
	env      Environment
	store    Store
	exporter Exporter
	sink     Sink
	recorder Recorder
	logger   *slog.Logger

	settings   Settings
	classifier Classifier

	backend llm.Backend
	project string
	code    string

	state     State
	active    *task.Task
	fragments strings.Builder

	// failure of the active task, for history.
	failed     bool
	failDetail string
}

// New creates an idle controller with no project loaded.
func New(deps Deps, settings Settings) (*Controller, error) {
	if deps.Runner == nil || deps.Env == nil || deps.Store == nil {
		return nil, errors.New("orchestrator needs a runner, an environment and a store")
	}
	if settings.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must not be negative, got %d", settings.MaxAttempts)
	}
	if deps.Sink == nil {
		deps.Sink = discardSink{}
	}
	if deps.Recorder == nil {
		deps.Recorder = discardRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if settings.StructureInfoMaxLen == 0 {
		settings.StructureInfoMaxLen = project.DefaultStructureInfoMaxLen
	}
	return &Controller{
		runner:     deps.Runner,
		env:        deps.Env,
		store:      deps.Store,
		exporter:   deps.Exporter,
		sink:       deps.Sink,
		recorder:   deps.Recorder,
		logger:     deps.Logger,
		settings:   settings,
		classifier: Classifier{AutoCorrect: settings.AutoCorrect, MaxAttempts: settings.MaxAttempts},
	}, nil
}

// Ready reports whether the controller is idle and accepts a new action.
func (c *Controller) Ready() bool {
	return c.state.CurrentPhase == task.Idle && !c.state.Busy
}

// Phase returns the current phase.
func (c *Controller) Phase() task.Type {
	return c.state.CurrentPhase
}

// Snapshot returns a copy of the workflow state.
func (c *Controller) Snapshot() State {
	return c.state.Clone()
}

// Project returns the loaded project, or "".
func (c *Controller) Project() string {
	return c.project
}

// Code returns the authoritative code of the loaded project.
func (c *Controller) Code() string {
	return c.code
}

// Backend returns the connected backend, or nil.
func (c *Controller) Backend() llm.Backend {
	return c.backend
}

// Connected reports whether the backend is usable.
func (c *Controller) Connected() bool {
	return c.backend != nil && c.backend.Available()
}

// Settings returns the active workflow settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Controls computes the current enablement of the interactive controls.
func (c *Controller) Controls() enablement.Controls {
	return enablement.Compute(enablement.Inputs{
		TaskRunning:     c.state.Busy,
		ProjectLoaded:   c.project != "",
		LLMConnected:    c.Connected(),
		CurrentTask:     c.state.CurrentPhase,
		CancelRequested: c.state.CancelledByUser,
	})
}

func (c *Controller) refreshControls() {
	c.sink.Controls(c.Controls())
}

// SetAutoCorrect toggles automatic correction of failed runs.
func (c *Controller) SetAutoCorrect(on bool) {
	c.settings.AutoCorrect = on
	c.classifier.AutoCorrect = on
}

// SetMaxAttempts changes the correction budget for later decisions.
func (c *Controller) SetMaxAttempts(n int) error {
	if n < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", n)
	}
	c.settings.MaxAttempts = n
	c.classifier.MaxAttempts = n
	return nil
}

// SetBackend installs an already connected backend without running a
// connection task.
func (c *Controller) SetBackend(b llm.Backend) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	c.backend = b
	c.refreshControls()
	return nil
}

func (c *Controller) rejectBusy() error {
	c.sink.Notice(Notice{
		Level:   NoticeWarning,
		Title:   "Busy",
		Message: fmt.Sprintf("Please wait for the current task (%s) to finish.", c.state.CurrentPhase.Label()),
	})
	c.logger.Debug("action rejected while busy", "phase", c.state.CurrentPhase)
	return fmt.Errorf("%w: %s", ErrBusy, c.state.CurrentPhase)
}

func (c *Controller) requireProject() error {
	if c.project == "" {
		c.sink.Notice(Notice{Level: NoticeWarning, Title: "No Project", Message: "Please select or create a project first."})
		return ErrNoProject
	}
	return nil
}

func (c *Controller) requireBackend() error {
	if !c.Connected() {
		c.sink.Notice(Notice{Level: NoticeWarning, Title: "LLM Not Connected", Message: "Connect to an LLM backend first."})
		return ErrBackendUnavailable
	}
	return nil
}

// SelectProject loads name and resets the workflow state for it.
func (c *Controller) SelectProject(name string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	name, err := project.Sanitize(name)
	if err != nil {
		return err
	}
	code, err := c.store.ScriptContent(name)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", name, err)
	}
	meta, err := c.store.LoadMetadata(name)
	if err != nil {
		return fmt.Errorf("loading metadata of %s: %w", name, err)
	}

	c.project = name
	c.code = code
	c.state = State{ProjectDependencies: meta.Dependencies}
	c.sink.Status(fmt.Sprintf("Project '%s' loaded.", name))
	c.sink.CodeReplaced(code)
	c.refreshControls()
	return nil
}

// CreateProject creates and selects a project. The Python environment is
// created by the first install or run.
func (c *Controller) CreateProject(name string) (string, error) {
	if c.state.Busy {
		return "", c.rejectBusy()
	}
	created, err := c.store.Create(name)
	if err != nil {
		return "", err
	}
	c.sink.Status(fmt.Sprintf("Project '%s' created.", created))
	return created, c.SelectProject(created)
}

// DeleteProject removes a project, unloading it when it is the current one.
func (c *Controller) DeleteProject(name string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	name, err := project.Sanitize(name)
	if err != nil {
		return err
	}
	if err := c.store.Delete(name); err != nil {
		return err
	}
	if name == c.project {
		c.project = ""
		c.code = ""
		c.state = State{}
		c.sink.CodeReplaced("")
	}
	c.sink.Status(fmt.Sprintf("Project '%s' deleted.", name))
	c.refreshControls()
	return nil
}

// AddItem copies a file or directory into the loaded project. It returns
// project.ErrItemExists when overwrite is false and the item is present.
func (c *Controller) AddItem(src string, overwrite bool) (string, error) {
	if c.state.Busy {
		return "", c.rejectBusy()
	}
	if err := c.requireProject(); err != nil {
		return "", err
	}
	item, err := c.store.AddItem(c.project, src, overwrite)
	if err != nil {
		if !errors.Is(err, project.ErrItemExists) {
			c.sink.Status(fmt.Sprintf("Error adding '%s'.", filepath.Base(src)))
		}
		return "", err
	}
	if overwrite {
		c.sink.Console(fmt.Sprintf("Overwrote existing: %s", item))
	}
	if item == c.store.ScriptName() {
		code, err := c.store.ScriptContent(c.project)
		if err != nil {
			return item, fmt.Errorf("reloading %s: %w", item, err)
		}
		c.code = code
		c.sink.CodeReplaced(code)
		c.refreshControls()
	}
	c.sink.Status(fmt.Sprintf("Successfully added '%s' to the project.", item))
	c.sink.Console(fmt.Sprintf("Added item to project: %s", item))
	return item, nil
}

// SaveCode replaces the project code.
func (c *Controller) SaveCode(code string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	if err := c.requireProject(); err != nil {
		return err
	}
	if err := c.store.SaveScriptContent(c.project, code); err != nil {
		return fmt.Errorf("saving code: %w", err)
	}
	c.code = code
	c.sink.Status("Code saved.")
	return nil
}

// StartChatRequest starts a new generation cycle for text. A busy controller
// rejects it without touching the workflow state.
func (c *Controller) StartChatRequest(ctx context.Context, text string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyRequest
	}
	if err := c.requireProject(); err != nil {
		return err
	}
	if err := c.requireBackend(); err != nil {
		return err
	}

	c.state.endCycle()
	c.state.CorrectionAttempts = 0
	c.state.LastUserRequest = text
	c.sink.Chat("User", text)
	return c.startUserTask(c.startIdentify(ctx))
}

// RunScript runs the project script. A failure starts the correction cycle
// when auto-correct is on.
func (c *Controller) RunScript(ctx context.Context) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	if err := c.requireProject(); err != nil {
		return err
	}
	c.state.endCycle()
	return c.startUserTask(c.startRun(ctx))
}

// InstallDependencies installs names into the project environment outside
// any correction cycle.
func (c *Controller) InstallDependencies(ctx context.Context, names []string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	if err := c.requireProject(); err != nil {
		return err
	}
	var deps []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			deps = append(deps, n)
		}
	}
	if len(deps) == 0 {
		return errors.New("no dependencies given")
	}
	c.state.endCycle()
	c.state.PendingInstall = deps
	return c.startUserTask(c.startInstall(ctx))
}

// AttemptConnection connects b in the background. b replaces the current
// backend and is discarded again if the connection fails.
func (c *Controller) AttemptConnection(ctx context.Context, b llm.Backend) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	if b == nil {
		return errors.New("no backend to connect")
	}
	c.backend = b
	return c.startUserTask(c.start(ctx, task.AttemptConnection, func(ctx context.Context, r task.Reporter) (any, error) {
		r.Status(fmt.Sprintf("Connecting to %s...", b.Name()))
		if err := b.Connect(ctx); err != nil {
			return false, err
		}
		r.Status(fmt.Sprintf("Connected to %s (model %s).", b.Name(), b.Model()))
		return true, nil
	}))
}

// ExportExecutable builds a PyInstaller bundle of the project into output.
func (c *Controller) ExportExecutable(ctx context.Context, output string) error {
	return c.export(ctx, task.ExportExecutable, output)
}

// ExportSource archives the project sources into output.
func (c *Controller) ExportSource(ctx context.Context, output string) error {
	return c.export(ctx, task.ExportSource, output)
}

func (c *Controller) export(ctx context.Context, typ task.Type, output string) error {
	if c.state.Busy {
		return c.rejectBusy()
	}
	if err := c.requireProject(); err != nil {
		return err
	}
	if c.exporter == nil {
		return errors.New("export is not available")
	}
	name, exporter := c.project, c.exporter
	return c.startUserTask(c.start(ctx, typ, func(ctx context.Context, r task.Reporter) (any, error) {
		if typ == task.ExportSource {
			return exporter.ExportSource(ctx, name, output, r.Console)
		}
		return exporter.ExportExecutable(ctx, name, output, r.Console)
	}))
}

// CancelCurrentTask requests cancellation of the running generation. Only
// streaming generation can be cancelled.
func (c *Controller) CancelCurrentTask() error {
	if !c.state.Busy || c.active == nil {
		return ErrNoTask
	}
	if !c.state.CurrentPhase.Cancellable() {
		c.sink.Status(fmt.Sprintf("Task '%s' cannot be cancelled.", c.state.CurrentPhase))
		return fmt.Errorf("%w: %s", ErrNotCancellable, c.state.CurrentPhase)
	}
	if c.state.CancelledByUser {
		return nil
	}
	c.state.CancelledByUser = true
	c.sink.Status(fmt.Sprintf("Attempting to cancel task: %s...", c.state.CurrentPhase))
	c.active.Cancel()
	c.refreshControls()
	return nil
}

// startUserTask finishes a user-initiated start: a failed start leaves the
// controller idle.
func (c *Controller) startUserTask(err error) error {
	if err != nil {
		c.toIdle()
	}
	return err
}

// start launches fn as the current phase.
func (c *Controller) start(ctx context.Context, typ task.Type, fn task.Func) error {
	c.state.Busy = false
	t, err := c.runner.Start(ctx, typ, fn)
	if err != nil {
		if errors.Is(err, task.ErrBusy) {
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
		return err
	}
	c.active = t
	c.state.CurrentPhase = typ
	c.state.Busy = true
	c.state.CancelledByUser = false
	c.failed = false
	c.failDetail = ""
	c.fragments.Reset()
	c.logger.Debug("phase started", "phase", typ, "task_id", t.ID, "project", c.project)
	c.refreshControls()
	return nil
}

func (c *Controller) structureInfo() string {
	info, err := c.store.StructureInfo(c.project, c.settings.StructureInfoMaxLen)
	if err != nil {
		c.logger.Debug("structure info unavailable", "project", c.project, "error", err)
		return ""
	}
	return info
}

func (c *Controller) projectPath() (string, error) {
	if c.project == "" {
		return "", ErrNoProject
	}
	return c.store.Path(c.project)
}

func (c *Controller) startIdentify(ctx context.Context) error {
	if err := c.requireBackend(); err != nil {
		return err
	}
	backend := c.backend
	req := llm.DependencyRequest{
		ProjectName:   c.project,
		UserRequest:   c.state.LastUserRequest,
		StructureInfo: c.structureInfo(),
	}
	return c.start(ctx, task.IdentifyDependencies, func(ctx context.Context, r task.Reporter) (any, error) {
		r.Status(fmt.Sprintf("Asking %s which packages are needed...", backend.Name()))
		return backend.IdentifyDependencies(ctx, req)
	})
}

func (c *Controller) startGenerate(ctx context.Context) error {
	if c.project == "" {
		return ErrNoProject
	}
	if err := c.requireBackend(); err != nil {
		return err
	}
	backend := c.backend
	req := llm.GenerateRequest{
		ProjectName:   c.project,
		UserRequest:   c.state.LastUserRequest,
		StructureInfo: c.structureInfo(),
	}
	correcting := c.state.Correcting()
	if correcting {
		corr := c.state.Correction
		req.CurrentCode = corr.Code
		req.Dependencies = c.state.ProjectDependencies
		req.Correction = &llm.Correction{Error: corr.Error, Line: corr.Line}
		c.sink.Status(fmt.Sprintf("-> Generating correction stream (Attempt %d)...", c.state.CorrectionAttempts))
	} else {
		c.state.CorrectionAttempts = 0
		req.CurrentCode = c.code
		req.Dependencies = c.state.DepsIdentified
		c.sink.Status("-> Generating code stream...")
	}

	c.state.StreamIsCorrection = correcting
	err := c.start(ctx, task.GenerateCodeStream, func(ctx context.Context, r task.Reporter) (any, error) {
		return backend.GenerateCodeStream(ctx, req, r.Fragment, r.Cancelled)
	})
	if err != nil {
		c.state.StreamIsCorrection = false
	}
	return err
}

func (c *Controller) startInstall(ctx context.Context) error {
	path, err := c.projectPath()
	if err != nil {
		return err
	}
	deps := append([]string(nil), c.state.PendingInstall...)
	if len(deps) == 0 {
		return errors.New("nothing to install")
	}
	env := c.env
	return c.start(ctx, task.InstallDependencies, func(ctx context.Context, r task.Reporter) (any, error) {
		if err := env.EnsureEnvironment(ctx, path, r.Console); err != nil {
			return false, fmt.Errorf("preparing environment: %w", err)
		}
		r.Status(fmt.Sprintf("Installing %s...", strings.Join(deps, ", ")))
		if err := env.InstallDependencies(ctx, path, deps, r.Console); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (c *Controller) startRun(ctx context.Context) error {
	path, err := c.projectPath()
	if err != nil {
		return err
	}
	env, script := c.env, c.store.ScriptName()
	return c.start(ctx, task.RunScript, func(ctx context.Context, r task.Reporter) (any, error) {
		if err := env.EnsureEnvironment(ctx, path, r.Console); err != nil {
			return nil, fmt.Errorf("preparing environment: %w", err)
		}
		r.Console(fmt.Sprintf("--- Running %s ---", script))
		return env.RunScript(ctx, path, script, r.Console)
	})
}

func (c *Controller) startResolve(ctx context.Context) error {
	if err := c.requireBackend(); err != nil {
		return err
	}
	if c.state.MissingModule == "" || c.state.Correction == nil {
		return errors.New("no missing module to resolve")
	}
	backend := c.backend
	module, errText := c.state.MissingModule, c.state.Correction.Error
	return c.start(ctx, task.ResolveImportPackage, func(ctx context.Context, r task.Reporter) (any, error) {
		r.Status(fmt.Sprintf("Asking %s which package provides '%s'...", backend.Name(), module))
		return backend.ResolvePackage(ctx, module, errText)
	})
}

// FlushFragments forwards the streamed text buffered since the last flush.
func (c *Controller) FlushFragments() {
	if c.fragments.Len() == 0 {
		return
	}
	c.sink.CodeFragment(c.fragments.String())
	c.fragments.Reset()
}

// HandleEvent applies one runner event. Events of a task other than the
// active one are stale and dropped.
func (c *Controller) HandleEvent(ctx context.Context, ev task.Event) {
	if c.active == nil || ev.TaskID != c.active.ID || ev.Type != c.state.CurrentPhase {
		c.logger.Debug("discarding stale event", "task", ev.Type, "task_id", ev.TaskID, "kind", ev.Kind, "phase", c.state.CurrentPhase)
		return
	}
	switch ev.Kind {
	case task.EventLog:
		if ev.Source == task.SourceConsole {
			c.sink.Console(ev.Text)
		} else {
			c.sink.Status(ev.Text)
		}
	case task.EventFragment:
		c.fragments.WriteString(ev.Text)
	case task.EventResult:
		c.handleResult(ev)
	case task.EventFinished:
		c.handleFinished(ctx, ev)
	}
}

func (c *Controller) handleResult(ev task.Event) {
	if c.state.CancelledByUser || c.active.Cancelled() {
		c.logger.Debug("ignoring result of cancelled task", "task", ev.Type, "task_id", ev.TaskID)
		return
	}

	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("panic while handling task result", "task", ev.Type, "panic", p)
			c.sink.Status(fmt.Sprintf("! Internal error handling result: %v", p))
			c.sink.Console(fmt.Sprintf("! Internal error handling result for %s: %v\n%s", ev.Type, p, debug.Stack()))
			c.sink.Chat(SystemSender, fmt.Sprintf("Critical internal error while handling task result: %v", p))
			c.state.endCycle()
			c.state.CorrectionAttempts = 0
			c.state.NextPhase = task.Idle
			c.failed = true
			c.failDetail = fmt.Sprint(p)
		}
	}()

	d := c.classifier.Classify(&c.state, Outcome{Type: ev.Type, Value: ev.Value, Err: ev.Err, CurrentCode: c.code})
	c.apply(d)
	c.state.NextPhase = d.Next
	c.logger.Debug("result classified", "task", ev.Type, "task_id", ev.TaskID, "next", d.Next)
}

func (c *Controller) apply(d Decision) {
	for _, l := range d.Lines {
		switch l.Channel {
		case ChannelConsole:
			c.sink.Console(l.Text)
		case ChannelChat:
			c.sink.Chat(SystemSender, l.Text)
		default:
			c.sink.Status(l.Text)
		}
	}

	if d.UpdateCode {
		c.code = d.Code
		if err := c.store.SaveScriptContent(c.project, d.Code); err != nil {
			c.sink.Status(fmt.Sprintf("! Could not save generated code: %v", err))
		}
		c.sink.CodeReplaced(d.Code)
	}

	if d.PersistDependencies {
		if err := c.store.SaveDependencies(c.project, c.state.ProjectDependencies); err != nil {
			c.sink.Status(fmt.Sprintf("! Could not save project dependencies: %v", err))
			c.sink.Console(fmt.Sprintf("Saving dependencies %v failed: %v", c.state.ProjectDependencies, err))
		}
	}

	switch d.Connection {
	case ConnectionEstablished:
		if c.backend == nil {
			break
		}
		c.sink.Status(fmt.Sprintf("LLM connected: %s (%s).", c.backend.Name(), c.backend.Model()))
	case ConnectionLost:
		c.backend = nil
	}

	for _, n := range d.Notices {
		c.sink.Notice(n)
	}

	if d.Failed {
		c.failed = true
		c.failDetail = d.Detail
	}
}

func (c *Controller) handleFinished(ctx context.Context, ev task.Event) {
	finished := c.state.CurrentPhase
	if finished.Streams() {
		c.FlushFragments()
	}
	next := c.state.NextPhase
	c.state.NextPhase = task.Idle
	c.active = nil

	status := history.StatusCompleted
	switch {
	case ev.Cancelled || c.state.CancelledByUser:
		status = history.StatusCancelled
		c.sink.Status(fmt.Sprintf("--- Task '%s' cancelled by user. ---", finished))
		c.sink.Chat(SystemSender, fmt.Sprintf("(Task '%s' cancelled)", finished))
		c.state.endCycle()
		next = task.Idle
	case c.failed:
		status = history.StatusFailed
	}
	c.recorder.RecordTask(c.project, finished.String(), status, ev.Duration, c.failDetail)

	if next != task.Idle {
		err := c.chain(ctx, next)
		if err == nil {
			return
		}
		c.logger.Warn("could not start next phase", "next", next, "after", finished, "error", err)
		c.sink.Status(fmt.Sprintf("! Error starting %s: %v", next.Label(), err))
		c.sink.Chat(SystemSender, fmt.Sprintf("Stopping: could not start %s.", next.Label()))
		c.state.endCycle()
		c.state.CorrectionAttempts = 0
	}
	c.toIdle()
}

// chain starts the staged phase. Connection and export tasks are only ever
// started by the user.
func (c *Controller) chain(ctx context.Context, next task.Type) error {
	switch next {
	case task.IdentifyDependencies:
		return c.startIdentify(ctx)
	case task.GenerateCodeStream:
		return c.startGenerate(ctx)
	case task.InstallDependencies:
		return c.startInstall(ctx)
	case task.RunScript:
		return c.startRun(ctx)
	case task.ResolveImportPackage:
		return c.startResolve(ctx)
	case task.Idle, task.AttemptConnection, task.ExportExecutable, task.ExportSource:
		return fmt.Errorf("%s is not a chainable phase", next)
	default:
		return fmt.Errorf("unknown phase %d", int(next))
	}
}

func (c *Controller) toIdle() {
	c.active = nil
	c.state.endCycle()
	c.state.CurrentPhase = task.Idle
	c.state.NextPhase = task.Idle
	c.state.Busy = false
	c.state.CancelledByUser = false
	if err := c.state.CheckInvariants(c.settings.MaxAttempts); err != nil {
		c.logger.Error("workflow invariant violated", "error", err)
	}
	c.logger.Debug("idle", "project", c.project, "attempts", c.state.CorrectionAttempts)
	c.refreshControls()
}
