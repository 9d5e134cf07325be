package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/task"
)

type fakeBackend struct {
	mu sync.Mutex

	connected  bool
	connectErr error

	deps    []string
	depsErr error

	// replies are returned by successive generations; the last one repeats.
	replies []string
	genErr  error
	// block makes generation wait until it is cancelled.
	block   bool
	started chan struct{}

	resolutions map[string]string

	// dropAfterIdentify marks the backend unavailable once dependencies
	// have been identified.
	dropAfterIdentify bool

	identifyCalls int
	resolveCalls  int
	requests      []llm.GenerateRequest
}

func (b *fakeBackend) Name() string  { return "Fake" }
func (b *fakeBackend) Model() string { return "fake-model" }

func (b *fakeBackend) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connectErr != nil {
		b.connected = false
		return b.connectErr
	}
	b.connected = true
	return nil
}

func (b *fakeBackend) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBackend) IdentifyDependencies(context.Context, llm.DependencyRequest) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.identifyCalls++
	if b.dropAfterIdentify {
		b.connected = false
	}
	return b.deps, b.depsErr
}

func (b *fakeBackend) GenerateCodeStream(ctx context.Context, req llm.GenerateRequest, onFragment func(string), _ func() bool) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	n := len(b.requests)
	block, genErr := b.block, b.genErr
	b.mu.Unlock()

	if block {
		onFragment("import ")
		if b.started != nil {
			b.started <- struct{}{}
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	if genErr != nil {
		return "", genErr
	}
	reply := b.replies[min(n, len(b.replies))-1]
	onFragment(reply)
	return reply, nil
}

func (b *fakeBackend) ResolvePackage(_ context.Context, module, _ string) (llm.Resolution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveCalls++
	if pkg, ok := b.resolutions[module]; ok {
		return llm.Resolution{Module: module, Package: pkg}, nil
	}
	return llm.Resolution{Module: module, Reason: "unknown module"}, nil
}

func (b *fakeBackend) generateRequests() []llm.GenerateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.GenerateRequest(nil), b.requests...)
}

type fakeEnv struct {
	mu sync.Mutex

	// runs are returned by successive script runs; the last one repeats.
	runs       []task.ScriptResult
	installErr error
	// release, when set, holds every run until it is closed.
	release chan struct{}

	ensured  int
	installs [][]string
	runCount int
}

func (e *fakeEnv) EnsureEnvironment(context.Context, string, func(string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensured++
	return nil
}

func (e *fakeEnv) InstallDependencies(_ context.Context, _ string, deps []string, progress func(string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.installs = append(e.installs, append([]string(nil), deps...))
	progress("Resolved " + strings.Join(deps, " "))
	return e.installErr
}

func (e *fakeEnv) RunScript(ctx context.Context, _, _ string, progress func(string)) (task.ScriptResult, error) {
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return task.ScriptResult{}, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runCount++
	if len(e.runs) == 0 {
		return task.ScriptResult{}, errors.New("no scripted run")
	}
	res := e.runs[min(e.runCount, len(e.runs))-1]
	if res.Stdout != "" {
		progress(res.Stdout)
	}
	return res, nil
}

func (e *fakeEnv) counts() (installs [][]string, runs int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]string(nil), e.installs...), e.runCount
}

type recordingSink struct {
	statuses  []string
	console   []string
	chats     []string
	fragments strings.Builder
	replaced  []string
	notices   []Notice
	controls  enablement.Controls
}

func (s *recordingSink) Status(msg string)  { s.statuses = append(s.statuses, msg) }
func (s *recordingSink) Console(msg string) { s.console = append(s.console, msg) }
func (s *recordingSink) Chat(sender, msg string) {
	s.chats = append(s.chats, fmt.Sprintf("%s: %s", sender, msg))
}
func (s *recordingSink) CodeFragment(text string)       { s.fragments.WriteString(text) }
func (s *recordingSink) CodeReplaced(code string)       { s.replaced = append(s.replaced, code) }
func (s *recordingSink) Controls(c enablement.Controls) { s.controls = c }
func (s *recordingSink) Notice(n Notice)                { s.notices = append(s.notices, n) }

func (s *recordingSink) noticeTitles() []string {
	out := make([]string, 0, len(s.notices))
	for _, n := range s.notices {
		out = append(out, n.Title)
	}
	return out
}

type record struct {
	task   string
	status string
}

type fakeRecorder struct {
	records []record
}

func (r *fakeRecorder) RecordTask(_, taskName, status string, _ time.Duration, _ string) {
	r.records = append(r.records, record{task: taskName, status: status})
}

type harness struct {
	ctrl     *Controller
	runner   *task.Runner
	store    *project.Store
	backend  *fakeBackend
	env      *fakeEnv
	sink     *recordingSink
	recorder *fakeRecorder
}

// newHarness wires a controller with a real runner and store to fakes, with
// project "demo" selected and the backend connected.
func newHarness(t *testing.T, backend *fakeBackend, env *fakeEnv, settings Settings) *harness {
	t.Helper()
	h := &harness{
		runner:   task.NewRunner(nil, 32),
		store:    project.NewStore(t.TempDir(), ""),
		backend:  backend,
		env:      env,
		sink:     &recordingSink{},
		recorder: &fakeRecorder{},
	}
	ctrl, err := New(Deps{
		Runner:   h.runner,
		Env:      env,
		Store:    h.store,
		Sink:     h.sink,
		Recorder: h.recorder,
	}, settings)
	require.NoError(t, err)
	h.ctrl = ctrl

	_, err = ctrl.CreateProject("demo")
	require.NoError(t, err)
	backend.connected = true
	require.NoError(t, ctrl.SetBackend(backend))
	return h
}

func (h *harness) drive(t *testing.T, opts DriveOptions) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Drive(ctx, h.ctrl, h.runner.Events(), opts)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "workflow did not settle")
	return err
}

func (h *harness) history() []string {
	out := make([]string, 0, len(h.recorder.records))
	for _, r := range h.recorder.records {
		out = append(out, r.task+"="+r.status)
	}
	return out
}
