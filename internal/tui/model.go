// Package tui is the interactive terminal front-end: a code pane fed by the
// generation stream, the chat transcript, the console and a request prompt.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/orchestrator"
	"github.com/pythautom/pythautom/internal/task"
)

// Projects lists and locates projects for the slash commands.
type Projects interface {
	List() ([]string, error)
	Path(name string) (string, error)
	ScriptName() string
}

// Options wires the model to a session.
type Options struct {
	Screen        *Screen
	Controller    *orchestrator.Controller
	Events        <-chan task.Event
	FlushInterval time.Duration
	Projects      Projects
	// NewBackend builds the configured backend for /connect.
	NewBackend func() (llm.Backend, error)
	// OnConnected runs after a connection attempt succeeds.
	OnConnected func(llm.Backend)
	// ConnectOnStart starts a connection attempt before the first frame.
	ConnectOnStart bool
	// Editor is the command /edit opens the script with.
	Editor string
	Logger *slog.Logger
}

type pane int

const (
	paneCode pane = iota
	paneChat
	paneConsole
	paneCount
)

type (
	eventMsg        task.Event
	eventsClosedMsg struct{}
	flushMsg        time.Time
	editorDoneMsg   struct{ err error }
)

// Model is the bubbletea model of the terminal UI.
type Model struct {
	ctx    context.Context
	opts   Options
	screen *Screen
	ctrl   *orchestrator.Controller
	logger *slog.Logger

	keys    keyMap
	input   textinput.Model
	code    viewport.Model
	chat    viewport.Model
	console viewport.Model
	spin    spinner.Model

	focus         pane
	width, height int
	connecting    bool
	// pendingConfirm is the destructive command waiting to be repeated.
	pendingConfirm string
}

// New creates the model. ctx bounds every task the model starts.
func New(ctx context.Context, opts Options) (Model, error) {
	if opts.Controller == nil || opts.Screen == nil || opts.Events == nil {
		return Model{}, errors.New("tui: controller, screen and events are required")
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 50 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.Screen.Attach(opts.Controller)

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = busyStyle

	m := Model{
		ctx:     ctx,
		opts:    opts,
		screen:  opts.Screen,
		ctrl:    opts.Controller,
		logger:  logger,
		keys:    defaultKeyMap(),
		input:   input,
		code:    viewport.New(0, 0),
		chat:    viewport.New(0, 0),
		console: viewport.New(0, 0),
		spin:    spin,
	}
	if opts.ConnectOnStart {
		m.connect()
	}
	m.syncInput()
	return m, nil
}

// Run shows the UI until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	m, err := New(ctx, opts)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitEvent(m.opts.Events),
		flushTick(m.opts.FlushInterval),
		m.spin.Tick,
		textinput.Blink,
	)
}

func waitEvent(events <-chan task.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func flushTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return flushMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.sync()
		return m, nil

	case eventMsg:
		m.ctrl.HandleEvent(m.ctx, task.Event(msg))
		m.afterController()
		return m, waitEvent(m.opts.Events)

	case eventsClosedMsg:
		return m, nil

	case flushMsg:
		m.ctrl.FlushFragments()
		m.sync()
		return m, flushTick(m.opts.FlushInterval)

	case editorDoneMsg:
		m.editorDone(msg.err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.ctrl.Controls().CancelEnabled {
			_ = m.ctrl.CancelCurrentTask()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.screen.notice != nil {
			m.screen.DismissNotice()
			return m, nil
		}
		if m.ctrl.Controls().CancelVisible {
			m.report(m.ctrl.CancelCurrentTask())
			m.afterController()
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.focus = (m.focus + 1) % paneCount
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		scroll(m.focused(), -1)
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		scroll(m.focused(), 1)
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		line := m.input.Value()
		m.input.Reset()
		m.screen.DismissNotice()
		cmd := m.submit(line)
		m.afterController()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) focused() *viewport.Model {
	switch m.focus {
	case paneChat:
		return &m.chat
	case paneConsole:
		return &m.console
	default:
		return &m.code
	}
}

// scroll moves v half a page in direction dir.
func scroll(v *viewport.Model, dir int) {
	v.SetYOffset(v.YOffset + dir*max(1, v.Height/2))
}

// afterController syncs the view after the controller may have changed state.
func (m *Model) afterController() {
	if m.connecting && m.ctrl.Ready() {
		m.connecting = false
		if m.ctrl.Connected() && m.opts.OnConnected != nil {
			m.opts.OnConnected(m.ctrl.Backend())
		}
	}
	m.syncInput()
	m.sync()
}

func (m *Model) syncInput() {
	m.input.Placeholder = m.ctrl.Controls().ChatLabel
}

// report shows err unless the controller already told the user about it.
func (m *Model) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrBusy),
		errors.Is(err, orchestrator.ErrNoProject),
		errors.Is(err, orchestrator.ErrBackendUnavailable),
		errors.Is(err, orchestrator.ErrNotCancellable):
	default:
		m.logger.Debug("command failed", "error", err)
		m.screen.Notice(orchestrator.Notice{Level: orchestrator.NoticeError, Title: "Error", Message: err.Error()})
	}
}

func (m *Model) info(title, msg string) {
	m.screen.Notice(orchestrator.Notice{Level: orchestrator.NoticeInfo, Title: title, Message: msg})
}
