package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/config"
	apperrors "github.com/pythautom/pythautom/internal/errors"
	"github.com/pythautom/pythautom/internal/export"
	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/llm/gemini"
	"github.com/pythautom/pythautom/internal/llm/ollama"
	"github.com/pythautom/pythautom/internal/orchestrator"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/pyenv"
	"github.com/pythautom/pythautom/internal/task"
)

// App holds the collaborators every command builds from the root flags.
type App struct {
	Config   *config.Configuration
	Logger   *slog.Logger
	Store    *project.Store
	Env      *pyenv.Manager
	Exporter *export.Exporter
	History  *history.Writer
}

// LoadApp loads the configuration named by --config and wires the
// collaborators. --debug lowers the log level to debug.
func LoadApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, apperrors.ConfigParseError(configPath, err)
	}

	level := parseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	store := project.NewStore(cfg.ProjectsDir, cfg.MainScript)
	env := pyenv.NewManager(cfg.UVCmd, 0)
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Env:      env,
		Exporter: export.New(store, env, cfg.ExportTimeoutDuration()),
		History:  history.NewWriter(cfg.StateDir, cfg.HistoryMaxEntries, logger),
	}, nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ProjectName returns the existing project named by --project.
func (a *App) ProjectName(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("project")
	if name == "" {
		return "", apperrors.NoProjectSelected()
	}
	safe, err := project.Sanitize(name)
	if err != nil {
		return "", apperrors.InvalidProjectName(name)
	}
	if _, err := a.Store.Path(safe); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			return "", apperrors.ProjectNotFound(safe)
		}
		return "", err
	}
	return safe, nil
}

// NewBackend builds the configured LLM backend without contacting it.
func NewBackend(cfg *config.Configuration) (llm.Backend, error) {
	switch cfg.Backend {
	case "gemini":
		var missing []string
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "gemini_api_key")
		}
		if cfg.GeminiModel == "" {
			missing = append(missing, "gemini_model")
		}
		if len(missing) > 0 {
			return nil, apperrors.BackendNotConfigured("gemini", missing...)
		}
		return gemini.New(gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	case "ollama":
		if cfg.OllamaHost == "" {
			return nil, apperrors.BackendNotConfigured("ollama", "ollama_host")
		}
		return ollama.New(ollama.Config{Host: cfg.OllamaHost, Port: cfg.OllamaPort, Model: cfg.OllamaModel})
	default:
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("unknown backend %q", cfg.Backend),
			"pythautom config set backend ollama",
			"pythautom config set backend gemini",
		)
	}
}

// Session is one controller run by a command, with its runner.
type Session struct {
	App        *App
	Runner     *task.Runner
	Controller *orchestrator.Controller
}

// NewSession wires a controller that reports to sink and records to
// recorder. A nil recorder writes the history file directly.
func (a *App) NewSession(sink orchestrator.Sink, recorder orchestrator.Recorder) (*Session, error) {
	if recorder == nil {
		recorder = a.History
	}
	runner := task.NewRunner(a.Logger, 64)
	ctrl, err := orchestrator.New(orchestrator.Deps{
		Runner:   runner,
		Env:      a.Env,
		Store:    a.Store,
		Exporter: a.Exporter,
		Sink:     sink,
		Recorder: recorder,
		Logger:   a.Logger,
	}, orchestrator.Settings{
		AutoCorrect:         a.Config.AutoCorrect,
		MaxAttempts:         a.Config.MaxCorrectionAttempts,
		StructureInfoMaxLen: a.Config.StructureInfoMaxLen,
	})
	if err != nil {
		return nil, err
	}
	return &Session{App: a, Runner: runner, Controller: ctrl}, nil
}

// Wait drives the controller until it is idle. SIGINT cancels a running
// generation; during any other task it aborts the command.
func (s *Session) Wait(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	interrupt := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigs:
				select {
				case interrupt <- struct{}{}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	err := orchestrator.Drive(ctx, s.Controller, s.Runner.Events(), orchestrator.DriveOptions{
		FlushInterval: s.App.Config.FlushInterval(),
		Interrupt:     interrupt,
	})
	if errors.Is(err, orchestrator.ErrInterrupted) {
		return NewExitError(ExitInterrupted)
	}
	return err
}

// Connect builds the configured backend and connects it through the
// controller. The settings are remembered on success.
func (s *Session) Connect(ctx context.Context) error {
	cfg := s.App.Config
	backend, err := NewBackend(cfg)
	if err != nil {
		return err
	}
	if err := s.Controller.AttemptConnection(ctx, backend); err != nil {
		return err
	}
	if err := s.Wait(ctx); err != nil {
		return err
	}
	if !s.Controller.Connected() {
		return apperrors.BackendConnectionFailed(cfg.Backend, errors.New("the backend did not accept the connection"))
	}
	if err := config.SaveLastUsed(cfg); err != nil {
		s.App.Logger.Warn("could not save last used backend settings", "error", err)
	}
	return nil
}
