// Package pyenv manages per-project Python virtual environments through the uv
// tool: creating them, installing packages and running scripts.
package pyenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pythautom/pythautom/internal/task"
)

const (
	// VenvDir is the environment directory inside a project.
	VenvDir = ".venv"
	// ExitCodeToolMissing is reported when uv itself cannot be started.
	ExitCodeToolMissing = -127
)

// ErrToolNotFound is returned when the uv executable is not on PATH.
var ErrToolNotFound = errors.New("uv executable not found; install uv and make sure it is on PATH")

// Manager runs uv commands for projects.
type Manager struct {
	// UVCmd is the uv executable, "uv" by default.
	UVCmd string
	// Timeout bounds a single uv invocation; zero means no limit.
	Timeout time.Duration
}

// NewManager returns a manager using uvCmd.
func NewManager(uvCmd string, timeout time.Duration) *Manager {
	if uvCmd == "" {
		uvCmd = "uv"
	}
	return &Manager{UVCmd: uvCmd, Timeout: timeout}
}

// VenvPath returns the environment directory of a project.
func VenvPath(projectPath string) string {
	return filepath.Join(projectPath, VenvDir)
}

// PythonPath returns the interpreter inside a project's environment.
func PythonPath(projectPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(VenvPath(projectPath), "Scripts", "python.exe")
	}
	return filepath.Join(VenvPath(projectPath), "bin", "python")
}

// HasEnvironment reports whether the project already has a usable environment.
func HasEnvironment(projectPath string) bool {
	_, err := os.Stat(filepath.Join(VenvPath(projectPath), "pyvenv.cfg"))
	return err == nil
}

// EnsureEnvironment creates the project's environment when it is missing.
func (m *Manager) EnsureEnvironment(ctx context.Context, projectPath string, progress func(string)) error {
	if HasEnvironment(projectPath) {
		return nil
	}
	emit(progress, fmt.Sprintf("Creating virtual environment in %s", VenvPath(projectPath)))
	res, err := m.run(ctx, projectPath, progress, "venv", VenvDir, "--seed")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("uv venv failed with exit code %d: %s", res.ExitCode, lastLine(res.Stderr))
	}
	if !HasEnvironment(projectPath) {
		return fmt.Errorf("uv venv succeeded but %s has no pyvenv.cfg", VenvPath(projectPath))
	}
	return nil
}

// InstallDependencies installs packages into the project's environment.
func (m *Manager) InstallDependencies(ctx context.Context, projectPath string, deps []string, progress func(string)) error {
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		if d = strings.TrimSpace(d); d != "" {
			names = append(names, d)
		}
	}
	if len(names) == 0 {
		return errors.New("no dependencies to install")
	}
	if err := m.EnsureEnvironment(ctx, projectPath, progress); err != nil {
		return err
	}

	emit(progress, fmt.Sprintf("Installing: %s", strings.Join(names, ", ")))
	args := append([]string{"pip", "install", "--python", PythonPath(projectPath)}, names...)
	res, err := m.run(ctx, projectPath, progress, args...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("uv pip install failed with exit code %d: %s", res.ExitCode, lastLine(res.Stderr))
	}
	return nil
}

// RunScript runs script with the project's interpreter. A script that exits
// non-zero is reported in the result, not as an error; errors mean the script
// could not be started at all.
func (m *Manager) RunScript(ctx context.Context, projectPath, script string, progress func(string)) (task.ScriptResult, error) {
	if err := m.EnsureEnvironment(ctx, projectPath, progress); err != nil {
		return task.ScriptResult{ExitCode: -1, Stderr: err.Error()}, err
	}
	scriptPath := filepath.Join(projectPath, script)
	if _, err := os.Stat(scriptPath); err != nil {
		msg := fmt.Sprintf("Script file not found at %s", scriptPath)
		emit(progress, msg)
		return task.ScriptResult{ExitCode: 1, Stderr: msg}, nil
	}

	emit(progress, fmt.Sprintf("--- Running %s ---", script))
	res, err := m.run(ctx, projectPath, progress, "run", "--", "python", script)
	if err != nil {
		return res, err
	}
	emit(progress, fmt.Sprintf("--- %s finished (exit code %d) ---", script, res.ExitCode))
	return res, nil
}

// RunModule runs `python -m module args...` inside the project's environment.
func (m *Manager) RunModule(ctx context.Context, projectPath, module string, args []string, progress func(string)) (task.ScriptResult, error) {
	if err := m.EnsureEnvironment(ctx, projectPath, progress); err != nil {
		return task.ScriptResult{ExitCode: -1, Stderr: err.Error()}, err
	}
	full := append([]string{"run", "--", "python", "-m", module}, args...)
	return m.run(ctx, projectPath, progress, full...)
}

// Version returns the output of `uv --version`.
func (m *Manager) Version(ctx context.Context) (string, error) {
	res, err := m.run(ctx, "", nil, "--version")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("uv --version exited with %d", res.ExitCode)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// run executes uv with args in dir, relaying output lines to progress while
// also capturing them.
func (m *Manager) run(ctx context.Context, dir string, progress func(string), args ...string) (task.ScriptResult, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.UVCmd, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	// Grandchildren may keep the output pipes open after uv is killed.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	outLines := newLineWriter(progress, "")
	errLines := newLineWriter(progress, "[stderr] ")
	cmd.Stdout = io.MultiWriter(&stdout, outLines)
	cmd.Stderr = io.MultiWriter(&stderr, errLines)

	err := cmd.Run()
	outLines.Flush()
	errLines.Flush()

	res := task.ScriptResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		return res, NewTimeoutError(m.Timeout, m.FormatCommand(args...))
	}
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			res.ExitCode = ExitCodeToolMissing
			return res, ErrToolNotFound
		default:
			res.ExitCode = -1
			return res, fmt.Errorf("running %s: %w", m.FormatCommand(args...), err)
		}
	}
	return res, nil
}

// FormatCommand renders a uv invocation for messages.
func (m *Manager) FormatCommand(args ...string) string {
	return strings.Join(append([]string{m.UVCmd}, args...), " ")
}

// TimeoutError reports a uv command that ran past its deadline.
type TimeoutError struct {
	Timeout time.Duration
	Command string
}

func NewTimeoutError(timeout time.Duration, command string) *TimeoutError {
	return &TimeoutError{Timeout: timeout, Command: command}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %v: %s", e.Timeout, e.Command)
}

func emit(progress func(string), msg string) {
	if progress != nil {
		progress(msg)
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// lineWriter splits written bytes into lines and hands each to a callback.
type lineWriter struct {
	mu     sync.Mutex
	fn     func(string)
	prefix string
	buf    []byte
}

func newLineWriter(fn func(string), prefix string) *lineWriter {
	return &lineWriter{fn: fn, prefix: prefix}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w.fn == nil {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(w.prefix + strings.TrimRight(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	if w.fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.fn(w.prefix + string(w.buf))
		w.buf = nil
	}
}
