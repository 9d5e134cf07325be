package history

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries is used when a writer is created without a limit.
const DefaultMaxEntries = 500

// Writer appends entries to the history file and prunes the oldest ones.
type Writer struct {
	StateDir   string
	MaxEntries int
	Logger     *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewWriter creates a writer. A nil logger discards warnings.
func NewWriter(stateDir string, maxEntries int, logger *slog.Logger) *Writer {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{StateDir: stateDir, MaxEntries: maxEntries, Logger: logger, now: time.Now}
}

// LogEntry appends entry. Failures are logged, never returned: losing a history
// line must not fail the task being recorded.
func (w *Writer) LogEntry(entry HistoryEntry) {
	if err := w.logEntryInternal(entry); err != nil {
		w.Logger.Warn("failed to record history", "error", err)
	}
}

func (w *Writer) logEntryInternal(entry HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	history, err := LoadHistory(w.StateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	history.Entries = append(history.Entries, entry)
	if w.MaxEntries > 0 && len(history.Entries) > w.MaxEntries {
		history.Entries = history.Entries[len(history.Entries)-w.MaxEntries:]
	}
	if err := SaveHistory(w.StateDir, history); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// RecordTask logs a finished task.
func (w *Writer) RecordTask(project, taskName, status string, duration time.Duration, detail string) {
	if i := strings.IndexByte(detail, '\n'); i >= 0 {
		detail = detail[:i]
	}
	w.LogEntry(HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: w.now().Add(-duration),
		Project:   project,
		Task:      taskName,
		Status:    status,
		Duration:  duration.Round(time.Millisecond).String(),
		Detail:    detail,
	})
}
