package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RecordTask(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	w := NewWriter(stateDir, 10, nil)
	fixed := time.Date(2026, 5, 1, 9, 0, 10, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	w.RecordTask("demo", "run_script", StatusFailed, 10*time.Second, "exit code 1\nTraceback...")

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	require.Len(t, history.Entries, 1)
	e := history.Entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "demo", e.Project)
	assert.Equal(t, "run_script", e.Task)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "10s", e.Duration)
	assert.Equal(t, "exit code 1", e.Detail)
	assert.True(t, fixed.Add(-10*time.Second).Equal(e.Timestamp))
}

func TestWriter_Pruning(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		existingEntries int
		maxEntries      int
		wantEntries     int
	}{
		"under limit":     {existingEntries: 3, maxEntries: 10, wantEntries: 4},
		"at limit prunes": {existingEntries: 5, maxEntries: 5, wantEntries: 5},
		"far over limit":  {existingEntries: 20, maxEntries: 5, wantEntries: 5},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()
			existing := &HistoryFile{}
			for i := range tc.existingEntries {
				existing.Entries = append(existing.Entries, HistoryEntry{ID: fmt.Sprint(i), Task: "run_script"})
			}
			require.NoError(t, SaveHistory(stateDir, existing))

			w := NewWriter(stateDir, tc.maxEntries, nil)
			w.LogEntry(HistoryEntry{ID: "newest", Task: "export_source"})

			history, err := LoadHistory(stateDir)
			require.NoError(t, err)
			assert.Len(t, history.Entries, tc.wantEntries)
			assert.Equal(t, "newest", history.Entries[len(history.Entries)-1].ID)
		})
	}
}

func TestWriter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	w := NewWriter(stateDir, 100, nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.RecordTask("demo", "run_script", StatusCompleted, time.Duration(i)*time.Millisecond, "")
		}()
	}
	wg.Wait()

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Len(t, history.Entries, 10)
}
