// Package history_test tests task history persistence and filtering.
// Related: internal/history/history.go
// Tags: history, persistence, yaml

package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHistory(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content     *string
		wantEntries int
		wantBackup  bool
	}{
		"returns empty history when file doesn't exist": {
			wantEntries: 0,
		},
		"loads existing history file": {
			content: ptr(`entries:
  - id: a
    timestamp: 2026-01-15T10:30:00Z
    project: demo
    task: run_script
    status: completed
    duration: 1.2s
  - id: b
    timestamp: 2026-01-15T10:35:00Z
    project: demo
    task: generate_code_stream
    status: cancelled
    duration: 4s
`),
			wantEntries: 2,
		},
		"corrupted file is backed up": {
			content:    ptr(`not valid yaml: [[[`),
			wantBackup: true,
		},
		"empty file": {
			content: ptr(""),
		},
		"empty entries list": {
			content: ptr(`entries: []`),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stateDir := t.TempDir()
			if tc.content != nil {
				require.NoError(t, os.WriteFile(filepath.Join(stateDir, HistoryFileName), []byte(*tc.content), 0o644))
			}

			history, err := LoadHistory(stateDir)
			require.NoError(t, err)
			require.NotNil(t, history.Entries)
			assert.Len(t, history.Entries, tc.wantEntries)

			if tc.wantBackup {
				assert.FileExists(t, filepath.Join(stateDir, HistoryFileName+BackupSuffix))
				assert.NoFileExists(t, filepath.Join(stateDir, HistoryFileName))
			}
		})
	}
}

func TestSaveHistory_RoundTrip(t *testing.T) {
	t.Parallel()

	stateDir := filepath.Join(t.TempDir(), "nested", "state")
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	in := &HistoryFile{Entries: []HistoryEntry{{
		ID:        "x",
		Timestamp: ts,
		Project:   "demo",
		Task:      "install_dependencies",
		Status:    StatusFailed,
		Duration:  "3s",
		Detail:    "uv pip install failed",
	}}}

	require.NoError(t, SaveHistory(stateDir, in))
	assert.NoFileExists(t, filepath.Join(stateDir, HistoryFileName+".tmp"))

	out, err := LoadHistory(stateDir)
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	got := out.Entries[0]
	assert.True(t, ts.Equal(got.Timestamp))
	got.Timestamp = ts
	assert.Equal(t, in.Entries[0], got)
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	require.NoError(t, SaveHistory(stateDir, &HistoryFile{Entries: []HistoryEntry{{ID: "1", Task: "run_script"}}}))
	require.NoError(t, ClearHistory(stateDir))

	history, err := LoadHistory(stateDir)
	require.NoError(t, err)
	assert.Empty(t, history.Entries)
}

func TestHistoryFile_Filter(t *testing.T) {
	t.Parallel()

	h := &HistoryFile{Entries: []HistoryEntry{
		{ID: "1", Project: "a"},
		{ID: "2", Project: "b"},
		{ID: "3", Project: "a"},
		{ID: "4"},
		{ID: "5", Project: "a"},
	}}

	tests := map[string]struct {
		project string
		limit   int
		want    []string
	}{
		"all":             {want: []string{"1", "2", "3", "4", "5"}},
		"by project":      {project: "a", want: []string{"1", "3", "5"}},
		"limit newest":    {project: "a", limit: 2, want: []string{"3", "5"}},
		"unknown project": {project: "zzz", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var ids []string
			for _, e := range h.Filter(tc.project, tc.limit) {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func ptr(s string) *string { return &s }
