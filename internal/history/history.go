// Package history records finished tasks so the operator can review what ran,
// for which project, and how it ended.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// HistoryFileName is the name of the history file.
	HistoryFileName = "history.yaml"
	// BackupSuffix is the suffix for backup files when corruption is detected.
	BackupSuffix = ".backup"
)

// Status values for entries.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// HistoryEntry is one finished task.
type HistoryEntry struct {
	ID        string    `yaml:"id"`
	Timestamp time.Time `yaml:"timestamp"`
	// Project is empty for tasks not tied to a project, such as connecting.
	Project string `yaml:"project,omitempty"`
	// Task is the snake_case task type name.
	Task   string `yaml:"task"`
	Status string `yaml:"status"`
	// Duration uses Go duration format, e.g. "2.5s".
	Duration string `yaml:"duration"`
	// Detail holds the first line of the failure, if any.
	Detail string `yaml:"detail,omitempty"`
}

// HistoryFile is the on-disk document.
type HistoryFile struct {
	Entries []HistoryEntry `yaml:"entries"`
}

// LoadHistory loads the history file from stateDir. A missing file yields an
// empty history; a corrupted one is moved aside and replaced by an empty one.
func LoadHistory(stateDir string) (*HistoryFile, error) {
	historyPath := filepath.Join(stateDir, HistoryFileName)

	data, err := os.ReadFile(historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &HistoryFile{Entries: []HistoryEntry{}}, nil
		}
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var history HistoryFile
	if err := yaml.Unmarshal(data, &history); err != nil {
		if backupErr := os.Rename(historyPath, historyPath+BackupSuffix); backupErr != nil {
			return nil, fmt.Errorf("backing up corrupted history file: %w", backupErr)
		}
		return &HistoryFile{Entries: []HistoryEntry{}}, nil
	}
	if history.Entries == nil {
		history.Entries = []HistoryEntry{}
	}
	return &history, nil
}

// SaveHistory writes the history atomically, creating stateDir if needed.
func SaveHistory(stateDir string, history *HistoryFile) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	historyPath := filepath.Join(stateDir, HistoryFileName)
	tmpPath := historyPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp history file: %w", err)
	}
	if err := os.Rename(tmpPath, historyPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp history file: %w", err)
	}
	return nil
}

// ClearHistory removes all entries.
func ClearHistory(stateDir string) error {
	return SaveHistory(stateDir, &HistoryFile{Entries: []HistoryEntry{}})
}

// Filter returns the entries for project (all when project is empty), newest
// last, keeping at most limit of them (all when limit <= 0).
func (h *HistoryFile) Filter(project string, limit int) []HistoryEntry {
	var out []HistoryEntry
	for _, e := range h.Entries {
		if project == "" || e.Project == project {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
