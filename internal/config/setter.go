package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/v2"
)

// SetConfigValue validates value against the schema for key and writes it
// into the JSON config file at path, creating the file if needed.
func SetConfigValue(path, key, value string) error {
	parsed, err := ParseValue(key, value)
	if err != nil {
		return fmt.Errorf("validating value: %w", err)
	}
	return Save(path, map[string]any{key: parsed})
}

// Save merges values into the JSON config file at path. Keys already in the
// file and not named in values are preserved.
func Save(path string, values map[string]any) error {
	k := koanf.New(".")
	if err := loadFile(k, path); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	content, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := writeAtomically(path, content); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SaveLastUsed stores the backend connection settings of cfg in the global
// config so the next session reconnects the same way.
func SaveLastUsed(cfg *Configuration) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	values := map[string]any{
		"backend":      cfg.Backend,
		"ollama_host":  cfg.OllamaHost,
		"ollama_port":  cfg.OllamaPort,
		"ollama_model": cfg.OllamaModel,
		"gemini_model": cfg.GeminiModel,
	}
	if cfg.GeminiAPIKey != "" {
		values["gemini_api_key"] = cfg.GeminiAPIKey
	}
	return Save(path, values)
}

// Entry is one key/value line of "config show".
type Entry struct {
	Key   string
	Value string
}

// Entries renders cfg for display in key order, masking secrets.
func (c *Configuration) Entries() []Entry {
	raw := map[string]string{
		"backend":                  c.Backend,
		"ollama_host":              c.OllamaHost,
		"ollama_port":              strconv.Itoa(c.OllamaPort),
		"ollama_model":             c.OllamaModel,
		"gemini_api_key":           c.GeminiAPIKey,
		"gemini_model":             c.GeminiModel,
		"projects_dir":             c.ProjectsDir,
		"state_dir":                c.StateDir,
		"uv_cmd":                   c.UVCmd,
		"main_script":              c.MainScript,
		"auto_correct":             strconv.FormatBool(c.AutoCorrect),
		"max_correction_attempts":  strconv.Itoa(c.MaxCorrectionAttempts),
		"stream_flush_interval_ms": strconv.Itoa(c.StreamFlushIntervalMS),
		"export_timeout":           strconv.Itoa(c.ExportTimeout),
		"structure_info_max_len":   strconv.Itoa(c.StructureInfoMaxLen),
		"history_max_entries":      strconv.Itoa(c.HistoryMaxEntries),
		"log_level":                c.LogLevel,
	}
	entries := make([]Entry, 0, len(raw))
	for _, key := range SortedKeys() {
		v := raw[key]
		if KnownKeys[key].Secret && v != "" {
			v = mask(v)
		}
		entries = append(entries, Entry{Key: key, Value: v})
	}
	return entries
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// writeAtomically writes content to a file atomically using a temporary file and rename.
func writeAtomically(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpFile, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing to temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	// The file may hold an API key.
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
