// Package config loads pythautom settings from defaults, the global and local
// JSON config files and PYTHAUTOM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of environment overrides.
	EnvPrefix = "PYTHAUTOM_"
	// LocalConfigPath is the project-local config file used when no --config is given.
	LocalConfigPath = ".pythautom.json"
)

// Configuration represents the pythautom configuration
type Configuration struct {
	Backend      string `koanf:"backend" validate:"required,oneof=ollama gemini"`
	OllamaHost   string `koanf:"ollama_host" validate:"required"`
	OllamaPort   int    `koanf:"ollama_port" validate:"min=1,max=65535"`
	OllamaModel  string `koanf:"ollama_model"` // empty selects the first installed model
	GeminiAPIKey string `koanf:"gemini_api_key"`
	GeminiModel  string `koanf:"gemini_model"`

	ProjectsDir string `koanf:"projects_dir" validate:"required"`
	StateDir    string `koanf:"state_dir" validate:"required"`
	UVCmd       string `koanf:"uv_cmd" validate:"required"`
	MainScript  string `koanf:"main_script" validate:"required"`

	AutoCorrect           bool `koanf:"auto_correct"`
	MaxCorrectionAttempts int  `koanf:"max_correction_attempts" validate:"min=0,max=10"`
	StreamFlushIntervalMS int  `koanf:"stream_flush_interval_ms" validate:"min=10,max=1000"`
	ExportTimeout         int  `koanf:"export_timeout" validate:"min=1,max=86400"` // seconds
	StructureInfoMaxLen   int  `koanf:"structure_info_max_len" validate:"min=0"`
	HistoryMaxEntries     int  `koanf:"history_max_entries" validate:"min=1,max=100000"`

	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// FlushInterval is the stream fragment coalescing period.
func (c *Configuration) FlushInterval() time.Duration {
	return time.Duration(c.StreamFlushIntervalMS) * time.Millisecond
}

// ExportTimeoutDuration bounds an executable export.
func (c *Configuration) ExportTimeoutDuration() time.Duration {
	return time.Duration(c.ExportTimeout) * time.Second
}

// GlobalConfigPath returns ~/.pythautom/config.json.
func GlobalConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pythautom", "config.json"), nil
}

// Load loads configuration from global, local, and environment sources.
// Priority: Environment variables > Local config > Global config > Defaults
func Load(localConfigPath string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if globalPath, err := GlobalConfigPath(); err == nil {
		if err := loadFile(k, globalPath); err != nil {
			return nil, fmt.Errorf("failed to load global config: %w", err)
		}
	}

	if localConfigPath == "" {
		localConfigPath = LocalConfigPath
	}
	if err := loadFile(k, localConfigPath); err != nil {
		return nil, fmt.Errorf("failed to load local config: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.ProjectsDir = expandHomePath(cfg.ProjectsDir)
	cfg.StateDir = expandHomePath(cfg.StateDir)

	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return k.Load(file.Provider(path), json.Parser())
}

// envTransform converts environment variable names to config keys
// Example: PYTHAUTOM_MAX_CORRECTION_ATTEMPTS -> max_correction_attempts
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
