package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		key     string
		raw     string
		want    any
		wantErr string
	}{
		"bool":               {key: "auto_correct", raw: "False", want: false},
		"bad bool":           {key: "auto_correct", raw: "maybe", wantErr: "invalid boolean"},
		"int":                {key: "max_correction_attempts", raw: "3", want: 3},
		"int above max":      {key: "max_correction_attempts", raw: "42", wantErr: "between 0 and 10"},
		"int below min":      {key: "structure_info_max_len", raw: "-1", wantErr: "at least 0"},
		"not an int":         {key: "ollama_port", raw: "http", wantErr: "invalid integer"},
		"enum":               {key: "backend", raw: "gemini", want: "gemini"},
		"enum not allowed":   {key: "backend", raw: "openai", wantErr: "valid options: ollama, gemini"},
		"string passthrough": {key: "ollama_model", raw: "llama3.2", want: "llama3.2"},
		"unknown key":        {key: "colour", raw: "red", wantErr: "unknown configuration key"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseValue(tc.key, tc.raw)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKnownKeysMatchDefaults(t *testing.T) {
	t.Parallel()

	defaults := GetDefaults()
	for key := range KnownKeys {
		assert.Contains(t, defaults, key)
	}
	for key := range defaults {
		assert.Contains(t, KnownKeys, key)
	}
}

func TestSetConfigValue_PreservesOtherKeys(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	require.NoError(t, SetConfigValue(path, "backend", "gemini"))
	require.NoError(t, SetConfigValue(path, "max_correction_attempts", "5"))
	assert.Error(t, SetConfigValue(path, "max_correction_attempts", "50"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Backend)
	assert.Equal(t, 5, cfg.MaxCorrectionAttempts)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.NoFileExists(t, filepath.Join(home, ".pythautom", "config.json"))
}

func TestSaveLastUsed(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(filepath.Join(home, "missing.json"))
	require.NoError(t, err)
	cfg.OllamaHost = "10.0.0.7"
	cfg.OllamaModel = "qwen2.5-coder"
	require.NoError(t, SaveLastUsed(cfg))

	again, err := Load(filepath.Join(home, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", again.OllamaHost)
	assert.Equal(t, "qwen2.5-coder", again.OllamaModel)
	assert.Empty(t, again.GeminiAPIKey)
}

func TestEntries_MasksSecrets(t *testing.T) {
	t.Parallel()

	cfg := &Configuration{GeminiAPIKey: "AIzaSyExample1234", OllamaPort: 11434}
	got := map[string]string{}
	for _, e := range cfg.Entries() {
		got[e.Key] = e.Value
	}
	assert.Equal(t, "****1234", got["gemini_api_key"])
	assert.Equal(t, "11434", got["ollama_port"])
	assert.Len(t, got, len(KnownKeys))
}
