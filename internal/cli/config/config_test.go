package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pythautom/pythautom/internal/cli/shared"
	apperrors "github.com/pythautom/pythautom/internal/errors"
)

// execute runs the config commands under a fresh root. The commands are
// package globals, so these tests do not run in parallel.
func execute(t *testing.T, localConfig string, args ...string) (string, error) {
	t.Helper()
	for _, c := range []*cobra.Command{configShowCmd, configSetCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	root := &cobra.Command{Use: "pythautom", SilenceErrors: true, SilenceUsage: true}
	root.AddGroup(&cobra.Group{ID: shared.GroupConfiguration, Title: "Configuration:"})
	root.PersistentFlags().StringP("config", "c", localConfig, "Path to config file")
	Register(root)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func isolate(t *testing.T) (home, local string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PYTHAUTOM_BACKEND", "")
	os.Unsetenv("PYTHAUTOM_BACKEND")
	return home, filepath.Join(t.TempDir(), ".pythautom.json")
}

func TestRegister(t *testing.T) {
	root := &cobra.Command{Use: "test"}
	require.NotPanics(t, func() { Register(root) })

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["config"])

	sub := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"show", "set", "keys", "path"} {
		assert.True(t, sub[want], "missing config %s", want)
	}
}

func TestConfigSet(t *testing.T) {
	tests := map[string]struct {
		args     []string
		local    bool
		wantKey  string
		wantVal  any
		wantErr  bool
		wantOut  string
		category apperrors.ErrorCategory
	}{
		"enum to user config": {
			args:    []string{"config", "set", "backend", "gemini"},
			wantKey: "backend",
			wantVal: "gemini",
			wantOut: "Set backend = gemini",
		},
		"int to project config": {
			args:    []string{"config", "set", "max_correction_attempts", "5", "--local"},
			local:   true,
			wantKey: "max_correction_attempts",
			wantVal: float64(5),
		},
		"secret is hidden": {
			args:    []string{"config", "set", "gemini_api_key", "abc123456"},
			wantKey: "gemini_api_key",
			wantVal: "abc123456",
			wantOut: "(hidden)",
		},
		"unknown key": {
			args:     []string{"config", "set", "colour", "blue"},
			wantErr:  true,
			category: apperrors.Argument,
		},
		"invalid enum": {
			args:     []string{"config", "set", "backend", "openai"},
			wantErr:  true,
			category: apperrors.Argument,
		},
		"out of range": {
			args:     []string{"config", "set", "max_correction_attempts", "99"},
			wantErr:  true,
			category: apperrors.Argument,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			home, local := isolate(t)
			out, err := execute(t, local, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				cliErr := apperrors.AsCLIError(err)
				require.NotNil(t, cliErr)
				assert.Equal(t, tt.category, cliErr.Category)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
			assert.NotContains(t, out, "abc123456")

			path := filepath.Join(home, ".pythautom", "config.json")
			if tt.local {
				path = local
			}
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var values map[string]any
			require.NoError(t, json.Unmarshal(data, &values))
			assert.Equal(t, tt.wantVal, values[tt.wantKey])
		})
	}
}

func TestConfigShow(t *testing.T) {
	_, local := isolate(t)
	_, err := execute(t, local, "config", "set", "gemini_api_key", "secret-key-1234")
	require.NoError(t, err)

	out, err := execute(t, local, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend:")
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "secret-key")

	out, err = execute(t, local, "config", "show", "--json")
	require.NoError(t, err)
	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, "****1234", values["gemini_api_key"])
	assert.Contains(t, values, "max_correction_attempts")
}

func TestConfigKeysAndPath(t *testing.T) {
	home, local := isolate(t)

	out, err := execute(t, local, "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "backend")
	assert.Contains(t, out, "[ollama gemini]")
	assert.Contains(t, out, "stream_flush_interval_ms")

	out, err = execute(t, local, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(home, ".pythautom", "config.json"))
	assert.Contains(t, out, local)
}
