package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pythautom/pythautom/internal/llm"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cfg       Config
		wantErr   bool
		wantModel string
	}{
		"missing key":    {cfg: Config{Model: "gemini-2.5-pro"}, wantErr: true},
		"blank key":      {cfg: Config{APIKey: "  "}, wantErr: true},
		"default model":  {cfg: Config{APIKey: "k"}, wantModel: DefaultModel},
		"explicit model": {cfg: Config{APIKey: "k", Model: " gemma-3-27b-it "}, wantModel: "gemma-3-27b-it"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			b, err := New(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantModel, b.Model())
			assert.Equal(t, "Gemini", b.Name())
			assert.False(t, b.Available())
		})
	}
}

func TestBackend_UseBeforeConnect(t *testing.T) {
	t.Parallel()

	b, err := New(Config{APIKey: "k"})
	require.NoError(t, err)

	deps, err := b.IdentifyDependencies(context.Background(), llm.DependencyRequest{UserRequest: "x"})
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Contains(t, deps[0], llm.ErrorMarker)

	_, err = b.GenerateCodeStream(context.Background(), llm.GenerateRequest{}, nil, nil)
	assert.ErrorIs(t, err, llm.ErrNotConnected)

	res, err := b.ResolvePackage(context.Background(), "cv2", "")
	assert.ErrorIs(t, err, llm.ErrNotConnected)
	assert.False(t, res.Resolved())
}
