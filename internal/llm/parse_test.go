package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDependencies(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		reply     string
		want      []string
		wantError bool
	}{
		"structured object": {
			reply: `{"dependencies": ["requests", "rich"]}`,
			want:  []string{"requests", "rich"},
		},
		"empty list": {
			reply: `{"dependencies": []}`,
			want:  nil,
		},
		"bare array": {
			reply: `["numpy"]`,
			want:  []string{"numpy"},
		},
		"fenced json": {
			reply: "```json\n{\"dependencies\": [\"flask\"]}\n```",
			want:  []string{"flask"},
		},
		"array inside prose": {
			reply: `You will need ["pandas", "matplotlib"] for this.`,
			want:  []string{"pandas", "matplotlib"},
		},
		"non-string items skipped": {
			reply: `{"dependencies": ["ok", 3, null, " "]}`,
			want:  []string{"ok"},
		},
		"garbage": {
			reply:     "no idea",
			wantError: true,
		},
		"empty reply": {
			reply:     "   ",
			wantError: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := ParseDependencies(tc.reply)
			if tc.wantError {
				require.Len(t, got, 1)
				assert.True(t, strings.HasPrefix(got[0], ErrorMarker))
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitDependencies(t *testing.T) {
	t.Parallel()

	names, failures := SplitDependencies([]string{"rich", "ERROR: timeout", "requests", "rich", "", "ERROR: blocked"})
	assert.Equal(t, []string{"requests", "rich"}, names)
	assert.Equal(t, []string{"ERROR: timeout", "ERROR: blocked"}, failures)
}

func TestParseResolution(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		reply   string
		wantPkg string
	}{
		"plain name":         {reply: "opencv-python", wantPkg: "opencv-python"},
		"backticked":         {reply: "`beautifulsoup4`\n", wantPkg: "beautifulsoup4"},
		"fenced":             {reply: "```\nPyYAML\n```", wantPkg: "PyYAML"},
		"unknown":            {reply: "UNKNOWN", wantPkg: ""},
		"unknown lower case": {reply: "unknown", wantPkg: ""},
		"sentence":           {reply: "It is probably pillow", wantPkg: ""},
		"empty":              {reply: "", wantPkg: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := ParseResolution("cv2", tc.reply)
			assert.Equal(t, "cv2", res.Module)
			assert.Equal(t, tc.wantPkg, res.Package)
			assert.Equal(t, tc.wantPkg != "", res.Resolved())
			if !res.Resolved() {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestGenerationPrompt(t *testing.T) {
	t.Parallel()

	fresh := GenerationPrompt(GenerateRequest{
		ProjectName:  "demo",
		UserRequest:  "print the time",
		CurrentCode:  "print('hello')",
		Dependencies: []string{"rich", "ERROR: oops"},
	})
	assert.Contains(t, fresh, "Request: print the time")
	assert.Contains(t, fresh, "rich")
	assert.NotContains(t, fresh, "oops")
	assert.Contains(t, fresh, "print('hello')")

	fix := GenerationPrompt(GenerateRequest{
		ProjectName: "demo",
		UserRequest: "print the time",
		Correction:  &Correction{Error: "NameError: name 'x' is not defined", Line: 3},
	})
	assert.Contains(t, fix, "failed. Fix it.")
	assert.Contains(t, fix, "NameError")
	assert.Contains(t, fix, "line 3")
	assert.Contains(t, fix, "Only the standard library")
}
