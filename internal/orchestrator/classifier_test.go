package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/task"
)

func TestClassifier_Classify(t *testing.T) {
	t.Parallel()

	failedRun := task.ScriptResult{ExitCode: 1, Stderr: nameErrorTrace}
	missingModule := task.ScriptResult{ExitCode: 1, Stderr: missingCV2Trace}
	correcting := func() State {
		return State{Correction: &Correction{Code: "print(x)", Error: "NameError"}, CorrectionAttempts: 1}
	}

	tests := map[string]struct {
		classifier Classifier
		state      State
		outcome    Outcome
		wantNext   task.Type
		wantFailed bool
		check      func(t *testing.T, s State, d Decision)
	}{
		"identified dependencies go to generation": {
			outcome:  Outcome{Type: task.IdentifyDependencies, Value: []string{"requests", "ERROR: partial", "flask"}},
			wantNext: task.GenerateCodeStream,
			check: func(t *testing.T, s State, d Decision) {
				assert.Equal(t, []string{"flask", "requests"}, s.DepsIdentified)
				assert.Contains(t, d.Lines, Line{Channel: ChannelStatus, Text: "Warning from dependency identification: ERROR: partial"})
			},
		},
		"empty identification still generates": {
			state:    State{DepsIdentified: []string{"stale"}},
			outcome:  Outcome{Type: task.IdentifyDependencies, Value: []string{}},
			wantNext: task.GenerateCodeStream,
			check: func(t *testing.T, s State, d Decision) {
				assert.Empty(t, s.DepsIdentified)
				assert.Contains(t, d.Lines, Line{Channel: ChannelChat, Text: "No specific external dependencies identified."})
			},
		},
		"identification error stops the cycle": {
			outcome:    Outcome{Type: task.IdentifyDependencies, Err: errors.New("timeout")},
			wantNext:   task.Idle,
			wantFailed: true,
		},
		"identification of the wrong type stops the cycle": {
			outcome:    Outcome{Type: task.IdentifyDependencies, Value: 42},
			wantNext:   task.Idle,
			wantFailed: true,
		},
		"generated code with new dependencies goes to install": {
			state:    State{DepsIdentified: []string{"requests", "rich"}, ProjectDependencies: []string{"rich"}},
			outcome:  Outcome{Type: task.GenerateCodeStream, Value: "```python\nimport requests\n```"},
			wantNext: task.InstallDependencies,
			check: func(t *testing.T, s State, d Decision) {
				assert.True(t, d.UpdateCode)
				assert.Equal(t, "import requests", d.Code)
				assert.True(t, d.PersistDependencies)
				assert.Equal(t, []string{"requests"}, s.PendingInstall)
				assert.Equal(t, []string{"requests", "rich"}, s.ProjectDependencies)
				assert.Empty(t, s.DepsIdentified)
			},
		},
		"generated code with known dependencies ends the cycle": {
			state:    State{DepsIdentified: []string{"rich"}, ProjectDependencies: []string{"rich"}},
			outcome:  Outcome{Type: task.GenerateCodeStream, Value: "import rich"},
			wantNext: task.Idle,
			check: func(t *testing.T, s State, d Decision) {
				assert.True(t, d.UpdateCode)
				assert.False(t, d.PersistDependencies)
				assert.Empty(t, s.PendingInstall)
			},
		},
		"correction stream goes back to the run": {
			state:    State{Correction: &Correction{Code: "print(x)"}, StreamIsCorrection: true, CorrectionAttempts: 1},
			outcome:  Outcome{Type: task.GenerateCodeStream, Value: "x = 1\nprint(x)"},
			wantNext: task.RunScript,
			check: func(t *testing.T, s State, d Decision) {
				assert.Equal(t, "x = 1\nprint(x)", d.Code)
				assert.Equal(t, 1, s.CorrectionAttempts)
			},
		},
		"empty generation is a failure": {
			state:      State{Correction: &Correction{Code: "print(x)"}, StreamIsCorrection: true, CorrectionAttempts: 1},
			outcome:    Outcome{Type: task.GenerateCodeStream, Value: "```python\n```"},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, s State, d Decision) {
				assert.False(t, d.UpdateCode)
				assert.Nil(t, s.Correction)
				assert.Zero(t, s.CorrectionAttempts)
				assert.Equal(t, "the model returned no code", d.Detail)
			},
		},
		"install success merges dependencies": {
			state:    State{PendingInstall: []string{"numpy"}, ProjectDependencies: []string{"rich"}},
			outcome:  Outcome{Type: task.InstallDependencies, Value: true},
			wantNext: task.Idle,
			check: func(t *testing.T, s State, d Decision) {
				assert.Equal(t, []string{"numpy", "rich"}, s.ProjectDependencies)
				assert.Empty(t, s.PendingInstall)
				assert.True(t, d.PersistDependencies)
			},
		},
		"install during correction re-runs": {
			state:    State{PendingInstall: []string{"opencv-python"}, Correction: &Correction{Code: "import cv2"}},
			outcome:  Outcome{Type: task.InstallDependencies, Value: true},
			wantNext: task.RunScript,
		},
		"install failure during correction abandons it": {
			state:      State{PendingInstall: []string{"opencv-python"}, Correction: &Correction{Code: "import cv2"}, CorrectionAttempts: 1},
			outcome:    Outcome{Type: task.InstallDependencies, Value: false},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, s State, d Decision) {
				assert.Nil(t, s.Correction)
				assert.Zero(t, s.CorrectionAttempts)
				assert.Equal(t, "operation reported failure", d.Detail)
			},
		},
		"successful run ends a correction": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 2},
			state:      correcting(),
			outcome:    Outcome{Type: task.RunScript, Value: task.ScriptResult{ExitCode: 0}},
			wantNext:   task.Idle,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Nil(t, s.Correction)
				assert.Zero(t, s.CorrectionAttempts)
			},
		},
		"failed run starts a correction": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 2},
			outcome:    Outcome{Type: task.RunScript, Value: failedRun, CurrentCode: "print(x)"},
			wantNext:   task.GenerateCodeStream,
			wantFailed: true,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Equal(t, 1, s.CorrectionAttempts)
				if assert.NotNil(t, s.Correction) {
					assert.Equal(t, "print(x)", s.Correction.Code)
					assert.Equal(t, 3, s.Correction.Line)
				}
			},
		},
		"missing module asks for the package": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 2},
			outcome:    Outcome{Type: task.RunScript, Value: missingModule, CurrentCode: "import cv2"},
			wantNext:   task.ResolveImportPackage,
			wantFailed: true,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Equal(t, "cv2", s.MissingModule)
				assert.Zero(t, s.CorrectionAttempts)
				assert.NotNil(t, s.Correction)
			},
		},
		"already resolved module is corrected instead": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 2},
			state:      State{Correction: &Correction{Code: "import cv2"}, ResolvedModules: []string{"cv2"}},
			outcome:    Outcome{Type: task.RunScript, Value: missingModule, CurrentCode: "import cv2"},
			wantNext:   task.GenerateCodeStream,
			wantFailed: true,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Empty(t, s.MissingModule)
				assert.Equal(t, 1, s.CorrectionAttempts)
			},
		},
		"attempts exhausted": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 1},
			state:      correcting(),
			outcome:    Outcome{Type: task.RunScript, Value: failedRun},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Nil(t, s.Correction)
				assert.Zero(t, s.CorrectionAttempts)
			},
		},
		"zero max attempts never corrects": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 0},
			outcome:    Outcome{Type: task.RunScript, Value: missingModule},
			wantNext:   task.Idle,
			wantFailed: true,
		},
		"run task error": {
			classifier: Classifier{AutoCorrect: true, MaxAttempts: 2},
			state:      correcting(),
			outcome:    Outcome{Type: task.RunScript, Err: errors.New("uv not found")},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, s State, d Decision) {
				assert.Nil(t, s.Correction)
				assert.Equal(t, "uv not found", d.Detail)
			},
		},
		"resolved package goes to install": {
			state:    State{Correction: &Correction{Code: "import cv2"}, MissingModule: "cv2"},
			outcome:  Outcome{Type: task.ResolveImportPackage, Value: llm.Resolution{Module: "cv2", Package: "opencv-python"}},
			wantNext: task.InstallDependencies,
			check: func(t *testing.T, s State, _ Decision) {
				assert.Equal(t, []string{"opencv-python"}, s.PendingInstall)
				assert.Equal(t, []string{"cv2"}, s.ResolvedModules)
				assert.Empty(t, s.MissingModule)
			},
		},
		"unresolved package abandons the correction": {
			state:      State{Correction: &Correction{Code: "import foo"}, MissingModule: "foo"},
			outcome:    Outcome{Type: task.ResolveImportPackage, Value: llm.Resolution{Module: "foo", Reason: "model answered UNKNOWN"}},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, s State, d Decision) {
				assert.Nil(t, s.Correction)
				assert.Equal(t, "model answered UNKNOWN", d.Detail)
			},
		},
		"connection established": {
			outcome:  Outcome{Type: task.AttemptConnection, Value: true},
			wantNext: task.Idle,
			check: func(t *testing.T, _ State, d Decision) {
				assert.Equal(t, ConnectionEstablished, d.Connection)
			},
		},
		"connection lost": {
			outcome:    Outcome{Type: task.AttemptConnection, Err: errors.New("refused")},
			wantNext:   task.Idle,
			wantFailed: true,
			check: func(t *testing.T, _ State, d Decision) {
				assert.Equal(t, ConnectionLost, d.Connection)
				assert.Equal(t, []Notice{{Level: NoticeError, Title: "Connection Failed", Message: "refused"}}, d.Notices)
			},
		},
		"unknown task type": {
			outcome:  Outcome{Type: task.Idle},
			wantNext: task.Idle,
			check: func(t *testing.T, _ State, d Decision) {
				assert.Equal(t, []Line{{Channel: ChannelStatus, Text: "--- Unhandled task result for task: idle ---"}}, d.Lines)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			state := tt.state
			d := tt.classifier.Classify(&state, tt.outcome)
			assert.Equal(t, tt.wantNext, d.Next)
			assert.Equal(t, tt.wantFailed, d.Failed)
			if tt.check != nil {
				tt.check(t, state, d)
			}
		})
	}
}

func TestDifferenceAndUnion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "c"}, difference([]string{"c", "b", "a", "c"}, []string{"b"}))
	assert.Nil(t, difference([]string{"b"}, []string{"b"}))
	assert.Equal(t, []string{"a", "b", "c"}, union([]string{"c", "a"}, []string{"b", "a"}))
}
