// Package enablement decides which front-end controls are usable for a given
// orchestrator situation. It is a pure function of its inputs so any front-end
// (terminal UI, CLI, tests) applies the same rules.
package enablement

import "github.com/pythautom/pythautom/internal/task"

// Inputs describes the situation the controls are computed for.
type Inputs struct {
	TaskRunning     bool
	ProjectLoaded   bool
	LLMConnected    bool
	CurrentTask     task.Type
	CancelRequested bool
}

// Controls is the enablement state of every interactive control.
type Controls struct {
	ProjectSwitch   bool
	ProjectCreate   bool
	ProjectDelete   bool
	EditCode        bool
	SaveCode        bool
	RunScript       bool
	ManageDeps      bool
	Export          bool
	ChatSend        bool
	Connect         bool
	BackendSettings bool

	CancelVisible bool
	CancelEnabled bool

	// Busy drives the wait-state indicator.
	Busy bool

	ChatLabel   string
	CancelLabel string
}

const (
	chatIdleLabel   = "Send Request / Refine Code"
	chatBusyLabel   = "Processing..."
	cancelLabel     = "Cancel Generation"
	cancellingLabel = "Cancelling..."
)

// Compute applies the enablement policy.
func Compute(in Inputs) Controls {
	idle := !in.TaskRunning
	withProject := idle && in.ProjectLoaded

	c := Controls{
		ProjectSwitch:   idle,
		ProjectCreate:   idle,
		ProjectDelete:   withProject,
		EditCode:        withProject,
		SaveCode:        withProject,
		RunScript:       withProject,
		ManageDeps:      withProject,
		Export:          withProject,
		ChatSend:        withProject && in.LLMConnected,
		Connect:         idle,
		BackendSettings: idle,
		Busy:            in.TaskRunning,
		ChatLabel:       chatIdleLabel,
		CancelLabel:     cancelLabel,
	}
	if in.TaskRunning {
		c.ChatLabel = chatBusyLabel
	}
	if in.TaskRunning && in.CurrentTask.Cancellable() {
		c.CancelVisible = true
		c.CancelEnabled = !in.CancelRequested
		if in.CancelRequested {
			c.CancelLabel = cancellingLabel
		}
	}
	return c
}
