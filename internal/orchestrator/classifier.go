package orchestrator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pythautom/pythautom/internal/fence"
	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/task"
)

// Outcome is a completed task as seen by the classifier.
type Outcome struct {
	Type  task.Type
	Value any
	Err   error
	// CurrentCode is the project code at completion time. It becomes the
	// code to correct when a run fails.
	CurrentCode string
}

// ConnectionChange reports what a connection attempt did to the backend.
type ConnectionChange int

const (
	ConnectionUnchanged ConnectionChange = iota
	ConnectionEstablished
	ConnectionLost
)

// Decision is everything the controller must apply for one Outcome.
type Decision struct {
	Next task.Type

	// Code replaces the project code when UpdateCode is set.
	Code       string
	UpdateCode bool
	// PersistDependencies asks for State.ProjectDependencies to be saved
	// before any further chaining.
	PersistDependencies bool
	Connection          ConnectionChange

	Lines   []Line
	Notices []Notice

	// Failed marks the task as failed in history, with Detail as the reason.
	Failed bool
	Detail string
}

func (d *Decision) status(format string, args ...any) {
	d.Lines = append(d.Lines, Line{Channel: ChannelStatus, Text: fmt.Sprintf(format, args...)})
}

func (d *Decision) console(format string, args ...any) {
	d.Lines = append(d.Lines, Line{Channel: ChannelConsole, Text: fmt.Sprintf(format, args...)})
}

func (d *Decision) chat(format string, args ...any) {
	d.Lines = append(d.Lines, Line{Channel: ChannelChat, Text: fmt.Sprintf(format, args...)})
}

func (d *Decision) fail(detail string) {
	d.Failed = true
	d.Detail = detail
}

// Classifier turns task outcomes into state changes and the next phase.
// It never starts tasks.
type Classifier struct {
	AutoCorrect bool
	MaxAttempts int
}

// Classify updates s for o and returns what the controller must do next.
func (c Classifier) Classify(s *State, o Outcome) Decision {
	d := Decision{Next: task.Idle}
	switch o.Type {
	case task.IdentifyDependencies:
		c.identified(s, o, &d)
	case task.GenerateCodeStream:
		c.generated(s, o, &d)
	case task.InstallDependencies:
		c.installed(s, o, &d)
	case task.RunScript:
		c.ran(s, o, &d)
	case task.ResolveImportPackage:
		c.resolved(s, o, &d)
	case task.AttemptConnection:
		c.connected(o, &d)
	case task.ExportExecutable, task.ExportSource:
		c.exported(o, &d)
	default:
		d.status("--- Unhandled task result for task: %s ---", o.Type)
	}
	return d
}

func (c Classifier) identified(s *State, o Outcome, d *Decision) {
	entries, ok := o.Value.([]string)
	if o.Err != nil || (!ok && o.Value != nil) {
		s.DepsIdentified = nil
		reason := describe(o)
		d.status("Dependency identification failed: %s", reason)
		d.chat("Could not identify dependencies: %s", reason)
		d.fail(reason)
		return
	}

	names, failures := llm.SplitDependencies(entries)
	for _, f := range failures {
		d.status("Warning from dependency identification: %s", f)
		d.console("Dependency identification reported: %s", f)
	}
	s.DepsIdentified = names
	if len(names) > 0 {
		d.chat("Identified potential dependencies: %s", strings.Join(names, ", "))
	} else {
		d.chat("No specific external dependencies identified.")
	}
	d.Next = task.GenerateCodeStream
}

func (c Classifier) generated(s *State, o Outcome, d *Decision) {
	correcting := s.StreamIsCorrection
	if correcting {
		d.chat("(Correction stream finished, processing...)")
	} else {
		d.chat("(Code stream finished, processing...)")
	}

	text, ok := o.Value.(string)
	cleaned := fence.Extract(text)
	if o.Err != nil || !ok || cleaned == "" {
		reason := describe(o)
		if o.Err == nil && ok {
			reason = "the model returned no code"
		}
		d.status("Error during code generation stream: %s", reason)
		d.chat("Error during stream: %s", reason)
		d.fail(reason)
		s.DepsIdentified = nil
		if correcting {
			s.abandonCorrection()
		}
		return
	}

	d.Code = cleaned
	d.UpdateCode = true
	d.console("Code updated from stream.")

	if correcting {
		d.status("Correction applied. -> Re-running script to verify...")
		d.chat("Correction stream applied. Re-running script...")
		d.Next = task.RunScript
		return
	}

	needed := difference(s.DepsIdentified, s.ProjectDependencies)
	s.DepsIdentified = nil
	if len(needed) == 0 {
		d.status("Dependencies identified are already met or not needed.")
		d.chat("No new dependencies seem required for installation.")
		return
	}
	d.status("New dependencies require installation: %s", strings.Join(needed, ", "))
	d.chat("New dependencies identified and possibly needed: %s", strings.Join(needed, ", "))
	s.PendingInstall = needed
	s.ProjectDependencies = union(s.ProjectDependencies, needed)
	d.PersistDependencies = true
	d.Next = task.InstallDependencies
}

func (c Classifier) installed(s *State, o Outcome, d *Decision) {
	pending := s.PendingInstall
	s.PendingInstall = nil

	if ok, _ := o.Value.(bool); o.Err != nil || !ok {
		reason := describe(o)
		d.status("Error installing dependencies: %s. Check console log.", strings.Join(pending, ", "))
		d.console("--- ERROR installing dependencies: %s ---", strings.Join(pending, ", "))
		d.chat("Error installing dependencies: %s.", strings.Join(pending, ", "))
		if s.Correcting() {
			d.chat("Stopping correction attempts because dependency installation failed.")
			s.abandonCorrection()
		}
		d.fail(reason)
		return
	}

	s.ProjectDependencies = union(s.ProjectDependencies, pending)
	d.PersistDependencies = true
	d.status("Dependencies installed successfully.")
	d.chat("Dependencies installed successfully: %s", strings.Join(pending, ", "))
	if s.Correcting() {
		d.status("Dependency installed during correction cycle. -> Re-running script...")
		d.chat("Installed dependencies. Re-running script to see if it fixes the error...")
		d.Next = task.RunScript
	}
}

func (c Classifier) ran(s *State, o Outcome, d *Decision) {
	res, ok := o.Value.(task.ScriptResult)
	if o.Err != nil || !ok {
		reason := describe(o)
		d.status("Error running script task: %s. Check console log.", reason)
		d.chat("Internal error trying to run the script: %s", reason)
		d.fail(reason)
		s.abandonCorrection()
		return
	}

	if res.Succeeded() {
		d.status("--- Script executed successfully! ---")
		if s.Correcting() {
			d.chat("Success! The script ran successfully after correction/installation.")
		}
		s.abandonCorrection()
		return
	}

	f := Diagnose(res)
	d.fail(fmt.Sprintf("script exited with code %d", res.ExitCode))
	attemptsLeft := c.AutoCorrect && s.CorrectionAttempts < c.MaxAttempts

	switch {
	case attemptsLeft && f.MissingModule != "" && !slices.Contains(s.ResolvedModules, f.MissingModule):
		d.status("Script error: Missing module '%s'. Asking LLM for package name...", f.MissingModule)
		d.chat("Script error seems to be a missing module: '%s'. Asking LLM for the correct package name...", f.MissingModule)
		s.setCorrection(o.CurrentCode, f)
		s.MissingModule = f.MissingModule
		d.Next = task.ResolveImportPackage

	case attemptsLeft:
		s.CorrectionAttempts++
		d.status("Script error. Preparing streaming auto-correction (Attempt %d/%d)...", s.CorrectionAttempts, c.MaxAttempts)
		d.chat("Script error detected (Attempt %d/%d). Attempting streaming auto-correction...", s.CorrectionAttempts, c.MaxAttempts)
		d.chat("Error details:\n```text\n%s\n```", f.Message)
		s.setCorrection(o.CurrentCode, f)
		s.MissingModule = ""
		d.Next = task.GenerateCodeStream

	default:
		msg := "Script error. Auto-correction disabled."
		if c.AutoCorrect {
			msg = fmt.Sprintf("Script error. Max correction/install attempts (%d) reached.", c.MaxAttempts)
		}
		d.status("%s", msg)
		d.chat("%s Stopping attempts.", msg)
		d.chat("You can modify the code or refine your request.")
		d.chat("Final Error:\n```text\n%s\n```", f.Message)
		s.abandonCorrection()
	}
}

func (c Classifier) resolved(s *State, o Outcome, d *Decision) {
	module := s.MissingModule
	res, ok := o.Value.(llm.Resolution)
	if o.Err == nil && ok && res.Resolved() {
		d.status("LLM identified package '%s' for module '%s'.", res.Package, module)
		d.chat("LLM suggests installing package: '%s'. Attempting installation...", res.Package)
		s.PendingInstall = []string{res.Package}
		s.ResolvedModules = append(s.ResolvedModules, module)
		s.MissingModule = ""
		d.Next = task.InstallDependencies
		return
	}

	reason := describe(o)
	if o.Err == nil && ok {
		reason = res.Reason
	}
	d.status("Failed to resolve package for '%s': %s", module, reason)
	d.chat("Could not automatically determine the package to install for module '%s'. %s", module, reason)
	d.chat("Stopping correction attempts. Please install the correct package manually or modify the code.")
	d.fail(reason)
	s.abandonCorrection()
}

func (c Classifier) connected(o Outcome, d *Decision) {
	if ok, _ := o.Value.(bool); o.Err == nil && ok {
		d.Connection = ConnectionEstablished
		return
	}
	reason := describe(o)
	d.Connection = ConnectionLost
	d.Notices = append(d.Notices, Notice{Level: NoticeError, Title: "Connection Failed", Message: reason})
	d.fail(reason)
}

func (c Classifier) exported(o Outcome, d *Decision) {
	what := "Executable bundle"
	if o.Type == task.ExportSource {
		what = "Source distribution"
	}
	if path, ok := o.Value.(string); o.Err == nil && ok && path != "" {
		d.Notices = append(d.Notices, Notice{
			Level:   NoticeInfo,
			Title:   "Export Successful",
			Message: fmt.Sprintf("%s exported to %s", what, path),
		})
		return
	}
	reason := describe(o)
	d.Notices = append(d.Notices, Notice{
		Level:   NoticeError,
		Title:   "Export Error",
		Message: fmt.Sprintf("%s export failed: %s", what, reason),
	})
	d.fail(reason)
}

// describe summarises a failed or malformed outcome.
func describe(o Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if ok, isBool := o.Value.(bool); isBool && !ok {
		return "operation reported failure"
	}
	return fmt.Sprintf("unexpected result type %T", o.Value)
}

// difference returns the sorted names in want missing from have.
func difference(want, have []string) []string {
	var out []string
	for _, name := range want {
		if !slices.Contains(have, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, name := range b {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
