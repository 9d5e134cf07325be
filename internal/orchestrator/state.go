// Package orchestrator chains background tasks into the generate, install,
// run and auto-correct workflow of a project.
//
// A Controller owns the workflow State. It starts one task at a time on a
// Runner, feeds every event the runner delivers through HandleEvent, asks the
// Classifier what each result means and, once the task has finished, starts
// the next phase or returns to Idle. All Controller methods must be called from
// a single goroutine; Drive is the loop that does so for command line use.
package orchestrator

import (
	"fmt"
	"slices"

	"github.com/pythautom/pythautom/internal/task"
)

// Correction is the context of a failed run being corrected. It is either
// wholly present or absent, so the failing code and its error never drift apart.
type Correction struct {
	// Code is the script that failed.
	Code string
	// Error is the interpreter output the model is asked to fix.
	Error string
	// Line is the line the traceback points at, 0 when unknown.
	Line int
}

// State is the in-flight workflow context of the loaded project.
type State struct {
	CurrentPhase task.Type
	// NextPhase is staged while a result is classified and consumed once when
	// the task finishes.
	NextPhase task.Type
	Busy      bool
	// CancelledByUser makes the finishing task skip classification.
	CancelledByUser bool

	LastUserRequest string
	// DepsIdentified holds the identification step's packages for the
	// generation step.
	DepsIdentified []string
	PendingInstall []string
	// ProjectDependencies mirrors the dependencies saved in project metadata.
	ProjectDependencies []string

	Correction    *Correction
	MissingModule string
	// StreamIsCorrection records, when a generation starts, whether it is a
	// correction. The classifier reads it instead of re-deriving the answer.
	StreamIsCorrection bool
	CorrectionAttempts int
	// ResolvedModules lists modules already resolved to a package in this
	// cycle. A module failing again after its package was installed goes
	// through regular correction instead of another resolution.
	ResolvedModules []string
}

// Correcting reports whether a correction cycle is in progress.
func (s *State) Correcting() bool {
	return s.Correction != nil
}

// Clone returns a deep copy safe to hand out.
func (s *State) Clone() State {
	c := *s
	c.DepsIdentified = slices.Clone(s.DepsIdentified)
	c.PendingInstall = slices.Clone(s.PendingInstall)
	c.ProjectDependencies = slices.Clone(s.ProjectDependencies)
	c.ResolvedModules = slices.Clone(s.ResolvedModules)
	if s.Correction != nil {
		corr := *s.Correction
		c.Correction = &corr
	}
	return c
}

func (s *State) setCorrection(code string, f Failure) {
	s.Correction = &Correction{Code: code, Error: f.Message, Line: f.Line}
}

// abandonCorrection drops the correction cycle and its attempt counter.
func (s *State) abandonCorrection() {
	s.clearCorrection()
	s.CorrectionAttempts = 0
}

func (s *State) clearCorrection() {
	s.Correction = nil
	s.MissingModule = ""
	s.StreamIsCorrection = false
	s.ResolvedModules = nil
}

// endCycle clears everything a dependency or correction cycle leaves behind.
// The attempt counter is left alone: a cancelled correction keeps it.
func (s *State) endCycle() {
	s.DepsIdentified = nil
	s.PendingInstall = nil
	s.clearCorrection()
}

// CheckInvariants reports the first violated workflow invariant, or nil.
func (s *State) CheckInvariants(maxAttempts int) error {
	if s.CorrectionAttempts < 0 || s.CorrectionAttempts > maxAttempts {
		return fmt.Errorf("correction attempts %d outside [0, %d]", s.CorrectionAttempts, maxAttempts)
	}
	if s.CurrentPhase == task.Idle {
		switch {
		case s.Busy:
			return fmt.Errorf("busy while idle")
		case len(s.DepsIdentified) > 0:
			return fmt.Errorf("identified dependencies %v left after the cycle ended", s.DepsIdentified)
		case len(s.PendingInstall) > 0:
			return fmt.Errorf("pending install %v left after the cycle ended", s.PendingInstall)
		case s.Correction != nil:
			return fmt.Errorf("correction context left after the cycle ended")
		case s.MissingModule != "":
			return fmt.Errorf("missing module %q left after the cycle ended", s.MissingModule)
		}
	} else if !s.Busy {
		return fmt.Errorf("phase %s active but not busy", s.CurrentPhase)
	}
	return nil
}
