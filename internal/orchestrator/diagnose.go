package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pythautom/pythautom/internal/task"
)

var (
	tracebackLineRe  = regexp.MustCompile(`File ".*?", line (\d+)`)
	moduleNotFoundRe = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']*)'`)
	importErrorRe    = regexp.MustCompile(`ImportError:.*'([^']*)'`)
)

// Failure is what a failed script run tells the correction cycle.
type Failure struct {
	// Message is stderr, else stdout, else a note about the exit code.
	Message string
	// Line is the first traceback line number, 0 when none is found.
	Line int
	// MissingModule is set when the failure looks like a missing import.
	MissingModule string
}

// Diagnose extracts the error text, line and missing module from a failed
// run. The import detection is a heuristic over interpreter output; a miss
// only means the generic correction path is taken.
func Diagnose(res task.ScriptResult) Failure {
	f := Failure{Message: strings.TrimSpace(res.Stderr)}
	if f.Message == "" {
		f.Message = strings.TrimSpace(res.Stdout)
	}
	if f.Message == "" {
		f.Message = fmt.Sprintf("Script failed with exit code: %d.", res.ExitCode)
	}

	if m := tracebackLineRe.FindStringSubmatch(f.Message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.Line = n
		}
	}

	if m := moduleNotFoundRe.FindStringSubmatch(f.Message); m != nil {
		f.MissingModule = m[1]
	} else if m := importErrorRe.FindStringSubmatch(f.Message); m != nil {
		parts := strings.Split(m[1], ".")
		f.MissingModule = parts[len(parts)-1]
	}
	return f
}
