package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.FgRed, color.Bold)
	usageColor  = color.New(color.FgCyan)
	fixColor    = color.New(color.FgYellow, color.Bold)
)

// FormatError renders err with colors (when the terminal supports them).
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}
	return render(err, headerColor.Sprint, usageColor.Sprint, fixColor.Sprint)
}

// FormatErrorPlain renders err without ANSI escapes.
func FormatErrorPlain(err *CLIError) string {
	if err == nil {
		return ""
	}
	return render(err, fmt.Sprint, fmt.Sprint, fmt.Sprint)
}

type paint func(...any) string

func render(err *CLIError, header, usage, fix paint) string {
	var b strings.Builder
	b.WriteString(header(err.Category.String() + ":"))
	b.WriteString(" ")
	b.WriteString(err.Message)
	b.WriteString("\n")
	if err.Usage != "" {
		b.WriteString("\n")
		b.WriteString(usage("Usage:"))
		b.WriteString(" ")
		b.WriteString(err.Usage)
		b.WriteString("\n")
	}
	if len(err.Remediation) > 0 {
		b.WriteString("\n")
		b.WriteString(fix("To fix this:"))
		b.WriteString("\n")
		for i, step := range err.Remediation {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	return b.String()
}

// PrintError writes err to stderr.
func PrintError(err *CLIError) {
	FprintError(os.Stderr, err)
}

func FprintError(w io.Writer, err *CLIError) {
	if err == nil {
		return
	}
	fmt.Fprint(w, FormatError(err))
}

// FormatSimpleError renders any error, keeping a CLIError's own category.
func FormatSimpleError(err error, c ErrorCategory) string {
	if err == nil {
		return ""
	}
	if cliErr := AsCLIError(err); cliErr != nil {
		return FormatError(cliErr)
	}
	return FormatError(&CLIError{Category: c, Message: err.Error()})
}
