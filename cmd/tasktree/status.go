package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// statusMark returns the final status marker for w: emoji on a terminal,
// plain text otherwise.
func statusMark(w io.Writer, ok bool) string {
	switch {
	case isTerminal(w) && ok:
		return "✅"
	case isTerminal(w):
		return "❌"
	case ok:
		return "ok:"
	default:
		return "error:"
	}
}

// printWarnings writes build warnings to w.
func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		warnColor.Fprintf(w, "warning: %s\n", msg)
	}
}

// printStatus writes the final status line.
func printStatus(w io.Writer, ok bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ok {
		okColor.Fprintf(w, "%s %s\n", statusMark(w, true), msg)
		return
	}
	failColor.Fprintf(w, "%s %s\n", statusMark(w, false), msg)
}
