package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// isInteractive reports whether out is a terminal we can usefully decorate
// with color and progress lines, mirroring the signadot-tony-format CLI's
// own TTY gating for status output.
func isInteractive(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func statusOK(out io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isInteractive(out) {
		msg = color.GreenString(msg)
	}
	fmt.Fprintln(out, msg)
}

func progress(out io.Writer, format string, args ...any) {
	if !isInteractive(out) {
		return
	}
	fmt.Fprintf(out, format+"\n", args...)
}
