package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI colors should be written to stdout.
// NO_COLOR (any value) wins, then CLICOLOR_FORCE=1, then CLICOLOR=0;
// otherwise color follows whether stdout is a terminal.
func ShouldUseColor() bool {
	return colorFor(os.Stdout)
}

func colorFor(f *os.File) bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
