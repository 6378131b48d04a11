// Package ui renders terminal output for the rollcall CLI.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorFail   = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderOK returns s in green, for delivered confirmations and healthy checks.
func RenderOK(s string) string { return render(colorOK, s) }

// RenderFail returns s in red.
func RenderFail(s string) string { return render(colorFail, s) }

// RenderStatus colors a status word: green when ok, red otherwise.
func RenderStatus(s string, ok bool) string {
	if ok {
		return RenderOK(s)
	}
	return RenderFail(s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
