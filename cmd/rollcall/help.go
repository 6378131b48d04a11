package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/ui"
)

// helpRule styles one kind of token in cobra's plain help text. The match's
// submatches are passed to style; its return value replaces the match.
type helpRule struct {
	re    *regexp.Regexp
	style func(m []string) string
}

var helpRules = []helpRule{
	// Group headers ("Registrations:", "Flags:"), left-aligned.
	{
		re:    regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		style: func(m []string) string { return ui.RenderAccent(strings.TrimSpace(m[1])) },
	},
	// Subcommand names in the command list.
	{
		re:    regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		style: func(m []string) string { return m[1] + ui.RenderCommand(m[2]) + m[3] },
	},
	// Flag value types: "--token string", "--attempts int".
	{
		re:    regexp.MustCompile(`(--?\S+\s+)(string|int|int64|duration|stringToString)\b`),
		style: func(m []string) string { return m[1] + ui.RenderMuted(m[2]) },
	},
	{
		re:    regexp.MustCompile(`\(default "?[^)]*"?\)`),
		style: func(m []string) string { return ui.RenderMuted(m[0]) },
	},
}

// colorizedHelpFunc returns a help function that renders cobra's usage text
// and styles it when stdout supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if noColor || !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return r.style(r.re.FindStringSubmatch(match))
		})
	}
	return s
}
