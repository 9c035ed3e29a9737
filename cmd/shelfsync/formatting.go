package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/shelfsync/shelfsync/pkg/manifest"
)

var (
	updateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// renderCheck formats a version-check result for the terminal. Styling is
// dropped when stdout is not a terminal.
func renderCheck(res manifest.CheckResult, distDir string) string {
	style := func(s lipgloss.Style, text string) string {
		if !stdoutIsTerminal() {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	if res.Available {
		b.WriteString(style(updateStyle, "Update available"))
		b.WriteString(fmt.Sprintf(": %s -> %s", versionOrNone(res.LocalVersion), res.RemoteVersion))
	} else {
		b.WriteString(style(currentStyle, "Up to date"))
		b.WriteString(fmt.Sprintf(" (version %s)", versionOrNone(res.LocalVersion)))
	}
	b.WriteString("\n")
	b.WriteString(style(mutedStyle, fmt.Sprintf("library: %s", distDir)))
	return b.String()
}

func versionOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
