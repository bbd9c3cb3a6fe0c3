package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cgast/promptreg/pkg/verify"
)

var (
	colorPass  = lipgloss.Color("#2CD7C7")
	colorFail  = lipgloss.Color("#E74C3C")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorMuted = lipgloss.Color("#6C7A89")
)

var styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorPass),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorPass),
	Warning: lipgloss.NewStyle().Foreground(colorWarn),
	Error:   lipgloss.NewStyle().Foreground(colorFail),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

const (
	iconPass   = "✓"
	iconFail   = "✗"
	iconManual = "⚠"
)

// verdictIcon renders the status marker for a verdict.
func verdictIcon(v verify.Verdict) string {
	switch v {
	case verify.Pass:
		return styles.Success.Render(iconPass)
	case verify.Fail:
		return styles.Error.Render(iconFail)
	default:
		return styles.Warning.Render(iconManual)
	}
}

// verdictLabel renders "passed", "failed" or "manual review".
func verdictLabel(v verify.Verdict) string {
	switch v {
	case verify.Pass:
		return styles.Success.Render("passed")
	case verify.Fail:
		return styles.Error.Render("failed")
	default:
		return styles.Warning.Render("manual review")
	}
}
