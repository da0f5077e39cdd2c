// Package tui provides Bubble Tea views for the read-only hbframe commands
// (inspect, stats). Views are opt-in via --tui and show the same payloads
// as the table, json and yaml renderers.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#8B5CF6")
	highlightColor = lipgloss.Color("#0EA5E9")
	successColor   = lipgloss.Color("#22C55E")
	warningColor   = lipgloss.Color("#EAB308")
	errorColor     = lipgloss.Color("#F43F5E")
	mutedColor     = lipgloss.Color("#71717A")
	textColor      = lipgloss.Color("#F4F4F5")
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(16)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)
)

// Stat boxes are the counter tiles of the metrics view; the border and
// value take the tile's own color.
var (
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Width(18).
			Align(lipgloss.Center)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Align(lipgloss.Center)
)

// OutcomeStyle colors a session outcome or a frame state.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "success", "closed":
		return SuccessStyle
	case "cancelled", "open":
		return WarningStyle
	case "input_error", "sink_failure", "invariant_failure", "failed":
		return ErrorStyle
	}
	return ValueStyle
}

// TriggerStyle colors a trigger mask by its strongest bit: TF before the
// EMPTY marker of a healed frame.
func TriggerStyle(trigger string) lipgloss.Style {
	if strings.Contains(trigger, "TF") {
		return lipgloss.NewStyle().Foreground(primaryColor)
	}
	if strings.Contains(trigger, "EMPTY") {
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
	return ValueStyle
}
