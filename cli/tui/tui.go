package tui

import (
	"fmt"
	"maps"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
)

// views maps each TUI-capable view type to its model constructor.
var views = map[string]func(viewType string, data any) tea.Model{
	"inspect_file":   func(v string, d any) tea.Model { return NewInspectModel(v, d) },
	"stats_sessions": func(v string, d any) tea.Model { return NewStatsModel(v, d) },
	"stats_metrics":  func(v string, d any) tea.Model { return NewStatsModel(v, d) },
}

// Run shows data full-screen until the user quits.
func Run(viewType string, data any) error {
	newModel, ok := views[viewType]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	_, err := tea.NewProgram(newModel(viewType, data), tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether viewType has a TUI view.
func IsTUISupported(viewType string) bool {
	_, ok := views[viewType]
	return ok
}

// SupportedTUIViews lists the view types with a TUI, sorted.
func SupportedTUIViews() []string {
	return slices.Sorted(maps.Keys(views))
}
