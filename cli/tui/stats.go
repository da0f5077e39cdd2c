package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/hbframe/cli/reader"
)

// tile is one counter box.
type tile struct {
	label string
	value int64
	color lipgloss.Color
}

func (t tile) render() string {
	value := StatValueStyle.Foreground(t.color).Render(fmt.Sprint(t.value))
	return StatBoxStyle.BorderForeground(t.color).
		Render(lipgloss.JoinVertical(lipgloss.Center, value, StatLabelStyle.Render(t.label)))
}

func tileRow(tiles ...tile) string {
	boxes := make([]string, len(tiles))
	for i, t := range tiles {
		boxes[i] = t.render()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

var (
	cursorUp   = key.NewBinding(key.WithKeys("up", "k"))
	cursorDown = key.NewBinding(key.WithKeys("down", "j"))
)

// StatsModel shows session summaries or a metrics snapshot. In the
// sessions view the selected session also gets a detail panel.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	cursor   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, cursorUp):
			m.cursor = max(m.cursor-1, 0)
		case key.Matches(msg, cursorDown):
			if sessions, ok := m.data.([]reader.SessionStats); ok {
				m.cursor = min(m.cursor+1, max(len(sessions)-1, 0))
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content, help string
	switch m.viewType {
	case "stats_sessions":
		content = m.viewSessions()
		help = "↑/↓ select • q or Ctrl+C to quit"
	case "stats_metrics":
		content = m.viewMetrics()
		help = "q or Ctrl+C to quit"
	default:
		content = "Unknown view type: " + m.viewType
	}
	return content + "\n" + HelpStyle.Render(help)
}

func (m StatsModel) viewSessions() string {
	sessions, ok := m.data.([]reader.SessionStats)
	if !ok {
		return "Invalid data type for stats_sessions"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Statistics") + "\n\n")
	if len(sessions) == 0 {
		return b.String() + ValueStyle.Render("no sessions")
	}

	for i, s := range sessions {
		marker := "  "
		if i == m.cursor {
			marker = lipgloss.NewStyle().Foreground(primaryColor).Render("▸ ")
		}
		name := lipgloss.NewStyle().Bold(true).Foreground(highlightColor).
			Render(s.Detector + "/" + s.Link)
		fmt.Fprintf(&b, "%s%s  %s", marker, name, OutcomeStyle(s.Outcome).Render(s.Outcome))
		if s.Message != "" {
			b.WriteString("  " + HelpStyle.UnsetMarginTop().Render(s.Message))
		}
		b.WriteString("\n")
	}

	sel := sessions[min(m.cursor, len(sessions)-1)]
	tiles := []tile{
		{"Frames", sel.FramesOpened, highlightColor},
		{"Empty", sel.EmptyFrames, mutedColor},
		{"Time Frames", sel.TimeFrames, primaryColor},
		{"Headers", sel.Headers, successColor},
	}
	if sel.RecordsRejected > 0 {
		tiles = append(tiles, tile{"Rejected", sel.RecordsRejected, errorColor})
	}
	b.WriteString("\n" + tileRow(tiles...) + "\n")

	detail := []struct{ label, value string }{
		{"Frames:", fmt.Sprintf("%d .. %d", sel.FirstFrame, sel.LastFrame)},
		{"Gaps filled:", fmt.Sprint(sel.GapsFilled)},
		{"Healed:", fmt.Sprint(sel.FramesHealed)},
		{"Payload:", fmt.Sprintf("%d bytes", sel.PayloadBytes)},
	}
	for _, d := range detail {
		b.WriteString(LabelStyle.Render(d.label) + " " + ValueStyle.Render(d.value) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m StatsModel) viewMetrics() string {
	s, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Metrics") + "\n\n")
	for _, kv := range [][2]string{{"Session:", s.SessionID}, {"Policy:", s.Policy}, {"Recorded:", s.Ts}} {
		b.WriteString(LabelStyle.Render(kv[0]) + " " + ValueStyle.Render(kv[1]) + "\n")
	}
	b.WriteString("\n")

	drop := mutedColor
	if s.HeadersDropped > 0 {
		drop = warningColor
	}
	b.WriteString(tileRow(
		tile{"Records", s.RecordsAccepted, highlightColor},
		tile{"Emitted", s.HeadersEmitted, primaryColor},
		tile{"Persisted", s.HeadersPersisted, successColor},
		tile{"Dropped", s.HeadersDropped, drop},
	))
	if s.SinkWriteFailure > 0 || s.UnorderedInputs > 0 {
		b.WriteString("\n" + tileRow(
			tile{"Write Failures", s.SinkWriteFailure, errorColor},
			tile{"Unordered", s.UnorderedInputs, errorColor},
		))
	}
	return b.String()
}

// RenderStatsStatic renders stats data as a fixed 80x24 frame.
func RenderStatsStatic(viewType string, data any) string {
	m := NewStatsModel(viewType, data)
	m.width, m.height = 80, 24
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}
