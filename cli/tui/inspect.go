package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/hbframe/cli/reader"
)

// headerLines is the number of lines above the scrolling header list.
const headerLines = 9

// InspectModel is a Bubble Tea model for inspect views. The header rows
// scroll in a viewport below a fixed summary box.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool

	rows  viewport.Model
	ready bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.rows, cmd = m.rows.Update(msg)
	return m, cmd
}

func (m *InspectModel) resize() {
	h := max(m.height-headerLines-2, 3)
	if !m.ready {
		m.rows = viewport.New(m.width, h)
		m.ready = true
	} else {
		m.rows.Width = m.width
		m.rows.Height = h
	}
	if files, ok := m.files(); ok {
		m.rows.SetContent(renderRows(files))
	}
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_file":
		content = m.renderInspectFile()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("↑/↓ scroll • q or Ctrl+C to quit")
	return content + "\n" + help
}

// files accepts one response or a list.
func (m InspectModel) files() ([]*reader.InspectFileResponse, bool) {
	switch d := m.data.(type) {
	case *reader.InspectFileResponse:
		return []*reader.InspectFileResponse{d}, true
	case []*reader.InspectFileResponse:
		return d, true
	default:
		return nil, false
	}
}

func (m InspectModel) renderInspectFile() string {
	files, ok := m.files()
	if !ok {
		return "Invalid data type for inspect_file"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Header Files"))
	b.WriteString("\n")

	var summary strings.Builder
	for _, f := range files {
		summary.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Path:"), ValueStyle.Render(f.Path)))
		summary.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Format:"), ValueStyle.Render(f.Format)))
		summary.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Pages:"), ValueStyle.Render(fmt.Sprintf("%d", f.Pages))))
		if f.Digest != "" {
			summary.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Digest:"), ValueStyle.Render(f.Digest)))
		}
		balance := SuccessStyle
		if f.Totals.Opened != f.Totals.Closed {
			balance = ErrorStyle
		}
		summary.WriteString(balance.Render(reader.FormatTotals(f.Totals)))
		summary.WriteString("\n")
	}
	b.WriteString(BoxStyle.Render(strings.TrimRight(summary.String(), "\n")))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.rows.View())
	} else {
		b.WriteString(renderRows(files))
	}
	return b.String()
}

func renderRows(files []*reader.InspectFileResponse) string {
	var b strings.Builder
	for _, f := range files {
		if len(files) > 1 {
			b.WriteString(TitleStyle.UnsetMarginBottom().Render(f.Path))
			b.WriteString("\n")
		}
		for _, r := range f.Headers {
			line := reader.FormatRow(r)
			style := TriggerStyle(r.Trigger)
			if r.Stop {
				style = LabelStyle.UnsetWidth()
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RenderInspectStatic renders inspect data as a fixed 80x24 frame.
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
