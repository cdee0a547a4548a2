package menu

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/ui/components"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CBA6F7")).
			Padding(1, 2)

	focusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#89B4FA")).
			Padding(1, 2)

	listItemStyle    = lipgloss.NewStyle().PaddingLeft(1)
	focusedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("#1e1e2e")).
				Background(lipgloss.Color("#FAB387"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)
)

// View renders the UI for the menu model.
func (m *MenuModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Width(m.width).Render("ChatVibe Console"))
	s.WriteString("\n\n")

	s.WriteString(m.viewBackendList())
	s.WriteString("\n\n")

	s.WriteString(m.viewQuickConnect())
	s.WriteString("\n\n")

	h := help.New()
	s.WriteString(h.ShortHelpView([]key.Binding{
		m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Check, m.keys.Tab, m.keys.Quit,
	}))

	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}

	return s.String()
}

func (m *MenuModel) viewBackendList() string {
	var items []string

	if len(m.backends) == 0 {
		items = append(items, dimStyle.Render("No backends registered. Add one under 'backends' in the config file."))
	} else {
		for i, backend := range m.backends {
			status := backend.Status
			latency := ""
			if health, ok := m.backendHealth[backend.Name]; ok {
				status = health.Status
				if health.ResponseTime > 0 {
					latency = dimStyle.Render(fmt.Sprintf(" %dms", health.ResponseTime.Milliseconds()))
				}
			}

			item := fmt.Sprintf("[%d] %s (%s) - %s%s", i+1, backend.Name, backend.Profile, components.BackendStatus(status), latency)
			if m.focusState == FocusList && i == m.selectedIndex {
				items = append(items, focusedItemStyle.Render(item))
			} else {
				items = append(items, listItemStyle.Render(item))
			}
		}
	}

	title := "Backends"
	if m.checking {
		title += dimStyle.Render("  checking...")
	}

	style := boxStyle
	if m.focusState == FocusList {
		style = focusedBoxStyle
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render(title),
		lipgloss.JoinVertical(lipgloss.Left, items...),
	))
}

func (m *MenuModel) viewQuickConnect() string {
	style := boxStyle
	if m.focusState == FocusInput {
		style = focusedBoxStyle
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render("Quick Connect"),
		"Host: "+m.quickConnectInput.View(),
	))
}
