package server

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/chat"
	"github.com/chatvibe/console/internal/ui/components"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6C7086")).
			Padding(0, 1)

	chatStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CBA6F7"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#89B4FA")).
			Padding(0, 1)

	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	topicStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#BAC2DE"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
)

// View renders the header, sidebar, chat pane, input and actions.
func (m *Model) View() string {
	if m.loading && m.server == nil {
		return dimStyle.Render("Loading server...")
	}
	if m.server == nil {
		if m.err != nil {
			return components.RenderError(m.handler, m.err) + "\n\n" + dimStyle.Render("esc: back")
		}
		return dimStyle.Render("Server not found")
	}

	sections := []string{m.viewHeader(), m.viewBody()}
	if m.banner.IsActive() {
		sections = append(sections, m.banner.View())
	}
	sections = append(sections, m.viewInput(), m.viewStatus(), m.pane.View())

	h := help.New()
	sections = append(sections, h.ShortHelpView([]key.Binding{
		m.keys.Up, m.keys.Down, m.keys.Open, m.keys.Input, m.keys.ScrollUp, m.keys.Back,
	}))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) viewHeader() string {
	title := headerStyle.Render(m.server.Name)
	members := ""
	if m.server.NumMembers != nil {
		members = dimStyle.Render(fmt.Sprintf("  %d members", *m.server.NumMembers))
	}
	crumb := dimStyle.Render(m.route.String())
	return lipgloss.JoinVertical(lipgloss.Left,
		title+"  "+components.MembershipBadge(m.member)+members,
		crumb,
	)
}

func (m *Model) viewBody() string {
	cursor := ""
	if m.selected < len(m.server.Channels) {
		cursor = m.server.Channels[m.selected].ID.String()
	}

	sidebar := "Channels\n\n"
	if m.deps.Renderer != nil {
		sidebar += m.deps.Renderer.RenderChannelList(m.server.Channels, cursor)
	}
	side := sidebarStyle.
		Width(sidebarWidth).
		Height(m.viewport.Height + 2).
		Render(sidebar)

	var pane string
	switch ch := m.currentChannel(); {
	case ch == nil:
		pane = dimStyle.Render("Select a channel and press enter.")
	case m.channel != nil && len(m.channel.Messages()) == 0 && m.channel.State() == chat.Open:
		pane = topicLine(ch.Name, ch.Topic) + "\n\n" + dimStyle.Render("No messages yet.")
	default:
		pane = topicLine(ch.Name, ch.Topic) + "\n" + m.viewport.View()
	}
	chatPane := chatStyle.
		Width(m.viewport.Width + 2).
		Height(m.viewport.Height + 2).
		Render(pane)

	return lipgloss.JoinHorizontal(lipgloss.Top, side, chatPane)
}

func topicLine(name, topic string) string {
	line := lipgloss.NewStyle().Bold(true).Render("# " + name)
	if topic != "" {
		line += "  " + topicStyle.Render(topic)
	}
	return line
}

func (m *Model) viewInput() string {
	switch {
	case m.channel == nil:
		return ""
	case !m.member:
		return dimStyle.Render("Press J to join this server and start chatting.")
	case m.focus == FocusInput:
		return inputStyle.Render(m.input.View())
	default:
		return dimStyle.Render("Press i to write a message.")
	}
}

func (m *Model) viewStatus() string {
	var parts []string
	if m.channel != nil {
		parts = append(parts, components.SocketStatus(m.channel.State().String(), m.channel.Attempts(), chat.MaxReconnectAttempts))
		if err := m.channel.Err(); err != nil {
			parts = append(parts, components.RenderError(m.handler, err))
		}
	}
	if m.err != nil {
		parts = append(parts, components.RenderError(m.handler, m.err))
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	return strings.Join(parts, "  ")
}
