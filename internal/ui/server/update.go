package server

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/chat"
	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/ui/route"
)

// Update handles load results, key input and the channel's socket messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.syncChannel()
		return m, nil

	case serverLoadedMsg:
		return m, m.handleServerLoaded(msg)

	case membershipMsg:
		if msg.err != nil {
			if apperrors.Is(msg.err, apperrors.ErrLoginRequired) {
				return m, route.RedirectToLogin(m.route)
			}
			m.err = msg.err
			return m, nil
		}
		m.member = msg.member
		m.refreshActions()
		return m, nil

	case membershipChangedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.member = msg.joined
		if msg.joined {
			m.notice = "Joined " + m.serverName()
		} else {
			m.notice = "Left " + m.serverName()
			m.blurInput()
		}
		m.refreshActions()
		// member count changed
		return m, m.loadServer()

	case route.SessionChangedMsg:
		return m, m.loadMembership()

	case tea.KeyMsg:
		return m, m.handleKeys(msg)
	}

	if m.channel != nil && m.channel.Owns(msg) {
		cmd := m.channel.Update(msg)
		m.syncChannel()
		return m, cmd
	}
	chat.Discard(msg)
	return m, nil
}

func (m *Model) handleServerLoaded(msg serverLoadedMsg) tea.Cmd {
	m.loading = false
	if msg.err != nil {
		switch {
		case apperrors.Is(msg.err, apperrors.ErrLoginRequired):
			return route.RedirectToLogin(m.route)
		case apperrors.StatusCode(msg.err) == http.StatusBadRequest,
			apperrors.StatusCode(msg.err) == http.StatusNotFound:
			return route.Navigate(route.Route{Name: route.Home})
		}
		m.err = msg.err
		return nil
	}

	first := m.server == nil
	m.server = msg.server
	m.selectRouted()

	if !first || m.route.ChannelID == "" {
		return nil
	}
	if _, ok := m.server.FindChannel(m.route.ChannelID); !ok {
		return route.Navigate(route.Route{Name: route.Server, ServerID: m.route.ServerID})
	}
	cmd := m.openChannel()
	m.refreshActions()
	return cmd
}

// selectRouted moves the sidebar cursor to the routed channel.
func (m *Model) selectRouted() {
	m.selected = 0
	for i, ch := range m.server.Channels {
		if ch.ID.String() == m.route.ChannelID {
			m.selected = i
			return
		}
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) tea.Cmd {
	if m.focus == FocusInput {
		return m.handleInputKeys(msg)
	}

	m.notice = ""
	switch {
	case key.Matches(msg, m.keys.Back):
		return route.Navigate(route.Route{Name: route.Home})

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.server != nil && m.selected < len(m.server.Channels)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Open):
		if m.server == nil || m.selected >= len(m.server.Channels) {
			return nil
		}
		id := m.server.Channels[m.selected].ID.String()
		if id == m.route.ChannelID {
			return nil
		}
		return route.Navigate(route.Route{Name: route.Server, ServerID: m.route.ServerID, ChannelID: id})

	case key.Matches(msg, m.keys.Input):
		if m.member && m.channel != nil {
			m.focus = FocusInput
			return m.input.Focus()
		}
		if !m.member {
			m.notice = "Join the server to write messages"
		}

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd

	default:
		if action, ok := m.pane.Match(msg.String()); ok {
			return m.runAction(action.ID)
		}
	}
	return nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.blurInput()
		return nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.input.Reset()
		if m.channel == nil {
			return nil
		}
		return m.channel.Send(text)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) blurInput() {
	m.focus = FocusChannels
	m.input.Blur()
}

func (m *Model) runAction(id string) tea.Cmd {
	switch id {
	case ActionJoin:
		if !m.member {
			return m.changeMembership(true)
		}
	case ActionLeave:
		if m.member {
			return m.changeMembership(false)
		}
	case ActionReconnect:
		if m.channel != nil {
			cmd := m.channel.Reconnect()
			m.syncChannel()
			return cmd
		}
	case ActionFolds:
		if m.deps.Renderer != nil {
			m.deps.Renderer.ToggleFolds()
			m.refreshActions()
			m.syncChannel()
		}
	case ActionFoldLast:
		if m.deps.Renderer != nil && m.channel != nil {
			if !m.deps.Renderer.ToggleNewestFold(m.channel.Messages()) {
				m.notice = "No long code blocks in this channel"
			}
			m.syncChannel()
		}
	case ActionHome:
		return route.Navigate(route.Route{Name: route.Home})
	}
	return nil
}

// syncChannel copies the channel's messages into the viewport and updates
// the reconnect banner.
func (m *Model) syncChannel() {
	if m.channel == nil {
		m.banner.EndWorkflow()
		return
	}

	if m.channel.State() == chat.Reconnecting {
		title := "Reconnecting"
		if ch := m.currentChannel(); ch != nil {
			title = fmt.Sprintf("Reconnecting to #%s", ch.Name)
		}
		m.banner.UpdateState(title, m.channel.Attempts(), chat.MaxReconnectAttempts)
	} else {
		m.banner.EndWorkflow()
	}
	m.resize(m.width, m.height)

	if m.deps.Renderer == nil {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.deps.Renderer.RenderMessages(m.channel.Messages(), m.viewport.Width))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) serverName() string {
	if m.server == nil {
		return m.route.ServerID
	}
	return m.server.Name
}
