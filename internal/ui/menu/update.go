package menu

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/interfaces"
)

// Update handles messages and updates the model state.
func (m *MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch m.focusState {
		case FocusList:
			return m, m.handleListKeys(msg)
		case FocusInput:
			if cmd, handled := m.handleInputKeys(msg); handled {
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case backendsReloadedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.backends = msg.backends
			if m.selectedIndex >= len(m.backends) {
				m.selectedIndex = 0
			}
		}

	case healthStatusUpdatedMsg:
		for name, health := range msg.health {
			m.backendHealth[name] = health
		}

	case healthCheckedMsg:
		m.checking = false
		cmds = append(cmds, m.updateHealth())

	case tickMsg:
		cmds = append(cmds, m.updateHealth(), tick())
	}

	if m.focusState == FocusInput {
		var cmd tea.Cmd
		m.quickConnectInput, cmd = m.quickConnectInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleListKeys processes key presses when the backend list is focused.
func (m *MenuModel) handleListKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selectedIndex < len(m.backends)-1 {
			m.selectedIndex++
		}

	case key.Matches(msg, m.keys.Select):
		return m.connect(m.selectedIndex)

	case key.Matches(msg, m.keys.Check):
		if !m.checking {
			m.checking = true
			return m.checkAll()
		}

	case key.Matches(msg, m.keys.Tab):
		m.focusState = FocusInput
		return m.quickConnectInput.Focus()

	default:
		if i, err := strconv.Atoi(msg.String()); err == nil {
			return m.connect(i - 1)
		}
	}
	return nil
}

// handleInputKeys processes key presses when the quick connect input is
// focused. Keys it does not handle reach the text input.
func (m *MenuModel) handleInputKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		profile, err := QuickProfile(m.quickConnectInput.Value())
		if err != nil {
			m.err = err
			return nil, true
		}
		backend := interfaces.RegisteredBackend{Name: m.quickConnectInput.Value(), Profile: profile.Name}
		return selectBackend(backend, profile), true

	case tea.KeyTab, tea.KeyShiftTab, tea.KeyEsc:
		m.focusState = FocusList
		m.quickConnectInput.Blur()
		return nil, true
	}
	return nil, false
}

func (m *MenuModel) connect(index int) tea.Cmd {
	if index < 0 || index >= len(m.backends) {
		return nil
	}
	m.selectedIndex = index
	return selectBackend(m.backends[index], nil)
}
