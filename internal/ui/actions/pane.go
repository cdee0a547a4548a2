// Package actions renders the numbered action list shown under a screen and
// resolves number keys to the action they select.
package actions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Kind selects the color of an action.
type Kind string

const (
	KindPrimary     Kind = "primary"
	KindConfirm     Kind = "confirmation"
	KindDestructive Kind = "cancel"
	KindInfo        Kind = "info"
)

// Action is one entry of the pane. ID is what the owning screen switches on.
type Action struct {
	ID    string
	Label string
	Key   string // optional letter shortcut shown next to the number
	Kind  Kind
}

var (
	actionsPaneStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("#FAB387")).
				Padding(0, 1)

	actionsPaneTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAB387"))

	actionStyles = map[string]lipgloss.Style{
		"primary":        lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")).Padding(0, 1),
		"primary_f":      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#89B4FA")).Padding(0, 1),
		"confirmation":   lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")).Padding(0, 1),
		"confirmation_f": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#A6E3A1")).Padding(0, 1),
		"cancel":         lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Padding(0, 1),
		"cancel_f":       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#F38BA8")).Padding(0, 1),
		"info":           lipgloss.NewStyle().Foreground(lipgloss.Color("#94E2D5")).Padding(0, 1),
		"info_f":         lipgloss.NewStyle().Foreground(lipgloss.Color("#181825")).Background(lipgloss.Color("#94E2D5")).Padding(0, 1),
	}
)

// Pane holds the actions available on the current screen.
type Pane struct {
	title         string
	actions       []Action
	selectedIndex int
	focused       bool
	width         int
}

// NewPane creates an empty pane with a title.
func NewPane(title string) *Pane {
	return &Pane{title: title, selectedIndex: -1}
}

// SetActions replaces the actions, keeping the selection when possible.
func (p *Pane) SetActions(actions []Action) {
	p.actions = actions
	switch {
	case len(actions) == 0:
		p.selectedIndex = -1
	case p.selectedIndex < 0 || p.selectedIndex >= len(actions):
		p.selectedIndex = 0
	}
}

// Actions returns the current actions.
func (p *Pane) Actions() []Action {
	return p.actions
}

// IsVisible reports whether there is anything to show.
func (p *Pane) IsVisible() bool {
	return len(p.actions) > 0
}

// Focus toggles whether arrow keys move the selection.
func (p *Pane) Focus(focused bool) {
	p.focused = focused
}

// Focused reports whether the pane has keyboard focus.
func (p *Pane) Focused() bool {
	return p.focused
}

// Next moves the selection to the next action, wrapping around.
func (p *Pane) Next() {
	if len(p.actions) == 0 {
		return
	}
	p.selectedIndex = (p.selectedIndex + 1) % len(p.actions)
}

// Previous moves the selection to the previous action, wrapping around.
func (p *Pane) Previous() {
	if len(p.actions) == 0 {
		return
	}
	p.selectedIndex--
	if p.selectedIndex < 0 {
		p.selectedIndex = len(p.actions) - 1
	}
}

// Selected returns the highlighted action.
func (p *Pane) Selected() (Action, bool) {
	if p.selectedIndex < 0 || p.selectedIndex >= len(p.actions) {
		return Action{}, false
	}
	return p.actions[p.selectedIndex], true
}

// Match resolves a key press to an action: a 1-based number or the action's
// letter shortcut.
func (p *Pane) Match(key string) (Action, bool) {
	if n, err := strconv.Atoi(key); err == nil {
		if n >= 1 && n <= len(p.actions) {
			p.selectedIndex = n - 1
			return p.actions[n-1], true
		}
		return Action{}, false
	}
	for i, action := range p.actions {
		if action.Key != "" && action.Key == key {
			p.selectedIndex = i
			return action, true
		}
	}
	return Action{}, false
}

// SetWidth sets the rendering width of the pane.
func (p *Pane) SetWidth(width int) {
	p.width = width
}

// View renders the pane.
func (p *Pane) View() string {
	if !p.IsVisible() {
		return ""
	}

	lines := make([]string, 0, len(p.actions))
	for i, action := range p.actions {
		lines = append(lines, p.renderActionItem(i, action, p.focused && i == p.selectedIndex))
	}

	titled := lipgloss.JoinVertical(lipgloss.Left,
		actionsPaneTitleStyle.Render(p.title),
		strings.Join(lines, "\n"),
	)

	style := actionsPaneStyle
	if p.width > 4 {
		style = style.Width(p.width - 2)
	}
	return style.Render(titled)
}

func (p *Pane) renderActionItem(index int, action Action, focused bool) string {
	text := fmt.Sprintf("%-4s %s", fmt.Sprintf("[%d]", index+1), action.Label)
	if action.Key != "" {
		text += fmt.Sprintf(" (%s)", action.Key)
	}

	styleKey := string(action.Kind)
	if styleKey == "" {
		styleKey = string(KindPrimary)
	}
	if focused {
		styleKey += "_f"
	}

	style, exists := actionStyles[styleKey]
	if !exists {
		style = actionStyles["primary"]
	}
	return style.Render(text)
}
