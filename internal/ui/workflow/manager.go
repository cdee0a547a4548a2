// Package workflow renders the banner shown while a chat channel works
// through its reconnect attempts.
package workflow

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/ui/components"
)

var workflowStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#CBA6F7")).
	Foreground(lipgloss.Color("#CBA6F7")).
	Padding(0, 1)

// Workflow is a bounded sequence of steps, such as reconnect attempts.
type Workflow struct {
	Title      string
	Step       int
	TotalSteps int
}

// Manager tracks the active workflow, if any.
type Manager struct {
	current *Workflow
	width   int
}

// NewManager creates a manager with nothing in progress.
func NewManager() *Manager {
	return &Manager{}
}

// UpdateState starts or advances a workflow. A zero step ends it.
func (m *Manager) UpdateState(title string, step, total int) {
	if step <= 0 || total <= 0 {
		m.EndWorkflow()
		return
	}
	m.current = &Workflow{Title: title, Step: step, TotalSteps: total}
}

// EndWorkflow clears the current workflow state.
func (m *Manager) EndWorkflow() {
	m.current = nil
}

// IsActive returns true if a workflow is currently in progress.
func (m *Manager) IsActive() bool {
	return m.current != nil
}

// Current returns the active workflow or nil.
func (m *Manager) Current() *Workflow {
	return m.current
}

// SetWidth sets the rendering width of the banner.
func (m *Manager) SetWidth(width int) {
	m.width = width
}

// View renders the banner with a step progress bar.
func (m *Manager) View() string {
	if !m.IsActive() {
		return ""
	}

	wf := m.current
	text := fmt.Sprintf("%s (%d/%d)", wf.Title, wf.Step, wf.TotalSteps)

	barWidth := m.width - lipgloss.Width(text) - 8
	if barWidth > wf.TotalSteps*4 {
		barWidth = wf.TotalSteps * 4
	}
	if barWidth < wf.TotalSteps {
		barWidth = wf.TotalSteps
	}

	bar := components.RenderProgressBar((wf.Step*100)/wf.TotalSteps, barWidth, "●", "○")
	full := lipgloss.JoinHorizontal(lipgloss.Left, text, " ", bar)

	if m.width > 4 {
		return workflowStyle.Width(m.width - 2).Render(full)
	}
	return workflowStyle.Render(full)
}
