// Package components holds small rendering helpers shared by the screens:
// status badges, inline form errors, and the key action pane.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// statusStyles maps status strings to their corresponding visual style.
var statusStyles = map[string]lipgloss.Style{
	"pending": lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	"success": lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
	"error":   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	"warning": lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")),
	"info":    lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")),
	"running": lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
}

// statusIcons maps status strings to their corresponding icon.
var statusIcons = map[string]string{
	"pending": "⏳",
	"success": "●",
	"error":   "✖",
	"warning": "▲",
	"info":    "ℹ",
	"running": "◌",
}

// RenderStatus formats a status message with an icon and color.
func RenderStatus(status, message string) string {
	style, exists := statusStyles[status]
	if !exists {
		style = lipgloss.NewStyle()
	}

	icon, exists := statusIcons[status]
	if !exists {
		icon = "•"
	}

	return style.Render(fmt.Sprintf("%s %s", icon, message))
}

// BackendStatus renders the health indicator shown next to a menu entry.
func BackendStatus(status string) string {
	switch status {
	case "ready":
		return RenderStatus("success", "Ready")
	case "offline":
		return RenderStatus("error", "Offline")
	case "error":
		return RenderStatus("warning", "Error")
	default:
		return RenderStatus("pending", "Checking...")
	}
}

// SocketStatus renders the chat connection state. Attempts are shown only
// while reconnecting.
func SocketStatus(state string, attempts, maxAttempts int) string {
	switch state {
	case "open":
		return RenderStatus("success", "Connected")
	case "connecting":
		return RenderStatus("running", "Connecting...")
	case "reconnecting":
		return RenderStatus("warning", fmt.Sprintf("Reconnecting (attempt %d/%d)", attempts, maxAttempts))
	case "closed":
		return RenderStatus("error", "Disconnected")
	default:
		return RenderStatus("info", "Not connected")
	}
}

// MembershipBadge marks whether the user belongs to the server on screen.
func MembershipBadge(member bool) string {
	if member {
		return RenderStatus("success", "Member")
	}
	return RenderStatus("info", "Not a member")
}

// RenderProgressBar creates a textual progress bar.
// - progress: the percentage of completion (0-100).
// - width: the total width of the bar in characters.
func RenderProgressBar(progress int, width int, fillChar, emptyChar string) string {
	if width <= 0 {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	filledWidth := (progress * width) / 100
	return "[" + strings.Repeat(fillChar, filledWidth) + strings.Repeat(emptyChar, width-filledWidth) + "]"
}
