package components

import (
	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/chatvibe/console/internal/errors"
)

var (
	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			PaddingLeft(2)

	formErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F38BA8")).
			MarginTop(1)

	errorLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))
)

// RenderFieldError renders the message under a form input. It returns an
// empty string when the field has no error.
func RenderFieldError(errs apperrors.FieldErrors, field string) string {
	msg := errs.Field(field)
	if msg == "" {
		return ""
	}
	return fieldErrorStyle.Render(msg)
}

// RenderFormError renders the form-level message, if any.
func RenderFormError(errs apperrors.FieldErrors) string {
	msg := errs.Form()
	if msg == "" {
		return ""
	}
	return formErrorStyle.Render("✖ " + msg)
}

// RenderError renders a one-line description of err for a status bar.
func RenderError(handler *apperrors.Handler, err error) string {
	if err == nil {
		return ""
	}
	return errorLineStyle.Render("Error: " + handler.UserMessage(err))
}
