// Package login implements the login and register forms. Both share one
// model; ctrl+t switches between them. A successful registration logs the
// new account in straight away.
package login

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/auth"
	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/components"
	"github.com/chatvibe/console/internal/ui/route"
)

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

func (m Mode) form() string {
	if m == ModeRegister {
		return apperrors.FormRegister
	}
	return apperrors.FormLogin
}

const (
	focusEmail = iota
	focusPassword
	focusSubmit
	focusCount
)

// KeyMap holds the form key bindings.
type KeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Toggle key.Binding
	Back   key.Binding
}

// DefaultKeyMap returns the default form key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "login/register"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// Model is the login/register screen.
type Model struct {
	session  interfaces.SessionManager
	handler  *apperrors.Handler
	keys     KeyMap
	mode     Mode
	returnTo route.Route

	email      textinput.Model
	password   textinput.Model
	focus      int
	errs       apperrors.FieldErrors
	submitting bool
	notice     string

	width int
}

// New creates the form. returnTo is where a successful login goes.
func New(session interfaces.SessionManager, mode Mode, returnTo route.Route) *Model {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Width = 40

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128
	password.Width = 40

	if returnTo.Name == "" || returnTo.Name == route.Login || returnTo.Name == route.Register {
		returnTo = route.Route{Name: route.Home}
	}

	return &Model{
		session:  session,
		handler:  apperrors.NewHandler(),
		keys:     DefaultKeyMap(),
		mode:     mode,
		returnTo: returnTo,
		email:    email,
		password: password,
	}
}

// Mode returns the form being shown.
func (m *Model) Mode() Mode { return m.mode }

// Errors returns the inline errors currently displayed.
func (m *Model) Errors() apperrors.FieldErrors { return m.errs }

// ReturnTo is the route opened after a successful login.
func (m *Model) ReturnTo() route.Route { return m.returnTo }

// Init focuses the email field.
func (m *Model) Init() tea.Cmd {
	return m.setFocus(focusEmail)
}

type (
	loginResultMsg struct {
		err error
	}
	registerResultMsg struct {
		err error
	}
)

// Update handles key input and submit results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case loginResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.errs = m.handler.FormErrors(apperrors.FormLogin, msg.err)
			return m, nil
		}
		m.errs = nil
		return m, route.Navigate(m.returnTo)

	case registerResultMsg:
		if msg.err != nil {
			m.submitting = false
			m.errs = m.handler.FormErrors(apperrors.FormRegister, msg.err)
			return m, nil
		}
		m.notice = "Account created. Logging in..."
		return m, m.login()

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, route.Navigate(route.Route{Name: route.Home})
		case key.Matches(msg, m.keys.Toggle):
			m.toggle()
			return m, nil
		case key.Matches(msg, m.keys.Next):
			return m, m.setFocus((m.focus + 1) % focusCount)
		case key.Matches(msg, m.keys.Prev):
			return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
		case key.Matches(msg, m.keys.Submit):
			if m.focus == focusEmail {
				return m, m.setFocus(focusPassword)
			}
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusEmail:
		m.email, cmd = m.email.Update(msg)
	case focusPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggle() {
	if m.mode == ModeLogin {
		m.mode = ModeRegister
	} else {
		m.mode = ModeLogin
	}
	m.errs = nil
	m.notice = ""
}

func (m *Model) setFocus(focus int) tea.Cmd {
	m.focus = focus
	m.email.Blur()
	m.password.Blur()
	switch focus {
	case focusEmail:
		return m.email.Focus()
	case focusPassword:
		return m.password.Focus()
	}
	return nil
}

// submit validates locally and, when the form is clean, sends it.
func (m *Model) submit() tea.Cmd {
	if err := auth.ValidateCredentials(m.email.Value(), m.password.Value()); err != nil {
		m.errs = m.handler.FormErrors(m.mode.form(), err)
		return nil
	}
	m.errs = nil
	m.submitting = true
	if m.mode == ModeRegister {
		return m.register()
	}
	return m.login()
}

func (m *Model) login() tea.Cmd {
	email, password := m.email.Value(), m.password.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return loginResultMsg{err: m.session.Login(ctx, email, password)}
	}
}

func (m *Model) register() tea.Cmd {
	email, password := m.email.Value(), m.password.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return registerResultMsg{err: m.session.Register(ctx, email, password)}
	}
}

var (
	formTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")).MarginBottom(1)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	buttonStyle    = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	activeButton   = buttonStyle.BorderForeground(lipgloss.Color("#89B4FA")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	formBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#CBA6F7")).Padding(1, 3)
)

// View renders the form with inline errors under each field.
func (m *Model) View() string {
	title, button := "Login", "Login"
	if m.mode == ModeRegister {
		title, button = "Register", "Next"
	}

	rows := []string{formTitleStyle.Render(title)}

	rows = append(rows, labelStyle.Render("Email"), m.email.View())
	if e := components.RenderFieldError(m.errs, "email"); e != "" {
		rows = append(rows, e)
	}
	rows = append(rows, "", labelStyle.Render("Password"), m.password.View())
	if e := components.RenderFieldError(m.errs, "password"); e != "" {
		rows = append(rows, e)
	}

	btn := buttonStyle
	if m.focus == focusSubmit {
		btn = activeButton
	}
	if m.submitting {
		button += "..."
	}
	rows = append(rows, "", btn.Render(button))

	if e := components.RenderFormError(m.errs); e != "" {
		rows = append(rows, e)
	}
	if m.notice != "" {
		rows = append(rows, noticeStyle.Render(m.notice))
	}

	h := help.New()
	return lipgloss.JoinVertical(lipgloss.Left,
		formBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)),
		h.ShortHelpView([]key.Binding{m.keys.Next, m.keys.Submit, m.keys.Toggle, m.keys.Back}),
	)
}
