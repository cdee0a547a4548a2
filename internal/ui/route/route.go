// Package route names the screens of the console and the messages screens
// use to ask the controller for a different one.
package route

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/interfaces"
)

// Name identifies a screen.
type Name string

const (
	Menu     Name = "menu"
	Home     Name = "home"
	Explore  Name = "explore"
	Server   Name = "server"
	Login    Name = "login"
	Register Name = "register"
)

// Route is a screen plus its parameters.
type Route struct {
	Name      Name
	Category  string // explore
	Mine      bool   // explore: only servers the user belongs to
	ServerID  string // server
	ChannelID string // server, optional
}

// Protected reports whether the route needs a logged-in session.
func (r Route) Protected() bool {
	return r.Name == Server || (r.Name == Explore && r.Mine)
}

// String renders the route as a path, for logs and breadcrumbs.
func (r Route) String() string {
	switch r.Name {
	case Home:
		return "/"
	case Explore:
		if r.Mine {
			return "/explore/@me"
		}
		return "/explore/" + r.Category
	case Server:
		if r.ChannelID == "" {
			return "/server/" + r.ServerID
		}
		return "/server/" + r.ServerID + "/" + r.ChannelID
	default:
		return "/" + string(r.Name)
	}
}

// Parse reads a path produced by String.
func Parse(path string) (Route, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case path == "/" || path == "":
		return Route{Name: Home}, nil
	case parts[0] == "explore" && len(parts) == 2:
		if parts[1] == "@me" {
			return Route{Name: Explore, Mine: true}, nil
		}
		return Route{Name: Explore, Category: parts[1]}, nil
	case parts[0] == "server" && len(parts) == 2:
		return Route{Name: Server, ServerID: parts[1]}, nil
	case parts[0] == "server" && len(parts) == 3:
		return Route{Name: Server, ServerID: parts[1], ChannelID: parts[2]}, nil
	case len(parts) == 1:
		switch n := Name(parts[0]); n {
		case Menu, Login, Register:
			return Route{Name: n}, nil
		}
	}
	return Route{}, fmt.Errorf("unknown route %q", path)
}

// NavigateMsg asks the controller to show another screen.
type NavigateMsg struct {
	To Route
}

// RedirectToLoginMsg asks for the login screen and a return to Return after
// a successful login.
type RedirectToLoginMsg struct {
	Return Route
}

// SessionChangedMsg is delivered whenever the session flag or user changes.
type SessionChangedMsg struct {
	Session interfaces.Session
}

// BackendSelectedMsg is sent by the menu when the user picks a backend.
// Profile is set for quick connect targets that have no config entry.
type BackendSelectedMsg struct {
	Backend interfaces.RegisteredBackend
	Profile *interfaces.Profile
}

// Navigate returns a command that emits a NavigateMsg.
func Navigate(to Route) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{To: to} }
}

// RedirectToLogin returns a command that emits a RedirectToLoginMsg.
func RedirectToLogin(ret Route) tea.Cmd {
	return func() tea.Msg { return RedirectToLoginMsg{Return: ret} }
}
