// Package explore lists servers: the popular list on the home screen, one
// category, or only the servers the user belongs to.
package explore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/content"
	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/components"
	"github.com/chatvibe/console/internal/ui/route"
)

// KeyMap holds the explore key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Category key.Binding
	Mine     key.Binding
	Home     key.Binding
	Account  key.Binding
	Menu     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default explore key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Category: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
		Mine:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "my servers")),
		Home:     key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "popular")),
		Account:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "login/logout")),
		Menu:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "backends")),
		Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	}
}

// Model is the server list screen.
type Model struct {
	api      interfaces.ChatAPI
	session  interfaces.SessionManager
	renderer *content.Renderer
	handler  *apperrors.Handler
	keys     KeyMap
	route    route.Route

	servers   []interfaces.Server
	selected  int
	loading   bool
	err       error
	filtering bool
	filter    textinput.Model
	spinner   spinner.Model

	width  int
	height int
}

// New creates the list for a home or explore route.
func New(api interfaces.ChatAPI, session interfaces.SessionManager, renderer *content.Renderer, r route.Route) *Model {
	filter := textinput.New()
	filter.Placeholder = "category"
	filter.CharLimit = 64
	filter.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		api:      api,
		session:  session,
		renderer: renderer,
		handler:  apperrors.NewHandler(),
		keys:     DefaultKeyMap(),
		route:    r,
		filter:   filter,
		spinner:  sp,
		loading:  true,
	}
}

// Query is the /servers query for this screen.
func (m *Model) Query() interfaces.ServerQuery {
	return interfaces.ServerQuery{
		Category:       m.route.Category,
		ByUser:         m.route.Mine,
		WithNumMembers: true,
	}
}

// Title is the heading shown above the list.
func (m *Model) Title() string {
	switch {
	case m.route.Mine:
		return "My Servers"
	case m.route.Category != "":
		return "Explore: " + m.route.Category
	default:
		return "Popular Channels"
	}
}

// Servers returns the loaded list.
func (m *Model) Servers() []interfaces.Server { return m.servers }

// Err returns the last load error.
func (m *Model) Err() error { return m.err }

type serversLoadedMsg struct {
	servers []interfaces.Server
	err     error
}

// Init starts the first load.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

func (m *Model) load() tea.Cmd {
	query := m.Query()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		servers, err := m.api.ListServers(ctx, query)
		return serversLoadedMsg{servers: servers, err: err}
	}
}

// Update handles list navigation and load results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case serversLoadedMsg:
		m.loading = false
		m.servers, m.err = msg.servers, msg.err
		if m.selected >= len(m.servers) {
			m.selected = 0
		}
		if apperrors.Is(msg.err, apperrors.ErrLoginRequired) {
			return m, route.RedirectToLogin(m.route)
		}

	case route.SessionChangedMsg:
		if !m.route.Mine {
			m.loading = true
			return m, m.load()
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m, m.handleFilterKeys(msg)
		}
		return m, m.handleListKeys(msg)
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.servers)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Open):
		if m.selected < len(m.servers) {
			server := m.servers[m.selected]
			return route.Navigate(route.Route{Name: route.Server, ServerID: server.ID.String()})
		}
	case key.Matches(msg, m.keys.Category):
		m.filtering = true
		m.filter.SetValue(m.route.Category)
		return m.filter.Focus()
	case key.Matches(msg, m.keys.Mine):
		return route.Navigate(route.Route{Name: route.Explore, Mine: true})
	case key.Matches(msg, m.keys.Home):
		return route.Navigate(route.Route{Name: route.Home})
	case key.Matches(msg, m.keys.Account):
		if m.session.LoggedIn() {
			m.session.Logout()
			return nil
		}
		return route.RedirectToLogin(m.route)
	case key.Matches(msg, m.keys.Menu):
		return route.Navigate(route.Route{Name: route.Menu})
	}
	return nil
}

func (m *Model) handleFilterKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		return nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		category := strings.TrimSpace(m.filter.Value())
		if category == "" {
			return route.Navigate(route.Route{Name: route.Home})
		}
		return route.Navigate(route.Route{Name: route.Explore, Category: category})
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// View renders the header, the server cards and the key help.
func (m *Model) View() string {
	var b strings.Builder

	account := "not logged in"
	if s := m.session.Session(); s.LoggedIn {
		account = fmt.Sprintf("logged in as user %s", s.UserID)
	}
	b.WriteString(headerStyle.Render(m.Title()))
	b.WriteString("  " + dimStyle.Render(account))
	b.WriteString("\n\n")

	cardWidth := m.width - 4
	if cardWidth < 30 {
		cardWidth = 60
	}

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading servers...")
	case m.err != nil:
		b.WriteString(components.RenderError(m.handler, m.err))
	case len(m.servers) == 0:
		b.WriteString(dimStyle.Render("No servers found."))
	default:
		for i, server := range m.servers {
			b.WriteString(m.renderer.RenderServerCard(server, cardWidth, i == m.selected))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString("Category: " + m.filter.View() + "\n")
	}

	h := help.New()
	b.WriteString(h.ShortHelpView([]key.Binding{
		m.keys.Up, m.keys.Down, m.keys.Open, m.keys.Category, m.keys.Mine,
		m.keys.Home, m.keys.Account, m.keys.Menu, m.keys.Quit,
	}))
	return b.String()
}
