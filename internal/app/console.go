// Package app provides the main application controller. It owns the
// services of the connected backend, switches between the backend menu and
// the chat screens, and guards routes that need a logged-in session.
package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/auth"
	"github.com/chatvibe/console/internal/chat"
	"github.com/chatvibe/console/internal/content"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"github.com/chatvibe/console/internal/protocol"
	"github.com/chatvibe/console/internal/ui/explore"
	"github.com/chatvibe/console/internal/ui/login"
	"github.com/chatvibe/console/internal/ui/menu"
	"github.com/chatvibe/console/internal/ui/route"
	"github.com/chatvibe/console/internal/ui/server"
)

// Services are the per-backend collaborators created on connect.
type Services struct {
	Profile *interfaces.Profile
	Session *auth.Manager
	API     *protocol.Client
	Dialer  chat.Dialer
	Theme   *interfaces.Theme
}

// NewServices builds the session, API client and socket dialer for a
// profile. The session is restored from store when one is given.
func NewServices(cfg interfaces.ConfigManager, store interfaces.SessionStore, profile *interfaces.Profile) (*Services, error) {
	session, err := auth.NewManager(auth.Options{
		ProfileName:    profile.Name,
		BaseURL:        profile.BaseURL,
		CredentialMode: profile.CredentialMode,
		Store:          store,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", profile.Name, err)
	}

	client, err := protocol.NewClient(profile.BaseURL, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client for %s: %w", profile.Name, err)
	}

	services := &Services{
		Profile: profile,
		Session: session,
		API:     client,
		Dialer:  chat.NewWebsocketDialer(session),
	}
	if cfg != nil && profile.Theme != "" {
		if theme, err := cfg.LoadTheme(profile.Theme); err == nil {
			services.Theme = theme
		}
	}
	return services, nil
}

// Options configures a ConsoleController.
type Options struct {
	Registry interfaces.RegistryManager
	Config   interfaces.ConfigManager
	Store    interfaces.SessionStore
	Renderer *content.Renderer
	Logger   *logging.Logger

	// Profile connects straight away instead of showing the menu.
	Profile *interfaces.Profile

	// ReconnectDelay overrides the chat reconnect wait.
	ReconnectDelay time.Duration
}

// ConsoleController is the root Bubble Tea model.
type ConsoleController struct {
	opts   Options
	logger *logging.Logger

	menuModel *menu.MenuModel
	screen    tea.Model
	current   route.Route

	services    *Services
	unsubscribe func()
	send        func(tea.Msg)

	width  int
	height int

	err error
}

// NewConsoleController creates the controller on the menu.
func NewConsoleController(opts Options) *ConsoleController {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetUILogger()
	}
	return &ConsoleController{
		opts:      opts,
		logger:    logger,
		menuModel: menu.NewMenuModel(opts.Registry),
		current:   route.Route{Name: route.Menu},
	}
}

// Bind hands the controller the program's Send function. Session changes
// are delivered through it.
func (c *ConsoleController) Bind(send func(tea.Msg)) {
	c.send = send
}

// Route returns the route on screen.
func (c *ConsoleController) Route() route.Route { return c.current }

// Screen returns the active screen model, or nil on the menu.
func (c *ConsoleController) Screen() tea.Model { return c.screen }

// Services returns the services of the connected backend, or nil.
func (c *ConsoleController) Services() *Services { return c.services }

// Err returns the last connect error.
func (c *ConsoleController) Err() error { return c.err }

// Init starts the menu, or connects to the preselected profile.
func (c *ConsoleController) Init() tea.Cmd {
	if p := c.opts.Profile; p != nil {
		return func() tea.Msg {
			return route.BackendSelectedMsg{
				Backend: interfaces.RegisteredBackend{Name: p.Name, Profile: p.Name},
				Profile: p,
			}
		}
	}
	return c.menuModel.Init()
}

// Update handles routing messages and delegates the rest to the active
// screen.
func (c *ConsoleController) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			c.Close()
			return c, tea.Quit
		}

	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height
		if c.screen != nil {
			c.screen, _ = c.screen.Update(msg)
		}
		c.menuModel.Update(msg)
		return c, nil

	case route.BackendSelectedMsg:
		return c, c.connect(msg)

	case route.NavigateMsg:
		return c, c.navigate(msg.To, "navigate")

	case route.RedirectToLoginMsg:
		return c, c.redirectToLogin(msg.Return)

	case route.SessionChangedMsg:
		if c.services == nil {
			return c, nil
		}
		// the payload may be stale by the time it arrives
		session := c.services.Session.Session()
		c.logger.Debug("Session changed", "logged_in", session.LoggedIn, "route", c.current.String())
		if !session.LoggedIn && c.current.Protected() {
			return c, c.redirectToLogin(c.current)
		}
		msg.Session = session
		if c.screen != nil {
			var cmd tea.Cmd
			c.screen, cmd = c.screen.Update(msg)
			return c, cmd
		}
		return c, nil
	}

	if c.screen == nil {
		chat.Discard(msg)
		_, cmd := c.menuModel.Update(msg)
		return c, cmd
	}
	if _, ok := c.screen.(*server.Model); !ok {
		chat.Discard(msg)
	}
	var cmd tea.Cmd
	c.screen, cmd = c.screen.Update(msg)
	return c, cmd
}

// connect creates the services for the selected backend and opens the home
// screen.
func (c *ConsoleController) connect(msg route.BackendSelectedMsg) tea.Cmd {
	profile := msg.Profile
	if profile == nil {
		if c.opts.Config == nil {
			c.err = fmt.Errorf("no configuration to load profile %q", msg.Backend.Profile)
			return nil
		}
		p, err := c.opts.Config.LoadProfile(msg.Backend.Profile)
		if err != nil {
			c.err = err
			c.logger.Error("Failed to load profile", "profile", msg.Backend.Profile, "error", err.Error())
			return nil
		}
		profile = p
	}

	services, err := NewServices(c.opts.Config, c.opts.Store, profile)
	if err != nil {
		c.err = err
		c.logger.Error("Failed to connect", "backend", msg.Backend.Name, "error", err.Error())
		return nil
	}

	c.disconnect()
	c.err = nil
	c.services = services
	c.unsubscribe = services.Session.Subscribe(func(s interfaces.Session) {
		if send := c.send; send != nil {
			// Subscribers run on the goroutine that changed the session,
			// which may be the event loop itself.
			go send(route.SessionChangedMsg{Session: s})
		}
	})
	if c.opts.Renderer != nil && services.Theme != nil {
		if err := c.opts.Renderer.SetTheme(services.Theme); err != nil {
			c.logger.Warn("Failed to apply theme", "theme", services.Theme.Name, "error", err.Error())
		}
	}

	c.logger.Info("Connected to backend",
		"backend", msg.Backend.Name,
		"base_url", profile.BaseURL,
		"credentials", profile.CredentialMode,
		"logged_in", services.Session.LoggedIn())
	return c.navigate(route.Route{Name: route.Home}, "connected")
}

// disconnect drops the services of the current backend.
func (c *ConsoleController) disconnect() {
	c.closeScreen()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.services != nil {
		c.services.API.Close()
		c.services = nil
	}
}

// navigate swaps the active screen. Protected routes need a session.
func (c *ConsoleController) navigate(to route.Route, reason string) tea.Cmd {
	if to.Name == route.Menu || c.services == nil {
		from := c.current
		c.disconnect()
		c.current = route.Route{Name: route.Menu}
		c.logger.LogUIStateChange(from.String(), c.current.String(), reason)
		return c.menuModel.Init()
	}
	if to.Protected() && !c.services.Session.LoggedIn() {
		return c.redirectToLogin(to)
	}

	var next tea.Model
	switch to.Name {
	case route.Home, route.Explore:
		next = explore.New(c.services.API, c.services.Session, c.opts.Renderer, to)
	case route.Server:
		next = server.New(server.Deps{
			API:      c.services.API,
			Session:  c.services.Session,
			Renderer: c.opts.Renderer,
			Chat: chat.Deps{
				Dialer:         c.services.Dialer,
				SocketURL:      c.services.Profile.SocketURL,
				ReconnectDelay: c.opts.ReconnectDelay,
			},
		}, to)
	case route.Login:
		next = login.New(c.services.Session, login.ModeLogin, route.Route{Name: route.Home})
	case route.Register:
		next = login.New(c.services.Session, login.ModeRegister, route.Route{Name: route.Home})
	default:
		c.logger.Warn("Unknown route", "route", to.String())
		return nil
	}
	return c.show(to, next, reason)
}

func (c *ConsoleController) redirectToLogin(ret route.Route) tea.Cmd {
	if c.services == nil {
		return c.navigate(route.Route{Name: route.Menu}, "no backend")
	}
	return c.show(route.Route{Name: route.Login}, login.New(c.services.Session, login.ModeLogin, ret), "login required")
}

func (c *ConsoleController) show(to route.Route, next tea.Model, reason string) tea.Cmd {
	c.logger.LogUIStateChange(c.current.String(), to.String(), reason)
	c.closeScreen()
	c.current = to
	c.screen = next

	var cmds []tea.Cmd
	if c.width > 0 {
		var cmd tea.Cmd
		c.screen, cmd = c.screen.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, c.screen.Init())
	return tea.Batch(cmds...)
}

func (c *ConsoleController) closeScreen() {
	if closer, ok := c.screen.(interface{ Close() }); ok {
		closer.Close()
	}
	c.screen = nil
}

// Close releases the active screen and the backend services.
func (c *ConsoleController) Close() {
	c.disconnect()
}

var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BAC2DE")).
			Background(lipgloss.Color("#313244")).
			Padding(0, 1)

	connectErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
)

// View renders the active screen with a status bar.
func (c *ConsoleController) View() string {
	if c.screen == nil {
		view := c.menuModel.View()
		if c.err != nil {
			view += "\n\n" + connectErrorStyle.Render("Connect failed: "+c.err.Error())
		}
		return view
	}
	return lipgloss.JoinVertical(lipgloss.Left, c.screen.View(), "", c.statusBar())
}

func (c *ConsoleController) statusBar() string {
	account := "guest"
	if s := c.services.Session.Session(); s.LoggedIn {
		account = "user " + s.UserID
	}
	text := fmt.Sprintf("%s  %s (%s)  %s  %s  %s",
		c.services.Profile.Name, c.services.API.BaseURL(), c.services.Session.CredentialMode(),
		account, c.current.String(), formatStatistics(c.services.API.Statistics()))
	style := statusBarStyle
	if c.width > 0 {
		style = style.Width(c.width)
	}
	return style.Render(text)
}

// formatStatistics summarises the request counters for the status bar.
func formatStatistics(stats protocol.ConnectionStatistics) string {
	if stats.TotalRequests == 0 {
		return "no requests"
	}
	text := fmt.Sprintf("%d req, avg %dms", stats.TotalRequests, stats.AverageLatency.Milliseconds())
	if stats.FailedRequests > 0 {
		text += fmt.Sprintf(", %d failed", stats.FailedRequests)
	}
	return text
}
