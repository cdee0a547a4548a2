// Package menu is the backend picker shown at startup. It lists the backends
// registered in the config file with their health, and offers a quick
// connect field for an ad hoc host.
package menu

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/route"
)

// FocusState represents which part of the menu is currently focused.
type FocusState int

const (
	FocusList FocusState = iota
	FocusInput
)

// QuickProfileName names profiles created from the quick connect field.
const QuickProfileName = "quick-connect"

// KeyMap holds the menu key bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Check  key.Binding
	Tab    key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default menu key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Check: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "check health"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "quick connect"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
}

// MenuModel represents the state of the backend picker.
type MenuModel struct {
	registryManager interfaces.RegistryManager
	keys            KeyMap

	backends          []interfaces.RegisteredBackend
	backendHealth     map[string]*interfaces.BackendHealth
	selectedIndex     int
	quickConnectInput textinput.Model
	focusState        FocusState
	checking          bool
	err               error

	width  int
	height int
}

// NewMenuModel creates the menu over a registry.
func NewMenuModel(registry interfaces.RegistryManager) *MenuModel {
	ti := textinput.New()
	ti.Placeholder = "localhost:8000"
	ti.CharLimit = 150
	ti.Width = 50

	return &MenuModel{
		registryManager:   registry,
		keys:              DefaultKeyMap(),
		quickConnectInput: ti,
		focusState:        FocusList,
		backendHealth:     make(map[string]*interfaces.BackendHealth),
	}
}

// Init loads the backends, runs a first health check and starts the refresh timer.
func (m *MenuModel) Init() tea.Cmd {
	m.checking = true
	return tea.Batch(
		m.reloadBackends(),
		m.checkAll(),
		tick(),
	)
}

// Backends returns the list currently shown.
func (m *MenuModel) Backends() []interfaces.RegisteredBackend {
	return m.backends
}

type (
	backendsReloadedMsg struct {
		backends []interfaces.RegisteredBackend
		err      error
	}

	healthStatusUpdatedMsg struct {
		health map[string]*interfaces.BackendHealth
	}

	healthCheckedMsg struct{}

	tickMsg struct{}
)

// tick asks for a health refresh every second. The registry does the probing
// on its own schedule; this only picks up the results.
func tick() tea.Cmd {
	return tea.Every(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *MenuModel) reloadBackends() tea.Cmd {
	return func() tea.Msg {
		backends, err := m.registryManager.GetRegisteredBackends()
		return backendsReloadedMsg{backends: backends, err: err}
	}
}

func (m *MenuModel) updateHealth() tea.Cmd {
	return func() tea.Msg {
		backends, err := m.registryManager.GetRegisteredBackends()
		if err != nil {
			return nil
		}
		healthMap := make(map[string]*interfaces.BackendHealth)
		for _, backend := range backends {
			if health, err := m.registryManager.GetBackendHealth(backend.Name); err == nil {
				healthMap[backend.Name] = health
			}
		}
		return healthStatusUpdatedMsg{health: healthMap}
	}
}

// checkAll probes every backend right away.
func (m *MenuModel) checkAll() tea.Cmd {
	return func() tea.Msg {
		backends, err := m.registryManager.GetRegisteredBackends()
		if err != nil {
			return healthCheckedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, backend := range backends {
			_, _ = m.registryManager.CheckBackendHealth(ctx, backend.Name)
		}
		return healthCheckedMsg{}
	}
}

func selectBackend(backend interfaces.RegisteredBackend, profile *interfaces.Profile) tea.Cmd {
	return func() tea.Msg {
		return route.BackendSelectedMsg{Backend: backend, Profile: profile}
	}
}

// QuickProfile builds a cookie-mode profile for host, which may be a bare
// host:port or a URL. The REST API is expected under /api and the socket
// under /ws.
func QuickProfile(host string) (*interfaces.Profile, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid host %q", host)
	}

	socketScheme := "ws"
	switch u.Scheme {
	case "http":
	case "https":
		socketScheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return &interfaces.Profile{
		Name:           QuickProfileName,
		BaseURL:        fmt.Sprintf("%s://%s/api", u.Scheme, u.Host),
		SocketURL:      fmt.Sprintf("%s://%s/ws", socketScheme, u.Host),
		CredentialMode: interfaces.CredentialsCookie,
		Theme:          "mocha",
	}, nil
}
