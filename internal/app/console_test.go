package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/config"
	"github.com/chatvibe/console/internal/content"
	"github.com/chatvibe/console/internal/devserver"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/protocol"
	"github.com/chatvibe/console/internal/registry"
	"github.com/chatvibe/console/internal/ui/explore"
	"github.com/chatvibe/console/internal/ui/login"
	"github.com/chatvibe/console/internal/ui/route"
	"github.com/chatvibe/console/internal/ui/server"
)

type fixture struct {
	backend    *devserver.Server
	profile    *interfaces.Profile
	controller *ConsoleController
	sent       chan tea.Msg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := devserver.New(devserver.Options{CredentialMode: interfaces.CredentialsBearer, Secret: []byte("test-secret")})
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg, err := config.NewManagerWithPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewManagerWithPath: %v", err)
	}
	profile := &interfaces.Profile{
		Name:           "dev",
		BaseURL:        srv.URL + "/api",
		SocketURL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		CredentialMode: interfaces.CredentialsBearer,
		Theme:          "mocha",
	}
	if err := cfg.SaveProfile(profile); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := cfg.RegisterBackend(interfaces.RegisteredBackend{Name: "Dev", Profile: "dev"}); err != nil {
		t.Fatalf("RegisterBackend: %v", err)
	}

	renderer, err := content.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	registryManager, err := registry.NewManager(cfg, registry.DefaultPreferences())
	if err != nil {
		t.Fatalf("registry.NewManager: %v", err)
	}

	controller := NewConsoleController(Options{
		Registry:       registryManager,
		Config:         cfg,
		Store:          config.NewMemorySessionStore(),
		Renderer:       renderer,
		ReconnectDelay: time.Millisecond,
	})
	sent := make(chan tea.Msg, 16)
	controller.Bind(func(msg tea.Msg) { sent <- msg })
	t.Cleanup(controller.Close)

	return &fixture{backend: backend, profile: profile, controller: controller, sent: sent}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.controller.Update(route.BackendSelectedMsg{Backend: interfaces.RegisteredBackend{Name: "Dev", Profile: "dev"}})
	if f.controller.Services() == nil {
		t.Fatalf("connect failed: %v", f.controller.Err())
	}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	if err := f.controller.Services().Session.Login(context.Background(), devserver.DemoEmail, devserver.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	f.nextSessionChange(t)
}

// nextSessionChange waits for the subscription to deliver a session change.
func (f *fixture) nextSessionChange(t *testing.T) route.SessionChangedMsg {
	t.Helper()
	select {
	case msg := <-f.sent:
		changed, ok := msg.(route.SessionChangedMsg)
		if !ok {
			t.Fatalf("sent %T, want SessionChangedMsg", msg)
		}
		return changed
	case <-time.After(2 * time.Second):
		t.Fatal("no session change delivered")
	}
	return route.SessionChangedMsg{}
}

func (f *fixture) serverRoute() route.Route {
	servers := f.backend.Servers()
	return route.Route{Name: route.Server, ServerID: servers[0].ID.String()}
}

func TestConnectOpensHome(t *testing.T) {
	f := newFixture(t)
	if got := f.controller.Route().Name; got != route.Menu {
		t.Fatalf("initial route = %s, want menu", got)
	}

	f.connect(t)

	if got := f.controller.Route(); got.Name != route.Home {
		t.Errorf("route = %s, want home", got)
	}
	if _, ok := f.controller.Screen().(*explore.Model); !ok {
		t.Errorf("screen = %T, want explore", f.controller.Screen())
	}
	if f.controller.Services().Profile.BaseURL != f.profile.BaseURL {
		t.Errorf("profile = %+v", f.controller.Services().Profile)
	}
}

func TestStatusBarShowsRequestStatistics(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	bar := f.controller.statusBar()
	for _, want := range []string{"dev", f.profile.BaseURL, "(bearer)", "guest", "no requests"} {
		if !strings.Contains(bar, want) {
			t.Errorf("status bar missing %q: %s", want, bar)
		}
	}

	if _, err := f.controller.Services().API.ListServers(context.Background(), interfaces.ServerQuery{}); err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	if bar := f.controller.statusBar(); !strings.Contains(bar, "1 req, avg ") {
		t.Errorf("status bar after one request: %s", bar)
	}
}

func TestFormatStatistics(t *testing.T) {
	tests := []struct {
		name  string
		stats protocol.ConnectionStatistics
		want  string
	}{
		{"idle", protocol.ConnectionStatistics{}, "no requests"},
		{"ok", protocol.ConnectionStatistics{TotalRequests: 3, SuccessfulRequests: 3, AverageLatency: 42 * time.Millisecond}, "3 req, avg 42ms"},
		{"failures", protocol.ConnectionStatistics{TotalRequests: 5, FailedRequests: 2, AverageLatency: time.Second}, "5 req, avg 1000ms, 2 failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStatistics(tt.stats); got != tt.want {
				t.Errorf("formatStatistics = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnknownProfileStaysOnMenu(t *testing.T) {
	f := newFixture(t)
	f.controller.Update(route.BackendSelectedMsg{Backend: interfaces.RegisteredBackend{Name: "Ghost", Profile: "ghost"}})

	if f.controller.Services() != nil || f.controller.Err() == nil {
		t.Fatal("connected to a missing profile")
	}
	if !strings.Contains(f.controller.View(), "Connect failed") {
		t.Error("menu does not show the connect error")
	}
}

func TestProtectedRouteNeedsLogin(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	target := f.serverRoute()

	f.controller.Update(route.NavigateMsg{To: target})

	if got := f.controller.Route().Name; got != route.Login {
		t.Fatalf("route = %s, want login", got)
	}
	form, ok := f.controller.Screen().(*login.Model)
	if !ok {
		t.Fatalf("screen = %T, want login form", f.controller.Screen())
	}
	if form.ReturnTo() != target {
		t.Errorf("ReturnTo = %v, want %v", form.ReturnTo(), target)
	}

	f.login(t)
	f.controller.Update(route.NavigateMsg{To: form.ReturnTo()})
	if got := f.controller.Route(); got != target {
		t.Errorf("route after login = %v, want %v", got, target)
	}
	if _, ok := f.controller.Screen().(*server.Model); !ok {
		t.Errorf("screen = %T, want server", f.controller.Screen())
	}
}

func TestLogoutLeavesProtectedRoute(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.login(t)
	target := f.serverRoute()
	f.controller.Update(route.NavigateMsg{To: target})
	if got := f.controller.Route(); got != target {
		t.Fatalf("route = %v, want %v", got, target)
	}

	f.controller.Services().Session.Logout()
	f.controller.Update(f.nextSessionChange(t))

	if got := f.controller.Route().Name; got != route.Login {
		t.Fatalf("route after logout = %s, want login", got)
	}
	form := f.controller.Screen().(*login.Model)
	if form.ReturnTo() != target {
		t.Errorf("ReturnTo = %v, want %v", form.ReturnTo(), target)
	}
}

func TestLogoutOnPublicRouteStays(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.login(t)

	f.controller.Services().Session.Logout()
	f.controller.Update(f.nextSessionChange(t))

	if got := f.controller.Route().Name; got != route.Home {
		t.Errorf("route = %s, want home", got)
	}
}

func TestMenuDisconnects(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.controller.Update(route.NavigateMsg{To: route.Route{Name: route.Menu}})

	if f.controller.Services() != nil || f.controller.Screen() != nil {
		t.Fatal("menu kept the backend services")
	}
	if got := f.controller.Route().Name; got != route.Menu {
		t.Errorf("route = %s, want menu", got)
	}
}

func TestPreselectedProfileConnects(t *testing.T) {
	f := newFixture(t)
	f.controller.opts.Profile = f.profile

	msg := f.controller.Init()()
	f.controller.Update(msg)

	if got := f.controller.Route().Name; got != route.Home {
		t.Errorf("route = %s, want home", got)
	}
}
