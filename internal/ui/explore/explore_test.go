package explore

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/auth"
	"github.com/chatvibe/console/internal/content"
	"github.com/chatvibe/console/internal/devserver"
	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/protocol"
	"github.com/chatvibe/console/internal/ui/route"
)

type fixture struct {
	backend *devserver.Server
	session *auth.Manager
	client  *protocol.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := devserver.New(devserver.Options{CredentialMode: interfaces.CredentialsBearer, Secret: []byte("test-secret")})
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	session, err := auth.NewManager(auth.Options{ProfileName: "test", BaseURL: srv.URL + "/api", CredentialMode: interfaces.CredentialsBearer})
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	client, err := protocol.NewClient(srv.URL+"/api", session)
	if err != nil {
		t.Fatalf("protocol.NewClient: %v", err)
	}
	return &fixture{backend: backend, session: session, client: client}
}

func (f *fixture) screen(t *testing.T, r route.Route) *Model {
	t.Helper()
	renderer, err := content.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return New(f.client, f.session, renderer, r)
}

// load runs the list request synchronously.
func load(m *Model) tea.Cmd {
	_, cmd := m.Update(m.load()())
	return cmd
}

func TestPopularServers(t *testing.T) {
	f := newFixture(t)
	m := f.screen(t, route.Route{Name: route.Home})

	if cmd := load(m); cmd != nil {
		t.Errorf("unexpected command %#v", cmd())
	}
	if m.Err() != nil {
		t.Fatalf("Err = %v", m.Err())
	}
	if got, want := len(m.Servers()), len(f.backend.Servers()); got != want {
		t.Fatalf("servers = %d, want %d", got, want)
	}
	if m.Title() != "Popular Channels" {
		t.Errorf("Title = %q", m.Title())
	}

	first := f.backend.Servers()[0]
	if !strings.Contains(m.View(), first.Name) {
		t.Errorf("view does not list %q", first.Name)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	want := route.NavigateMsg{To: route.Route{Name: route.Server, ServerID: m.Servers()[0].ID.String()}}
	if got := cmd(); got != want {
		t.Errorf("enter = %#v, want %#v", got, want)
	}
}

func TestMyServersNeedLogin(t *testing.T) {
	f := newFixture(t)
	r := route.Route{Name: route.Explore, Mine: true}
	m := f.screen(t, r)

	cmd := load(m)
	if !apperrors.Is(m.Err(), apperrors.ErrLoginRequired) {
		t.Fatalf("Err = %v, want ErrLoginRequired", m.Err())
	}
	if cmd == nil {
		t.Fatal("no redirect")
	}
	if got := cmd(); got != (route.RedirectToLoginMsg{Return: r}) {
		t.Errorf("msg = %#v", got)
	}
}

func TestMyServersAfterLogin(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Login(context.Background(), devserver.DemoEmail, devserver.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m := f.screen(t, route.Route{Name: route.Explore, Mine: true})

	load(m)
	if m.Err() != nil {
		t.Fatalf("Err = %v", m.Err())
	}
	if m.Title() != "My Servers" {
		t.Errorf("Title = %q", m.Title())
	}
	if !m.Query().ByUser || !m.Query().WithNumMembers {
		t.Errorf("query = %+v", m.Query())
	}
}

func TestCategoryFilter(t *testing.T) {
	f := newFixture(t)
	m := f.screen(t, route.Route{Name: route.Home})
	load(m)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("gaming")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	want := route.NavigateMsg{To: route.Route{Name: route.Explore, Category: "gaming"}}
	if got := cmd(); got != want {
		t.Errorf("msg = %#v, want %#v", got, want)
	}
}

func TestAccountKeyLogsOut(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Login(context.Background(), devserver.DemoEmail, devserver.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m := f.screen(t, route.Route{Name: route.Home})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	if f.session.LoggedIn() {
		t.Error("l did not log out")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	if got := cmd(); got != (route.RedirectToLoginMsg{Return: route.Route{Name: route.Home}}) {
		t.Errorf("msg = %#v", got)
	}
}
