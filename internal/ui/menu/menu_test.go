package menu

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/route"
)

type stubRegistry struct {
	backends []interfaces.RegisteredBackend
	health   map[string]*interfaces.BackendHealth
	checks   int
}

func (r *stubRegistry) GetRegisteredBackends() ([]interfaces.RegisteredBackend, error) {
	return r.backends, nil
}

func (r *stubRegistry) GetBackendHealth(name string) (*interfaces.BackendHealth, error) {
	return r.health[name], nil
}

func (r *stubRegistry) CheckBackendHealth(ctx context.Context, name string) (*interfaces.BackendHealth, error) {
	r.checks++
	return r.health[name], nil
}

func (r *stubRegistry) StartHealthMonitoring(ctx context.Context, interval time.Duration) error {
	return nil
}

func (r *stubRegistry) StopHealthMonitoring() error { return nil }

func newTestMenu() (*MenuModel, *stubRegistry) {
	reg := &stubRegistry{
		backends: []interfaces.RegisteredBackend{
			{Name: "Local development", Profile: "local"},
			{Name: "Staging", Profile: "staging"},
		},
		health: map[string]*interfaces.BackendHealth{
			"Local development": {Name: "Local development", Status: "ready", ResponseTime: 12 * time.Millisecond},
			"Staging":           {Name: "Staging", Status: "offline"},
		},
	}
	m := NewMenuModel(reg)
	m.Update(m.reloadBackends()())
	return m, reg
}

func TestQuickProfile(t *testing.T) {
	tests := []struct {
		host       string
		wantBase   string
		wantSocket string
		wantErr    bool
	}{
		{host: "localhost:8000", wantBase: "http://localhost:8000/api", wantSocket: "ws://localhost:8000/ws"},
		{host: "https://chat.example.com", wantBase: "https://chat.example.com/api", wantSocket: "wss://chat.example.com/ws"},
		{host: "  http://10.0.0.2:9000/ignored ", wantBase: "http://10.0.0.2:9000/api", wantSocket: "ws://10.0.0.2:9000/ws"},
		{host: "", wantErr: true},
		{host: "ftp://files.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			p, err := QuickProfile(tt.host)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("QuickProfile(%q) succeeded", tt.host)
				}
				return
			}
			if err != nil {
				t.Fatalf("QuickProfile(%q): %v", tt.host, err)
			}
			if p.BaseURL != tt.wantBase || p.SocketURL != tt.wantSocket {
				t.Errorf("urls = %s, %s", p.BaseURL, p.SocketURL)
			}
			if p.Name != QuickProfileName || p.CredentialMode != interfaces.CredentialsCookie {
				t.Errorf("profile = %+v", p)
			}
		})
	}
}

func TestNumberKeySelectsBackend(t *testing.T) {
	m, _ := newTestMenu()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	if cmd == nil {
		t.Fatal("no selection command")
	}
	msg, ok := cmd().(route.BackendSelectedMsg)
	if !ok {
		t.Fatalf("msg = %T, want BackendSelectedMsg", cmd())
	}
	if msg.Backend.Profile != "staging" || msg.Profile != nil {
		t.Errorf("selected %+v", msg)
	}
}

func TestOutOfRangeNumberIgnored(t *testing.T) {
	m, _ := newTestMenu()
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("9")}); cmd != nil {
		t.Errorf("out of range key produced %#v", cmd())
	}
}

func TestQuickConnect(t *testing.T) {
	m, _ := newTestMenu()
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("localhost:9000")})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("no quick connect command")
	}
	msg := cmd().(route.BackendSelectedMsg)
	if msg.Profile == nil || msg.Profile.BaseURL != "http://localhost:9000/api" {
		t.Errorf("profile = %+v", msg.Profile)
	}
}

func TestViewShowsHealth(t *testing.T) {
	m, reg := newTestMenu()
	m.Update(m.checkAll()())
	m.Update(m.updateHealth()())

	if reg.checks != 2 {
		t.Errorf("checks = %d, want 2", reg.checks)
	}
	view := m.View()
	for _, want := range []string{"ChatVibe Console", "Local development", "Ready", "12ms", "Staging", "Offline", "Quick Connect"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
