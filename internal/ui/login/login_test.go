package login

import (
	"context"
	"net/http"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/route"
)

type stubSession struct {
	mu          sync.Mutex
	loginErr    error
	registerErr error
	logins      int
	registers   int
}

func (s *stubSession) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	return s.loginErr
}

func (s *stubSession) Register(ctx context.Context, email, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers++
	return s.registerErr
}

func (s *stubSession) Logout() {}
func (s *stubSession) Refresh(ctx context.Context) error { return nil }
func (s *stubSession) Session() interfaces.Session { return interfaces.Session{} }
func (s *stubSession) LoggedIn() bool { return false }
func (s *stubSession) Subscribe(fn func(interfaces.Session)) func() { return func() {} }
func (s *stubSession) AuthorizeHeader(h http.Header) {}
func (s *stubSession) Jar() http.CookieJar { return nil }

func typeInto(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// fill types the credentials and moves focus to the submit button.
func fill(m *Model, email, password string) {
	m.setFocus(focusEmail)
	typeInto(m, email)
	m.setFocus(focusPassword)
	typeInto(m, password)
	m.setFocus(focusSubmit)
}

func submit(t *testing.T, m *Model) tea.Msg {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestClientValidation(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		wantField string
	}{
		{"empty email", "", "password123", "email"},
		{"malformed email", "not-an-email", "password123", "email"},
		{"empty password", "ada@example.com", "", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &stubSession{}
			m := New(session, ModeLogin, route.Route{})
			fill(m, tt.email, tt.password)

			if msg := submit(t, m); msg != nil {
				t.Fatalf("invalid form was sent: %#v", msg)
			}
			if m.Errors().Field(tt.wantField) == "" {
				t.Errorf("no error on %s: %v", tt.wantField, m.Errors())
			}
			if session.logins != 0 {
				t.Error("login reached the session")
			}
		})
	}
}

func TestLoginSuccessReturns(t *testing.T) {
	target := route.Route{Name: route.Server, ServerID: "s1"}
	m := New(&stubSession{}, ModeLogin, target)
	fill(m, "ada@example.com", "password123")

	result := submit(t, m)
	_, cmd := m.Update(result)
	if cmd == nil {
		t.Fatal("no navigation after login")
	}
	if got := cmd(); got != (route.NavigateMsg{To: target}) {
		t.Errorf("msg = %#v, want navigate to %v", got, target)
	}
}

func TestLoginRejected(t *testing.T) {
	session := &stubSession{loginErr: apperrors.NewStatusError(http.StatusUnauthorized, "bad credentials")}
	m := New(session, ModeLogin, route.Route{})
	fill(m, "ada@example.com", "wrong-password")

	m.Update(submit(t, m))

	errs := m.Errors()
	if errs.Field("email") != "Invalid email or password" || errs.Field("password") != "Invalid email or password" {
		t.Errorf("errors = %v", errs)
	}
}

func TestRegisterConflict(t *testing.T) {
	session := &stubSession{registerErr: apperrors.NewStatusError(http.StatusConflict, "exists")}
	m := New(session, ModeLogin, route.Route{})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.Mode() != ModeRegister {
		t.Fatal("ctrl+t did not switch to register")
	}
	fill(m, "ada@example.com", "password123")

	m.Update(submit(t, m))

	if got := m.Errors().Field("email"); got != "Invalid email" {
		t.Errorf("email error = %q, want Invalid email", got)
	}
	if session.logins != 0 {
		t.Error("failed registration logged in")
	}
}

func TestRegisterThenLogin(t *testing.T) {
	session := &stubSession{}
	m := New(session, ModeRegister, route.Route{})
	fill(m, "new@example.com", "password123")

	_, cmd := m.Update(submit(t, m))
	if cmd == nil {
		t.Fatal("no login after registration")
	}
	_, cmd = m.Update(cmd())
	if got := cmd(); got != (route.NavigateMsg{To: route.Route{Name: route.Home}}) {
		t.Errorf("msg = %#v, want navigate home", got)
	}
	if session.registers != 1 || session.logins != 1 {
		t.Errorf("registers = %d, logins = %d", session.registers, session.logins)
	}
}

func TestReturnToDefaultsHome(t *testing.T) {
	for _, ret := range []route.Route{{}, {Name: route.Login}, {Name: route.Register}} {
		m := New(&stubSession{}, ModeLogin, ret)
		if m.ReturnTo() != (route.Route{Name: route.Home}) {
			t.Errorf("ReturnTo(%v) = %v, want home", ret, m.ReturnTo())
		}
	}
}
