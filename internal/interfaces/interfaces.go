// Package interfaces defines the core types and interfaces shared across the
// chatvibe console so that components can be wired by dependency injection
// and replaced in tests.
package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Credential transport modes. The backend accepts the access credential
// either as a bearer header or as an HTTP-only cookie.
const (
	CredentialsBearer = "bearer"
	CredentialsCookie = "cookie"
)

// Profile describes how to reach one chat backend.
type Profile struct {
	Name           string            `yaml:"name"`
	BaseURL        string            `yaml:"base_url"`
	SocketURL      string            `yaml:"socket_url"`
	CredentialMode string            `yaml:"credentials"`
	Theme          string            `yaml:"theme"`
	Metadata       map[string]string `yaml:"metadata,omitempty"`
}

// Theme represents visual styling configuration
type Theme struct {
	Name        string `yaml:"name"`
	Accent      string `yaml:"accent"`
	Success     string `yaml:"success"`
	Error       string `yaml:"error"`
	Warning     string `yaml:"warning"`
	Info        string `yaml:"info"`
	CodeStyle   string `yaml:"code_style"`
	SenderColor string `yaml:"sender_color"`
}

// RegisteredBackend is a backend listed in the console menu.
type RegisteredBackend struct {
	Name    string `yaml:"name"`
	Profile string `yaml:"profile"`
	Status  string `yaml:"-"` // "ready", "offline", "error", "checking"
}

// Session is the client-side record of whether the user is authenticated.
type Session struct {
	LoggedIn bool
	UserID   string
}

// SessionRecord is the persisted form of a session for one profile.
// Tokens are only present in bearer mode and are stored encrypted.
type SessionRecord struct {
	LoggedIn     bool   `yaml:"logged_in"`
	UserID       string `yaml:"user_id,omitempty"`
	AccessToken  string `yaml:"access_token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
}

// ID is an identifier that the backend may send as a JSON string or number.
type ID string

// UnmarshalJSON accepts both quoted and bare identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// IDFromAny normalises a decoded JSON value (string or float64) to an ID.
func IDFromAny(v interface{}) ID {
	switch val := v.(type) {
	case string:
		return ID(val)
	case float64:
		return ID(strconv.FormatFloat(val, 'f', -1, 64))
	case json.Number:
		return ID(val.String())
	case nil:
		return ""
	default:
		return ID(fmt.Sprint(val))
	}
}

// Message is one chat message. Immutable once received.
type Message struct {
	ID      ID        `json:"id"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}

// Channel is a named sub-conversation within a server.
type Channel struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Topic  string `json:"topic"`
	Server ID     `json:"server"`
	Owner  ID     `json:"owner"`
}

// Server groups channels under a category.
type Server struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	Category    ID        `json:"category"`
	Owner       ID        `json:"owner"`
	Channels    []Channel `json:"channel_server"`
	NumMembers  *int      `json:"num_members,omitempty"`
}

// FindChannel returns the channel with the given id, if the server has it.
func (s *Server) FindChannel(id string) (*Channel, bool) {
	for i := range s.Channels {
		if s.Channels[i].ID.String() == id {
			return &s.Channels[i], true
		}
	}
	return nil, false
}

// ServerQuery maps to the query parameters accepted by GET /servers.
type ServerQuery struct {
	Category       string
	Qty            int
	ByUser         bool
	WithNumMembers bool
	ByServerID     string
}

// ConfigManager handles profile, theme and backend registry storage.
type ConfigManager interface {
	// LoadProfile retrieves a profile by name from the configuration file
	LoadProfile(name string) (*Profile, error)

	// SaveProfile persists a profile to the configuration file
	SaveProfile(profile *Profile) error

	// ListProfiles returns all available profile names
	ListProfiles() ([]string, error)

	// LoadTheme retrieves theme configuration by name
	LoadTheme(name string) (*Theme, error)

	// GetRegisteredBackends returns the backends shown in the menu
	GetRegisteredBackends() ([]RegisteredBackend, error)

	// RegisterBackend adds or replaces a backend entry
	RegisterBackend(backend RegisteredBackend) error

	// ValidateProfile ensures profile has all required fields
	ValidateProfile(profile *Profile) error

	// GetConfigPath returns the path to the configuration file
	GetConfigPath() string
}

// SessionStore persists the session flag and credentials for a profile.
type SessionStore interface {
	LoadSession(profile string) (*SessionRecord, error)
	SaveSession(profile string, record SessionRecord) error
	ClearSession(profile string) error
}

// SessionManager owns the client session and its credentials.
type SessionManager interface {
	// Login exchanges credentials for tokens
	Login(ctx context.Context, email, password string) error

	// Logout clears the session synchronously; it cannot fail
	Logout()

	// Refresh rotates the access credential using the refresh credential
	Refresh(ctx context.Context) error

	// Register creates a new account
	Register(ctx context.Context, email, password string) error

	// Session returns a snapshot of the current session
	Session() Session

	// LoggedIn reports whether the session is authenticated
	LoggedIn() bool

	// Subscribe registers an observer called after every session change
	Subscribe(fn func(Session)) (unsubscribe func())

	// AuthorizeHeader attaches the access credential to outgoing headers
	AuthorizeHeader(h http.Header)

	// Jar returns the cookie jar shared by HTTP and socket transports
	Jar() http.CookieJar
}

// ChatAPI is the subset of the REST API used by the screens and the chat channel.
type ChatAPI interface {
	ListServers(ctx context.Context, query ServerQuery) ([]Server, error)
	GetServer(ctx context.Context, serverID string) (*Server, error)
	ListMessages(ctx context.Context, channelID string) ([]Message, error)
	JoinServer(ctx context.Context, serverID string) error
	LeaveServer(ctx context.Context, serverID string) error
	IsMember(ctx context.Context, serverID string) (bool, error)
}

// BackendHealth represents the health status of a registered backend
type BackendHealth struct {
	Name         string        `json:"name"`
	Status       string        `json:"status"` // "ready", "offline", "error", "checking"
	LastChecked  time.Time     `json:"lastChecked"`
	ResponseTime time.Duration `json:"responseTime,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// RegistryManager handles backend registration and health monitoring
type RegistryManager interface {
	// GetRegisteredBackends returns all registered backends with current status
	GetRegisteredBackends() ([]RegisteredBackend, error)

	// GetBackendHealth returns current health information for a backend
	GetBackendHealth(name string) (*BackendHealth, error)

	// CheckBackendHealth performs an immediate health check for a backend
	CheckBackendHealth(ctx context.Context, name string) (*BackendHealth, error)

	// StartHealthMonitoring begins periodic health checks for all backends
	StartHealthMonitoring(ctx context.Context, interval time.Duration) error

	// StopHealthMonitoring stops all health monitoring
	StopHealthMonitoring() error
}

// ContentRenderer turns domain objects into terminal text.
type ContentRenderer interface {
	RenderMessage(msg Message, width int) string
	RenderMessages(msgs []Message, width int) string
	RenderServerCard(server Server, width int, selected bool) string
	SetTheme(theme *Theme) error
}
