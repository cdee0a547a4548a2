// Package auth owns the client session: the logged-in flag, the user id and
// the credentials used to call the chat backend. One Manager is created per
// profile and injected into every consumer; observers learn about changes
// through Subscribe.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
)

// Backend paths, relative to the profile base URL.
const (
	PathToken    = "/token/"
	PathRefresh  = "/token/refresh/"
	PathRegister = "/register/"
)

// Cookie names used by the backend in cookie mode.
const (
	CookieAccess  = "access_token"
	CookieRefresh = "refresh_token"
)

const userAgent = "chatvibe-console/1.0"

// Options configures a Manager.
type Options struct {
	ProfileName    string
	BaseURL        string
	CredentialMode string
	Store          interfaces.SessionStore // optional; nil keeps the session in memory
	Timeout        time.Duration
}

// Manager implements interfaces.SessionManager.
type Manager struct {
	profile  string
	baseURL  *url.URL
	mode     string
	store    interfaces.SessionStore
	tokens   TokenStore
	jar      *ClearableJar
	client   *http.Client
	logger   *logging.Logger
	mutex    sync.RWMutex
	session  interfaces.Session
	nextSub  int
	watchers map[int]func(interfaces.Session)
}

// tokenResponse is the body of /token/ and /token/refresh/.
type tokenResponse struct {
	Access  string        `json:"access"`
	Refresh string        `json:"refresh"`
	UserID  interfaces.ID `json:"user_id"`
}

// NewManager creates a session manager and restores any persisted session.
func NewManager(opts Options) (*Manager, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	mode := opts.CredentialMode
	if mode == "" {
		mode = interfaces.CredentialsCookie
	}
	if mode != interfaces.CredentialsBearer && mode != interfaces.CredentialsCookie {
		return nil, fmt.Errorf("unsupported credential mode: %s", mode)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	jar := NewClearableJar()
	m := &Manager{
		profile:  opts.ProfileName,
		baseURL:  base,
		mode:     mode,
		store:    opts.Store,
		tokens:   NewInMemoryTokenStore(),
		jar:      jar,
		client:   &http.Client{Timeout: timeout, Jar: jar},
		logger:   logging.GetSessionLogger().WithField("profile", opts.ProfileName),
		watchers: make(map[int]func(interfaces.Session)),
	}

	if err := m.restore(); err != nil {
		m.logger.Warn("Could not restore session", "error", err.Error())
	}

	return m, nil
}

// restore loads the persisted flag and, in bearer mode, the credentials.
func (m *Manager) restore() error {
	if m.store == nil {
		return nil
	}
	record, err := m.store.LoadSession(m.profile)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.session = interfaces.Session{LoggedIn: record.LoggedIn, UserID: record.UserID}
	if m.mode == interfaces.CredentialsBearer {
		if record.AccessToken != "" {
			_ = m.tokens.Store(keyAccess, record.AccessToken)
		}
		if record.RefreshToken != "" {
			_ = m.tokens.Store(keyRefresh, record.RefreshToken)
		}
	}
	m.logger.Debug("Session restored", "logged_in", record.LoggedIn)
	return nil
}

// persist writes the current session. Callers hold m.mutex.
func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	record := interfaces.SessionRecord{LoggedIn: m.session.LoggedIn, UserID: m.session.UserID}
	if m.mode == interfaces.CredentialsBearer && m.session.LoggedIn {
		record.AccessToken, _ = m.tokens.Retrieve(keyAccess)
		record.RefreshToken, _ = m.tokens.Retrieve(keyRefresh)
	}
	if err := m.store.SaveSession(m.profile, record); err != nil {
		m.logger.Warn("Failed to persist session", "error", err.Error())
	}
}

// Login exchanges credentials for tokens. On failure the session is unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.logger.LogOperation("login", func() error {
		resp, err := m.post(ctx, PathToken, map[string]string{
			"email":    strings.TrimSpace(email),
			"password": password,
		})
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("login: %w", apperrors.NewStatusError(resp.StatusCode, detailFrom(resp.body)))
		}

		var tokens tokenResponse
		if err := json.Unmarshal(resp.body, &tokens); err != nil {
			return fmt.Errorf("login: invalid token response: %w", err)
		}
		if m.mode == interfaces.CredentialsBearer && tokens.Access == "" {
			return fmt.Errorf("login: %w", apperrors.NewStatusError(http.StatusBadGateway, "token response without access credential"))
		}

		m.mutex.Lock()
		m.storeTokens(tokens)
		userID := tokens.UserID.String()
		if userID == "" {
			userID = UserIDFromToken(m.accessCredential())
		}
		m.session = interfaces.Session{LoggedIn: true, UserID: userID}
		m.persist()
		snapshot := m.session
		m.mutex.Unlock()

		m.logger.LogSessionChange("login", true, userID)
		m.notify(snapshot)
		return nil
	})
}

// Logout clears every credential and resets the session. It never touches
// the network and is safe to call repeatedly.
func (m *Manager) Logout() {
	m.mutex.Lock()
	_ = m.tokens.Clear()
	m.jar.Clear()
	m.session = interfaces.Session{}
	m.persist()
	snapshot := m.session
	m.mutex.Unlock()

	m.logger.LogSessionChange("logout", false, "")
	m.notify(snapshot)
}

// Refresh rotates the access credential. ErrRefreshInvalid means the session
// cannot be recovered and the caller should Logout.
func (m *Manager) Refresh(ctx context.Context) error {
	var payload interface{} = struct{}{}

	if m.mode == interfaces.CredentialsBearer {
		refresh, err := m.tokens.Retrieve(keyRefresh)
		if err != nil || refresh == "" {
			return fmt.Errorf("refresh: %w", apperrors.ErrRefreshInvalid)
		}
		payload = map[string]string{"refresh": refresh}
	} else if _, ok := m.jar.Cookie(m.baseURL, CookieRefresh); !ok {
		return fmt.Errorf("refresh: %w", apperrors.ErrRefreshInvalid)
	}

	resp, err := m.post(ctx, PathRefresh, payload)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		m.logger.Info("Refresh credential rejected", "status_code", resp.StatusCode)
		return fmt.Errorf("refresh: %w: %w", apperrors.ErrRefreshInvalid,
			apperrors.NewStatusError(resp.StatusCode, detailFrom(resp.body)))
	default:
		return fmt.Errorf("refresh: %w", apperrors.NewStatusError(resp.StatusCode, detailFrom(resp.body)))
	}

	var tokens tokenResponse
	if err := json.Unmarshal(resp.body, &tokens); err != nil {
		return fmt.Errorf("refresh: invalid token response: %w", err)
	}

	m.mutex.Lock()
	m.storeTokens(tokens)
	m.session.LoggedIn = true
	if m.session.UserID == "" {
		m.session.UserID = UserIDFromToken(m.accessCredential())
	}
	m.persist()
	snapshot := m.session
	m.mutex.Unlock()

	m.logger.LogSessionChange("refresh", true, snapshot.UserID)
	m.notify(snapshot)
	return nil
}

// Register creates an account. It does not log the user in.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}

	resp, err := m.post(ctx, PathRegister, map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register: %w", apperrors.NewStatusError(resp.StatusCode, detailFrom(resp.body)))
	}

	m.logger.Info("Account registered")
	return nil
}

// storeTokens saves credentials from a token response. In cookie mode the
// jar already holds them. Callers hold m.mutex.
func (m *Manager) storeTokens(tokens tokenResponse) {
	if m.mode != interfaces.CredentialsBearer {
		return
	}
	if tokens.Access != "" {
		_ = m.tokens.Store(keyAccess, tokens.Access)
	}
	if tokens.Refresh != "" {
		_ = m.tokens.Store(keyRefresh, tokens.Refresh)
	}
}

// accessCredential returns the current access token from whichever store
// holds it. Callers hold m.mutex.
func (m *Manager) accessCredential() string {
	if m.mode == interfaces.CredentialsBearer {
		token, _ := m.tokens.Retrieve(keyAccess)
		return token
	}
	token, _ := m.jar.Cookie(m.baseURL, CookieAccess)
	return token
}

// Session returns a snapshot of the current session
func (m *Manager) Session() interfaces.Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.session
}

// LoggedIn reports whether the session is authenticated
func (m *Manager) LoggedIn() bool {
	return m.Session().LoggedIn
}

// UserID returns the id of the logged-in user, or "" when unknown.
func (m *Manager) UserID() string {
	return m.Session().UserID
}

// CredentialMode returns bearer or cookie.
func (m *Manager) CredentialMode() string {
	return m.mode
}

// Subscribe registers fn to be called after every session change.
func (m *Manager) Subscribe(fn func(interfaces.Session)) func() {
	m.mutex.Lock()
	id := m.nextSub
	m.nextSub++
	m.watchers[id] = fn
	m.mutex.Unlock()

	return func() {
		m.mutex.Lock()
		delete(m.watchers, id)
		m.mutex.Unlock()
	}
}

func (m *Manager) notify(s interfaces.Session) {
	m.mutex.RLock()
	fns := make([]func(interfaces.Session), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mutex.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// AuthorizeHeader sets the bearer header in bearer mode. Cookie mode relies
// on the shared jar.
func (m *Manager) AuthorizeHeader(h http.Header) {
	if m.mode != interfaces.CredentialsBearer {
		return
	}
	if token, err := m.tokens.Retrieve(keyAccess); err == nil && token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// Jar returns the cookie jar shared with the API client and the socket dialer.
func (m *Manager) Jar() http.CookieJar {
	return m.jar
}

type rawResponse struct {
	StatusCode int
	body       []byte
}

// post sends a JSON body to a path under the base URL. Transport failures
// are wrapped in ErrNetwork.
func (m *Manager) post(ctx context.Context, path string, payload interface{}) (*rawResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := m.baseURL.String() + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", apperrors.ErrNetwork, err)
	}

	m.logger.LogHTTPRequest(http.MethodPost, path, resp.StatusCode, time.Since(start))
	return &rawResponse{StatusCode: resp.StatusCode, body: body}, nil
}

// detailFrom extracts a human readable message from an error body.
func detailFrom(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if detail, ok := payload["detail"].(string); ok {
		return detail
	}
	for key, value := range payload {
		if list, ok := value.([]interface{}); ok && len(list) > 0 {
			return fmt.Sprintf("%s: %v", key, list[0])
		}
	}
	return ""
}
