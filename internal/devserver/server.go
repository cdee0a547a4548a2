// Package devserver is an in-memory chat backend speaking the same REST and
// websocket contract as production. It backs the integration tests and lets
// the terminal client run without external services.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Cookie names set in cookie mode.
const (
	cookieAccess  = "access_token"
	cookieRefresh = "refresh_token"
)

// Options configures a Server.
type Options struct {
	CredentialMode string // bearer or cookie
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Secret         []byte
	Logger         *logging.Logger
}

// Stats counts interesting backend events for tests.
type Stats struct {
	Logins    int
	Refreshes int
	Rejected  int
	Requests  int
}

// Server is the development backend.
type Server struct {
	mode   string
	store  *store
	tokens *tokenIssuer
	hub    *hub
	logger *logging.Logger
	router chi.Router

	statsMu sync.Mutex
	stats   Stats
}

// New creates a backend with seeded data.
func New(opts Options) *Server {
	if opts.CredentialMode == "" {
		opts.CredentialMode = interfaces.CredentialsBearer
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 24 * time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDevServerLogger()
	}

	s := &Server{
		mode:   opts.CredentialMode,
		store:  newStore(),
		tokens: newTokenIssuer(opts.Secret, opts.AccessTTL, opts.RefreshTTL),
		logger: opts.Logger,
	}
	s.hub = newHub(s.logger)
	s.router = s.routes()
	return s
}

// routes builds the chi router.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(s.logger.Slog()))
	r.Use(Recovery(s.logger.Slog()))
	r.Use(s.countRequests)
	r.Use(s.Authenticate)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health/", s.handleHealth)
		r.Post("/token/", s.handleLogin)
		r.Post("/token/refresh/", s.handleRefresh)
		r.Post("/register/", s.handleRegister)
		r.Get("/servers", s.handleListServers)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireUser)
			r.Get("/messages", s.handleListMessages)
			r.Route("/servers/membership/{serverID}/membership", func(r chi.Router) {
				r.Post("/", s.handleJoin)
				r.Delete("/remove_member", s.handleLeave)
				r.Get("/is_member", s.handleIsMember)
			})
		})
	})

	r.Get("/ws/{serverID}/{channelID}/", s.handleSocket)

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CredentialMode returns bearer or cookie.
func (s *Server) CredentialMode() string {
	return s.mode
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.tokens.bump(tokenAccess)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.tokens.bump(tokenRefresh)
}

// CloseChannel closes every socket on a channel with the given close code.
func (s *Server) CloseChannel(channelID string, code int) int {
	return s.hub.closeChannel(channelID, code)
}

// Broadcast stores a message from sender and pushes it to the channel.
func (s *Server) Broadcast(channelID, sender, content string) interfaces.Message {
	msg := s.store.postMessage(channelID, sender, content)
	s.hub.broadcast(channelID, msg)
	return msg
}

// Connections returns the number of live sockets on a channel.
func (s *Server) Connections(channelID string) int {
	return s.hub.count(channelID)
}

// Stats returns a snapshot of the event counters.
func (s *Server) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Servers lists every seeded server.
func (s *Server) Servers() []interfaces.Server {
	return s.store.listServers(serverFilter{withNumMembers: true})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.statsMu.Lock()
		s.stats.Requests++
		s.statsMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countLogin() {
	s.statsMu.Lock()
	s.stats.Logins++
	s.statsMu.Unlock()
}

func (s *Server) countRefresh() {
	s.statsMu.Lock()
	s.stats.Refreshes++
	s.statsMu.Unlock()
}

func (s *Server) countRejected() {
	s.statsMu.Lock()
	s.stats.Rejected++
	s.statsMu.Unlock()
}
