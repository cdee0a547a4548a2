package devserver

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin returns {access, refresh} in bearer mode. In cookie mode the
// tokens travel only as HTTP-only cookies and the body is empty.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"This field is required."}})
		return
	}

	u, ok := s.store.authenticate(req.Email, req.Password)
	if !ok {
		s.countRejected()
		writeError(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.tokens.mint(u.ID, tokenAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.tokens.mint(u.ID, tokenRefresh)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.countLogin()

	if s.mode == interfaces.CredentialsCookie {
		s.setTokenCookie(w, cookieAccess, access)
		s.setTokenCookie(w, cookieRefresh, refresh)
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := ""
	if s.mode == interfaces.CredentialsCookie {
		if cookie, err := r.Cookie(cookieRefresh); err == nil {
			refresh = cookie.Value
		}
	} else {
		var req refreshRequest
		_ = decodeJSON(r, &req)
		refresh = req.Refresh
	}

	if refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	userID, err := s.tokens.verify(refresh, tokenRefresh)
	if err != nil {
		s.countRejected()
		writeError(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}

	access, err := s.tokens.mint(userID, tokenAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.countRefresh()

	if s.mode == interfaces.CredentialsCookie {
		s.setTokenCookie(w, cookieAccess, access)
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (s *Server) setTokenCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"Enter a valid email address."}})
		return
	}
	if forbiddenEmails[email] {
		writeJSON(w, http.StatusConflict, map[string][]string{"email": {"This email is not allowed."}})
		return
	}

	u, ok := s.store.register(email, req.Password)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string][]string{"email": {"user with this email already exists."}})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": u.ID, "email": u.Email})
}

// handleListServers implements the /servers filters. Filtering by user or
// by server id requires authentication.
func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := serverFilter{
		category:       q.Get("category"),
		withNumMembers: q.Get("with_num_members") == "true",
	}
	byUser := q.Get("by_user") == "true"
	byServerID := q.Get("by_serverId")

	userID, authenticated := userFrom(r)
	if (byUser || byServerID != "") && !authenticated {
		s.countRejected()
		writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	if byUser {
		filter.byUser = userID
	}

	if byServerID != "" {
		id, err := uuid.Parse(byServerID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, []string{"The id: " + byServerID + " is not in the right UUID format."})
			return
		}
		if !s.store.serverExists(id) {
			writeJSON(w, http.StatusBadRequest, []string{"Server with id: " + byServerID + " does not exists."})
			return
		}
		filter.byServerID = &id
	}

	if qty := q.Get("qty"); qty != "" {
		n, err := strconv.Atoi(qty)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, []string{"The qty: " + qty + " has to be a positive integer."})
			return
		}
		filter.qty = n
	}

	writeJSON(w, http.StatusOK, s.store.listServers(filter))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("by_channelId")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "by_channelId is required")
		return
	}
	writeJSON(w, http.StatusOK, s.store.channelMessages(channelID))
}

func (s *Server) serverParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "serverID"))
	if err != nil || !s.store.serverExists(id) {
		writeError(w, http.StatusNotFound, "Not found.")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serverParam(w, r)
	if !ok {
		return
	}
	userID, _ := userFrom(r)

	switch s.store.join(id, userID) {
	case membershipAlreadyMember:
		writeJSON(w, http.StatusBadRequest, []string{"User is already a member of the server."})
	case membershipNoServer:
		writeError(w, http.StatusNotFound, "Not found.")
	default:
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serverParam(w, r)
	if !ok {
		return
	}
	userID, _ := userFrom(r)

	switch s.store.leave(id, userID) {
	case membershipOwner:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Owners cannot be removed as a member"})
	case membershipNotMember:
		writeError(w, http.StatusNotFound, "User is not a member of the server.")
	case membershipNoServer:
		writeError(w, http.StatusNotFound, "Not found.")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleIsMember(w http.ResponseWriter, r *http.Request) {
	id, ok := s.serverParam(w, r)
	if !ok {
		return
	}
	userID, _ := userFrom(r)
	writeJSON(w, http.StatusOK, map[string]bool{"is_member": s.store.isMember(id, userID)})
}
