package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// inboundFrame is what clients send.
type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// pushFrame is what the backend broadcasts.
type pushFrame struct {
	Type       string             `json:"type"`
	NewMessage interfaces.Message `json:"new_message"`
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// hub groups sockets by channel id.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]bool
	logger  *logging.Logger
}

func newHub(logger *logging.Logger) *hub {
	return &hub{clients: make(map[string]map[*client]bool), logger: logger}
}

func (h *hub) add(channelID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channelID] == nil {
		h.clients[channelID] = make(map[*client]bool)
	}
	h.clients[channelID][c] = true
}

func (h *hub) remove(channelID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[channelID], c)
	if len(h.clients[channelID]) == 0 {
		delete(h.clients, channelID)
	}
}

func (h *hub) snapshot(channelID string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients[channelID]))
	for c := range h.clients[channelID] {
		out = append(out, c)
	}
	return out
}

func (h *hub) count(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[channelID])
}

func (h *hub) broadcast(channelID string, msg interfaces.Message) {
	frame := pushFrame{Type: "chat.message", NewMessage: msg}
	for _, c := range h.snapshot(channelID) {
		if err := c.writeJSON(frame); err != nil {
			h.logger.Debug("broadcast write failed", "channel_id", channelID, "error", err.Error())
		}
	}
}

func (h *hub) closeChannel(channelID string, code int) int {
	clients := h.snapshot(channelID)
	for _, c := range clients {
		c.closeWith(code, "closed by server")
		h.remove(channelID, c)
	}
	return len(clients)
}

// handleSocket upgrades an authenticated request and relays chat frames.
// Messages from non-members are ignored.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(r)
	if !ok {
		s.countRejected()
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	serverID, err := uuid.Parse(chi.URLParam(r, "serverID"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	channelID := chi.URLParam(r, "channelID")
	if _, ok := s.store.channelServer(serverID, channelID); !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	u, ok := s.store.userByID(userID)
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	member := s.store.isMember(serverID, userID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", "error", err.Error())
		return
	}

	c := &client{conn: conn}
	s.hub.add(channelID, c)
	s.logger.Info("socket connected", "channel_id", channelID, "user_id", userID, "member", member)

	go func() {
		defer func() {
			s.hub.remove(channelID, c)
			_ = conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil || frame.Message == "" {
				continue
			}
			if !member {
				continue
			}
			msg := s.store.postMessage(channelID, u.Name, frame.Message)
			s.hub.broadcast(channelID, msg)
		}
	}()
}
