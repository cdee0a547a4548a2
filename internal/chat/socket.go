package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Conn is one open chat socket.
type Conn interface {
	// Read blocks until the next pushed message or until the socket closes.
	Read() (interfaces.Message, error)
	// Send writes one chat frame.
	Send(text string) error
	// Close tears the socket down.
	Close() error
}

// Dialer opens chat sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// CloseError carries the close code of a failed dial or a closed socket.
type CloseError struct {
	Code int
	Err  error
}

func (e *CloseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("socket closed (code %d)", e.Code)
	}
	return fmt.Sprintf("socket closed (code %d): %v", e.Code, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// CloseCode extracts the close code from err. Errors that carry none are
// reported as abnormal closures.
func CloseCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var wsErr *websocket.CloseError
	if errors.As(err, &wsErr) {
		return wsErr.Code
	}
	return CloseAbnormal
}

// SocketURL joins the socket base with the server and channel ids.
func SocketURL(base, serverID, channelID string) string {
	return fmt.Sprintf("%s/%s/%s/", strings.TrimRight(base, "/"), serverID, channelID)
}

type outboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pushFrame struct {
	NewMessage *interfaces.Message `json:"new_message"`
}

// WebsocketDialer dials with gorilla/websocket. Bearer credentials go in the
// handshake header and cookies come from the session's jar.
type WebsocketDialer struct {
	Session          interfaces.SessionManager
	HandshakeTimeout time.Duration
}

// NewWebsocketDialer creates a dialer bound to a session.
func NewWebsocketDialer(session interfaces.SessionManager) *WebsocketDialer {
	return &WebsocketDialer{Session: session, HandshakeTimeout: handshakeTimeout}
}

// Dial opens a socket. Handshake rejections with 401/403 come back as a
// CloseError with CloseAuthError; other failures use CloseAbnormal.
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	header := http.Header{}
	if d.Session != nil {
		dialer.Jar = d.Session.Jar()
		d.Session.AuthorizeHeader(header)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if apperrors.IsAuthStatus(resp.StatusCode) {
				return nil, &CloseError{Code: CloseAuthError, Err: apperrors.NewStatusError(resp.StatusCode, "socket handshake rejected")}
			}
		}
		return nil, &CloseError{Code: CloseAbnormal, Err: fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)}
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) Read() (interfaces.Message, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return interfaces.Message{}, err
		}
		var frame pushFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.NewMessage == nil {
			continue
		}
		return *frame.NewMessage, nil
	}
}

func (c *wsConn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outboundFrame{Type: "message", Message: text})
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
