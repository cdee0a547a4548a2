package chat

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
)

// State is the lifecycle position of a channel connection.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Deps are the collaborators of a Channel.
type Deps struct {
	Dialer    Dialer
	API       interfaces.ChatAPI
	Session   interfaces.SessionManager
	SocketURL string

	// ReconnectDelay overrides the default wait between reconnects.
	ReconnectDelay time.Duration
	Logger         *logging.Logger
}

// tag identifies the instance and dial a message belongs to.
type tag struct {
	instance string
	gen      int
}

// Bubble Tea messages produced by channel commands. The owning model passes
// every message to Channel.Update.
type (
	OpenedMsg struct {
		tag  tag
		conn Conn
	}
	ClosedMsg struct {
		tag  tag
		Code int
		Err  error
	}
	PushMsg struct {
		tag     tag
		Message interfaces.Message
	}
	HistoryMsg struct {
		tag      tag
		Messages []interfaces.Message
		Err      error
	}
	SentMsg struct {
		tag tag
		Err error
	}
	authCheckedMsg struct {
		tag  tag
		code int
		err  error
	}
	reconnectMsg struct {
		tag tag
	}
)

// Channel is the connection to one chat channel. It is mutated only from
// Update and the command constructors, which Bubble Tea calls on its event
// goroutine; commands themselves only produce messages.
type Channel struct {
	id        string
	serverID  string
	channelID string
	deps      Deps
	logger    *logging.Logger

	state    State
	attempts int
	gen      int
	conn     Conn
	messages []interfaces.Message
	lastCode int
	lastErr  error
}

// NewChannel creates an idle connection for one server channel.
func NewChannel(serverID, channelID string, deps Deps) *Channel {
	if deps.ReconnectDelay <= 0 {
		deps.ReconnectDelay = ReconnectDelay
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetChatLogger()
	}
	id := uuid.NewString()
	return &Channel{
		id:        id,
		serverID:  serverID,
		channelID: channelID,
		deps:      deps,
		logger:    logger.WithFields(map[string]interface{}{"instance": id, "channel_id": channelID}),
	}
}

// ID is the instance id. Every dial of this instance carries it.
func (c *Channel) ID() string { return c.id }

// ServerID is the server the channel belongs to.
func (c *Channel) ServerID() string { return c.serverID }

// ChannelID is the channel this connection is attached to.
func (c *Channel) ChannelID() string { return c.channelID }

// State returns the lifecycle position.
func (c *Channel) State() State { return c.state }

// Attempts returns the reconnect counter. It never exceeds MaxReconnectAttempts.
func (c *Channel) Attempts() int { return c.attempts }

// LastCloseCode is the code of the most recent close, or 0.
func (c *Channel) LastCloseCode() int { return c.lastCode }

// Err is the last close, history or send failure, or nil.
func (c *Channel) Err() error { return c.lastErr }

// Messages returns a copy of the buffer in arrival order.
func (c *Channel) Messages() []interfaces.Message {
	return append([]interfaces.Message(nil), c.messages...)
}

// URL is the socket address for this channel.
func (c *Channel) URL() string { return SocketURL(c.deps.SocketURL, c.serverID, c.channelID) }

func (c *Channel) current() tag { return tag{instance: c.id, gen: c.gen} }

func (c *Channel) setState(to State) {
	if c.state == to {
		return
	}
	c.logger.LogSocketEvent(c.channelID, c.state.String(), to.String(), c.attempts, c.lastCode)
	c.state = to
}

// Connect dials the socket. It is a no-op unless the channel is idle or
// waiting to reconnect.
func (c *Channel) Connect() tea.Cmd {
	if c.state != Idle && c.state != Reconnecting {
		return nil
	}
	c.gen++
	c.setState(Connecting)
	return c.dial(c.current())
}

// Reconnect discards the current socket and dials again with a fresh counter.
func (c *Channel) Reconnect() tea.Cmd {
	c.Close()
	c.attempts = 0
	return c.Connect()
}

// Close drops the live socket without reconnecting. Messages already in
// flight for it are ignored.
func (c *Channel) Close() {
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setState(Idle)
}

// Send writes text to the open socket.
func (c *Channel) Send(text string) tea.Cmd {
	t := c.current()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.state != Open || c.conn == nil {
		return func() tea.Msg { return SentMsg{tag: t, Err: apperrors.ErrNotConnected} }
	}
	conn := c.conn
	return func() tea.Msg {
		return SentMsg{tag: t, Err: conn.Send(text)}
	}
}

// Owns reports whether msg was produced by this channel's current dial.
func (c *Channel) Owns(msg tea.Msg) bool {
	var t tag
	switch m := msg.(type) {
	case OpenedMsg:
		t = m.tag
	case ClosedMsg:
		t = m.tag
	case PushMsg:
		t = m.tag
	case HistoryMsg:
		t = m.tag
	case SentMsg:
		t = m.tag
	case authCheckedMsg:
		t = m.tag
	case reconnectMsg:
		t = m.tag
	default:
		return false
	}
	return t == c.current()
}

// Update advances the state machine. Messages from other instances or from
// superseded dials are ignored.
func (c *Channel) Update(msg tea.Msg) tea.Cmd {
	if !c.Owns(msg) {
		if opened, ok := msg.(OpenedMsg); ok && opened.tag.instance == c.id {
			_ = opened.conn.Close()
		}
		return nil
	}

	switch msg := msg.(type) {
	case OpenedMsg:
		c.conn = msg.conn
		c.attempts = 0
		c.lastErr = nil
		c.setState(Open)
		return tea.Batch(c.fetchHistory(c.current()), c.read(c.current(), msg.conn))

	case HistoryMsg:
		if msg.Err != nil {
			c.logger.Warn("History fetch failed", "error", msg.Err.Error())
			c.lastErr = msg.Err
			return nil
		}
		c.messages = append([]interfaces.Message(nil), msg.Messages...)
		return nil

	case PushMsg:
		c.messages = append(c.messages, msg.Message)
		return c.read(c.current(), c.conn)

	case SentMsg:
		if msg.Err != nil {
			c.lastErr = msg.Err
		}
		return nil

	case ClosedMsg:
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.lastCode = msg.Code
		c.lastErr = msg.Err
		c.setState(Closed)
		if msg.Code == CloseAuthError {
			return c.refresh(c.current(), msg.Code)
		}
		return c.applyPolicy(msg.Code)

	case authCheckedMsg:
		if apperrors.Is(msg.err, apperrors.ErrRefreshInvalid) {
			c.logger.Info("Socket credential cannot be refreshed, logging out")
			c.deps.Session.Logout()
		} else if msg.err != nil {
			c.logger.Warn("Socket credential refresh failed", "error", msg.err.Error())
		}
		return c.applyPolicy(msg.code)

	case reconnectMsg:
		if c.state != Reconnecting {
			return nil
		}
		return c.Connect()
	}
	return nil
}

// Discard closes the socket carried by an OpenedMsg that no live channel
// claims, such as a dial that finished after its screen was closed.
func Discard(msg tea.Msg) {
	if opened, ok := msg.(OpenedMsg); ok && opened.conn != nil {
		_ = opened.conn.Close()
	}
}

func (c *Channel) applyPolicy(code int) tea.Cmd {
	decision := ReconnectPolicy(code, c.attempts)
	c.attempts = decision.NextAttempt
	if !decision.Reconnect {
		c.logger.Info("Reconnect attempts exhausted", "close_code", code)
		c.setState(Idle)
		return nil
	}
	c.setState(Reconnecting)
	t := c.current()
	return tea.Tick(c.deps.ReconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{tag: t} })
}

func (c *Channel) dial(t tag) tea.Cmd {
	dialer := c.deps.Dialer
	url := c.URL()
	return func() tea.Msg {
		conn, err := dialer.Dial(context.Background(), url)
		if err != nil {
			return ClosedMsg{tag: t, Code: CloseCode(err), Err: err}
		}
		return OpenedMsg{tag: t, conn: conn}
	}
}

func (c *Channel) read(t tag, conn Conn) tea.Cmd {
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		msg, err := conn.Read()
		if err != nil {
			return ClosedMsg{tag: t, Code: CloseCode(err), Err: err}
		}
		return PushMsg{tag: t, Message: msg}
	}
}

func (c *Channel) fetchHistory(t tag) tea.Cmd {
	api := c.deps.API
	channelID := c.channelID
	return func() tea.Msg {
		msgs, err := api.ListMessages(context.Background(), channelID)
		return HistoryMsg{tag: t, Messages: msgs, Err: err}
	}
}

func (c *Channel) refresh(t tag, code int) tea.Cmd {
	session := c.deps.Session
	return func() tea.Msg {
		return authCheckedMsg{tag: t, code: code, err: session.Refresh(context.Background())}
	}
}
