package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
)

// driver plays the Bubble Tea runtime: it runs commands on goroutines and
// feeds their messages back through Channel.Update on the test goroutine.
type driver struct {
	t    *testing.T
	ch   *Channel
	msgs chan tea.Msg
}

func newDriver(t *testing.T, ch *Channel) *driver {
	t.Helper()
	return &driver{t: t, ch: ch, msgs: make(chan tea.Msg, 64)}
}

func (d *driver) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				d.run(c)
			}
			return
		}
		if msg != nil {
			d.msgs <- msg
		}
	}()
}

// until processes messages until cond holds, checking the attempt bound at
// every step.
func (d *driver) until(what string, cond func() bool) {
	d.t.Helper()
	deadline := time.After(5 * time.Second)
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for !cond() {
		select {
		case msg := <-d.msgs:
			d.run(d.ch.Update(msg))
			if d.ch.Attempts() > MaxReconnectAttempts {
				d.t.Fatalf("attempts = %d exceeds bound", d.ch.Attempts())
			}
		case <-poll.C:
		case <-deadline:
			d.t.Fatalf("timed out waiting for %s (state %v, attempts %d, %d messages)",
				what, d.ch.State(), d.ch.Attempts(), len(d.ch.Messages()))
		}
	}
}

type fakeConn struct {
	pushes    chan interfaces.Message
	sent      chan string
	closed    chan struct{}
	closeOnce sync.Once
	closeCode int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		pushes: make(chan interfaces.Message, 16),
		sent:   make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read() (interfaces.Message, error) {
	select {
	case m := <-c.pushes:
		return m, nil
	case <-c.closed:
		return interfaces.Message{}, &CloseError{Code: c.closeCode}
	}
}

func (c *fakeConn) Send(text string) error {
	c.sent <- text
	return nil
}

func (c *fakeConn) Close() error {
	c.drop(1000)
	return nil
}

func (c *fakeConn) drop(code int) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		close(c.closed)
	})
}

// fakeDialer answers each dial with the error returned by script, or with a
// new fakeConn when script returns nil.
type fakeDialer struct {
	mu     sync.Mutex
	dials  int
	script func(n int) error
	conns  chan *fakeConn
}

func newFakeDialer(script func(n int) error) *fakeDialer {
	return &fakeDialer{script: script, conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	if err := d.script(n); err != nil {
		return nil, err
	}
	conn := newFakeConn()
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeAPI struct {
	history []interfaces.Message
	gate    chan struct{}
}

func (a *fakeAPI) ListMessages(ctx context.Context, channelID string) ([]interfaces.Message, error) {
	if a.gate != nil {
		<-a.gate
	}
	return a.history, nil
}

func (a *fakeAPI) ListServers(ctx context.Context, q interfaces.ServerQuery) ([]interfaces.Server, error) {
	return nil, nil
}

func (a *fakeAPI) GetServer(ctx context.Context, id string) (*interfaces.Server, error) {
	return nil, nil
}
func (a *fakeAPI) JoinServer(ctx context.Context, id string) error { return nil }
func (a *fakeAPI) LeaveServer(ctx context.Context, id string) error { return nil }
func (a *fakeAPI) IsMember(ctx context.Context, id string) (bool, error) { return true, nil }

type fakeSession struct {
	mu         sync.Mutex
	refreshErr error
	refreshes  int
	logouts    int
}

func (s *fakeSession) Login(ctx context.Context, email, password string) error { return nil }
func (s *fakeSession) Register(ctx context.Context, email, password string) error {
	return nil
}

func (s *fakeSession) Logout() {
	s.mu.Lock()
	s.logouts++
	s.mu.Unlock()
}

func (s *fakeSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return s.refreshErr
}

func (s *fakeSession) Session() interfaces.Session { return interfaces.Session{LoggedIn: true} }
func (s *fakeSession) LoggedIn() bool { return true }
func (s *fakeSession) Subscribe(fn func(interfaces.Session)) func() { return func() {} }
func (s *fakeSession) AuthorizeHeader(h http.Header) {}
func (s *fakeSession) Jar() http.CookieJar { return nil }

func (s *fakeSession) counts() (refreshes, logouts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes, s.logouts
}

func chatMsg(id, content string) interfaces.Message {
	return interfaces.Message{ID: interfaces.ID(id), Sender: "ada", Content: content, Created: time.Now()}
}

func assertContents(t *testing.T, got []interfaces.Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i].Content, want[i])
		}
	}
}

func newTestChannel(dialer Dialer, api interfaces.ChatAPI, session interfaces.SessionManager) *Channel {
	return NewChannel("srv", "chan", Deps{
		Dialer:         dialer,
		API:            api,
		Session:        session,
		SocketURL:      "ws://example.test/ws",
		ReconnectDelay: time.Millisecond,
	})
}

func TestHistoryThenPushesInArrivalOrder(t *testing.T) {
	dialer := newFakeDialer(func(int) error { return nil })
	api := &fakeAPI{history: []interfaces.Message{chatMsg("1", "a"), chatMsg("2", "b")}}
	ch := newTestChannel(dialer, api, &fakeSession{})
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("history", func() bool { return ch.State() == Open && len(ch.Messages()) == 2 })

	conn := <-dialer.conns
	conn.pushes <- chatMsg("3", "c")
	conn.pushes <- chatMsg("4", "d")
	d.until("pushes", func() bool { return len(ch.Messages()) == 4 })

	assertContents(t, ch.Messages(), "a", "b", "c", "d")
	if ch.Attempts() != 0 {
		t.Errorf("attempts after open = %d", ch.Attempts())
	}

	got := ch.Messages()
	got[0].Content = "edited"
	_ = append(got[:2], chatMsg("9", "z"))
	assertContents(t, ch.Messages(), "a", "b", "c", "d")
}

// A push that lands before the history fetch resolves is overwritten when
// the history replaces the buffer.
func TestEarlyPushDroppedByHistory(t *testing.T) {
	dialer := newFakeDialer(func(int) error { return nil })
	api := &fakeAPI{history: []interfaces.Message{chatMsg("1", "a"), chatMsg("2", "b")}, gate: make(chan struct{})}
	ch := newTestChannel(dialer, api, &fakeSession{})
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("open", func() bool { return ch.State() == Open })

	conn := <-dialer.conns
	conn.pushes <- chatMsg("9", "early")
	d.until("early push", func() bool { return len(ch.Messages()) == 1 })

	close(api.gate)
	d.until("history", func() bool { return len(ch.Messages()) == 2 })
	assertContents(t, ch.Messages(), "a", "b")
}

func TestAuthCloseStopsAtBound(t *testing.T) {
	dialer := newFakeDialer(func(int) error { return &CloseError{Code: CloseAuthError} })
	session := &fakeSession{refreshErr: apperrors.ErrRefreshInvalid}
	ch := newTestChannel(dialer, &fakeAPI{}, session)
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("give up", func() bool { return ch.State() == Idle })

	if got := dialer.count(); got != MaxReconnectAttempts+1 {
		t.Errorf("dials = %d, want %d", got, MaxReconnectAttempts+1)
	}
	if ch.Attempts() != 0 {
		t.Errorf("attempts after stop = %d, want 0", ch.Attempts())
	}
	refreshes, logouts := session.counts()
	if refreshes != MaxReconnectAttempts+1 || logouts != refreshes {
		t.Errorf("refreshes = %d, logouts = %d", refreshes, logouts)
	}
	if ch.LastCloseCode() != CloseAuthError {
		t.Errorf("last close code = %d", ch.LastCloseCode())
	}
}

func TestAuthCloseRecoversAfterRefresh(t *testing.T) {
	dialer := newFakeDialer(func(n int) error {
		if n == 1 {
			return &CloseError{Code: CloseAuthError}
		}
		return nil
	})
	session := &fakeSession{}
	ch := newTestChannel(dialer, &fakeAPI{}, session)
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("open", func() bool { return ch.State() == Open })

	refreshes, logouts := session.counts()
	if refreshes != 1 || logouts != 0 {
		t.Errorf("refreshes = %d, logouts = %d", refreshes, logouts)
	}
	if ch.Attempts() != 0 {
		t.Errorf("attempts = %d", ch.Attempts())
	}
}

func TestTransientRefreshErrorKeepsSession(t *testing.T) {
	dialer := newFakeDialer(func(n int) error {
		if n == 1 {
			return &CloseError{Code: CloseAuthError}
		}
		return nil
	})
	session := &fakeSession{refreshErr: apperrors.ErrNetwork}
	ch := newTestChannel(dialer, &fakeAPI{}, session)
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("open", func() bool { return ch.State() == Open })

	if _, logouts := session.counts(); logouts != 0 {
		t.Errorf("logouts = %d, want 0", logouts)
	}
}

func TestAbnormalCloseKeepsReconnecting(t *testing.T) {
	dialer := newFakeDialer(func(n int) error {
		if n <= 6 {
			return errors.New("connection refused")
		}
		return nil
	})
	session := &fakeSession{}
	ch := newTestChannel(dialer, &fakeAPI{}, session)
	d := newDriver(t, ch)

	maxSeen := 0
	d.run(ch.Connect())
	d.until("open", func() bool {
		if ch.Attempts() > maxSeen {
			maxSeen = ch.Attempts()
		}
		return ch.State() == Open
	})

	if maxSeen != MaxReconnectAttempts {
		t.Errorf("peak attempts = %d, want %d", maxSeen, MaxReconnectAttempts)
	}
	if ch.LastCloseCode() != CloseAbnormal {
		t.Errorf("last close code = %d", ch.LastCloseCode())
	}
	if refreshes, _ := session.counts(); refreshes != 0 {
		t.Errorf("abnormal closes must not refresh, got %d", refreshes)
	}

	// A live socket dropping by the server reconnects too.
	conn := <-dialer.conns
	conn.drop(CloseAbnormal)
	d.until("reconnect", func() bool { return dialer.count() == 8 && ch.State() == Open })
}

func TestSendRequiresOpen(t *testing.T) {
	dialer := newFakeDialer(func(int) error { return nil })
	ch := newTestChannel(dialer, &fakeAPI{}, &fakeSession{})

	sent, ok := ch.Send("hello")().(SentMsg)
	if !ok || !errors.Is(sent.Err, apperrors.ErrNotConnected) {
		t.Fatalf("Send while idle = %+v", sent)
	}
	if ch.Send("   ") != nil {
		t.Error("blank text should not produce a command")
	}

	d := newDriver(t, ch)
	d.run(ch.Connect())
	d.until("open", func() bool { return ch.State() == Open })
	conn := <-dialer.conns

	d.run(ch.Send("hello"))
	select {
	case got := <-conn.sent:
		if got != "hello" {
			t.Errorf("sent %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing written to the socket")
	}
}

func TestCloseIgnoresStaleMessages(t *testing.T) {
	dialer := newFakeDialer(func(int) error { return nil })
	api := &fakeAPI{history: []interfaces.Message{chatMsg("1", "a")}}
	ch := newTestChannel(dialer, api, &fakeSession{})
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("history", func() bool { return len(ch.Messages()) == 1 })
	stale := ch.current()

	ch.Close()
	if ch.State() != Idle {
		t.Fatalf("state after Close = %v", ch.State())
	}

	if cmd := ch.Update(PushMsg{tag: stale, Message: chatMsg("2", "late")}); cmd != nil {
		t.Error("stale push produced a command")
	}
	if cmd := ch.Update(ClosedMsg{tag: stale, Code: CloseAbnormal}); cmd != nil {
		t.Error("stale close produced a command")
	}
	other := tag{instance: "someone-else", gen: stale.gen + 1}
	ch.Update(PushMsg{tag: other, Message: chatMsg("3", "foreign")})

	assertContents(t, ch.Messages(), "a")
	if ch.State() != Idle {
		t.Errorf("state = %v, want idle", ch.State())
	}
}

func TestManualReconnectStartsFresh(t *testing.T) {
	dialer := newFakeDialer(func(n int) error {
		if n <= 3 {
			return errors.New("refused")
		}
		return nil
	})
	ch := newTestChannel(dialer, &fakeAPI{}, &fakeSession{})
	ch.deps.ReconnectDelay = time.Hour
	d := newDriver(t, ch)

	d.run(ch.Connect())
	d.until("first failure", func() bool { return ch.State() == Reconnecting })
	if ch.Attempts() != 1 {
		t.Fatalf("attempts = %d", ch.Attempts())
	}

	d.run(ch.Reconnect())
	if ch.State() != Connecting || ch.Attempts() != 0 {
		t.Fatalf("after Reconnect: state %v attempts %d", ch.State(), ch.Attempts())
	}
	d.until("second failure", func() bool { return ch.State() == Reconnecting && dialer.count() == 2 })
	if ch.Attempts() != 1 {
		t.Errorf("attempts = %d, want 1", ch.Attempts())
	}
}
