package devserver

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/google/uuid"
)

// Seed credentials for local development.
const (
	DemoEmail    = "demo@chatvibe.dev"
	DemoPassword = "password123"
)

// forbiddenEmails can never be registered.
var forbiddenEmails = map[string]bool{
	"admin@admin.com": true,
	"root@root.com":   true,
}

type user struct {
	ID       int64
	Email    string
	Password string
	Name     string
}

type server struct {
	ID          uuid.UUID
	Name        string
	Description string
	Icon        string
	Category    string
	Owner       int64
	Channels    []interfaces.Channel
	Members     map[int64]bool
	Created     time.Time
}

// store holds all backend state in memory.
type store struct {
	mu         sync.RWMutex
	nextUserID int64
	nextMsgID  int64
	users      map[int64]*user
	byEmail    map[string]*user
	servers    []*server
	messages   map[string][]interfaces.Message // by channel id
}

func newStore() *store {
	s := &store{
		nextUserID: 1,
		nextMsgID:  1,
		users:      make(map[int64]*user),
		byEmail:    make(map[string]*user),
		messages:   make(map[string][]interfaces.Message),
	}
	s.seed()
	return s
}

// seed creates the demo user and two categories of servers.
func (s *store) seed() {
	demo, _ := s.createUser(DemoEmail, DemoPassword)
	demo.Name = "Demo User"
	other, _ := s.createUser("ada@chatvibe.dev", "lovelace1815")
	other.Name = "Ada Lovelace"

	golang := s.createServer("Gophers", "Everything Go", "programming", demo.ID,
		[]channelSeed{{"general", "Say hi"}, {"concurrency", "Channels and goroutines"}})
	s.createServer("Rustaceans", "Borrow checker support group", "programming", other.ID,
		[]channelSeed{{"general", "Ownership talk"}})
	s.createServer("Lo-fi Beats", "Music to code to", "music", other.ID,
		[]channelSeed{{"listening", "Now playing"}, {"production", "Making tracks"}})

	general := golang.Channels[0].ID.String()
	s.addMessage(general, "Ada Lovelace", "Welcome to Gophers!")
	s.addMessage(general, "Demo User", "```go\nfmt.Println(\"hello, gophers\")\n```")
}

func (s *store) createUser(email, password string) (*user, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.byEmail[email]; exists {
		return nil, false
	}
	u := &user{
		ID:       s.nextUserID,
		Email:    email,
		Password: password,
		Name:     strings.SplitN(email, "@", 2)[0],
	}
	s.nextUserID++
	s.users[u.ID] = u
	s.byEmail[email] = u
	return u, true
}

type channelSeed struct {
	name  string
	topic string
}

func (s *store) createServer(name, description, category string, owner int64, channels []channelSeed) *server {
	srv := &server{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		Owner:       owner,
		Members:     map[int64]bool{owner: true},
		Created:     time.Now(),
	}
	for _, ch := range channels {
		srv.Channels = append(srv.Channels, interfaces.Channel{
			ID:     interfaces.ID(uuid.NewString()),
			Name:   ch.name,
			Topic:  ch.topic,
			Server: interfaces.ID(srv.ID.String()),
			Owner:  interfaces.IDFromAny(float64(owner)),
		})
	}
	s.servers = append(s.servers, srv)
	return srv
}

func (s *store) addMessage(channelID, sender, content string) interfaces.Message {
	msg := interfaces.Message{
		ID:      interfaces.IDFromAny(float64(s.nextMsgID)),
		Sender:  sender,
		Content: content,
		Created: time.Now().UTC(),
	}
	s.nextMsgID++
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg
}

// authenticate checks an email/password pair.
func (s *store) authenticate(email, password string) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok || u.Password != password {
		return nil, false
	}
	return u, true
}

func (s *store) register(email, password string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUser(email, password)
}

func (s *store) userByID(id int64) (*user, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *store) findServer(id uuid.UUID) *server {
	for _, srv := range s.servers {
		if srv.ID == id {
			return srv
		}
	}
	return nil
}

// serverFilter mirrors the /servers query parameters.
type serverFilter struct {
	category       string
	qty            int
	byUser         int64
	withNumMembers bool
	byServerID     *uuid.UUID
}

func (s *store) listServers(f serverFilter) []interfaces.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]interfaces.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		if f.category != "" && !strings.EqualFold(srv.Category, f.category) {
			continue
		}
		if f.byUser != 0 && !srv.Members[f.byUser] {
			continue
		}
		if f.byServerID != nil && srv.ID != *f.byServerID {
			continue
		}
		out = append(out, s.toAPI(srv, f.withNumMembers))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.qty > 0 && len(out) > f.qty {
		out = out[:f.qty]
	}
	return out
}

func (s *store) toAPI(srv *server, withNumMembers bool) interfaces.Server {
	channels := make([]interfaces.Channel, len(srv.Channels))
	copy(channels, srv.Channels)
	api := interfaces.Server{
		ID:          interfaces.ID(srv.ID.String()),
		Name:        srv.Name,
		Description: srv.Description,
		Icon:        srv.Icon,
		Category:    interfaces.ID(srv.Category),
		Owner:       interfaces.IDFromAny(float64(srv.Owner)),
		Channels:    channels,
	}
	if withNumMembers {
		n := len(srv.Members)
		api.NumMembers = &n
	}
	return api
}

func (s *store) serverExists(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findServer(id) != nil
}

// channelServer returns the server that owns a channel.
func (s *store) channelServer(serverID uuid.UUID, channelID string) (*server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv := s.findServer(serverID)
	if srv == nil {
		return nil, false
	}
	for _, ch := range srv.Channels {
		if ch.ID.String() == channelID {
			return srv, true
		}
	}
	return nil, false
}

func (s *store) isMember(serverID uuid.UUID, userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv := s.findServer(serverID)
	return srv != nil && srv.Members[userID]
}

// membership errors returned by join and leave.
type membershipResult int

const (
	membershipOK membershipResult = iota
	membershipNoServer
	membershipAlreadyMember
	membershipNotMember
	membershipOwner
)

func (s *store) join(serverID uuid.UUID, userID int64) membershipResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv := s.findServer(serverID)
	if srv == nil {
		return membershipNoServer
	}
	if srv.Members[userID] {
		return membershipAlreadyMember
	}
	srv.Members[userID] = true
	return membershipOK
}

func (s *store) leave(serverID uuid.UUID, userID int64) membershipResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv := s.findServer(serverID)
	if srv == nil {
		return membershipNoServer
	}
	if srv.Owner == userID {
		return membershipOwner
	}
	if !srv.Members[userID] {
		return membershipNotMember
	}
	delete(srv.Members, userID)
	return membershipOK
}

func (s *store) channelMessages(channelID string) []interfaces.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]interfaces.Message, len(s.messages[channelID]))
	copy(msgs, s.messages[channelID])
	return msgs
}

func (s *store) postMessage(channelID, sender, content string) interfaces.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMessage(channelID, sender, content)
}
