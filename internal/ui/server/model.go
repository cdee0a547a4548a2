// Package server is the chat screen for one server: a channel sidebar, the
// live message pane of the selected channel, membership controls and the
// input box.
package server

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatvibe/console/internal/chat"
	"github.com/chatvibe/console/internal/content"
	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/ui/actions"
	"github.com/chatvibe/console/internal/ui/route"
	"github.com/chatvibe/console/internal/ui/workflow"
)

// FocusState is where key presses go.
type FocusState int

const (
	FocusChannels FocusState = iota
	FocusInput
)

// Action ids used in the actions pane.
const (
	ActionJoin      = "join"
	ActionLeave     = "leave"
	ActionReconnect = "reconnect"
	ActionFolds     = "folds"
	ActionFoldLast  = "fold_last"
	ActionHome      = "home"
)

const (
	sidebarWidth  = 26
	requestTimout = 15 * time.Second
)

// KeyMap holds the navigation bindings. Server actions are bound through
// the actions pane.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Open       key.Binding
	Input      key.Binding
	Back       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

// DefaultKeyMap returns the default server screen bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "prev channel")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next channel")),
		Open:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open channel")),
		Input:      key.NewBinding(key.WithKeys("i", "tab"), key.WithHelp("i", "write")),
		Back:       key.NewBinding(key.WithKeys("esc", "h"), key.WithHelp("esc", "home")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

// Deps are the collaborators of the screen. Chat.API and Chat.Session are
// filled from API and Session when left empty.
type Deps struct {
	API      interfaces.ChatAPI
	Session  interfaces.SessionManager
	Renderer *content.Renderer
	Chat     chat.Deps
}

// Model is the state of the server screen.
type Model struct {
	deps    Deps
	handler *apperrors.Handler
	keys    KeyMap
	route   route.Route

	server   *interfaces.Server
	member   bool
	loading  bool
	selected int

	channel  *chat.Channel
	viewport viewport.Model
	input    textinput.Model
	focus    FocusState
	pane     *actions.Pane
	banner   *workflow.Manager

	err    error
	notice string

	width  int
	height int
}

// New creates the screen for a server route.
func New(deps Deps, r route.Route) *Model {
	if deps.Chat.API == nil {
		deps.Chat.API = deps.API
	}
	if deps.Chat.Session == nil {
		deps.Chat.Session = deps.Session
	}

	input := textinput.New()
	input.Placeholder = "Message"
	input.CharLimit = 2000

	m := &Model{
		deps:     deps,
		handler:  apperrors.NewHandler(),
		keys:     DefaultKeyMap(),
		route:    r,
		loading:  true,
		viewport: viewport.New(80, 16),
		input:    input,
		pane:     actions.NewPane("Actions"),
		banner:   workflow.NewManager(),
	}
	m.resize(80, 24)
	m.refreshActions()
	return m
}

// Init loads the server and the membership flag.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadServer(), m.loadMembership())
}

// Close drops the live channel, if any.
func (m *Model) Close() {
	if m.channel != nil {
		m.channel.Close()
	}
}

// Route returns the route this screen was opened for.
func (m *Model) Route() route.Route { return m.route }

// Server returns the loaded server or nil.
func (m *Model) Server() *interfaces.Server { return m.server }

// Member reports whether the user belongs to the server.
func (m *Model) Member() bool { return m.member }

// Channel returns the live channel or nil.
func (m *Model) Channel() *chat.Channel { return m.channel }

// Focus returns where key presses go.
func (m *Model) Focus() FocusState { return m.focus }

type (
	serverLoadedMsg struct {
		server *interfaces.Server
		err    error
	}
	membershipMsg struct {
		member bool
		err    error
	}
	membershipChangedMsg struct {
		joined bool
		err    error
	}
)

func (m *Model) loadServer() tea.Cmd {
	api, id := m.deps.API, m.route.ServerID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimout)
		defer cancel()
		server, err := api.GetServer(ctx, id)
		return serverLoadedMsg{server: server, err: err}
	}
}

func (m *Model) loadMembership() tea.Cmd {
	api, id := m.deps.API, m.route.ServerID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimout)
		defer cancel()
		member, err := api.IsMember(ctx, id)
		return membershipMsg{member: member, err: err}
	}
}

func (m *Model) changeMembership(join bool) tea.Cmd {
	api, id := m.deps.API, m.route.ServerID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimout)
		defer cancel()
		var err error
		if join {
			err = api.JoinServer(ctx, id)
		} else {
			err = api.LeaveServer(ctx, id)
		}
		return membershipChangedMsg{joined: join, err: err}
	}
}

// openChannel starts the socket for the routed channel.
func (m *Model) openChannel() tea.Cmd {
	m.Close()
	m.channel = chat.NewChannel(m.route.ServerID, m.route.ChannelID, m.deps.Chat)
	m.syncChannel()
	return m.channel.Connect()
}

func (m *Model) currentChannel() *interfaces.Channel {
	if m.server == nil || m.route.ChannelID == "" {
		return nil
	}
	ch, _ := m.server.FindChannel(m.route.ChannelID)
	return ch
}

// refreshActions rebuilds the pane from membership and channel state.
func (m *Model) refreshActions() {
	var list []actions.Action
	if m.member {
		list = append(list, actions.Action{ID: ActionLeave, Label: "Leave server", Key: "L", Kind: actions.KindDestructive})
	} else {
		list = append(list, actions.Action{ID: ActionJoin, Label: "Join server", Key: "J", Kind: actions.KindConfirm})
	}
	if m.channel != nil {
		list = append(list, actions.Action{ID: ActionReconnect, Label: "Reconnect", Key: "r", Kind: actions.KindPrimary})
	}
	foldLabel := "Expand code blocks"
	if m.deps.Renderer != nil && m.deps.Renderer.FoldsExpanded() {
		foldLabel = "Collapse code blocks"
	}
	list = append(list, actions.Action{ID: ActionFolds, Label: foldLabel, Key: "f", Kind: actions.KindInfo})
	if m.channel != nil {
		list = append(list, actions.Action{ID: ActionFoldLast, Label: "Toggle latest code block", Key: "F", Kind: actions.KindInfo})
	}
	list = append(list, actions.Action{ID: ActionHome, Label: "Back to servers", Kind: actions.KindInfo})
	m.pane.SetActions(list)
}

// resize lays out the sidebar, viewport and pane for the terminal size.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	chatWidth := width - sidebarWidth - 6
	if chatWidth < 20 {
		chatWidth = 20
	}
	// header 3, breadcrumb 1, input 3, status 1, pane and borders
	reserved := 10 + len(m.pane.Actions()) + 2
	if m.banner.IsActive() {
		reserved += 3
	}
	chatHeight := height - reserved
	if chatHeight < 5 {
		chatHeight = 5
	}

	m.viewport.Width = chatWidth
	m.viewport.Height = chatHeight
	m.input.Width = chatWidth - 4
	m.pane.SetWidth(width)
	m.banner.SetWidth(width)
}
