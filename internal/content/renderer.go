package content

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatvibe/console/internal/interfaces"
)

// TimestampLayout renders "d/m/yyyy at hh:mm AM/PM".
const TimestampLayout = "2/1/2006 at 03:04 PM"

// FormatTimestamp renders a message time in local time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimestampLayout)
}

var _ interfaces.ContentRenderer = (*Renderer)(nil)

// Renderer turns messages and servers into styled terminal text.
type Renderer struct {
	collapsibleManager *CollapsibleManager
	syntaxHighlighter  *SyntaxHighlighter
	themeManager       *ThemeManager
	cache              *RenderCache
	mutex              sync.RWMutex
}

// RenderCache keeps rendered messages keyed by id and width. Messages are
// immutable, so entries only go stale when the theme or fold state changes.
type RenderCache struct {
	renderedContent map[string]string
	lastAccessed    map[string]time.Time
	mutex           sync.Mutex
	maxSize         int
}

func newRenderCache(maxSize int) *RenderCache {
	return &RenderCache{
		renderedContent: make(map[string]string),
		lastAccessed:    make(map[string]time.Time),
		maxSize:         maxSize,
	}
}

func (c *RenderCache) get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out, ok := c.renderedContent[key]
	if ok {
		c.lastAccessed[key] = time.Now()
	}
	return out, ok
}

func (c *RenderCache) put(key, rendered string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.renderedContent) >= c.maxSize {
		c.evictOldest()
	}
	c.renderedContent[key] = rendered
	c.lastAccessed[key] = time.Now()
}

func (c *RenderCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, at := range c.lastAccessed {
		if oldestKey == "" || at.Before(oldest) {
			oldestKey, oldest = k, at
		}
	}
	delete(c.renderedContent, oldestKey)
	delete(c.lastAccessed, oldestKey)
}

func (c *RenderCache) clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.renderedContent = make(map[string]string)
	c.lastAccessed = make(map[string]time.Time)
}

// SyntaxHighlighter provides code syntax highlighting capabilities using Chroma
type SyntaxHighlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
	theme     string
}

// ThemeManager holds the lipgloss styles derived from the active theme.
type ThemeManager struct {
	currentTheme   *interfaces.Theme
	lipglossStyles map[string]lipgloss.Style
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() (*Renderer, error) {
	highlighter, err := NewSyntaxHighlighter("github", "terminal256")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize syntax highlighter: %w", err)
	}

	return &Renderer{
		collapsibleManager: NewCollapsibleManager(),
		syntaxHighlighter:  highlighter,
		themeManager:       NewThemeManager(),
		cache:              newRenderCache(500),
	}, nil
}

// SetTheme switches colours and the code style.
func (r *Renderer) SetTheme(theme *interfaces.Theme) error {
	if theme == nil {
		return fmt.Errorf("theme cannot be nil")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.themeManager.SetTheme(theme)
	if theme.CodeStyle != "" {
		if err := r.syntaxHighlighter.SetTheme(theme.CodeStyle); err != nil {
			return err
		}
	}
	r.cache.clear()
	return nil
}

// Styles exposes the themed styles to the screens.
func (r *Renderer) Styles() *ThemeManager {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.themeManager
}

// FoldsExpanded reports whether long code blocks are expanded by default.
func (r *Renderer) FoldsExpanded() bool {
	return r.collapsibleManager.Expanded()
}

// ToggleNewestFold flips the last long code block of the newest message that
// has one. It reports false when no message has a foldable block.
func (r *Renderer) ToggleNewestFold(msgs []interfaces.Message) bool {
	for i := len(msgs) - 1; i >= 0; i-- {
		block, last := 0, -1
		for _, seg := range ParseSegments(msgs[i].Content) {
			if seg.Kind != SegmentCode {
				continue
			}
			if r.collapsibleManager.Foldable(seg.Lines()) {
				last = block
			}
			block++
		}
		if last < 0 {
			continue
		}
		r.collapsibleManager.ToggleSection(SectionID(msgs[i].ID.String(), last))
		r.cache.clear()
		return true
	}
	return false
}

// ToggleFolds expands every long code block, or collapses them all again.
func (r *Renderer) ToggleFolds() {
	if r.collapsibleManager.Expanded() {
		r.collapsibleManager.CollapseAll()
	} else {
		r.collapsibleManager.ExpandAll()
	}
	r.cache.clear()
}

// RenderMessage renders the sender line and the body wrapped to width.
func (r *Renderer) RenderMessage(msg interfaces.Message, width int) string {
	if width < 20 {
		width = 20
	}
	key := fmt.Sprintf("%s|%d", msg.ID, width)
	if msg.ID != "" {
		if cached, ok := r.cache.get(key); ok {
			return cached
		}
	}

	r.mutex.RLock()
	tm := r.themeManager
	header := tm.Style("sender").Render(msg.Sender)
	if ts := FormatTimestamp(msg.Created); ts != "" {
		header += " " + tm.Style("timestamp").Render(ts)
	}

	parts := []string{header}
	codeIndex := 0
	for _, seg := range ParseSegments(msg.Content) {
		switch seg.Kind {
		case SegmentCode:
			parts = append(parts, r.renderCode(msg.ID.String(), codeIndex, seg, width))
			codeIndex++
		default:
			parts = append(parts, tm.Style("body").Width(width).Render(seg.Text))
		}
	}
	r.mutex.RUnlock()

	out := strings.Join(parts, "\n")
	if msg.ID != "" {
		r.cache.put(key, out)
	}
	return out
}

func (r *Renderer) renderCode(messageID string, index int, seg Segment, width int) string {
	tm := r.themeManager
	sectionID := SectionID(messageID, index)
	if r.collapsibleManager.Foldable(seg.Lines()) && !r.collapsibleManager.IsExpanded(sectionID) {
		label := seg.Language
		if label == "" {
			label = "code"
		}
		return tm.Style("fold").Render(fmt.Sprintf("▶ %s (%d lines)", label, seg.Lines()))
	}

	highlighted, err := r.syntaxHighlighter.Highlight(seg.Text, seg.Language)
	if err != nil {
		highlighted = seg.Text
	}
	return tm.Style("code").MaxWidth(width).Render(strings.TrimRight(highlighted, "\n"))
}

// RenderMessages renders a buffer in arrival order.
func (r *Renderer) RenderMessages(msgs []interfaces.Message, width int) string {
	if len(msgs) == 0 {
		return r.Styles().Style("muted").Render("No messages yet.")
	}
	rendered := make([]string, 0, len(msgs))
	for _, m := range msgs {
		rendered = append(rendered, r.RenderMessage(m, width))
	}
	return strings.Join(rendered, "\n\n")
}

// RenderServerCard renders one server in a list.
func (r *Renderer) RenderServerCard(server interfaces.Server, width int, selected bool) string {
	tm := r.Styles()
	title := server.Name
	if server.Category != "" {
		title += " " + tm.Style("muted").Render("· "+server.Category.String())
	}
	lines := []string{tm.Style("title").Render(title)}
	if server.Description != "" {
		lines = append(lines, server.Description)
	}
	if server.NumMembers != nil {
		noun := "members"
		if *server.NumMembers == 1 {
			noun = "member"
		}
		lines = append(lines, tm.Style("muted").Render(fmt.Sprintf("%d %s", *server.NumMembers, noun)))
	}

	card := tm.Style("card")
	if selected {
		card = tm.Style("card_selected")
	}
	if width > 4 {
		card = card.Width(width - 2)
	}
	return card.Render(strings.Join(lines, "\n"))
}

// RenderChannelList renders the sidebar with the selected channel marked.
func (r *Renderer) RenderChannelList(channels []interfaces.Channel, selectedID string) string {
	tm := r.Styles()
	if len(channels) == 0 {
		return tm.Style("muted").Render("No channels")
	}
	lines := make([]string, 0, len(channels))
	for _, ch := range channels {
		line := "# " + ch.Name
		if ch.ID.String() == selectedID {
			lines = append(lines, tm.Style("selected").Render("> "+line))
			continue
		}
		lines = append(lines, "  "+line)
	}
	return strings.Join(lines, "\n")
}

// NewSyntaxHighlighter creates a highlighter for a chroma style and formatter.
func NewSyntaxHighlighter(themeName, formatterName string) (*SyntaxHighlighter, error) {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get(themeName)
	if style == nil {
		style = styles.GitHub
	}

	return &SyntaxHighlighter{
		formatter: formatter,
		style:     style,
		theme:     themeName,
	}, nil
}

// Highlight applies syntax highlighting to code
func (sh *SyntaxHighlighter) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var highlighted strings.Builder
	if err := sh.formatter.Format(&highlighted, sh.style, iterator); err != nil {
		return code, err
	}
	return highlighted.String(), nil
}

// SetTheme changes the chroma style.
func (sh *SyntaxHighlighter) SetTheme(themeName string) error {
	style := styles.Get(themeName)
	if style == nil {
		return fmt.Errorf("unknown code style: %s", themeName)
	}
	sh.style = style
	sh.theme = themeName
	return nil
}

// NewThemeManager creates a theme manager with default styles.
func NewThemeManager() *ThemeManager {
	tm := &ThemeManager{}
	tm.initializeDefaultStyles()
	return tm
}

// SetTheme updates the current theme and rebuilds styles
func (tm *ThemeManager) SetTheme(theme *interfaces.Theme) {
	tm.currentTheme = theme
	tm.initializeDefaultStyles()
	tm.buildLipglossStyles()
}

// Theme returns the active theme, or nil before one is set.
func (tm *ThemeManager) Theme() *interfaces.Theme {
	return tm.currentTheme
}

// Style returns a named style. Unknown names get an empty style.
func (tm *ThemeManager) Style(name string) lipgloss.Style {
	if style, ok := tm.lipglossStyles[name]; ok {
		return style
	}
	return lipgloss.NewStyle()
}

// GetStatusStyle returns styling for status indicators
func (tm *ThemeManager) GetStatusStyle(status string) lipgloss.Style {
	if style, exists := tm.lipglossStyles["status_"+status]; exists {
		return style
	}
	return tm.lipglossStyles["status_default"]
}

func (tm *ThemeManager) initializeDefaultStyles() {
	tm.lipglossStyles = map[string]lipgloss.Style{
		"accent":         lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		"title":          lipgloss.NewStyle().Bold(true),
		"sender":         lipgloss.NewStyle().Bold(true),
		"timestamp":      lipgloss.NewStyle().Faint(true),
		"body":           lipgloss.NewStyle(),
		"muted":          lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		"selected":       lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
		"code":           lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("#555555")).Padding(0, 1),
		"fold":           lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true),
		"card":           lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555")).Padding(0, 1),
		"card_selected":  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1),
		"status_default": lipgloss.NewStyle(),
		"status_success": lipgloss.NewStyle().Foreground(lipgloss.Color("#28a745")),
		"status_error":   lipgloss.NewStyle().Foreground(lipgloss.Color("#dc3545")),
		"status_warning": lipgloss.NewStyle().Foreground(lipgloss.Color("#ffc107")),
		"status_info":    lipgloss.NewStyle().Foreground(lipgloss.Color("#17a2b8")),
		"error":          lipgloss.NewStyle().Foreground(lipgloss.Color("#dc3545")).Bold(true),
	}
}

// buildLipglossStyles applies the current theme's colours.
func (tm *ThemeManager) buildLipglossStyles() {
	theme := tm.currentTheme
	if theme == nil {
		return
	}

	recolor := func(name, color string) {
		if color != "" {
			tm.lipglossStyles[name] = tm.lipglossStyles[name].Foreground(lipgloss.Color(color))
		}
	}
	recolor("accent", theme.Accent)
	recolor("selected", theme.Accent)
	recolor("sender", theme.SenderColor)
	recolor("status_success", theme.Success)
	recolor("status_error", theme.Error)
	recolor("status_warning", theme.Warning)
	recolor("status_info", theme.Info)
	recolor("error", theme.Error)
	if theme.Accent != "" {
		tm.lipglossStyles["card_selected"] = tm.lipglossStyles["card_selected"].BorderForeground(lipgloss.Color(theme.Accent))
	}
}
