package content

import (
	"strings"
	"testing"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"afternoon", time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local), "5/3/2024 at 02:07 PM"},
		{"morning", time.Date(2023, 12, 25, 9, 30, 0, 0, time.Local), "25/12/2023 at 09:30 AM"},
		{"zero", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSegments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Segment
	}{
		{"plain", "hello", []Segment{{Kind: SegmentText, Text: "hello"}}},
		{
			"fenced",
			"look:\n```go\nfmt.Println(1)\n```\nnice",
			[]Segment{
				{Kind: SegmentText, Text: "look:"},
				{Kind: SegmentCode, Language: "go", Text: "fmt.Println(1)"},
				{Kind: SegmentText, Text: "nice"},
			},
		},
		{"unterminated", "```\nx := 1", []Segment{{Kind: SegmentCode, Text: "x := 1"}}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSegments(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d segments %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRenderMessage(t *testing.T) {
	r := newTestRenderer(t)
	msg := interfaces.Message{
		ID:      "1",
		Sender:  "Ada Lovelace",
		Content: "Welcome to Gophers!",
		Created: time.Date(2024, 3, 5, 14, 7, 0, 0, time.Local),
	}

	out := r.RenderMessage(msg, 80)
	for _, want := range []string{"Ada Lovelace", "5/3/2024 at 02:07 PM", "Welcome to Gophers!"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered message missing %q:\n%s", want, out)
		}
	}
	if again := r.RenderMessage(msg, 80); again != out {
		t.Error("cached render differs")
	}
}

func longCodeMessage(id string) interfaces.Message {
	lines := make([]string, DefaultFoldThreshold+8)
	for i := range lines {
		lines[i] = "x++"
	}
	return interfaces.Message{ID: interfaces.ID(id), Sender: "demo", Content: "```go\n" + strings.Join(lines, "\n") + "\n```"}
}

func TestLongCodeBlocksFold(t *testing.T) {
	r := newTestRenderer(t)
	msg := longCodeMessage("7")

	folded := r.RenderMessage(msg, 80)
	if !strings.Contains(folded, "▶ go (20 lines)") {
		t.Fatalf("expected folded block, got:\n%s", folded)
	}

	r.ToggleFolds()
	if !r.FoldsExpanded() {
		t.Fatal("ToggleFolds did not expand")
	}
	if expanded := r.RenderMessage(msg, 80); strings.Contains(expanded, "▶") {
		t.Errorf("expected expanded block, got:\n%s", expanded)
	}

	r.ToggleFolds()
	if again := r.RenderMessage(msg, 80); !strings.Contains(again, "▶") {
		t.Errorf("expected collapsed block after second toggle, got:\n%s", again)
	}
}

func TestToggleNewestFold(t *testing.T) {
	r := newTestRenderer(t)
	older, newer := longCodeMessage("7"), longCodeMessage("8")
	plain := interfaces.Message{ID: "9", Sender: "demo", Content: "no code here"}
	msgs := []interfaces.Message{older, newer, plain}

	// Render first so the toggle has to invalidate cached output.
	for _, m := range msgs {
		r.RenderMessage(m, 80)
	}

	if !r.ToggleNewestFold(msgs) {
		t.Fatal("no foldable block found")
	}
	if out := r.RenderMessage(newer, 80); strings.Contains(out, "▶") {
		t.Errorf("newest block still folded:\n%s", out)
	}
	if out := r.RenderMessage(older, 80); !strings.Contains(out, "▶") {
		t.Errorf("older block changed:\n%s", out)
	}

	if !r.ToggleNewestFold(msgs) {
		t.Fatal("second toggle found nothing")
	}
	if out := r.RenderMessage(newer, 80); !strings.Contains(out, "▶") {
		t.Errorf("cached expanded render served after collapse:\n%s", out)
	}

	if r.ToggleNewestFold([]interfaces.Message{plain}) {
		t.Error("toggled a message without code")
	}
}

func TestRenderMessagesEmpty(t *testing.T) {
	r := newTestRenderer(t)
	if out := r.RenderMessages(nil, 80); !strings.Contains(out, "No messages yet.") {
		t.Errorf("empty render = %q", out)
	}
}

func TestRenderServerCard(t *testing.T) {
	r := newTestRenderer(t)
	one, three := 1, 3
	tests := []struct {
		name    string
		members *int
		want    string
	}{
		{"plural", &three, "3 members"},
		{"singular", &one, "1 member"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.RenderServerCard(interfaces.Server{Name: "Gophers", Category: "programming", NumMembers: tt.members}, 60, false)
			if !strings.Contains(out, "Gophers") || !strings.Contains(out, tt.want) {
				t.Errorf("card:\n%s", out)
			}
		})
	}
}

func TestRenderChannelList(t *testing.T) {
	r := newTestRenderer(t)
	out := r.RenderChannelList([]interfaces.Channel{{ID: "a", Name: "general"}, {ID: "b", Name: "random"}}, "b")
	if !strings.Contains(out, "> # random") || !strings.Contains(out, "  # general") {
		t.Errorf("channel list:\n%s", out)
	}
}

func TestSetTheme(t *testing.T) {
	r := newTestRenderer(t)
	if err := r.SetTheme(nil); err == nil {
		t.Error("nil theme accepted")
	}
	theme := &interfaces.Theme{Name: "monokai", Accent: "#ae81ff", CodeStyle: "monokai"}
	if err := r.SetTheme(theme); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if r.Styles().Theme() != theme {
		t.Error("theme not applied")
	}
}
