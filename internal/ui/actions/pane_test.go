package actions

import (
	"strings"
	"testing"
)

func testActions() []Action {
	return []Action{
		{ID: "join", Label: "Join server", Key: "J", Kind: KindConfirm},
		{ID: "reconnect", Label: "Reconnect", Key: "r"},
		{ID: "home", Label: "Back to servers", Kind: KindInfo},
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"1", "join", true},
		{"3", "home", true},
		{"J", "join", true},
		{"r", "reconnect", true},
		{"j", "", false},
		{"0", "", false},
		{"4", "", false},
		{"x", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p := NewPane("Actions")
			p.SetActions(testActions())

			got, ok := p.Match(tt.key)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tt.key, got.ID, ok, tt.wantID, tt.wantOK)
			}
			if ok {
				if sel, _ := p.Selected(); sel.ID != tt.wantID {
					t.Errorf("Selected = %q, want %q", sel.ID, tt.wantID)
				}
			}
		})
	}
}

func TestSelectionWraps(t *testing.T) {
	p := NewPane("Actions")
	if _, ok := p.Selected(); ok {
		t.Fatal("empty pane has a selection")
	}

	p.SetActions(testActions())
	p.Previous()
	if sel, _ := p.Selected(); sel.ID != "home" {
		t.Errorf("Previous from first = %q, want home", sel.ID)
	}
	p.Next()
	if sel, _ := p.Selected(); sel.ID != "join" {
		t.Errorf("Next from last = %q, want join", sel.ID)
	}

	p.SetActions(testActions()[:1])
	if sel, ok := p.Selected(); !ok || sel.ID != "join" {
		t.Errorf("selection after shrink = %q, %v", sel.ID, ok)
	}
}

func TestView(t *testing.T) {
	p := NewPane("Actions")
	if p.View() != "" || p.IsVisible() {
		t.Fatal("empty pane renders")
	}

	p.SetActions(testActions())
	p.Focus(true)
	p.SetWidth(60)
	view := p.View()
	for _, want := range []string{"Actions", "[1]", "Join server (J)", "[3]", "Back to servers"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if !p.Focused() {
		t.Error("Focused = false after Focus(true)")
	}
}
