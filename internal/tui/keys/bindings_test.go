package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingWinsOverGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "global" }})
	r.AddPage("chat", &Action{Name: "back", Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "page" }})

	ev := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	if !r.HandleEvent("chat", ev) || got != "page" {
		t.Errorf("chat page: handled by %q, want page", got)
	}
	if !r.HandleEvent("inbox", ev) || got != "global" {
		t.Errorf("inbox page: handled by %q, want global", got)
	}
}

func TestHandleEventNoMatch(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Handler: func() {}})
	if r.HandleEvent("inbox", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unexpected match")
	}
}

func TestSpecialKeyMatch(t *testing.T) {
	a := &Action{Key: tcell.KeyCtrlO}
	if !a.Matches(tcell.NewEventKey(tcell.KeyCtrlO, 0, tcell.ModCtrl)) {
		t.Error("Ctrl-O should match")
	}
	if a.Matches(tcell.NewEventKey(tcell.KeyRune, 'o', tcell.ModNone)) {
		t.Error("rune o should not match Ctrl-O")
	}
}

func TestHintsOrderAndReplace(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true})
	r.AddGlobal(&Action{Name: "help", Key: tcell.KeyRune, Rune: '?', Description: "?:help", Visible: true})
	r.AddPage("chat", &Action{Name: "older", Key: tcell.KeyRune, Rune: 'o', Description: "o:older", Visible: true})
	r.AddPage("chat", &Action{Name: "hidden", Key: tcell.KeyRune, Rune: 'x', Description: "x", Visible: false})
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Description: "q:exit", Visible: true})

	want := []string{"o:older", "q:exit", "?:help"}
	if got := r.Hints("chat"); !slices.Equal(got, want) {
		t.Errorf("Hints(chat) = %v, want %v", got, want)
	}
}

func TestHintsHideShadowedGlobal(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Name: "quit", Key: tcell.KeyRune, Rune: 'q', Description: "q:quit", Visible: true})
	r.AddPage("chat", &Action{Name: "back", Key: tcell.KeyRune, Rune: 'q', Description: "q:back", Visible: true})

	if got, want := r.Hints("chat"), []string{"q:back"}; !slices.Equal(got, want) {
		t.Errorf("Hints(chat) = %v, want %v", got, want)
	}
	if got, want := r.Hints("inbox"), []string{"q:quit"}; !slices.Equal(got, want) {
		t.Errorf("Hints(inbox) = %v, want %v", got, want)
	}
}
