package views

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
	"github.com/matheus3301/pawchat/internal/tui/model"
	"github.com/matheus3301/pawchat/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"a\u200Db", "ab"},
		{"\u2764\uFE0F", "\u2764"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if got := formatTimestamp(0, now); got != "" {
		t.Errorf("zero = %q", got)
	}
	today := time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC).UnixMilli()
	if got := formatTimestamp(today, now); got != "09:05" {
		t.Errorf("today = %q", got)
	}
	earlier := time.Date(2026, 2, 1, 9, 5, 0, 0, time.UTC).UnixMilli()
	if got := formatTimestamp(earlier, now); got != "02/01" {
		t.Errorf("earlier = %q", got)
	}
}

func TestInboxFilterAndSelection(t *testing.T) {
	in := NewInbox(ui.DefaultTheme())
	in.Update([]chat.InboxEntry{
		{ConversationID: "c1", Counterpart: store.Participant{Identity: "bob@y", Name: "Bob"}, Preview: "lunch?"},
		{ConversationID: "c2", Counterpart: store.Participant{Identity: "carol@z", Name: "Carol"}, Preview: "see you"},
	})

	if e, ok := in.At(2); !ok || e.ConversationID != "c2" {
		t.Fatalf("At(2) = %+v, %v", e, ok)
	}

	in.SetFilter("LUNCH")
	if e, ok := in.At(1); !ok || e.ConversationID != "c1" {
		t.Errorf("filtered At(1) = %+v, %v", e, ok)
	}
	if _, ok := in.At(2); ok {
		t.Error("filter should hide carol")
	}

	in.SetFilter("carol@")
	if e, ok := in.At(1); !ok || e.ConversationID != "c2" {
		t.Errorf("identity filter At(1) = %+v, %v", e, ok)
	}

	in.SetFilter("")
	if _, ok := in.At(2); !ok {
		t.Error("clearing the filter should show all entries")
	}
	if _, ok := in.At(0); ok {
		t.Error("row 0 is the header")
	}
}

func TestRenderThread(t *testing.T) {
	theme := ui.DefaultTheme()
	msgs := []chat.ViewMessage{
		{ID: 1, SenderID: "bob@y", Body: "hi [there]", Status: chat.Confirmed},
		{ClientMsgID: "c1", SenderID: "alice@x", Body: "pending one", Status: chat.Pending},
		{ClientMsgID: "c2", SenderID: "alice@x", Body: "broken", Status: chat.Failed, Err: errors.New("store down")},
	}
	out := renderThread(theme, "alice@x", chat.Live, nil, msgs, true, time.Now())

	for _, want := range []string{"bob@y", "You", "hi [there[]", "sending...", "failed: store down", "load older"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "hi [there") > strings.Index(out, "pending one") {
		t.Error("messages out of order")
	}

	errOut := renderThread(theme, "alice@x", chat.Error, errors.New("feed failed: boom"), nil, false, time.Now())
	if !strings.Contains(errOut, "feed failed: boom") || !strings.Contains(errOut, "retry") {
		t.Errorf("error render = %q", errOut)
	}
}

func TestRenderDetails(t *testing.T) {
	v := &chat.ConversationView{
		Conversation: store.Conversation{ID: "conv-1", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local).UnixMilli()},
		Counterpart:  store.Participant{Identity: "bob@y"},
	}
	out := renderDetails(ui.DefaultTheme(), v)
	for _, want := range []string{"bob@y", "conv-1", "2026-01-02 03:04:05", "Name:"} {
		if !strings.Contains(out, want) {
			t.Errorf("details missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHelp(t *testing.T) {
	out := renderHelp(ui.DefaultTheme(), []HelpSection{
		{Title: "Chat", Hints: []string{"o:older", "Enter:send"}},
	})
	for _, want := range []string{"Chat", "older", "Enter", "send"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q:\n%s", want, out)
		}
	}
}

func TestStatusBarLine(t *testing.T) {
	sb := NewStatusBar(ui.DefaultTheme())
	sb.SetProfile("main", "alice@x")
	sb.SetState("LIVE")
	sb.SetHints([]string{"q:quit"})
	sb.SetFlash("Send failed", model.Err)

	line := sb.line()
	for _, want := range []string{"main", "alice@x", "LIVE", "q:quit", "Send failed", ui.Tag(ui.DefaultTheme().FlashErrColor)} {
		if !strings.Contains(line, want) {
			t.Errorf("status line missing %q: %s", want, line)
		}
	}
}
