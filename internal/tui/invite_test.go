package tui

import (
	"testing"

	"github.com/matheus3301/pawchat/internal/store"
)

func TestInviteRoundTrip(t *testing.T) {
	tests := []store.Participant{
		{Identity: "alice@example.com", Name: "Alice Doe"},
		{Identity: "bob_1@example.com"},
		{Identity: "c+tag@example.com", Name: "C & D"},
	}
	for _, want := range tests {
		link := InviteURL(want)
		got, err := ParseInvite(link)
		if err != nil {
			t.Fatalf("ParseInvite(%q): %v", link, err)
		}
		if got != want {
			t.Errorf("ParseInvite(%q) = %+v, want %+v", link, got, want)
		}
	}
}

func TestInviteURLFormat(t *testing.T) {
	got := InviteURL(store.Participant{Identity: "alice@example.com"})
	if want := "pawchat://chat?with=alice%40example.com"; got != want {
		t.Errorf("InviteURL = %q, want %q", got, want)
	}
}

func TestParseInviteBareIdentity(t *testing.T) {
	p, err := ParseInvite("  bob@example.com ")
	if err != nil {
		t.Fatal(err)
	}
	if p.Identity != "bob@example.com" || p.Name != "" {
		t.Errorf("ParseInvite = %+v", p)
	}
}

func TestParseInviteErrors(t *testing.T) {
	for _, in := range []string{"", "pawchat://chat", "pawchat://chat?name=x", "pawchat://other?with=a@b"} {
		if _, err := ParseInvite(in); err == nil {
			t.Errorf("ParseInvite(%q) = nil error", in)
		}
	}
}
