package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/matheus3301/pawchat/internal/store"
)

const inviteScheme = "pawchat"

// InviteURL returns the deep link that opens a chat with p, e.g.
// pawchat://chat?with=alice%40example.com&name=Alice.
func InviteURL(p store.Participant) string {
	q := url.Values{"with": {p.Identity}}
	if p.Name != "" {
		q.Set("name", p.Name)
	}
	return (&url.URL{Scheme: inviteScheme, Host: "chat", RawQuery: q.Encode()}).String()
}

// ParseInvite accepts either an InviteURL or a bare identity.
func ParseInvite(s string) (store.Participant, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, inviteScheme+"://") {
		if s == "" {
			return store.Participant{}, fmt.Errorf("empty identity")
		}
		return store.Participant{Identity: s}, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return store.Participant{}, fmt.Errorf("parse invite: %w", err)
	}
	if u.Host != "chat" {
		return store.Participant{}, fmt.Errorf("unsupported invite %q", s)
	}
	q := u.Query()
	p := store.Participant{Identity: strings.TrimSpace(q.Get("with")), Name: q.Get("name")}
	if p.Identity == "" {
		return store.Participant{}, fmt.Errorf("invite %q has no identity", s)
	}
	return p, nil
}
