package tui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/pawchat/internal/store"
)

// CommandNames are the ":" commands the app understands, for completion.
var CommandNames = []string{"open", "inbox", "older", "details", "retry", "help", "quit"}

// Command represents a parsed ":" command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Counterpart parses "open" arguments: an identity or invite link,
// optionally followed by a display name, e.g. "bob@example.com Bob Smith".
func (c Command) Counterpart() (store.Participant, error) {
	identity, name, _ := strings.Cut(c.Args, " ")
	if identity == "" {
		return store.Participant{}, fmt.Errorf("usage: :%s <identity> [name]", c.Name)
	}
	p, err := ParseInvite(identity)
	if err != nil {
		return store.Participant{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	return p, nil
}
