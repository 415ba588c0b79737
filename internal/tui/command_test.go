package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: "quit"}},
		{"  OPEN bob@y  ", Command{Name: "open", Args: "bob@y"}},
		{"open bob@y Bob Smith", Command{Name: "open", Args: "bob@y Bob Smith"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCommandCounterpart(t *testing.T) {
	p, err := ParseCommand("open bob@y Bob Smith").Counterpart()
	if err != nil {
		t.Fatal(err)
	}
	if p.Identity != "bob@y" || p.Name != "Bob Smith" {
		t.Errorf("counterpart = %+v", p)
	}

	if _, err := ParseCommand("open").Counterpart(); err == nil {
		t.Error("expected usage error without identity")
	}
}

func TestCommandCounterpartFromInvite(t *testing.T) {
	p, err := ParseCommand("open pawchat://chat?with=bob%40y&name=Bob").Counterpart()
	if err != nil {
		t.Fatal(err)
	}
	if p.Identity != "bob@y" || p.Name != "Bob" {
		t.Errorf("counterpart = %+v", p)
	}
}
