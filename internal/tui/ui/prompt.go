package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode is what a submitted prompt line means.
type PromptMode int

const (
	// PromptCommand takes a ":" command such as "open bob@example.com".
	PromptCommand PromptMode = iota
	// PromptFilter narrows the inbox.
	PromptFilter
)

const historySize = 50

// Prompt is a one-line command/filter input with per-mode history. Up and
// Down walk the history; in command mode, command names autocomplete.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	history  map[PromptMode][]string
	cursor   int // index into history[mode]; len means "new line"
	commands []string
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a prompt styled with theme.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input, history: make(map[PromptMode][]string)}
	input.SetAutocompleteFunc(p.complete)
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		// Leave Up and Down to the completion list while it is showing.
		if len(p.complete(p.GetText())) > 0 {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			p.recall(-1)
			return nil
		case tcell.KeyDown:
			p.recall(1)
			return nil
		}
		return ev
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(p.GetText())
			p.SetText("")
			p.remember(text)
			// An empty filter clears the filter; an empty command does nothing.
			if p.onSubmit != nil && (text != "" || p.mode == PromptFilter) {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	return p
}

// SetCommands sets the command names offered for completion.
func (p *Prompt) SetCommands(names []string) {
	p.commands = names
}

// SetOnSubmit sets the callback for Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Escape.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the prompt and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history[mode])
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// History returns the remembered lines of mode, oldest first.
func (p *Prompt) History(mode PromptMode) []string {
	return p.history[mode]
}

func (p *Prompt) remember(text string) {
	if text == "" {
		return
	}
	h := p.history[p.mode]
	if n := len(h); n > 0 && h[n-1] == text {
		p.cursor = n
		return
	}
	h = append(h, text)
	if len(h) > historySize {
		h = h[len(h)-historySize:]
	}
	p.history[p.mode] = h
	p.cursor = len(h)
}

func (p *Prompt) recall(delta int) {
	h := p.history[p.mode]
	next := p.cursor + delta
	if next < 0 || next > len(h) {
		return
	}
	p.cursor = next
	if next == len(h) {
		p.SetText("")
		return
	}
	p.SetText(h[next])
}

// complete offers command names while the first word is being typed.
func (p *Prompt) complete(text string) []string {
	if p.mode != PromptCommand || text == "" || strings.Contains(text, " ") {
		return nil
	}
	var out []string
	for _, name := range p.commands {
		if strings.HasPrefix(name, strings.ToLower(text)) && name != text {
			out = append(out, name)
		}
	}
	return out
}
