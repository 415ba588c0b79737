package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/tui/ui"
)

// Thread shows one chat session: its messages and a composer.
type Thread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	self     string
	title    string
	onSend   func(text string)
}

// NewThread creates the chat view. self is the signed-in identity.
func NewThread(theme *ui.Theme, self string) *Thread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	t := &Thread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		self:     self,
	}
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || t.onSend == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			t.onSend(text)
			composer.SetText("")
		}
	})
	return t
}

// SetOnSend sets the callback for Enter in the composer.
func (t *Thread) SetOnSend(fn func(text string)) {
	t.onSend = fn
}

// SetTitle names the chat.
func (t *Thread) SetTitle(name string) {
	t.title = name
	t.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// Update renders the session state and view. Messages are oldest first.
func (t *Thread) Update(state chat.State, err error, msgs []chat.ViewMessage, hasMore bool) {
	t.messages.Clear()
	_, _ = fmt.Fprint(t.messages, renderThread(t.theme, t.self, state, err, msgs, hasMore, time.Now()))
	t.messages.ScrollToEnd()
	t.messages.SetTitle(fmt.Sprintf(" %s [%s] ", tview.Escape(t.title), state))
}

// Messages returns the message pane (for focus management).
func (t *Thread) Messages() *tview.TextView {
	return t.messages
}

// Composer returns the composer input (for focus management).
func (t *Thread) Composer() *tview.InputField {
	return t.composer
}

func renderThread(theme *ui.Theme, self string, state chat.State, err error, msgs []chat.ViewMessage, hasMore bool, now time.Time) string {
	var b strings.Builder
	switch state {
	case chat.Resolving, chat.LoadingHistory:
		fmt.Fprintf(&b, "[%s]Loading...[-]\n", ui.Tag(theme.PendingColor))
	case chat.Error:
		fmt.Fprintf(&b, "[%s]%s[-]\n[%s]Press r to retry.[-]\n\n",
			ui.Tag(theme.FlashErrColor), tview.Escape(fmt.Sprint(err)), ui.Tag(theme.PendingColor))
	}
	if hasMore {
		fmt.Fprintf(&b, "[%s]-- o: load older messages --[-]\n\n", ui.Tag(theme.PendingColor))
	}

	for _, m := range msgs {
		sender, color := m.SenderID, theme.PeerColor
		if m.SenderID == self {
			sender, color = "You", theme.SelfColor
		}
		ts := formatTimestamp(m.CreatedAt, now)
		mark := ""
		switch m.Status {
		case chat.Pending:
			mark = fmt.Sprintf(" [%s]sending...[-]", ui.Tag(theme.PendingColor))
		case chat.Failed:
			mark = fmt.Sprintf(" [%s]failed: %s[-]", ui.Tag(theme.FlashErrColor), tview.Escape(fmt.Sprint(m.Err)))
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			ui.Tag(color), display(sender), ts, mark, display(m.Body))
	}
	return b.String()
}
