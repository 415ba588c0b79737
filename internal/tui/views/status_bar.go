package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/pawchat/internal/tui/model"
	"github.com/matheus3301/pawchat/internal/tui/ui"
)

// StatusBar shows the profile, identity, chat state, key hints and the
// current flash message.
type StatusBar struct {
	*tview.TextView
	theme      *ui.Theme
	profile    string
	identity   string
	state      string
	hints      []string
	flash      string
	flashLevel model.Level
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, theme: theme}
}

// SetProfile sets the profile and identity shown on the left.
func (sb *StatusBar) SetProfile(profile, identity string) {
	sb.profile, sb.identity = profile, identity
	sb.render()
}

// SetState sets the chat state, or "" outside a chat.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetHints sets the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a transient message.
func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash, sb.flashLevel = msg, level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	parts := []string{fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(sb.profile))}
	if sb.identity != "" {
		parts = append(parts, tview.Escape(sb.identity))
	}
	if sb.state != "" {
		parts = append(parts, sb.state)
	}
	if len(sb.hints) > 0 {
		parts = append(parts, fmt.Sprintf("[%s]%s[-]", ui.Tag(sb.theme.MenuKeyColor), tview.Escape(strings.Join(sb.hints, " "))))
	}
	if sb.flash != "" {
		color := sb.theme.FlashInfoColor
		switch sb.flashLevel {
		case model.Warn:
			color = sb.theme.FlashWarnColor
		case model.Err:
			color = sb.theme.FlashErrColor
		}
		parts = append(parts, fmt.Sprintf("[%s]%s[-]", ui.Tag(color), tview.Escape(sb.flash)))
	}
	return strings.Join(parts, " | ")
}
