package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/tui/ui"
)

// Details shows the open conversation's metadata.
type Details struct {
	*tview.TextView
	theme *ui.Theme
}

// NewDetails creates the conversation details view.
func NewDetails(theme *ui.Theme) *Details {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)
	return &Details{TextView: tv, theme: theme}
}

// Update renders v, or clears the view when v is nil.
func (d *Details) Update(v *chat.ConversationView) {
	d.Clear()
	if v == nil {
		return
	}
	_, _ = fmt.Fprint(d, renderDetails(d.theme, v))
	d.SetTitle(fmt.Sprintf(" %s ", tview.Escape(v.Counterpart.Identity)))
}

func renderDetails(theme *ui.Theme, v *chat.ConversationView) string {
	fg, ct := ui.Tag(theme.FgColor), ui.Tag(theme.CounterColor)
	rows := [][2]string{
		{"Name", v.Counterpart.Name},
		{"Identity", v.Counterpart.Identity},
		{"Image", v.ImageURL},
		{"Conversation", v.Conversation.ID},
		{"Created", time.UnixMilli(v.Conversation.CreatedAt).Format(time.DateTime)},
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, r := range rows {
		val := r[1]
		if val == "" {
			val = "-"
		}
		fmt.Fprintf(&b, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", ct, display(val))
	}
	return b.String()
}
