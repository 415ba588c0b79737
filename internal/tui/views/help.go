package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/pawchat/internal/tui/ui"
)

// HelpSection is a titled group of key hints in "key:description" form.
type HelpSection struct {
	Title string
	Hints []string
}

// Help displays the key binding reference.
type Help struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelp creates the help view.
func NewHelp(theme *ui.Theme) *Help {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)
	return &Help{TextView: tv, theme: theme}
}

// Update renders the sections.
func (h *Help) Update(sections []HelpSection) {
	h.Clear()
	_, _ = fmt.Fprint(h, renderHelp(h.theme, sections))
}

func renderHelp(theme *ui.Theme, sections []HelpSection) string {
	kc := ui.Tag(theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, hint := range s.Hints {
			key, desc, ok := strings.Cut(hint, ":")
			if !ok {
				desc, key = key, ""
			}
			fmt.Fprintf(&b, "  [%s]%-16s[-:-:-] %s\n", kc, tview.Escape(key), tview.Escape(desc))
		}
	}
	return b.String()
}
