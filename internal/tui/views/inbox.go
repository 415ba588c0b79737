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

// Inbox is the conversation list.
type Inbox struct {
	*tview.Table
	theme   *ui.Theme
	entries []chat.InboxEntry
	visible []chat.InboxEntry
	filter  string
}

// NewInbox creates the conversation list table.
func NewInbox(theme *ui.Theme) *Inbox {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &Inbox{Table: table, theme: theme}
}

// Update replaces the entries and re-renders, keeping the filter.
func (in *Inbox) Update(entries []chat.InboxEntry) {
	in.entries = entries
	in.render()
}

// SetFilter narrows the list to entries whose name, identity or preview
// contains filter, ignoring case. An empty filter shows everything.
func (in *Inbox) SetFilter(filter string) {
	in.filter = filter
	in.render()
}

// Filter returns the active filter.
func (in *Inbox) Filter() string {
	return in.filter
}

func (in *Inbox) matches(e chat.InboxEntry) bool {
	if in.filter == "" {
		return true
	}
	f := strings.ToLower(in.filter)
	for _, s := range []string{e.Counterpart.Name, e.Counterpart.Identity, e.Preview} {
		if strings.Contains(strings.ToLower(s), f) {
			return true
		}
	}
	return false
}

func (in *Inbox) render() {
	in.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" IDENTITY", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		in.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(in.theme.TableHeaderFg).
			SetBackgroundColor(in.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	in.visible = in.visible[:0]
	for _, e := range in.entries {
		if !in.matches(e) {
			continue
		}
		in.visible = append(in.visible, e)
		row := len(in.visible)
		name := e.Counterpart.Name
		if name == "" {
			name = e.Counterpart.Identity
		}
		in.SetCell(row, 0, tview.NewTableCell(" "+display(name)).SetExpansion(1).SetTextColor(in.theme.FgColor))
		in.SetCell(row, 1, tview.NewTableCell(" "+display(e.Counterpart.Identity)).SetExpansion(1).SetTextColor(in.theme.FgColor))
		in.SetCell(row, 2, tview.NewTableCell(" "+display(oneLine(e.Preview))).SetExpansion(2).SetTextColor(in.theme.FgColor))
		in.SetCell(row, 3, tview.NewTableCell(formatTimestamp(e.LastMessageAt, time.Now())).SetAlign(tview.AlignRight).SetTextColor(in.theme.FgColor))
	}

	if in.filter != "" {
		in.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(in.visible), len(in.entries), tview.Escape(in.filter)))
	} else {
		in.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(in.entries)))
	}
}

// Selected returns the highlighted entry.
func (in *Inbox) Selected() (chat.InboxEntry, bool) {
	row, _ := in.GetSelection()
	return in.At(row)
}

// At returns the nth visible entry (1-based, matching table rows).
func (in *Inbox) At(n int) (chat.InboxEntry, bool) {
	if n < 1 || n > len(in.visible) {
		return chat.InboxEntry{}, false
	}
	return in.visible[n-1], true
}

// formatTimestamp shows the time of day for today and the date otherwise.
func formatTimestamp(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
