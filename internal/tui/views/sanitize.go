package views

import (
	"strings"

	"github.com/rivo/tview"
)

// sanitizeForTerminal drops codepoints that tcell renders with the wrong
// width: skin tone modifiers, zero width joiners and variation selectors.
// A thumbs-up with a skin tone becomes a plain thumbs-up.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF, // skin tones
			r == 0x200D, // ZWJ
			r >= 0xFE00 && r <= 0xFE0F,
			r >= 0xE0100 && r <= 0xE01EF:
			return -1
		}
		return r
	}, s)
}

// display prepares user text for a tview cell or text view.
func display(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

// oneLine collapses newlines so a preview fits a table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
