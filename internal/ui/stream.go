package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/soundprints/internal/sound"
)

// rowLines is the number of terminal lines one sound occupies.
const rowLines = 2

// StreamView is everything RenderStream needs to draw the list.
type StreamView struct {
	Items  []sound.Item
	Cursor int
	Width  int
	Height int
	Origin *sound.Location // for distances; nil uses the server value
	Fresh  map[string]bool // ids uploaded this session
	Now    time.Time
}

// RenderStream renders the sound list, scrolled so the cursor is visible.
func RenderStream(v StreamView) string {
	if len(v.Items) == 0 {
		return HelpStyle.Render("No sounds here yet. Pan with w/a/s/d or press 'c'/'t' to change filters.")
	}

	visible := v.Height / rowLines
	if visible < 1 {
		visible = 1
	}
	offset := scrollOffset(v.Cursor, len(v.Items), visible)

	var b strings.Builder
	for i := offset; i < len(v.Items) && i < offset+visible; i++ {
		b.WriteString(renderItemRow(v.Items[i], i == v.Cursor, v))
	}
	return b.String()
}

// scrollOffset returns the first visible row so that cursor is on screen.
func scrollOffset(cursor, total, visible int) int {
	if total == 0 || cursor < 0 {
		return 0
	}
	if cursor >= total {
		cursor = total - 1
	}
	if cursor >= visible {
		return cursor - visible + 1
	}
	return 0
}

// renderItemRow renders a sound as a title line and a meta line.
func renderItemRow(item sound.Item, selected bool, v StreamView) string {
	var badges []string
	if item.Category == sound.CategoryPremium {
		badges = append(badges, PremiumBadge.Render("★"))
	}
	if v.Fresh[item.ID] {
		badges = append(badges, FreshBadge.Render("new"))
	}
	badge := strings.Join(badges, " ")
	badgeWidth := lipgloss.Width(badge)

	titleWidth := v.Width - badgeWidth - 4
	if titleWidth < 20 {
		titleWidth = 20
	}
	title := item.Name
	if title == "" {
		title = "Untitled"
	}
	if item.Author.DisplayName != "" {
		title += " by " + item.Author.DisplayName
	}
	title = truncateRunes(title, titleWidth)

	style := NormalItem
	if selected {
		style = SelectedItem
	}
	line := style.Render(title)
	if badge != "" {
		line += " " + badge
	}

	meta := MetaItem.Render("  " + item.Summary(v.Origin, v.Now))
	return line + "\n" + meta + "\n"
}

// truncateRunes shortens s to at most n runes, marking the cut with "…".
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}

// RenderStatusBar renders the bottom status bar: position (or the loading
// indicator) on the left, key hints on the right.
func RenderStatusBar(cursor, total, width int, loading, hints string) string {
	var position string
	if loading != "" {
		position = " " + loading + " "
	} else if total == 0 {
		position = " 0/0 "
	} else {
		position = fmt.Sprintf(" %d/%d ", cursor+1, total)
	}

	gap := width - lipgloss.Width(position) - lipgloss.Width(hints) - 2
	if gap < 1 {
		gap = 1
	}
	return StatusBar.Width(width).Render(position + strings.Repeat(" ", gap) + hints)
}
