package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

// RenderStatusBar renders key hints on the left and info on the right.
func RenderStatusBar(width int, hints, info string) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Width(width)

	left := " " + hints
	right := info + " "
	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
