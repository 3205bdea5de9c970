package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as unicode blocks scaled to the largest value.
// Only the last width values are drawn when width is positive.
func Sparkline(values []float64, width int, color lipgloss.Color) string {
	if width > 0 && len(values) > width {
		values = values[len(values)-width:]
	}
	if len(values) == 0 {
		return ""
	}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(sparkBlocks)-1))
		buf.WriteRune(sparkBlocks[min(max(idx, 0), len(sparkBlocks)-1)])
	}

	style := lipgloss.NewStyle().Foreground(color).Background(theme.Active.Surface)
	return style.Render(buf.String())
}
