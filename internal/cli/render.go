package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette (Flexoki Dark), shared with the live view's default theme.
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// Table represents a bordered text table for CLI output. A row holding the
// single cell "---" renders as a separator.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows. The first
// column is left-aligned and the rest right-aligned.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		for i, h := range t.Headers {
			widths[i] = max(widths[i], lipgloss.Width(h))
		}
		for _, row := range t.Rows {
			if isSeparator(row) {
				continue
			}
			for i, cell := range row {
				if i < numCols {
					widths[i] = max(widths[i], lipgloss.Width(cell))
				}
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	b.WriteString(rule(widths, "╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + padRight(h, widths[i]) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		b.WriteString(rule(widths, "├", "┼", "┤"))
	}

	for _, row := range t.Rows {
		if isSeparator(row) {
			b.WriteString(rule(widths, "├", "┼", "┤"))
			continue
		}
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			var padded string
			if i == 0 {
				padded = " " + padRight(cell, widths[i]) + " "
			} else {
				padded = " " + padLeft(cell, widths[i]) + " "
			}
			b.WriteString(valueStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	b.WriteString(rule(widths, "╰", "┴", "╯"))
	return b.String()
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == "---"
}

func rule(widths []int, left, mid, right string) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(left))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < len(widths)-1 {
			b.WriteString(dimStyle.Render(mid))
		}
	}
	b.WriteString(dimStyle.Render(right))
	b.WriteString("\n")
	return b.String()
}

func padRight(s string, w int) string {
	return s + strings.Repeat(" ", max(0, w-lipgloss.Width(s)))
}

func padLeft(s string, w int) string {
	return strings.Repeat(" ", max(0, w-lipgloss.Width(s))) + s
}

// RenderKV renders aligned "label  value" lines.
func RenderKV(pairs [][2]string) string {
	labelW := 0
	for _, p := range pairs {
		labelW = max(labelW, lipgloss.Width(p[0]))
	}
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(padRight(p[0], labelW)))
		b.WriteString("  ")
		b.WriteString(valueStyle.Render(p[1]))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderProgressBar renders a 0-1 fraction as a text bar with a percentage.
func RenderProgressBar(progress float64, width int) string {
	if width <= 0 {
		return ""
	}
	progress = min(max(progress, 0), 1)
	filled := min(int(progress*float64(width)), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s", mutedStyle.Render(bar), FormatPercent(progress))
}

// RenderSparkline generates a unicode block sparkline from a series of values.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		idx = min(max(idx, 0), len(blocks)-1)
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

// RenderShareBar renders a horizontal bar sized by pct (0-100).
func RenderShareBar(pct float64, maxWidth int) string {
	n := min(max(int(pct/100*float64(maxWidth)), 0), maxWidth)
	return strings.Repeat("█", n)
}

// Warn styles a warning line.
func Warn(s string) string { return warnStyle.Render(s) }

// Error styles an error line.
func Error(s string) string { return errorStyle.Render(s) }

// Muted styles secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }
