package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/burnclock/internal/timer"
	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

// ColorForPct returns green/yellow/orange/red for how much of a budget is used.
func ColorForPct(pct float64) lipgloss.Color {
	t := theme.Active
	switch {
	case pct >= 0.9:
		return t.Red
	case pct >= 0.7:
		return t.Orange
	case pct >= 0.5:
		return t.Yellow
	default:
		return t.Green
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// CountdownBar renders session progress with the remaining time after it.
func CountdownBar(pct float64, remaining time.Duration, paused bool, width int) string {
	t := theme.Active
	pct = clamp01(pct)

	color := ColorForPct(pct)
	if paused {
		color = t.TextMuted
	}
	barW := max(width-lipgloss.Width(timer.FormatTime(remaining))-8, 10)
	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barW),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	pctStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	remStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	return bar.ViewAs(pct) + " " +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", pct*100)) + " " +
		remStyle.Render(timer.FormatTime(remaining))
}

// RateLimitBar renders a labeled subscription window with percentage and
// time until it resets.
func RateLimitBar(label string, pct float64, resetsAt, now time.Time, labelW, barWidth int) string {
	t := theme.Active
	pct = clamp01(pct)

	bar := progress.New(
		progress.WithSolidFill(string(ColorForPct(pct))),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	pctStyle := lipgloss.NewStyle().Foreground(ColorForPct(pct)).Bold(true)
	countdownStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	countdown := ""
	if !resetsAt.IsZero() {
		if d := resetsAt.Sub(now); d > 0 {
			countdown = "resets in " + formatCountdown(d)
		} else {
			countdown = "resets now"
		}
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
		bar.ViewAs(pct) + " " +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", pct*100)) + "  " +
		countdownStyle.Render(countdown)
}

func formatCountdown(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
