// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/timer"
)

var (
	thousand = decimal.NewFromInt(1000)
	ten      = decimal.NewFromInt(10)
	one      = decimal.NewFromInt(1)
)

// FormatTokens formats a token count with human-readable suffixes.
// e.g., 1234 -> "1.2K", 1234567 -> "1.2M", 1234567890 -> "1.2B"
func FormatTokens(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatCost formats a USD amount. Amounts under a dollar keep four decimal
// places since a single session often costs fractions of a cent.
func FormatCost(cost decimal.Decimal) string {
	if cost.IsNegative() {
		return "-" + FormatCost(cost.Neg())
	}
	switch {
	case cost.GreaterThanOrEqual(thousand):
		return "$" + humanize.Comma(cost.Round(0).IntPart())
	case cost.GreaterThanOrEqual(ten):
		return "$" + cost.StringFixed(2)
	case cost.GreaterThanOrEqual(one):
		return "$" + cost.StringFixed(3)
	default:
		return "$" + cost.StringFixed(4)
	}
}

// FormatCostDelta formats current-previous with an explicit sign.
func FormatCostDelta(current, previous decimal.Decimal) string {
	delta := current.Sub(previous)
	if delta.IsNegative() {
		return FormatCost(delta)
	}
	return "+" + FormatCost(delta)
}

// FormatDuration formats a duration for summaries.
// e.g., 1h2m5s -> "1h 2m", 125s -> "2m", 45s -> "45s"
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}

	hours := secs / 3600
	mins := (secs % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatClock renders a countdown value as M:SS or H:MM:SS.
func FormatClock(d time.Duration) string {
	return timer.FormatTime(d)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatRate formats a tokens-per-minute burn rate.
func FormatRate(tokensPerMinute float64) string {
	return FormatTokens(int64(tokensPerMinute+0.5)) + "/min"
}

// FormatAgo renders t relative to now, e.g. "3 hours ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// FormatDayOfWeek returns a 3-letter day abbreviation from a weekday number.
func FormatDayOfWeek(weekday int) string {
	days := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if weekday >= 0 && weekday < 7 {
		return days[weekday]
	}
	return "???"
}
