package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestLayoutRowSumsToWidth(t *testing.T) {
	for _, tc := range []struct{ total, n int }{{80, 4}, {81, 4}, {7, 3}, {120, 5}} {
		sum := 0
		for _, w := range LayoutRow(tc.total, tc.n) {
			sum += w
		}
		if sum != tc.total {
			t.Errorf("LayoutRow(%d, %d) sums to %d", tc.total, tc.n, sum)
		}
	}
	if LayoutRow(10, 0) != nil {
		t.Error("zero columns should be nil")
	}
}

func TestMetricCardRowWidth(t *testing.T) {
	theme.SetActive("flexoki-dark")
	row := MetricCardRow([]Metric{
		{Label: "Tokens", Value: "1.2M"},
		{Label: "Cost", Value: "$0.1050", Note: "+$0.01"},
		{Label: "Burn", Value: "200/min"},
	}, 90)

	lines := strings.Split(row, "\n")
	for i, l := range lines {
		if w := lipgloss.Width(l); w != 90 {
			t.Errorf("line %d width = %d, want 90", i, w)
		}
	}
	if !strings.Contains(row, "$0.1050") || !strings.Contains(row, "+$0.01") {
		t.Fatalf("row missing values:\n%s", row)
	}
}

func TestContentCardHasTitle(t *testing.T) {
	card := ContentCard("Tokens", "input 12", 30, true)
	if !strings.Contains(card, "Tokens") || !strings.Contains(card, "input 12") {
		t.Fatalf("card = %q", card)
	}
	if CardInnerWidth(30) != 26 || CardInnerWidth(5) != 10 {
		t.Fatal("inner width")
	}
}

func TestSparklineKeepsTail(t *testing.T) {
	got := Sparkline([]float64{9, 9, 0, 4, 8}, 3, theme.Active.Accent)
	if got != "▁▄█" {
		t.Fatalf("sparkline = %q", got)
	}
	if Sparkline(nil, 10, theme.Active.Accent) != "" {
		t.Fatal("empty sparkline")
	}
}

func TestCountdownBarShowsRemaining(t *testing.T) {
	bar := CountdownBar(0.25, 3*time.Hour+45*time.Minute, false, 60)
	if !strings.Contains(bar, "25%") || !strings.Contains(bar, "3:45:00") {
		t.Fatalf("bar = %q", bar)
	}
}

func TestRateLimitBar(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	bar := RateLimitBar("5h", 0.42, now.Add(90*time.Minute), now, 4, 20)
	if !strings.Contains(bar, "42%") || !strings.Contains(bar, "resets in 1h 30m") {
		t.Fatalf("bar = %q", bar)
	}
	if ColorForPct(0.95) != theme.Active.Red || ColorForPct(0.1) != theme.Active.Green {
		t.Fatal("ColorForPct thresholds")
	}
}

func TestStatusBarWidth(t *testing.T) {
	bar := RenderStatusBar(60, "[p]ause  [q]uit", "claude-sonnet-4-5")
	if lipgloss.Width(bar) != 60 {
		t.Fatalf("width = %d", lipgloss.Width(bar))
	}
}
