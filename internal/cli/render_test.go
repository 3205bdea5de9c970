package cli

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Model", "Cost"},
		Rows: [][]string{
			{"claude-sonnet-4-5", "$0.1050"},
			{"---"},
			{"total", "$12.50"},
		},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("lines = %d:\n%s", len(lines), out)
	}
	width := lipgloss.Width(lines[0])
	for i, l := range lines {
		if lipgloss.Width(l) != width {
			t.Errorf("line %d width %d, want %d: %q", i, lipgloss.Width(l), width, l)
		}
	}
	if !strings.Contains(lines[5], "│ total             │  $12.50 │") {
		t.Errorf("total row = %q", lines[5])
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if got := RenderTable(Table{}); got != "" {
		t.Fatalf("empty table = %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	got := RenderProgressBar(0.5, 10)
	if got != "[█████░░░░░] 50.0%" {
		t.Fatalf("bar = %q", got)
	}
	if got := RenderProgressBar(2, 4); got != "[████] 100.0%" {
		t.Fatalf("clamped bar = %q", got)
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 7, 3.5}); got != "▁█▄" {
		t.Fatalf("sparkline = %q", got)
	}
	if got := RenderSparkline([]float64{0, 0}); got != "▁▁" {
		t.Fatalf("flat sparkline = %q", got)
	}
}

func TestRenderShareBar(t *testing.T) {
	if got := RenderShareBar(50, 20); got != strings.Repeat("█", 10) {
		t.Fatalf("bar = %q", got)
	}
	if got := RenderShareBar(150, 4); got != "████" {
		t.Fatalf("clamped = %q", got)
	}
}
