package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatTokens(t *testing.T) {
	tests := map[int64]string{
		0:             "0",
		999:           "999",
		1234:          "1.2K",
		1_234_567:     "1.2M",
		1_234_567_890: "1.2B",
		-2500:         "-2.5K",
	}
	for in, want := range tests {
		if got := FormatTokens(in); got != want {
			t.Errorf("FormatTokens(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	tests := map[string]string{
		"0":         "$0.0000",
		"0.105":     "$0.1050",
		"0.00003":   "$0.0000",
		"3.14159":   "$3.142",
		"42.5":      "$42.50",
		"1234.5":    "$1,235",
		"-0.5":      "-$0.5000",
		"1000000.1": "$1,000,000",
	}
	for in, want := range tests {
		if got := FormatCost(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatCost(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCostDelta(t *testing.T) {
	a, b := decimal.RequireFromString("1.5"), decimal.RequireFromString("0.25")
	if got := FormatCostDelta(a, b); got != "+$1.250" {
		t.Errorf("up = %q", got)
	}
	if got := FormatCostDelta(b, a); got != "-$1.250" {
		t.Errorf("down = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                         "0s",
		45 * time.Second:          "45s",
		125 * time.Second:         "2m",
		time.Hour + 2*time.Minute: "1h 2m",
		-time.Second:              "0s",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatClockAndRate(t *testing.T) {
	if got := FormatClock(90 * time.Minute); got != "1:30:00" {
		t.Errorf("FormatClock = %q", got)
	}
	if got := FormatRate(1499.6); got != "1.5K/min" {
		t.Errorf("FormatRate = %q", got)
	}
	if got := FormatNumber(1234567); got != "1,234,567" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatAgo(time.Time{}); got != "never" {
		t.Errorf("FormatAgo(zero) = %q", got)
	}
	if got := FormatAgo(time.Now().Add(-3 * time.Hour)); !strings.Contains(got, "hours ago") {
		t.Errorf("FormatAgo = %q", got)
	}
}
