package timer

import (
	"errors"
	"testing"
	"time"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{30 * time.Second, "0:30"},
		{90 * time.Second, "1:30"},
		{3661 * time.Second, "1:01:01"},
		{SessionWindow, "5:00:00"},
		{59*time.Second + 999*time.Millisecond, "0:59"},
		{-5 * time.Second, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.in); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, 30 * time.Second, 90 * time.Second, 3661 * time.Second, 4*time.Hour + 59*time.Minute} {
		got, err := ParseTimeString(FormatTime(d))
		if err != nil {
			t.Fatalf("ParseTimeString(FormatTime(%v)): %v", d, err)
		}
		if got != d {
			t.Fatalf("round trip of %v gave %v", d, got)
		}
	}
}

func TestParseTimeString(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"05:00", 5 * time.Minute},
		{"90:30", 90*time.Minute + 30*time.Second},
		{"5:00:00", 5 * time.Hour},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{" 0:45 ", 45 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseTimeString(tt.in)
		if err != nil {
			t.Fatalf("ParseTimeString(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseTimeString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTimeStringRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"90",
		"1500",
		"1:2",
		"1:2:3:4",
		"ab:cd",
		"12:60",
		"1:60:00",
		"-1:00",
		"1::00",
		":30",
		"1:30:",
		"1.5:00",
		"1234567:00",
	} {
		if _, err := ParseTimeString(in); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Errorf("ParseTimeString(%q) err = %v, want ErrInvalidTimeFormat", in, err)
		}
	}
}
