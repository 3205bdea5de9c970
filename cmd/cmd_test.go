package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/theirongolddev/burnclock/internal/claudeai"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/timer"
)

func TestConvertTime(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"5:00:00", "18000000"},
		{"01:30", "90000"},
		{"90500", "1:30"},
		{"3600000", "1:00:00"},
	}
	for _, tt := range tests {
		got, err := convertTime(tt.in)
		if err != nil {
			t.Fatalf("convertTime(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("convertTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := convertTime("1:75"); !errors.Is(err, timer.ErrInvalidTimeFormat) {
		t.Errorf("bad clock err = %v", err)
	}
	if _, err := convertTime("NaN"); !errors.Is(err, timer.ErrInvalidDuration) {
		t.Errorf("NaN err = %v", err)
	}
}

func TestStartDuration(t *testing.T) {
	defer func() {
		flagStartDuration = ""
		flagStartSyncWindow = false
	}()
	cfg := config.DefaultConfig()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	d, err := startDuration(cfg, nil, now)
	if err != nil || d != 5*time.Hour {
		t.Fatalf("default = %v, %v", d, err)
	}

	flagStartDuration = "45:00"
	if d, err := startDuration(cfg, nil, now); err != nil || d != 45*time.Minute {
		t.Fatalf("--duration = %v, %v", d, err)
	}
	flagStartDuration = ""

	flagStartSyncWindow = true
	if _, err := startDuration(cfg, nil, now); err == nil {
		t.Fatal("--sync-window without a key should fail")
	}
	sub := &claudeai.SubscriptionData{Usage: &claudeai.ParsedUsage{
		FiveHour: &claudeai.ParsedWindow{Pct: 0.4, ResetsAt: now.Add(2*time.Hour + 10*time.Minute)},
	}}
	if d, err := startDuration(cfg, sub, now); err != nil || d != 2*time.Hour+10*time.Minute {
		t.Fatalf("--sync-window = %v, %v", d, err)
	}
	sub.Usage.FiveHour.ResetsAt = now.Add(-time.Minute)
	if _, err := startDuration(cfg, sub, now); err == nil {
		t.Fatal("expired window should fail")
	}
}

func TestHelpers(t *testing.T) {
	if got := shortModel("claude-opus-4-1"); got != "opus-4-1" {
		t.Errorf("shortModel = %q", got)
	}
	if got := truncate("burnclock-project", 6); got != "burnc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := maskKey("sk-ant-sid01-abcdefghijkl"); got != "sk-ant-s...ijkl" {
		t.Errorf("maskKey = %q", got)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"start", "cost", "costs", "sessions", "daemon", "status", "config", "setup", "timefmt", "import", "summary", "daily", "models"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
