package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/burnclock/internal/clock"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/session"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newLiveApp(t *testing.T, opts Options) (App, *session.Manager, *clock.Fake, string) {
	t.Helper()
	clk := clock.NewFake(t0)
	mgr := session.NewManager(meter.RateTable{
		"claude-sonnet-4-5": meter.NewRate(3, 15),
	}, session.WithClock(clk))
	t.Cleanup(mgr.Close)

	snap, err := mgr.Start(session.StartOptions{Model: "claude-sonnet-4-5", Duration: time.Hour, Label: "refactor"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	app := NewApp(mgr, snap.Session.ID, nil, opts)
	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(App), mgr, clk, snap.Session.ID
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestAppViewShowsCountdown(t *testing.T) {
	app, _, _, _ := newLiveApp(t, Options{})
	v := app.View()
	for _, want := range []string{"burnclock", "refactor", "1:00:00", "ACTIVE", "Tokens", "Est. cost"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestAppTooNarrow(t *testing.T) {
	app, _, _, _ := newLiveApp(t, Options{})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	if !strings.Contains(m.(App).View(), "too narrow") {
		t.Fatal("expected narrow warning")
	}
}

func TestAppPauseResumeKey(t *testing.T) {
	app, mgr, _, id := newLiveApp(t, Options{})

	m, _ := app.Update(key("p"))
	app = m.(App)
	if app.Snapshot().Session.Status != model.StatusPaused {
		t.Fatalf("status = %s, want paused", app.Snapshot().Session.Status)
	}
	if !strings.Contains(app.View(), "[p]resume") {
		t.Fatal("hint should offer resume")
	}

	m, _ = app.Update(key(" "))
	app = m.(App)
	snap, _ := mgr.Get(id)
	if snap.Session.Status != model.StatusActive || app.Snapshot().Session.Status != model.StatusActive {
		t.Fatalf("status = %s, want active", snap.Session.Status)
	}
}

func TestAppStopKey(t *testing.T) {
	app, mgr, clk, id := newLiveApp(t, Options{})
	clk.Advance(10 * time.Minute)

	m, cmd := app.Update(key("s"))
	app = m.(App)
	if cmd != nil {
		t.Fatal("stop without ExitOnComplete should not quit")
	}
	if !app.Done() {
		t.Fatal("app should be done after stop")
	}
	snap, _ := mgr.Get(id)
	if snap.Session.EndReason != model.EndStopped {
		t.Fatalf("end reason = %q", snap.Session.EndReason)
	}
	if !strings.Contains(app.View(), "COMPLETED (stopped)") {
		t.Fatal("view should show the stopped badge")
	}

	// Further control keys are ignored once closed.
	m, _ = app.Update(key("p"))
	if m.(App).Snapshot().Session.Status != model.StatusCompleted {
		t.Fatal("closed session changed state")
	}
}

func TestAppUsageEventsFeedBurn(t *testing.T) {
	app, mgr, clk, id := newLiveApp(t, Options{})

	clk.Advance(30 * time.Second)
	u, err := mgr.Record(id, meter.Delta{InputTokens: 1000, OutputTokens: 200})
	if err != nil {
		t.Fatal(err)
	}
	m, cmd := app.Update(eventMsg(session.Event{Type: session.EventUsage, SessionID: id, At: u.At, Usage: &u}))
	app = m.(App)
	if cmd != nil {
		t.Fatal("nil event channel should not schedule a wait")
	}

	clk.Advance(2 * time.Minute)
	u, _ = mgr.Record(id, meter.Delta{OutputTokens: 300})
	m, _ = app.Update(eventMsg(session.Event{Type: session.EventUsage, SessionID: id, At: u.At, Usage: &u}))
	app = m.(App)

	if len(app.burn) != 3 || app.burn[0] != 1200 || app.burn[2] != 300 {
		t.Fatalf("burn = %v", app.burn)
	}
	if app.Snapshot().Usage.TotalTokens() != 1500 {
		t.Fatalf("tokens = %d", app.Snapshot().Usage.TotalTokens())
	}
	if !strings.Contains(app.View(), "1,500") {
		t.Fatal("view should show the token total")
	}
}

func TestAppIgnoresOtherSessions(t *testing.T) {
	app, _, _, _ := newLiveApp(t, Options{})
	al := meter.Alert{Kind: meter.AlertCost}
	m, _ := app.Update(eventMsg(session.Event{Type: session.EventAlert, SessionID: "other", Alert: &al}))
	if m.(App).lastAlert != nil {
		t.Fatal("alert from another session was applied")
	}
}

func TestAppExitOnComplete(t *testing.T) {
	app, _, clk, id := newLiveApp(t, Options{ExitOnComplete: true})
	clk.Advance(time.Hour)

	_, cmd := app.Update(eventMsg(session.Event{Type: session.EventCompleted, SessionID: id}))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("command is not tea.Quit")
	}
}

func TestAppWaitsOnEventChannel(t *testing.T) {
	ch := make(chan session.Event, 1)
	ch <- session.Event{Type: session.EventTick, SessionID: "x"}
	msg := waitForEvent(ch)()
	if ev, ok := msg.(eventMsg); !ok || ev.SessionID != "x" {
		t.Fatalf("msg = %#v", msg)
	}
	close(ch)
	if _, ok := waitForEvent(ch)().(eventsClosedMsg); !ok {
		t.Fatal("closed channel should report eventsClosedMsg")
	}
}

type failingController struct{ session.Snapshot }

func (f failingController) Get(string) (session.Snapshot, error) { return f.Snapshot, nil }
func (f failingController) Pause(string) (session.Snapshot, error) {
	return session.Snapshot{}, errors.New("boom")
}
func (f failingController) Resume(string) (session.Snapshot, error) { return f.Snapshot, nil }
func (f failingController) Stop(string) (session.Snapshot, error)   { return f.Snapshot, nil }

func TestAppShowsControllerErrors(t *testing.T) {
	ctl := failingController{session.Snapshot{Session: model.Session{ID: "s", Status: model.StatusActive, Duration: time.Hour}}}
	app := NewApp(ctl, "s", nil, Options{})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = m.(App).Update(key("p"))
	if !strings.Contains(m.(App).View(), "error: boom") {
		t.Fatal("controller error not shown")
	}
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	vals := SetupValuesFrom(cfg)
	vals.Duration = "1:30:00"
	vals.CacheWrite = "cache_write"
	vals.Theme = "tokyo-night"
	vals.SessionKey = "  sk-ant-sid01-abc "

	got, err := vals.Apply(cfg)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Session.Duration != "1:30:00" || got.Billing.CacheWrite != "cache_write" {
		t.Fatalf("session/billing = %+v %+v", got.Session, got.Billing)
	}
	if got.Appearance.Theme != "tokyo-night" || got.ClaudeAI.SessionKey != "sk-ant-sid01-abc" {
		t.Fatalf("appearance/key = %q %q", got.Appearance.Theme, got.ClaudeAI.SessionKey)
	}
}

func TestSetupValuesRejectInvalid(t *testing.T) {
	cfg := config.DefaultConfig()
	for name, mutate := range map[string]func(*SetupValues){
		"duration": func(v *SetupValues) { v.Duration = "90" },
		"zero":     func(v *SetupValues) { v.Duration = "0:00" },
		"billing":  func(v *SetupValues) { v.CacheWrite = "free" },
		"key":      func(v *SetupValues) { v.SessionKey = "sk-ant-admin-123" },
	} {
		vals := SetupValuesFrom(cfg)
		mutate(&vals)
		if _, err := vals.Apply(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
