// Package tui provides the Bubble Tea live view of a running session.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/burnclock/internal/claudeai"
	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/session"
	"github.com/theirongolddev/burnclock/internal/tui/components"
	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

// Controller is the part of the session manager the view drives.
type Controller interface {
	Get(id string) (session.Snapshot, error)
	Pause(id string) (session.Snapshot, error)
	Resume(id string) (session.Snapshot, error)
	Stop(id string) (session.Snapshot, error)
}

// Options tunes the live view.
type Options struct {
	// ExitOnComplete quits as soon as the session completes.
	ExitOnComplete bool
	// Subscription, when set, adds the claude.ai usage windows.
	Subscription *claudeai.SubscriptionData
	// Following is the transcript being tailed, shown in the status bar.
	Following string
}

type eventMsg session.Event

type eventsClosedMsg struct{}

type tickMsg time.Time

const (
	minTerminalWidth = 60
	maxContentWidth  = 120
	refreshInterval  = 500 * time.Millisecond
)

// App is the root Bubble Tea model: one session, live.
type App struct {
	ctl    Controller
	id     string
	events <-chan session.Event
	opts   Options

	snap      session.Snapshot
	err       error
	lastAlert *meter.Alert
	lastTotal int64
	burn      []float64 // tokens per minute since start
	done      bool

	width    int
	height   int
	showHelp bool
}

// NewApp creates the live view for session id. events should carry the
// manager's events; the view ignores other sessions.
func NewApp(ctl Controller, id string, events <-chan session.Event, opts Options) App {
	a := App{ctl: ctl, id: id, events: events, opts: opts}
	a.refresh()
	a.lastTotal = a.snap.Usage.TotalTokens()
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(waitForEvent(a.events), tickCmd())
}

// Done reports whether the session has closed.
func (a App) Done() bool { return a.done }

// Snapshot returns the last state the view rendered.
func (a App) Snapshot() session.Snapshot { return a.snap }

func (a *App) refresh() {
	snap, err := a.ctl.Get(a.id)
	if err != nil {
		a.err = err
		return
	}
	a.snap = snap
	a.done = snap.Session.Status.Closed()
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg.String())

	case eventMsg:
		ev := session.Event(msg)
		if ev.SessionID == a.id {
			a.applyEvent(ev)
			if a.done && a.opts.ExitOnComplete {
				return a, tea.Quit
			}
		}
		return a, waitForEvent(a.events)

	case eventsClosedMsg:
		return a, nil

	case tickMsg:
		a.refresh()
		return a, tickCmd()
	}
	return a, nil
}

func (a App) handleKey(key string) (tea.Model, tea.Cmd) {
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q", "ctrl+c", "esc":
		return a, tea.Quit
	case "?":
		a.showHelp = true
	case "p", " ":
		if a.done {
			return a, nil
		}
		op := a.ctl.Pause
		if a.snap.Session.Status == model.StatusPaused {
			op = a.ctl.Resume
		}
		a.apply(op(a.id))
	case "s":
		if a.done {
			return a, nil
		}
		a.apply(a.ctl.Stop(a.id))
		if a.opts.ExitOnComplete {
			return a, tea.Quit
		}
	}
	return a, nil
}

func (a *App) apply(snap session.Snapshot, err error) {
	if err != nil {
		if !errors.Is(err, session.ErrSessionClosed) {
			a.err = err
		}
		a.refresh()
		return
	}
	a.err = nil
	a.snap = snap
	a.done = snap.Session.Status.Closed()
}

func (a *App) applyEvent(ev session.Event) {
	switch ev.Type {
	case session.EventUsage:
		if ev.Usage != nil {
			a.addBurn(ev.At, ev.Usage.TotalTokens-a.lastTotal)
			a.lastTotal = ev.Usage.TotalTokens
		}
	case session.EventAlert:
		a.lastAlert = ev.Alert
	case session.EventCompleted:
		if ev.Error != "" {
			a.err = errors.New(ev.Error)
		}
	}
	a.refresh()
}

func (a *App) addBurn(at time.Time, tokens int64) {
	if tokens <= 0 {
		return
	}
	idx := max(int(at.Sub(a.snap.Session.StartTime)/time.Minute), 0)
	for len(a.burn) <= idx {
		a.burn = append(a.burn, 0)
	}
	a.burn[idx] += float64(tokens)
}

func waitForEvent(events <-chan session.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols).\n  burnclock needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.contentWidth()
	s := a.snap

	titleStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	clockStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true)

	var b strings.Builder

	title := titleStyle.Render("burnclock")
	if s.Session.Label != "" {
		title += mutedStyle.Render("  " + s.Session.Label)
	}
	if s.Session.Project != "" {
		title += mutedStyle.Render("  [" + s.Session.Project + "]")
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	// Countdown
	clockLine := clockStyle.Render(cli.FormatClock(s.Timer.Remaining)) +
		"  " + a.statusBadge() +
		mutedStyle.Render(fmt.Sprintf("  elapsed %s of %s",
			cli.FormatClock(s.Timer.Elapsed), cli.FormatClock(s.Session.Duration)))
	b.WriteString(components.ContentCard("Remaining", clockLine+"\n"+
		components.CountdownBar(s.Timer.Progress, s.Timer.Remaining,
			s.Session.Status == model.StatusPaused, components.CardInnerWidth(w)),
		w, !a.done))
	b.WriteString("\n")

	// Headline metrics
	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Tokens", Value: cli.FormatTokens(s.Usage.TotalTokens()), Note: cli.FormatNumber(s.Usage.TotalTokens())},
		{Label: "Est. cost", Value: cli.FormatCost(s.Usage.EstimatedCost), Note: s.Usage.Model},
		{Label: "Burn rate", Value: cli.FormatRate(s.BurnRate.TokensPerMinute), Note: cli.FormatCost(s.BurnRate.CostPerHour) + "/h"},
		{Label: "Projected", Value: cli.FormatCost(s.Projection.TotalCost), Note: cli.FormatTokens(s.Projection.TotalTokens) + " tokens"},
	}, w))
	b.WriteString("\n")

	// Breakdown + activity
	widths := components.LayoutRow(w, 2)
	breakdown := cli.RenderKV([][2]string{
		{"input", cli.FormatNumber(s.Usage.InputTokens)},
		{"output", cli.FormatNumber(s.Usage.OutputTokens)},
		{"cache write", cli.FormatNumber(s.Usage.CacheCreationTokens)},
		{"cache read", cli.FormatNumber(s.Usage.CacheReadTokens)},
	})
	activity := cli.RenderKV([][2]string{
		{"tool calls", cli.FormatNumber(s.Usage.ToolCalls)},
		{"messages", cli.FormatNumber(s.Usage.MessageCount)},
		{"objectives", cli.FormatNumber(s.Usage.ObjectivesCompleted)},
	})
	spark := components.Sparkline(a.burn, components.CardInnerWidth(widths[1]), t.Accent)
	if spark == "" {
		spark = mutedStyle.Render("no usage yet")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		components.ContentCard("Tokens", strings.TrimRight(breakdown, "\n"), widths[0], false),
		components.ContentCard("Activity", strings.TrimRight(activity, "\n")+"\n\n"+spark, widths[1], false),
	))
	b.WriteString("\n")

	if sub := a.viewSubscription(w); sub != "" {
		b.WriteString(sub)
		b.WriteString("\n")
	}

	if a.lastAlert != nil {
		warn := lipgloss.NewStyle().Foreground(t.Orange).Bold(true)
		b.WriteString(warn.Render("  " + alertText(*a.lastAlert)))
		b.WriteString("\n")
	}
	if a.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(t.Red)
		b.WriteString(errStyle.Render("  error: " + a.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(components.RenderStatusBar(w, a.hints(), a.statusInfo()))
	return b.String()
}

func (a App) viewSubscription(w int) string {
	sub := a.opts.Subscription
	if sub == nil || sub.Usage == nil {
		return ""
	}
	now := time.Now()
	barW := max(components.CardInnerWidth(w)-40, 10)
	var rows []string
	for _, win := range []struct {
		label string
		w     *claudeai.ParsedWindow
	}{
		{"5-hour", sub.Usage.FiveHour},
		{"7-day", sub.Usage.SevenDay},
		{"7-day opus", sub.Usage.SevenDayOpus},
	} {
		if win.w != nil {
			rows = append(rows, components.RateLimitBar(win.label, win.w.Pct, win.w.ResetsAt, now, 10, barW))
		}
	}
	if len(rows) == 0 {
		return ""
	}
	return components.ContentCard("Subscription", strings.Join(rows, "\n"), w, false)
}

func (a App) statusBadge() string {
	t := theme.Active
	st := a.snap.Session.Status
	color := t.Green
	switch st {
	case model.StatusPaused:
		color = t.Yellow
	case model.StatusCompleted:
		color = t.Blue
	case model.StatusError:
		color = t.Red
	}
	label := strings.ToUpper(string(st))
	if st == model.StatusCompleted && a.snap.Session.EndReason != "" {
		label += " (" + string(a.snap.Session.EndReason) + ")"
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(label)
}

func (a App) hints() string {
	if a.done {
		return "[q]uit"
	}
	pause := "[p]ause"
	if a.snap.Session.Status == model.StatusPaused {
		pause = "[p]resume"
	}
	return pause + "  [s]top  [?]help  [q]uit"
}

func (a App) statusInfo() string {
	if a.opts.Following != "" {
		return "following " + a.opts.Following
	}
	return a.snap.Session.ID
}

func (a App) viewHelp() string {
	t := theme.Active
	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString("\n")
	for _, k := range [][2]string{
		{"p, space", "pause or resume the countdown"},
		{"s", "stop the session and archive it"},
		{"q, esc", "quit (an open session is stopped and archived)"},
		{"?", "toggle this help"},
	} {
		b.WriteString("  " + keyStyle.Render(fmt.Sprintf("%-9s", k[0])) + " " + descStyle.Render(k[1]) + "\n")
	}
	b.WriteString("\n  " + descStyle.Render("press any key to return"))
	return components.ContentCard("Keys", b.String(), min(a.contentWidth(), 70), true)
}

func alertText(al meter.Alert) string {
	if al.Kind == meter.AlertCost {
		return fmt.Sprintf("cost alert: %s crossed %s", cli.FormatCost(al.Value), cli.FormatCost(al.Limit))
	}
	return fmt.Sprintf("token alert: %s crossed %s",
		cli.FormatNumber(al.Value.IntPart()), cli.FormatNumber(al.Limit.IntPart()))
}
