package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/claudeai"
	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/session"
	"github.com/theirongolddev/burnclock/internal/source"
	"github.com/theirongolddev/burnclock/internal/timer"
	"github.com/theirongolddev/burnclock/internal/tui"
)

var (
	flagStartDuration   string
	flagStartLabel      string
	flagStartTranscript string
	flagStartNoFollow   bool
	flagStartReplay     bool
	flagStartSyncWindow bool
	flagStartExit       bool
	flagStartHeadless   bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timed session and watch it live",
	Long: "Start a countdown for a working session and meter the tokens Claude Code\n" +
		"writes to its transcript while the countdown runs. The session is archived\n" +
		"when it expires or is stopped.",
	Example: "  burnclock start\n" +
		"  burnclock start --duration 1:30:00 --label \"auth refactor\"\n" +
		"  burnclock start --sync-window",
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&flagStartDuration, "duration", "t", "", "Session length, HH:MM:SS or MM:SS (default from config)")
	startCmd.Flags().StringVarP(&flagStartLabel, "label", "l", "", "Free-form label for the session")
	startCmd.Flags().StringVar(&flagStartTranscript, "transcript", "", "Transcript to follow (default: most recent in --project)")
	startCmd.Flags().BoolVar(&flagStartNoFollow, "no-follow", false, "Do not follow a transcript")
	startCmd.Flags().BoolVar(&flagStartReplay, "replay", false, "Count the transcript from its beginning instead of from now")
	startCmd.Flags().BoolVar(&flagStartSyncWindow, "sync-window", false, "Run until the claude.ai five-hour window resets")
	startCmd.Flags().BoolVar(&flagStartExit, "exit-on-complete", false, "Quit the live view when the countdown ends")
	startCmd.Flags().BoolVar(&flagStartHeadless, "headless", false, "No live view; print usage lines until the session ends")
	startCmd.MarkFlagsMutuallyExclusive("duration", "sync-window")
	startCmd.MarkFlagsMutuallyExclusive("transcript", "no-follow")
	rootCmd.AddCommand(startCmd)
}

func runStart(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table := config.RateTable(cfg)

	modelName := flagModel
	if modelName == "" {
		modelName = config.DefaultModel(cfg)
	}

	var sub *claudeai.SubscriptionData
	if flagStartSyncWindow || config.GetSessionKey(cfg) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		sub, err = fetchSubscription(ctx, cfg)
		cancel()
		if err != nil && flagStartSyncWindow {
			return err
		}
	}

	dur, err := startDuration(cfg, sub, time.Now())
	if err != nil {
		return err
	}

	archive, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	if !flagStartHeadless {
		logf, err := redirectLog(cfg.DataDir())
		if err != nil {
			return err
		}
		defer func() { _ = logf.Close() }()
	}

	events := make(chan session.Event, 256)
	sink := session.SinkFunc(func(ev session.Event) {
		if ev.Type == session.EventTick {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})

	mgr := session.NewManager(table,
		session.WithArchiver(archive),
		session.WithSink(sink),
		session.WithBilling(cfg.MeterBilling()),
		session.WithSchedule(cfg.UpdateInterval(), cfg.CorrectionThreshold()),
		session.WithAlerts(cfg.CostAlerts(), cfg.Alerts.Tokens),
	)
	defer mgr.Close()

	project := flagProject
	var follower *source.Follower
	if !flagStartNoFollow {
		f, proj, err := transcriptFollower(cfg)
		if err != nil {
			return err
		}
		follower = f
		if project == "" {
			project = proj
		}
	}

	snap, err := mgr.Start(session.StartOptions{
		Model:    modelName,
		Duration: dur,
		Project:  project,
		Label:    flagStartLabel,
	})
	if err != nil {
		return err
	}
	id := snap.Session.ID

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	following := ""
	if follower != nil {
		following = filepath.Base(follower.Path())
		go func() {
			if err := follower.Run(ctx, source.Feed(mgr, id, table)); err != nil {
				log.Printf("start level=error event=follow path=%s err=%v", follower.Path(), err)
			}
		}()
	} else if !flagQuiet && !flagStartNoFollow {
		fmt.Fprintf(os.Stderr, "  No transcript found, metering is manual (daemon API) only\n")
	}

	if flagStartHeadless {
		err = waitHeadless(ctx, events, id)
	} else {
		err = runLive(mgr, id, events, tui.Options{
			ExitOnComplete: flagStartExit,
			Subscription:   sub,
			Following:      following,
		})
	}

	final, gerr := mgr.Get(id)
	if gerr == nil && !final.Session.Status.Closed() {
		final, gerr = mgr.Stop(id)
	}
	cancel()
	if err != nil {
		return err
	}
	if gerr != nil && !errors.Is(gerr, session.ErrSessionClosed) {
		return gerr
	}

	printSessionSummary(final)
	return nil
}

// startDuration picks the session length: --duration, then --sync-window,
// then the configured default.
func startDuration(cfg config.Config, sub *claudeai.SubscriptionData, now time.Time) (time.Duration, error) {
	if flagStartDuration != "" {
		return timer.ParseTimeString(flagStartDuration)
	}
	if flagStartSyncWindow {
		if sub == nil {
			return 0, errors.New("--sync-window needs a claude.ai session key (run `burnclock setup`)")
		}
		left, ok := sub.SessionWindow(now)
		if !ok {
			return 0, errors.New("claude.ai reported no active five-hour window")
		}
		return left, nil
	}
	return cfg.SessionDuration()
}

// transcriptFollower opens the transcript to meter. Without --replay it
// starts at the current end so only new usage counts.
func transcriptFollower(cfg config.Config) (*source.Follower, string, error) {
	path := flagStartTranscript
	project := ""
	if path == "" {
		df, ok, err := source.LatestTranscript(cfg.ClaudeDir(), flagProject)
		if err != nil {
			return nil, "", fmt.Errorf("finding transcript: %w", err)
		}
		if !ok {
			return nil, "", nil
		}
		path, project = df.Path, df.Project
	}

	var offset int64
	if !flagStartReplay {
		info, err := os.Stat(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", err
		}
		if err == nil {
			offset = info.Size()
		}
	}
	return source.NewFollower(path, offset), project, nil
}

// redirectLog sends log output to a file so it cannot tear the live view.
func redirectLog(dataDir string) (io.Closer, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	//nolint:gosec // log path derives from the user's data dir
	f, err := os.OpenFile(filepath.Join(dataDir, "burnclock.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func runLive(mgr *session.Manager, id string, events <-chan session.Event, opts tui.Options) error {
	// Force TrueColor so background styling produces ANSI codes.
	lipgloss.SetColorProfile(termenv.TrueColor)

	app := tui.NewApp(mgr, id, events, opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func waitHeadless(ctx context.Context, events <-chan session.Event, id string) error {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Session %s started, Ctrl+C to stop\n", id)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.SessionID != id {
				continue
			}
			switch ev.Type {
			case session.EventUsage:
				if !flagQuiet && ev.Usage != nil {
					fmt.Printf("  %s  %s tokens  %s\n",
						ev.At.Local().Format("15:04:05"),
						cli.FormatNumber(ev.Usage.TotalTokens),
						cli.FormatCost(ev.Usage.CostTotal))
				}
			case session.EventAlert:
				if ev.Alert != nil {
					fmt.Println("  " + cli.Warn(fmt.Sprintf("%s alert: crossed %s", ev.Alert.Kind, ev.Alert.Limit)))
				}
			case session.EventCompleted:
				return nil
			}
		}
	}
}

func printSessionSummary(s session.Snapshot) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("SESSION  " + s.Session.ID))
	fmt.Println()
	rows := [][2]string{
		{"Model", s.Usage.Model},
		{"Elapsed", cli.FormatClock(s.Timer.Elapsed) + " of " + cli.FormatClock(s.Session.Duration)},
		{"Ended", string(s.Session.EndReason)},
		{"Tokens", cli.FormatNumber(s.Usage.TotalTokens())},
		{"Cost", "$" + s.Usage.CostString()},
		{"Tool calls", cli.FormatNumber(s.Usage.ToolCalls)},
		{"Messages", cli.FormatNumber(s.Usage.MessageCount)},
	}
	if s.Session.Status == model.StatusError {
		rows = append(rows, [2]string{"Archive", cli.Error("failed, see burnclock.log")})
	}
	fmt.Print(cli.RenderKV(rows))
	fmt.Println()
}
