package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/daemon"
	"github.com/theirongolddev/burnclock/internal/session"
	"github.com/theirongolddev/burnclock/internal/timer"
)

type daemonRuntimeState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DataDir   string    `json:"data_dir"`
}

var (
	flagDaemonAddr         string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the session service with HTTP, SSE and WebSocket endpoints",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", "", "PID file path (default in data dir)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", "", "Log file path for detached mode (default in data dir)")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// resolveDaemonFlags fills unset daemon flags from the config.
func resolveDaemonFlags() (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	if flagDaemonAddr == "" {
		flagDaemonAddr = cfg.Daemon.Addr
	}
	if flagDaemonEventsBuffer <= 0 {
		flagDaemonEventsBuffer = cfg.Daemon.EventsBuffer
	}
	if flagDaemonPIDFile == "" {
		flagDaemonPIDFile = filepath.Join(cfg.DataDir(), "burnclockd.pid")
	}
	if flagDaemonLogFile == "" {
		flagDaemonLogFile = filepath.Join(cfg.DataDir(), "burnclockd.log")
	}
	return cfg, nil
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	cfg, err := resolveDaemonFlags()
	if err != nil {
		return err
	}

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground(cfg)
}

func startDaemonDetached() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.Stdin = nil
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagDaemonPIDFile)
	fmt.Printf("  API: http://%s/v1/status\n", flagDaemonAddr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground(cfg config.Config) error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagDaemonPIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonPIDFile) }()

	state := daemonRuntimeState{
		PID:       pid,
		Addr:      flagDaemonAddr,
		StartedAt: time.Now(),
		DataDir:   cfg.DataDir(),
	}
	_ = writeState(statePath(flagDaemonPIDFile), state)
	defer func() { _ = os.Remove(statePath(flagDaemonPIDFile)) }()

	archive, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()

	defaultDuration, _ := cfg.SessionDuration()
	svc := daemon.New(daemon.Config{
		Addr:         flagDaemonAddr,
		EventsBuffer: flagDaemonEventsBuffer,
		DataDir:      cfg.DataDir(),
		History:      archive,
	}, config.RateTable(cfg),
		session.WithArchiver(archive),
		session.WithBilling(cfg.MeterBilling()),
		session.WithDefaults(config.DefaultModel(cfg), defaultDuration),
		session.WithSchedule(cfg.UpdateInterval(), cfg.CorrectionThreshold()),
		session.WithAlerts(cfg.CostAlerts(), cfg.Alerts.Tokens),
	)

	fmt.Printf("  burnclock daemon listening on http://%s\n", flagDaemonAddr)
	fmt.Printf("  Archiving to %s\n", cfg.DataDir())
	fmt.Printf("  Stop with: burnclock daemon stop --pid-file %s\n", flagDaemonPIDFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	if _, err := resolveDaemonFlags(); err != nil {
		return err
	}
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}

	alive := processAlive(pid)
	if !alive {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := readState(statePath(flagDaemonPIDFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var st daemon.Status
	if err := getDaemonJSON(ctx, addr, "/v1/status", &st); err != nil {
		fmt.Printf("  API status: %v\n", err)
		return nil
	}

	fmt.Printf("  Up since: %s (%s)\n", st.StartedAt.Local().Format(time.RFC3339), cli.FormatAgo(st.StartedAt))
	fmt.Printf("  Sessions: %d (%d open)\n", st.Sessions, st.ActiveSessions)
	fmt.Printf("  Live tokens: %s\n", cli.FormatNumber(st.LiveTokens))
	fmt.Printf("  Live cost: %s\n", cli.FormatCost(st.LiveCostUSD))
	if st.Today != nil {
		fmt.Printf("  Archived today: %d sessions, %s\n", st.Today.TotalSessions, cli.FormatCost(st.Today.EstimatedCost))
	}
	fmt.Printf("  Events: %d buffered, %d subscribers\n", st.EventCount, st.SubscriberCount)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}

	if st.ActiveSessions == 0 {
		return nil
	}
	var snaps []session.Snapshot
	if err := getDaemonJSON(ctx, addr, "/v1/sessions", &snaps); err != nil {
		fmt.Printf("  Sessions: %v\n", err)
		return nil
	}
	fmt.Println()
	for _, snap := range snaps {
		if snap.Session.Status.Closed() {
			continue
		}
		fmt.Printf("  %-8s %-9s %s left  %s tokens  %s  %s\n",
			truncate(snap.Session.ID, 8),
			snap.Session.Status,
			timer.FormatTime(snap.Timer.Remaining),
			cli.FormatTokens(snap.Usage.TotalTokens()),
			cli.FormatCost(snap.Usage.EstimatedCost),
			shortModel(snap.Session.Model),
		)
	}
	return nil
}

// getDaemonJSON decodes one GET response from the local daemon into v.
func getDaemonJSON(ctx context.Context, addr, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed response (%w)", err)
	}
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	if _, err := resolveDaemonFlags(); err != nil {
		return err
	}
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagDaemonPIDFile)
			_ = os.Remove(statePath(flagDaemonPIDFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureDaemonNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st daemonRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // daemon state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
