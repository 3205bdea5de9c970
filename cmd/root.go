// Package cmd implements the burnclock CLI commands.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/pipeline"
	"github.com/theirongolddev/burnclock/internal/store"
	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

var (
	flagDays      int
	flagProject   string
	flagModel     string
	flagDataDir   string
	flagClaudeDir string
	flagQuiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "burnclock",
	Short: "Session countdown and token cost meter for Claude Code",
	Long: "Time a Claude Code working session against its quota window and watch\n" +
		"tokens, cost and burn rate while it runs. Finished sessions are archived\n" +
		"for summaries.",
	RunE:          runSummary,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 30, "Time window in days for reports")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Filter to project (substring match)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Model for new sessions; filter for reports")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Archive directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagClaudeDir, "claude-dir", "", "Claude Code data directory (default ~/.claude)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
}

// loadConfig reads the config and applies the persistent flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	if flagClaudeDir != "" {
		cfg.General.ClaudeDir = flagClaudeDir
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}

func openArchive(cfg config.Config) (*store.Archive, error) {
	a, err := store.Open(store.DefaultPath(cfg.DataDir()))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return a, nil
}

// loadRecords is the shared data loading path used by the report commands.
func loadRecords() ([]model.SessionRecord, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := openArchive(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	recs, err := a.LoadSessions()
	if err != nil {
		return nil, err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Loaded %s archived sessions\n", cli.FormatNumber(int64(len(recs))))
	}
	return recs, nil
}

// applyFilters returns filtered records and the report time range.
func applyFilters(recs []model.SessionRecord) ([]model.SessionRecord, time.Time, time.Time) {
	now := time.Now()
	since := now.AddDate(0, 0, -flagDays)
	until := now

	filtered := recs
	if flagProject != "" {
		filtered = pipeline.FilterByProject(filtered, flagProject)
	}
	if flagModel != "" {
		filtered = pipeline.FilterByModel(filtered, flagModel)
	}
	return filtered, since, until
}

func shortModel(name string) string {
	// "claude-opus-4-6" -> "opus-4-6"
	if len(name) > 7 && name[:7] == "claude-" {
		return name[7:]
	}
	return name
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func maskKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
