package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/pipeline"
	"github.com/theirongolddev/burnclock/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Archived session list",
	RunE:  runSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archived session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete archived sessions",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSessionsDelete,
}

var (
	sessionsLimit    int
	sessionsImported bool
)

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	sessionsCmd.Flags().BoolVar(&sessionsImported, "imported", false, "Include sessions imported from transcripts")
	sessionsCmd.AddCommand(sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\n  No archived sessions yet.")
		return nil
	}

	filtered, since, until := applyFilters(recs)
	sessions := pipeline.FilterByTime(filtered, since, until)
	if !sessionsImported {
		sessions = pipeline.FilterTimed(sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("\n  No sessions in the selected time range.")
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[:sessionsLimit]
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  Last %dd (showing %d)", flagDays, len(sessions))))
	fmt.Println()

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			truncate(s.ID, 13),
			s.StartTime.Local().Format("Jan 02 15:04"),
			truncate(s.Project, 14),
			shortModel(s.Model),
			cli.FormatClock(s.Elapsed) + " / " + cli.FormatClock(s.Duration),
			endLabel(s),
			cli.FormatTokens(s.TotalTokens()),
			cli.FormatCost(s.EstimatedCost),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Start", "Project", "Model", "Time", "End", "Tokens", "Cost"},
		Rows:    rows,
	}))
	return nil
}

func endLabel(r model.SessionRecord) string {
	if r.Status == model.StatusError {
		return "error"
	}
	return string(r.EndReason)
}

func runSessionsShow(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	r, err := a.GetSession(args[0])
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("SESSION  " + r.ID))
	fmt.Println()
	fmt.Print(cli.RenderKV([][2]string{
		{"Model", r.Model},
		{"Project", r.Project},
		{"Label", r.Label},
		{"Started", r.StartTime.Local().Format("2006-01-02 15:04:05")},
		{"Ended", r.EndTime.Local().Format("2006-01-02 15:04:05") + "  (" + cli.FormatAgo(r.EndTime) + ")"},
		{"Elapsed", cli.FormatClock(r.Elapsed) + " of " + cli.FormatClock(r.Duration)},
		{"End", endLabel(r)},
		{"Input", cli.FormatNumber(r.InputTokens)},
		{"Output", cli.FormatNumber(r.OutputTokens)},
		{"Cache write", cli.FormatNumber(r.CacheCreationTokens)},
		{"Cache read", cli.FormatNumber(r.CacheReadTokens)},
		{"Total", cli.FormatNumber(r.TotalTokens())},
		{"Cost", "$" + r.EstimatedCost.StringFixed(4)},
		{"Tool calls", cli.FormatNumber(r.ToolCalls)},
		{"Messages", cli.FormatNumber(r.Messages)},
		{"Objectives", cli.FormatNumber(r.Objectives)},
	}))
	fmt.Println()
	return nil
}

func runSessionsDelete(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var errs []error
	for _, id := range args {
		if err := a.DeleteSession(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				errs = append(errs, fmt.Errorf("no archived session %q", id))
				continue
			}
			errs = append(errs, err)
			continue
		}
		fmt.Printf("  Deleted %s\n", id)
	}
	return errors.Join(errs...)
}
