package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summary of archived sessions",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Println("\n  No archived sessions yet.")
		fmt.Println("  Run `burnclock start`, or `burnclock import` to pull in past transcripts.")
		return nil
	}

	filtered, since, until := applyFilters(recs)
	stats := pipeline.Aggregate(filtered, since, until)

	if stats.TotalSessions == 0 {
		fmt.Println("\n  No sessions found in the selected time range.")
		return nil
	}

	// Previous period for comparison
	prevSince := since.Add(-until.Sub(since))
	prevStats := pipeline.Aggregate(filtered, prevSince, since)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BURNCLOCK  Last %dd", flagDays)))
	fmt.Println()

	rows := [][]string{
		{"Sessions", cli.FormatNumber(int64(stats.TotalSessions))},
		{"Ran to time", cli.FormatNumber(int64(stats.CompletedSessions))},
		{"Stopped early", cli.FormatNumber(int64(stats.StoppedEarly))},
		{"Total Time", cli.FormatDuration(stats.TotalElapsed)},
		{"Active Days", cli.FormatNumber(int64(stats.ActiveDays))},
		{"---"},
		{"Input Tokens", cli.FormatTokens(stats.InputTokens)},
		{"Output Tokens", cli.FormatTokens(stats.OutputTokens)},
		{"Cache Write", cli.FormatTokens(stats.CacheCreationTokens)},
		{"Cache Read", cli.FormatTokens(stats.CacheReadTokens)},
		{"Total Tokens", cli.FormatTokens(stats.TotalTokens)},
		{"Cache Hit Rate", cli.FormatPercent(stats.CacheHitRate)},
		{"---"},
		{"Tool Calls", cli.FormatNumber(stats.ToolCalls)},
		{"Messages", cli.FormatNumber(stats.Messages)},
		{"Objectives", cli.FormatNumber(stats.Objectives)},
		{"---"},
		{"Cost (est)", cli.FormatCost(stats.EstimatedCost)},
		{"Cost/session", cli.FormatCost(stats.CostPerSession)},
	}

	costDay := fmt.Sprintf("%s/day", cli.FormatCost(stats.CostPerDay))
	if prevStats.CostPerDay.IsPositive() {
		costDay += fmt.Sprintf("  (%s vs prev %dd)",
			cli.FormatCostDelta(stats.CostPerDay, prevStats.CostPerDay), flagDays)
	}
	rows = append(rows,
		[]string{"Cost/day", costDay},
		[]string{"Burn rate", cli.FormatRate(stats.TokensPerMinute)},
	)

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))
	return nil
}
