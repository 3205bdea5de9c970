package cmd

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/pipeline"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Daily usage table",
	RunE:  runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
}

func runDaily(_ *cobra.Command, _ []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\n  No archived sessions yet.")
		return nil
	}

	filtered, since, until := applyFilters(recs)
	days := pipeline.AggregateDays(filtered, since, until)

	if len(days) == 0 {
		fmt.Println("\n  No data for the selected period.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("DAILY USAGE  Last %dd", flagDays)))
	fmt.Println()

	// Oldest first reads left to right.
	trend := lo.Map(days, func(_ model.DailyStats, i int) float64 {
		return days[len(days)-1-i].EstimatedCost.InexactFloat64()
	})
	fmt.Printf("  Cost trend  %s\n\n", cli.RenderSparkline(trend))

	rows := make([][]string, 0, len(days))
	for _, d := range days {
		rows = append(rows, []string{
			d.Date.Format("2006-01-02"),
			cli.FormatDayOfWeek(int(d.Date.Weekday())),
			cli.FormatNumber(int64(d.Sessions)),
			cli.FormatDuration(d.Elapsed),
			cli.FormatTokens(d.TotalTokens),
			cli.FormatCost(d.EstimatedCost),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Date", "Day", "Sessions", "Time", "Tokens", "Cost"},
		Rows:    rows,
	}))
	return nil
}
