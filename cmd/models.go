package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/pipeline"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Model usage breakdown",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(_ *cobra.Command, _ []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\n  No archived sessions yet.")
		return nil
	}

	filtered, since, until := applyFilters(recs)
	models := pipeline.AggregateModels(filtered, since, until)

	if len(models) == 0 {
		fmt.Println("\n  No model data in the selected time range.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("MODEL USAGE  Last %dd", flagDays)))
	fmt.Println()

	rows := make([][]string, 0, len(models))
	for _, ms := range models {
		rows = append(rows, []string{
			shortModel(ms.Model),
			cli.FormatNumber(int64(ms.Sessions)),
			cli.FormatTokens(ms.InputTokens),
			cli.FormatTokens(ms.OutputTokens),
			cli.FormatTokens(ms.CacheReadTokens),
			cli.FormatCost(ms.EstimatedCost),
			fmt.Sprintf("%5.1f%% %s", ms.SharePercent, cli.RenderShareBar(ms.SharePercent, 12)),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Model", "Sessions", "Input", "Output", "Cache Read", "Cost", "Share"},
		Rows:    rows,
	}))
	return nil
}
