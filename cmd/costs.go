package cmd

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/pipeline"
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Archived cost breakdown by token type and model",
	RunE:  runCosts,
}

func init() {
	rootCmd.AddCommand(costsCmd)
}

func runCosts(_ *cobra.Command, _ []string) error {
	recs, err := loadRecords()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("\n  No archived sessions yet.")
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	filtered, since, until := applyFilters(recs)
	stats := pipeline.Aggregate(filtered, since, until)
	tokenCosts, modelCosts, unpriced := pipeline.AggregateCostBreakdown(
		filtered, config.RateTable(cfg), cfg.MeterBilling(), since, until)

	if stats.TotalSessions == 0 {
		fmt.Println("\n  No sessions in the selected time range.")
		return nil
	}

	prevSince := since.Add(-until.Sub(since))
	prevStats := pipeline.Aggregate(filtered, prevSince, since)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("COST BREAKDOWN  Last %dd", flagDays)))
	fmt.Println()

	totalCost := tokenCosts.TotalCost
	costs := []struct {
		name string
		cost decimal.Decimal
	}{
		{"Output", tokenCosts.OutputCost},
		{"Input", tokenCosts.InputCost},
		{"Cache Write", tokenCosts.CacheWriteCost},
		{"Cache Read", tokenCosts.CacheReadCost},
	}

	typeRows := make([][]string, 0, len(costs)+2)
	for _, tc := range costs {
		pct := ""
		if totalCost.IsPositive() {
			pct = cli.FormatPercent(tc.cost.Div(totalCost).InexactFloat64())
		}
		typeRows = append(typeRows, []string{tc.name, cli.FormatCost(tc.cost), pct})
	}
	typeRows = append(typeRows, []string{"---"})
	typeRows = append(typeRows, []string{"TOTAL", cli.FormatCost(totalCost), ""})

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "By Token Type",
		Headers: []string{"Type", "Cost", "Share"},
		Rows:    typeRows,
	}))

	if prevStats.EstimatedCost.IsPositive() {
		fmt.Printf("  Period Comparison\n")
		fmt.Printf("  This %dd  %s\n", flagDays, cli.FormatCost(stats.EstimatedCost))
		fmt.Printf("  Prev %dd  %s  (%s)\n\n", flagDays,
			cli.FormatCost(prevStats.EstimatedCost),
			cli.FormatCostDelta(stats.EstimatedCost, prevStats.EstimatedCost))
	}

	modelRows := make([][]string, 0, len(modelCosts)+2)
	for _, mc := range modelCosts {
		modelRows = append(modelRows, []string{
			shortModel(mc.Model),
			cli.FormatCost(mc.InputCost),
			cli.FormatCost(mc.OutputCost),
			cli.FormatCost(mc.CacheWriteCost.Add(mc.CacheReadCost)),
			cli.FormatCost(mc.TotalCost),
		})
	}
	modelRows = append(modelRows, []string{"---"})
	modelRows = append(modelRows, []string{
		"TOTAL",
		cli.FormatCost(tokenCosts.InputCost),
		cli.FormatCost(tokenCosts.OutputCost),
		cli.FormatCost(tokenCosts.CacheWriteCost.Add(tokenCosts.CacheReadCost)),
		cli.FormatCost(totalCost),
	})

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "By Model",
		Headers: []string{"Model", "Input", "Output", "Cache", "Total"},
		Rows:    modelRows,
	}))

	fmt.Printf("  Cache Savings: %s saved this period\n\n", cli.FormatCost(tokenCosts.CacheSavings))
	if unpriced > 0 {
		fmt.Fprintf(os.Stderr, "  %d sessions use models with no price and were left out\n", unpriced)
	}
	return nil
}
