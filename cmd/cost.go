package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/meter"
)

var (
	flagCostInput      int64
	flagCostOutput     int64
	flagCostCacheWrite int64
	flagCostCacheRead  int64
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the cost of a token count",
	Example: "  burnclock cost --input 1000000 --output 1000000\n" +
		"  burnclock cost -m claude-opus-4-1 --input 1000000 --output 1000000",
	RunE: runCost,
}

func init() {
	costCmd.Flags().Int64Var(&flagCostInput, "input", 0, "Input tokens")
	costCmd.Flags().Int64Var(&flagCostOutput, "output", 0, "Output tokens")
	costCmd.Flags().Int64Var(&flagCostCacheWrite, "cache-write", 0, "Cache creation tokens")
	costCmd.Flags().Int64Var(&flagCostCacheRead, "cache-read", 0, "Cache read tokens")
	rootCmd.AddCommand(costCmd)
}

func runCost(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	modelName := flagModel
	if modelName == "" {
		modelName = config.DefaultModel(cfg)
	}
	rate, key, ok := config.RateTable(cfg).Lookup(modelName)
	if !ok {
		return fmt.Errorf("%w: %s", meter.ErrUnknownModel, modelName)
	}

	d := meter.Delta{
		InputTokens:         flagCostInput,
		OutputTokens:        flagCostOutput,
		CacheCreationTokens: flagCostCacheWrite,
		CacheReadTokens:     flagCostCacheRead,
	}
	if err := d.Validate(); err != nil {
		return err
	}

	billing := cfg.MeterBilling()
	b := billing.Cost(rate, d)

	fmt.Println()
	fmt.Println(cli.RenderTitle("COST ESTIMATE  " + shortModel(key)))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Type", "Tokens", "Cost"},
		Rows: [][]string{
			{"Input", cli.FormatNumber(d.InputTokens), cli.FormatCost(b.Input)},
			{"Cache Write", cli.FormatNumber(d.CacheCreationTokens), cli.FormatCost(b.CacheWrite)},
			{"Cache Read", cli.FormatNumber(d.CacheReadTokens), cli.FormatCost(b.CacheRead)},
			{"Output", cli.FormatNumber(d.OutputTokens), cli.FormatCost(b.Output)},
			{"---"},
			{"TOTAL", cli.FormatNumber(d.Total()), "$" + b.Total.StringFixed(4)},
		},
	}))
	if d.CacheReadTokens > 0 {
		fmt.Printf("  Cache Savings: %s\n\n", cli.FormatCost(billing.CacheSavings(rate, d.CacheReadTokens)))
	}
	return nil
}
