package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(config.Path())
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Archive directory: %s\n", cfg.DataDir())
	fmt.Printf("    Claude directory:  %s\n", cfg.ClaudeDir())
	fmt.Println()

	fmt.Println("  [Session]")
	fmt.Printf("    Duration:          %s\n", cfg.Session.Duration)
	fmt.Printf("    Model:             %s\n", config.DefaultModel(cfg))
	fmt.Printf("    Update interval:   %s\n", cfg.UpdateInterval())
	fmt.Printf("    Drift threshold:   %s\n", cfg.CorrectionThreshold())
	fmt.Println()

	fmt.Println("  [Billing]")
	fmt.Printf("    Cache read factor: %g\n", cfg.Billing.CacheReadDiscount)
	fmt.Printf("    Cache writes at:   %s rate\n", cfg.MeterBilling().CacheWrite)
	fmt.Println()

	fmt.Println("  [Alerts]")
	if len(cfg.Alerts.CostUSD) == 0 && len(cfg.Alerts.Tokens) == 0 {
		fmt.Println("    none")
	}
	if len(cfg.Alerts.CostUSD) > 0 {
		fmt.Printf("    Cost:   %s\n", strings.Join(lo.Map(cfg.CostAlerts(), func(d decimal.Decimal, _ int) string {
			return cli.FormatCost(d)
		}), ", "))
	}
	if len(cfg.Alerts.Tokens) > 0 {
		fmt.Printf("    Tokens: %s\n", strings.Join(lo.Map(cfg.Alerts.Tokens, func(n int64, _ int) string {
			return cli.FormatNumber(n)
		}), ", "))
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Claude.ai]")
	if key := config.GetSessionKey(cfg); key != "" {
		fmt.Printf("    Session key: %s\n", maskKey(key))
	} else {
		fmt.Println("    Session key: not configured")
	}
	if cfg.ClaudeAI.OrgID != "" {
		fmt.Printf("    Org ID:      %s\n", cfg.ClaudeAI.OrgID)
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	if len(cfg.Pricing.Overrides) > 0 {
		fmt.Println("  [Pricing overrides]")
		names := lo.Keys(cfg.Pricing.Overrides)
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("    %s\n", name)
		}
		fmt.Println()
	}

	fmt.Println("  Run `burnclock setup` to reconfigure.")
	return nil
}
