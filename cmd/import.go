package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/pipeline"
)

var flagImportSubagents bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Archive usage from past Claude Code transcripts",
	Long: "Parse every transcript under the Claude Code data directory and archive\n" +
		"one session per file. Files unchanged since the last import are skipped.",
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagImportSubagents, "subagents", false, "Include subagent transcripts")
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Scanning %s...\n", cfg.ClaudeDir())
	}
	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%100 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Parsing [%d/%d]", current, total)
		}
	}

	im := &pipeline.Importer{
		Store:            a,
		Rates:            config.RateTable(cfg),
		Billing:          cfg.MeterBilling(),
		IncludeSubagents: flagImportSubagents,
	}
	res, err := im.Import(cfg.ClaudeDir(), progressFn)
	if err != nil {
		return err
	}
	if !flagQuiet && res.TotalFiles-res.Unchanged > 0 {
		fmt.Fprintln(os.Stderr)
	}

	fmt.Printf("  Imported %s sessions (%s unchanged, %d empty) from %s transcripts\n",
		cli.FormatNumber(int64(res.Imported)),
		cli.FormatNumber(int64(res.Unchanged)),
		res.Empty,
		cli.FormatNumber(int64(res.TotalFiles)))
	if res.FileErrors > 0 {
		fmt.Fprintf(os.Stderr, "  %d files could not be read\n", res.FileErrors)
	}
	if res.BadLines > 0 {
		fmt.Fprintf(os.Stderr, "  %d malformed lines skipped\n", res.BadLines)
	}
	if res.Unpriced > 0 {
		fmt.Fprintf(os.Stderr, "  %d models had no price; their tokens are counted at $0\n", res.Unpriced)
	}
	return nil
}
