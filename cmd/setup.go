package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load without flag overrides so they are not persisted.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cfg, err = tui.RunSetup(cfg)
	if err != nil {
		if errors.Is(err, tui.ErrSetupAborted) {
			fmt.Println("  Setup canceled, nothing saved.")
			return nil
		}
		return err
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `burnclock setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
