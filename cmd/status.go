package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/claudeai"
	"github.com/theirongolddev/burnclock/internal/cli"
	"github.com/theirongolddev/burnclock/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show claude.ai subscription status and rate limits",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// fetchSubscription loads claude.ai usage with the configured session key.
// It returns nil data and nil error when no key is configured.
func fetchSubscription(ctx context.Context, cfg config.Config) (*claudeai.SubscriptionData, error) {
	key := config.GetSessionKey(cfg)
	if key == "" {
		return nil, nil
	}
	client, err := claudeai.NewClient(key)
	if err != nil {
		return nil, err
	}

	data := client.FetchAll(ctx, cfg.ClaudeAI.OrgID)
	if data.Error != nil {
		if errors.Is(data.Error, claudeai.ErrUnauthorized) {
			return nil, errors.New("session key expired or invalid, grab a fresh one from claude.ai cookies")
		}
		if errors.Is(data.Error, claudeai.ErrRateLimited) {
			return nil, errors.New("rate limited by claude.ai, try again in a minute")
		}
		// Partial data may still be available.
		if data.Usage == nil && data.Overage == nil {
			return nil, fmt.Errorf("fetch failed: %w", data.Error)
		}
	}
	return data, nil
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if config.GetSessionKey(cfg) == "" {
		fmt.Println()
		fmt.Println("  No session key configured.")
		fmt.Println()
		fmt.Println("  To get your session key:")
		fmt.Println("    1. Open claude.ai in your browser")
		fmt.Println("    2. DevTools (F12) > Application > Cookies > claude.ai")
		fmt.Println("    3. Copy the 'sessionKey' value (starts with sk-ant-sid...)")
		fmt.Println()
		fmt.Println("  Then configure it:")
		fmt.Println("    burnclock setup                                     (interactive)")
		fmt.Println("    CLAUDE_SESSION_KEY=sk-ant-sid... burnclock status    (one-shot)")
		fmt.Println()
		return nil
	}

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Fetching subscription data...\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := fetchSubscription(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("CLAUDE.AI STATUS"))
	fmt.Println()

	if data.Org.UUID != "" {
		fmt.Printf("  Organization: %s\n", data.Org.Name)
		if len(data.Org.Capabilities) > 0 {
			fmt.Printf("  Capabilities: %s\n", strings.Join(data.Org.Capabilities, ", "))
		}
		fmt.Println()
	}

	if data.Usage != nil {
		rows := [][]string{}
		now := time.Now()
		for _, w := range []struct {
			label string
			win   *claudeai.ParsedWindow
		}{
			{"5-hour window", data.Usage.FiveHour},
			{"7-day (all)", data.Usage.SevenDay},
			{"7-day Opus", data.Usage.SevenDayOpus},
			{"7-day Sonnet", data.Usage.SevenDaySonnet},
		} {
			if w.win != nil {
				rows = append(rows, rateLimitRow(w.label, w.win, now))
			}
		}

		if len(rows) > 0 {
			fmt.Print(cli.RenderTable(cli.Table{
				Title:   "Rate Limits",
				Headers: []string{"Window", "Used", "Bar", "Resets"},
				Rows:    rows,
			}))
		}
		if left, ok := data.SessionWindow(now); ok {
			fmt.Printf("  `burnclock start --sync-window` would run for %s\n\n", cli.FormatClock(left))
		}
	}

	if data.Overage != nil {
		ol := data.Overage
		status := "disabled"
		if ol.IsEnabled {
			status = "enabled"
		}

		rows := [][]string{
			{"Overage", status},
			{"Used Credits", fmt.Sprintf("%.2f %s", ol.UsedCredits, ol.Currency)},
			{"Monthly Limit", fmt.Sprintf("%.2f %s", ol.MonthlyCreditLimit, ol.Currency)},
		}
		if ol.IsEnabled && ol.MonthlyCreditLimit > 0 {
			rows = append(rows, []string{"Usage", cli.FormatPercent(ol.UsedCredits / ol.MonthlyCreditLimit)})
		}

		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Overage Spend",
			Headers: []string{"Setting", "Value"},
			Rows:    rows,
		}))
	}

	if data.Error != nil {
		fmt.Printf("  %s\n\n", cli.Warn(fmt.Sprintf("Partial data: %s", data.Error)))
	}

	fmt.Printf("  Fetched at %s\n\n", data.FetchedAt.Format("3:04:05 PM"))
	return nil
}

func rateLimitRow(label string, w *claudeai.ParsedWindow, now time.Time) []string {
	resets := ""
	if !w.ResetsAt.IsZero() {
		if left := w.Remaining(now); left > 0 {
			resets = formatCountdown(left)
		} else {
			resets = "now"
		}
	}
	return []string{label, fmt.Sprintf("%.0f%%", w.Pct*100), renderMiniBar(w.Pct, 20), resets}
}

func renderMiniBar(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))

	color := cli.ColorGreen
	if pct >= 0.8 {
		color = cli.ColorRed
	} else if pct >= 0.5 {
		color = cli.ColorOrange
	}

	barStyle := lipgloss.NewStyle().Foreground(color)
	dimStyle := lipgloss.NewStyle().Foreground(cli.ColorTextDim)

	return barStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func formatCountdown(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
