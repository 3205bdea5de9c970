package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/samber/lo"

	"github.com/theirongolddev/burnclock/internal/claudeai"
	"github.com/theirongolddev/burnclock/internal/config"
	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/timer"
	"github.com/theirongolddev/burnclock/internal/tui/theme"
)

// SetupValues are the answers collected by the setup form.
type SetupValues struct {
	Model      string
	Duration   string
	CacheWrite string
	Theme      string
	SessionKey string
}

// SetupValuesFrom seeds the form with the current configuration.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		Model:      cfg.Session.Model,
		Duration:   cfg.Session.Duration,
		CacheWrite: cfg.Billing.CacheWrite,
		Theme:      cfg.Appearance.Theme,
		SessionKey: cfg.ClaudeAI.SessionKey,
	}
}

// Apply validates the answers and writes them into cfg.
func (v SetupValues) Apply(cfg config.Config) (config.Config, error) {
	if err := validateDuration(v.Duration); err != nil {
		return cfg, err
	}
	if _, err := meter.ParseCacheWriteBilling(v.CacheWrite); err != nil {
		return cfg, err
	}
	if err := validateSessionKey(v.SessionKey); err != nil {
		return cfg, err
	}

	if m := strings.TrimSpace(v.Model); m != "" {
		cfg.Session.Model = m
	}
	cfg.Session.Duration = strings.TrimSpace(v.Duration)
	cfg.Billing.CacheWrite = v.CacheWrite
	if lo.Contains(theme.Names(), v.Theme) {
		cfg.Appearance.Theme = v.Theme
	}
	cfg.ClaudeAI.SessionKey = strings.TrimSpace(v.SessionKey)
	return cfg, cfg.Validate()
}

func validateDuration(s string) error {
	d, err := timer.ParseTimeString(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%w: duration must be positive", timer.ErrInvalidDuration)
	}
	return nil
}

func validateSessionKey(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return claudeai.ValidateKey(s)
}

// NewSetupForm builds the first-run form. Answers are written to vals.
func NewSetupForm(cfg config.Config, vals *SetupValues) *huh.Form {
	models := config.KnownModels(cfg)
	if vals.Model != "" && !lo.Contains(models, vals.Model) {
		models = append([]string{vals.Model}, models...)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to burnclock").
				Description("A countdown for your working session with a live token and cost meter.\n\nSaved to "+config.Path()),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default model").
				Description("Used for pricing until the transcript reports one.").
				Options(huh.NewOptions(models...)...).
				Value(&vals.Model),
			huh.NewInput().
				Title("Default session length").
				Description("HH:MM:SS or MM:SS").
				Placeholder("5:00:00").
				Validate(validateDuration).
				Value(&vals.Duration),
			huh.NewSelect[string]().
				Title("Cache writes are billed at").
				Options(
					huh.NewOption("input rate", meter.CacheWriteAtInputRate.String()),
					huh.NewOption("cache-write rate", meter.CacheWriteAtCacheRate.String()),
				).
				Value(&vals.CacheWrite),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Color theme").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&vals.Theme),
			huh.NewInput().
				Title("claude.ai session key (optional)").
				Description("Shows subscription usage windows. Leave blank to skip.").
				Placeholder("sk-ant-sid...").
				EchoMode(huh.EchoModePassword).
				Validate(validateSessionKey).
				Value(&vals.SessionKey),
		),
	).WithTheme(huh.ThemeCharm())
}

// ErrSetupAborted is returned when the user cancels the form.
var ErrSetupAborted = errors.New("setup aborted")

// RunSetup shows the setup form and returns the updated configuration. The
// caller saves it.
func RunSetup(cfg config.Config) (config.Config, error) {
	vals := SetupValuesFrom(cfg)
	if err := NewSetupForm(cfg, &vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return cfg, ErrSetupAborted
		}
		return cfg, err
	}
	cfg, err := vals.Apply(cfg)
	if err != nil {
		return cfg, err
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, nil
}
