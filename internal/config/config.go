package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/timer"
)

// ErrInvalidConfig wraps every validation failure reported by Validate.
var ErrInvalidConfig = errors.New("config: invalid")

// Config holds all burnclock configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Session    SessionConfig    `toml:"session"`
	Billing    BillingConfig    `toml:"billing"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Daemon     DaemonConfig     `toml:"daemon"`
	ClaudeAI   ClaudeAIConfig   `toml:"claude_ai"`
	Appearance AppearanceConfig `toml:"appearance"`
	Pricing    PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds file locations.
type GeneralConfig struct {
	DataDir   string `toml:"data_dir,omitempty"`
	ClaudeDir string `toml:"claude_dir,omitempty"`
}

// SessionConfig holds defaults for new sessions.
type SessionConfig struct {
	Duration              string `toml:"duration"`
	Model                 string `toml:"model"`
	UpdateIntervalMS      int    `toml:"update_interval_ms"`
	CorrectionThresholdMS int    `toml:"correction_threshold_ms"`
}

// BillingConfig holds cache pricing rules.
type BillingConfig struct {
	CacheReadDiscount float64 `toml:"cache_read_discount"`
	CacheWrite        string  `toml:"cache_write"`
}

// AlertsConfig holds usage thresholds.
type AlertsConfig struct {
	CostUSD []float64 `toml:"cost_usd,omitempty"`
	Tokens  []int64   `toml:"tokens,omitempty"`
}

// DaemonConfig holds the background service settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	EventsBuffer int    `toml:"events_buffer"`
}

// ClaudeAIConfig holds claude.ai web credentials.
type ClaudeAIConfig struct {
	SessionKey string `toml:"session_key,omitempty"`
	OrgID      string `toml:"org_id,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// PricingOverrides allows user-defined pricing for specific models.
type PricingOverrides struct {
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-model pricing overrides.
type ModelPricingOverride struct {
	InputPerMTok      *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok     *float64 `toml:"output_per_mtok,omitempty"`
	CacheWritePerMTok *float64 `toml:"cache_write_per_mtok,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Duration:              "5:00:00",
			Model:                 "claude-sonnet-4-5",
			UpdateIntervalMS:      int(timer.DefaultUpdateInterval / time.Millisecond),
			CorrectionThresholdMS: int(timer.DefaultCorrectionThreshold / time.Millisecond),
		},
		Billing: BillingConfig{
			CacheReadDiscount: 0.1,
			CacheWrite:        "input",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "burnclock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "burnclock")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path over the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-chosen config path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the default path.
func Save(cfg Config) error {
	return SaveTo(Path(), cfg)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Validate checks values that cannot be repaired by falling back to defaults.
func (c Config) Validate() error {
	if _, err := timer.ParseTimeString(c.Session.Duration); err != nil {
		return fmt.Errorf("%w: session.duration: %w", ErrInvalidConfig, err)
	}
	if c.Session.UpdateIntervalMS <= 0 {
		return fmt.Errorf("%w: session.update_interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Session.CorrectionThresholdMS < 0 || c.Session.CorrectionThresholdMS >= c.Session.UpdateIntervalMS {
		return fmt.Errorf("%w: session.correction_threshold_ms must be in [0, update_interval_ms)", ErrInvalidConfig)
	}
	if c.Billing.CacheReadDiscount < 0 || c.Billing.CacheReadDiscount > 1 {
		return fmt.Errorf("%w: billing.cache_read_discount must be in [0, 1]", ErrInvalidConfig)
	}
	if _, err := meter.ParseCacheWriteBilling(c.Billing.CacheWrite); err != nil {
		return fmt.Errorf("%w: billing.cache_write: %w", ErrInvalidConfig, err)
	}
	for _, v := range c.Alerts.CostUSD {
		if v <= 0 {
			return fmt.Errorf("%w: alerts.cost_usd values must be positive", ErrInvalidConfig)
		}
	}
	for _, v := range c.Alerts.Tokens {
		if v <= 0 {
			return fmt.Errorf("%w: alerts.tokens values must be positive", ErrInvalidConfig)
		}
	}
	return nil
}

// SessionDuration returns the parsed default session length.
func (c Config) SessionDuration() (time.Duration, error) {
	return timer.ParseTimeString(c.Session.Duration)
}

// UpdateInterval returns the scheduler tick interval.
func (c Config) UpdateInterval() time.Duration {
	if c.Session.UpdateIntervalMS <= 0 {
		return timer.DefaultUpdateInterval
	}
	return time.Duration(c.Session.UpdateIntervalMS) * time.Millisecond
}

// CorrectionThreshold returns the scheduler drift threshold.
func (c Config) CorrectionThreshold() time.Duration {
	return time.Duration(c.Session.CorrectionThresholdMS) * time.Millisecond
}

// MeterBilling converts the billing section for the meter.
func (c Config) MeterBilling() meter.Billing {
	b := meter.DefaultBilling()
	b.CacheReadDiscount = decimal.NewFromFloat(c.Billing.CacheReadDiscount)
	if mode, err := meter.ParseCacheWriteBilling(c.Billing.CacheWrite); err == nil {
		b.CacheWrite = mode
	}
	return b
}

// CostAlerts returns the cost thresholds as decimals.
func (c Config) CostAlerts() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(c.Alerts.CostUSD))
	for _, v := range c.Alerts.CostUSD {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}

// DataDir returns where the session archive lives.
func (c Config) DataDir() string {
	if c.General.DataDir != "" {
		return expandHome(c.General.DataDir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "burnclock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "burnclock")
}

// ClaudeDir returns the Claude Code data directory.
func (c Config) ClaudeDir() string {
	if c.General.ClaudeDir != "" {
		return expandHome(c.General.ClaudeDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// GetSessionKey returns the claude.ai session key from env var or config, in that order.
func GetSessionKey(cfg Config) string {
	if key := os.Getenv("CLAUDE_SESSION_KEY"); key != "" {
		return key
	}
	return cfg.ClaudeAI.SessionKey
}

// DefaultModel returns the model for new sessions, honoring BURNCLOCK_MODEL.
func DefaultModel(cfg Config) string {
	if m := strings.TrimSpace(os.Getenv("BURNCLOCK_MODEL")); m != "" {
		return m
	}
	return cfg.Session.Model
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
