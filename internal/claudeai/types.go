package claudeai

import (
	"time"
)

// FiveHourWindow is the length of the rolling subscription usage window.
const FiveHourWindow = 5 * time.Hour

// Organization represents a claude.ai organization.
type Organization struct {
	UUID         string   `json:"uuid"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// OverageLimit is the raw API response from the overage spend limit endpoint.
type OverageLimit struct {
	IsEnabled          bool    `json:"isEnabled"`
	UsedCredits        float64 `json:"usedCredits"`
	MonthlyCreditLimit float64 `json:"monthlyCreditLimit"`
	Currency           string  `json:"currency"`
}

// SubscriptionData aggregates everything fetched in one FetchAll call.
type SubscriptionData struct {
	Org       Organization
	Usage     *ParsedUsage
	Overage   *OverageLimit
	FetchedAt time.Time
	Error     error
}

// ParsedUsage holds normalized usage windows.
type ParsedUsage struct {
	FiveHour       *ParsedWindow
	SevenDay       *ParsedWindow
	SevenDayOpus   *ParsedWindow
	SevenDaySonnet *ParsedWindow
}

// ParsedWindow is a single rate-limit window, normalized for display.
type ParsedWindow struct {
	Pct      float64 // 0.0-1.0
	ResetsAt time.Time
}

// Remaining returns the time left in the window at now, or zero when the
// reset time is unknown or already passed.
func (w *ParsedWindow) Remaining(now time.Time) time.Duration {
	if w == nil || w.ResetsAt.IsZero() {
		return 0
	}
	return max(0, w.ResetsAt.Sub(now))
}

// SessionWindow returns the countdown that lines a session up with the
// five-hour window: the time until it resets, capped at the window length.
// ok is false when no five-hour window is reported.
func (d *SubscriptionData) SessionWindow(now time.Time) (remaining time.Duration, ok bool) {
	if d == nil || d.Usage == nil || d.Usage.FiveHour == nil {
		return 0, false
	}
	r := d.Usage.FiveHour.Remaining(now)
	if r <= 0 {
		return 0, false
	}
	return min(r, FiveHourWindow), true
}
