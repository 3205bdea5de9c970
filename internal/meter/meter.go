// Package meter accumulates token usage for one session and prices it under
// a per-model rate table.
package meter

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/clock"
)

// Snapshot is an immutable copy of a meter's totals.
type Snapshot struct {
	Model               string          `json:"model"`
	InputTokens         int64           `json:"input_tokens"`
	OutputTokens        int64           `json:"output_tokens"`
	CacheCreationTokens int64           `json:"cache_creation_tokens"`
	CacheReadTokens     int64           `json:"cache_read_tokens"`
	EstimatedCost       decimal.Decimal `json:"estimated_cost_usd"`
	ToolCalls           int64           `json:"tool_calls"`
	MessageCount        int64           `json:"message_count"`
	ObjectivesCompleted int64           `json:"objectives_completed"`
	StartedAt           time.Time       `json:"started_at"`
	UpdatedAt           time.Time       `json:"updated_at,omitempty"`
}

// TotalTokens sums all four token categories.
func (s Snapshot) TotalTokens() int64 {
	return s.InputTokens + s.OutputTokens + s.CacheCreationTokens + s.CacheReadTokens
}

// BillableInputTokens is plain input plus cache creation, the combined input
// bucket some reports use.
func (s Snapshot) BillableInputTokens() int64 {
	return s.InputTokens + s.CacheCreationTokens
}

// Usage returns the token counters as a Delta.
func (s Snapshot) Usage() Delta {
	return Delta{
		InputTokens:         s.InputTokens,
		CacheCreationTokens: s.CacheCreationTokens,
		CacheReadTokens:     s.CacheReadTokens,
		OutputTokens:        s.OutputTokens,
	}
}

// CostString renders the estimated cost with four decimals.
func (s Snapshot) CostString() string {
	return s.EstimatedCost.StringFixed(4)
}

// Update is emitted after every successful Record.
type Update struct {
	Model               string          `json:"model"`
	At                  time.Time       `json:"at"`
	TotalTokens         int64           `json:"total_tokens"`
	InputTokens         int64           `json:"input_tokens"`
	OutputTokens        int64           `json:"output_tokens"`
	CacheReadTokens     int64           `json:"cache_read_tokens"`
	CacheCreationTokens int64           `json:"cache_creation_tokens"`
	CostDelta           decimal.Decimal `json:"estimated_cost_delta"`
	CostTotal           decimal.Decimal `json:"estimated_cost_total"`
	Alerts              []Alert         `json:"alerts,omitempty"`
}

// Observer receives usage updates, called without the meter lock held.
type Observer interface {
	OnUsage(Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Update)

// OnUsage implements Observer.
func (f ObserverFunc) OnUsage(u Update) { f(u) }

// BurnRate is consumption per unit of wall-clock time since the session began.
type BurnRate struct {
	TokensPerMinute float64         `json:"tokens_per_minute"`
	CostPerHour     decimal.Decimal `json:"cost_per_hour_usd"`
}

// Projection estimates totals at the end of the session if the current burn
// rate holds.
type Projection struct {
	TotalTokens      int64           `json:"total_tokens"`
	TotalCost        decimal.Decimal `json:"total_cost_usd"`
	RemainingMinutes float64         `json:"remaining_minutes"`
}

// Option configures a Meter.
type Option func(*Meter)

// WithClock sets the time source used for timestamps and burn rate.
func WithClock(c clock.Clock) Option {
	return func(m *Meter) { m.clock = c }
}

// WithBilling overrides the cache pricing rules.
func WithBilling(b Billing) Option {
	return func(m *Meter) { m.billing = b }
}

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(m *Meter) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithStartTime sets the instant burn rate is measured from. Defaults to the
// clock's time at construction.
func WithStartTime(t time.Time) Option {
	return func(m *Meter) { m.startAt = t }
}

// WithCostAlerts raises an alert the first time the running cost reaches
// each limit (USD).
func WithCostAlerts(limits ...decimal.Decimal) Option {
	return func(m *Meter) {
		for _, l := range limits {
			m.alerts = append(m.alerts, threshold{kind: AlertCost, limit: l})
		}
	}
}

// WithTokenAlerts raises an alert the first time total tokens reach each limit.
func WithTokenAlerts(limits ...int64) Option {
	return func(m *Meter) {
		for _, l := range limits {
			m.alerts = append(m.alerts, threshold{kind: AlertTokens, limit: decimal.NewFromInt(l)})
		}
	}
}

// Meter accumulates usage for one session. Methods are safe for concurrent
// use, but observers see updates in the order Record calls are serialized.
type Meter struct {
	clock     clock.Clock
	table     RateTable
	billing   Billing
	observers []Observer
	alerts    []threshold
	startAt   time.Time

	mu   sync.Mutex
	rate Rate
	snap Snapshot
}

// New returns a meter pricing usage for model. It fails with ErrUnknownModel
// if the table has no entry for the model.
func New(model string, table RateTable, opts ...Option) (*Meter, error) {
	rate, name, ok := table.Lookup(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	m := &Meter{
		clock:   clock.System(),
		table:   table,
		billing: DefaultBilling(),
		rate:    rate,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.startAt.IsZero() {
		m.startAt = m.clock.Now()
	}
	m.snap = Snapshot{Model: name, StartedAt: m.startAt, EstimatedCost: decimal.Zero}
	return m, nil
}

// Record adds d to the running totals and prices it at the current rate.
// Invalid deltas leave the meter untouched.
func (m *Meter) Record(d Delta) (Update, error) {
	if err := d.Validate(); err != nil {
		return Update{}, err
	}

	m.mu.Lock()
	if err := m.checkOverflowLocked(d); err != nil {
		m.mu.Unlock()
		return Update{}, err
	}

	cost := m.billing.Cost(m.rate, d).Total
	now := m.clock.Now()

	m.snap.InputTokens += d.InputTokens
	m.snap.CacheCreationTokens += d.CacheCreationTokens
	m.snap.CacheReadTokens += d.CacheReadTokens
	m.snap.OutputTokens += d.OutputTokens
	m.snap.EstimatedCost = m.snap.EstimatedCost.Add(cost)
	m.snap.UpdatedAt = now

	u := Update{
		Model:               m.snap.Model,
		At:                  now,
		TotalTokens:         m.snap.TotalTokens(),
		InputTokens:         m.snap.InputTokens,
		OutputTokens:        m.snap.OutputTokens,
		CacheReadTokens:     m.snap.CacheReadTokens,
		CacheCreationTokens: m.snap.CacheCreationTokens,
		CostDelta:           cost,
		CostTotal:           m.snap.EstimatedCost,
		Alerts:              m.crossedLocked(),
	}
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o.OnUsage(u)
	}
	return u, nil
}

func (m *Meter) checkOverflowLocked(d Delta) error {
	pairs := [][2]int64{
		{m.snap.InputTokens, d.InputTokens},
		{m.snap.CacheCreationTokens, d.CacheCreationTokens},
		{m.snap.CacheReadTokens, d.CacheReadTokens},
		{m.snap.OutputTokens, d.OutputTokens},
	}
	var total int64
	for _, p := range pairs {
		if p[0] > math.MaxInt64-p[1] {
			return fmt.Errorf("%w: counter overflow", ErrInvalidUsageDelta)
		}
		sum := p[0] + p[1]
		if total > math.MaxInt64-sum {
			return fmt.Errorf("%w: total overflow", ErrInvalidUsageDelta)
		}
		total += sum
	}
	return nil
}

// Snapshot returns the current totals.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Reset zeroes every counter and the cost, re-arms alerts, and restarts the
// burn-rate clock.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.startAt = now
	m.snap = Snapshot{Model: m.snap.Model, StartedAt: now, EstimatedCost: decimal.Zero}
	for i := range m.alerts {
		m.alerts[i].fired = false
	}
}

// SetModel switches the rate used for future deltas. Cost already recorded is
// not re-priced.
func (m *Meter) SetModel(model string) error {
	rate, name, ok := m.table.Lookup(model)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	m.mu.Lock()
	m.rate = rate
	m.snap.Model = name
	m.mu.Unlock()
	return nil
}

// Rate returns the rate currently in effect.
func (m *Meter) Rate() Rate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// RecordToolCalls adds n tool invocations.
func (m *Meter) RecordToolCalls(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.snap.ToolCalls += n
	m.mu.Unlock()
}

// RecordMessage counts one user message.
func (m *Meter) RecordMessage() {
	m.mu.Lock()
	m.snap.MessageCount++
	m.mu.Unlock()
}

// RecordObjective counts one completed objective.
func (m *Meter) RecordObjective() {
	m.mu.Lock()
	m.snap.ObjectivesCompleted++
	m.mu.Unlock()
}

// BurnRate returns tokens per minute and cost per hour since the session
// started. Both are zero until time has passed.
func (m *Meter) BurnRate() BurnRate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.burnRateLocked(m.clock.Now())
}

func (m *Meter) burnRateLocked(now time.Time) BurnRate {
	elapsed := now.Sub(m.startAt)
	if elapsed <= 0 {
		return BurnRate{CostPerHour: decimal.Zero}
	}
	minutes := elapsed.Minutes()
	return BurnRate{
		TokensPerMinute: float64(m.snap.TotalTokens()) / minutes,
		CostPerHour:     m.snap.EstimatedCost.Div(decimal.NewFromFloat(elapsed.Hours())),
	}
}

// Project extrapolates the totals over the remaining session time at the
// current burn rate.
func (m *Meter) Project(remaining time.Duration) Projection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	br := m.burnRateLocked(m.clock.Now())
	extraTokens := int64(br.TokensPerMinute * remaining.Minutes())
	extraCost := br.CostPerHour.Mul(decimal.NewFromFloat(remaining.Hours()))
	return Projection{
		TotalTokens:      m.snap.TotalTokens() + extraTokens,
		TotalCost:        m.snap.EstimatedCost.Add(extraCost),
		RemainingMinutes: remaining.Minutes(),
	}
}
