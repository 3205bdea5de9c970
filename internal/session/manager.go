// Package session owns the lifecycle of tracked sessions: one countdown and
// one usage meter per session, with events fanned out to sinks and closed
// sessions handed to an archiver.
package session

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/clock"
	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/timer"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionClosed is returned when mutating a completed session.
	ErrSessionClosed = errors.New("session: closed")
)

// StartOptions describes a new session. Zero fields take the manager's
// defaults.
type StartOptions struct {
	Model    string
	Duration time.Duration
	Project  string
	Label    string
}

// Snapshot is a consistent view of one session.
type Snapshot struct {
	Session    model.Session    `json:"session"`
	Timer      timer.State      `json:"timer"`
	Usage      meter.Snapshot   `json:"usage"`
	BurnRate   meter.BurnRate   `json:"burn_rate"`
	Projection meter.Projection `json:"projection"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source shared by schedulers and meters.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithBilling sets cache pricing for new sessions.
func WithBilling(b meter.Billing) Option {
	return func(m *Manager) { m.billing = b }
}

// WithSink adds an event sink.
func WithSink(s EventSink) Option {
	return func(m *Manager) {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
}

// WithArchiver sets where closed sessions are saved.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) { m.archiver = a }
}

// WithDefaults sets the model and duration used when StartOptions omit them.
func WithDefaults(model string, d time.Duration) Option {
	return func(m *Manager) {
		if model != "" {
			m.defaultModel = model
		}
		if d > 0 {
			m.defaultDuration = d
		}
	}
}

// WithSchedule sets the countdown tick interval and correction threshold.
func WithSchedule(interval, threshold time.Duration) Option {
	return func(m *Manager) {
		m.interval = interval
		m.threshold = threshold
	}
}

// WithAlerts sets cost and token thresholds for new sessions.
func WithAlerts(cost []decimal.Decimal, tokens []int64) Option {
	return func(m *Manager) {
		m.costAlerts = cost
		m.tokenAlerts = tokens
	}
}

// Manager tracks any number of independent sessions.
type Manager struct {
	clock           clock.Clock
	table           meter.RateTable
	billing         meter.Billing
	sinks           multiSink
	archiver        Archiver
	defaultModel    string
	defaultDuration time.Duration
	interval        time.Duration
	threshold       time.Duration
	costAlerts      []decimal.Decimal
	tokenAlerts     []int64

	mu       sync.RWMutex
	sessions map[string]*entry
}

// entry pairs the scheduler and meter of one session. ops serializes control
// operations; mu guards info and is the only lock the completion path takes.
type entry struct {
	sched *timer.Scheduler
	meter *meter.Meter

	ops sync.Mutex

	mu          sync.Mutex
	info        model.Session
	elapsed     time.Duration
	stopReason  model.EndReason
	stopElapsed time.Duration
}

// NewManager returns a manager pricing sessions with table.
func NewManager(table meter.RateTable, opts ...Option) *Manager {
	m := &Manager{
		clock:           clock.System(),
		table:           table,
		billing:         meter.DefaultBilling(),
		defaultModel:    "claude-sonnet-4-5",
		defaultDuration: timer.SessionWindow,
		interval:        timer.DefaultUpdateInterval,
		threshold:       timer.DefaultCorrectionThreshold,
		sessions:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session and starts its countdown.
func (m *Manager) Start(opts StartOptions) (Snapshot, error) {
	if opts.Model == "" {
		opts.Model = m.defaultModel
	}
	if opts.Duration == 0 {
		opts.Duration = m.defaultDuration
	}
	if opts.Duration < 0 {
		return Snapshot{}, fmt.Errorf("%w: %v", timer.ErrInvalidDuration, opts.Duration)
	}

	id := uuid.NewString()
	now := m.clock.Now()

	meterOpts := []meter.Option{
		meter.WithClock(m.clock),
		meter.WithBilling(m.billing),
		meter.WithStartTime(now),
		meter.WithCostAlerts(m.costAlerts...),
		meter.WithTokenAlerts(m.tokenAlerts...),
		meter.WithObserver(meter.ObserverFunc(func(u meter.Update) { m.onUsage(id, u) })),
	}
	mt, err := meter.New(opts.Model, m.table, meterOpts...)
	if err != nil {
		return Snapshot{}, err
	}

	e := &entry{
		sched: timer.New(opts.Duration,
			timer.WithClock(m.clock),
			timer.WithInterval(m.interval),
			timer.WithCorrectionThreshold(m.threshold),
		),
		meter: mt,
		info: model.Session{
			ID:        id,
			Model:     mt.Snapshot().Model,
			Project:   opts.Project,
			Label:     opts.Label,
			StartTime: now,
			Duration:  opts.Duration,
			Status:    model.StatusActive,
		},
	}

	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()

	log.Printf("session level=info event=start id=%s model=%s duration=%s", id, e.info.Model, timer.FormatTime(opts.Duration))
	m.sinks.Publish(Event{
		Type:        EventStarted,
		SessionID:   id,
		At:          now,
		Status:      model.StatusActive,
		RemainingMS: opts.Duration.Milliseconds(),
	})

	e.ops.Lock()
	e.sched.Start(timer.Funcs{
		Update:   func(elapsed, remaining time.Duration) { m.onTick(e, elapsed, remaining) },
		Complete: func() { m.finish(e) },
	})
	e.ops.Unlock()

	return m.snapshot(e), nil
}

// Get returns the current view of a session.
func (m *Manager) Get(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(e), nil
}

// List returns every tracked session, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	entries := lo.Values(m.sessions)
	m.mu.RUnlock()

	out := lo.Map(entries, func(e *entry, _ int) Snapshot { return m.snapshot(e) })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Session.StartTime.Equal(out[j].Session.StartTime) {
			return out[i].Session.ID < out[j].Session.ID
		}
		return out[i].Session.StartTime.Before(out[j].Session.StartTime)
	})
	return out
}

// Active returns the sessions that are still running or paused.
func (m *Manager) Active() []Snapshot {
	return lo.Filter(m.List(), func(s Snapshot, _ int) bool { return !s.Session.Status.Closed() })
}

// Pause freezes a running session's countdown.
func (m *Manager) Pause(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	e.ops.Lock()
	defer e.ops.Unlock()
	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}
	e.sched.Pause()
	if e.sched.Status() != timer.StatusPaused {
		return m.snapshot(e), nil
	}

	e.mu.Lock()
	e.info.Status = model.StatusPaused
	e.mu.Unlock()
	m.publishState(e, EventPaused)
	return m.snapshot(e), nil
}

// Resume restarts a paused session's countdown where it left off.
func (m *Manager) Resume(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	e.ops.Lock()
	defer e.ops.Unlock()
	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}
	if e.sched.Status() != timer.StatusPaused {
		return m.snapshot(e), nil
	}

	e.mu.Lock()
	e.info.Status = model.StatusActive
	e.mu.Unlock()
	m.publishState(e, EventResumed)
	e.sched.Start(nil)
	return m.snapshot(e), nil
}

// Stop ends a session early. Stopping a closed session returns
// ErrSessionClosed.
func (m *Manager) Stop(id string) (Snapshot, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	e.ops.Lock()
	defer e.ops.Unlock()
	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}
	elapsed := e.sched.Elapsed()
	e.mu.Lock()
	e.stopReason = model.EndStopped
	e.stopElapsed = elapsed
	e.mu.Unlock()
	e.sched.Stop()
	return m.snapshot(e), nil
}

// Record adds a usage delta to an open session. Paused sessions still accept
// usage that arrives late.
func (m *Manager) Record(id string, d meter.Delta) (meter.Update, error) {
	e, err := m.lookup(id)
	if err != nil {
		return meter.Update{}, err
	}
	e.ops.Lock()
	defer e.ops.Unlock()
	if err := e.checkOpen(); err != nil {
		return meter.Update{}, err
	}
	return e.meter.Record(d)
}

// RecordToolCall counts n tool invocations.
func (m *Manager) RecordToolCall(id string, n int64) error {
	return m.withOpen(id, func(e *entry) { e.meter.RecordToolCalls(n) })
}

// RecordMessage counts one user message.
func (m *Manager) RecordMessage(id string) error {
	return m.withOpen(id, func(e *entry) { e.meter.RecordMessage() })
}

// RecordObjective counts one completed objective.
func (m *Manager) RecordObjective(id string) error {
	return m.withOpen(id, func(e *entry) { e.meter.RecordObjective() })
}

// SetModel switches the rate used for the session's future usage.
func (m *Manager) SetModel(id, modelName string) error {
	var err error
	werr := m.withOpen(id, func(e *entry) {
		if err = e.meter.SetModel(modelName); err == nil {
			e.mu.Lock()
			e.info.Model = e.meter.Snapshot().Model
			e.mu.Unlock()
		}
	})
	if werr != nil {
		return werr
	}
	return err
}

// Delete stops a session if it is still open and forgets it.
func (m *Manager) Delete(id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}

	if _, err := m.Stop(id); err != nil && !errors.Is(err, ErrSessionClosed) {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.publishState(e, EventDeleted)
	return nil
}

// Close stops every open session.
func (m *Manager) Close() {
	for _, s := range m.Active() {
		if _, err := m.Stop(s.Session.ID); err != nil && !errors.Is(err, ErrSessionClosed) {
			log.Printf("session level=warn event=close_stop id=%s err=%v", s.Session.ID, err)
		}
	}
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (m *Manager) withOpen(id string, fn func(*entry)) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.ops.Lock()
	defer e.ops.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	fn(e)
	return nil
}

func (e *entry) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.info.Status.Closed() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, e.info.ID)
	}
	return nil
}

func (m *Manager) snapshot(e *entry) Snapshot {
	e.mu.Lock()
	info := e.info
	frozen := e.elapsed
	e.mu.Unlock()

	st := e.sched.State()
	if info.Status.Closed() {
		st.Elapsed = frozen
		st.Remaining = max(0, info.Duration-frozen)
	}
	return Snapshot{
		Session:    info,
		Timer:      st,
		Usage:      e.meter.Snapshot(),
		BurnRate:   e.meter.BurnRate(),
		Projection: e.meter.Project(st.Remaining),
	}
}

func (m *Manager) onTick(e *entry, elapsed, remaining time.Duration) {
	e.mu.Lock()
	id, status := e.info.ID, e.info.Status
	e.mu.Unlock()

	m.sinks.Publish(Event{
		Type:        EventTick,
		SessionID:   id,
		At:          m.clock.Now(),
		Status:      status,
		ElapsedMS:   elapsed.Milliseconds(),
		RemainingMS: remaining.Milliseconds(),
	})
}

func (m *Manager) onUsage(id string, u meter.Update) {
	m.sinks.Publish(Event{Type: EventUsage, SessionID: id, At: u.At, Usage: &u})
	for i := range u.Alerts {
		a := u.Alerts[i]
		log.Printf("session level=warn event=alert id=%s kind=%s limit=%s value=%s", id, a.Kind, a.Limit, a.Value)
		m.sinks.Publish(Event{Type: EventAlert, SessionID: id, At: u.At, Alert: &a})
	}
}

// finish runs once per session when its countdown completes or is stopped.
func (m *Manager) finish(e *entry) {
	now := m.clock.Now()
	elapsed := min(e.sched.Elapsed(), e.sched.Duration())

	e.mu.Lock()
	if e.info.Status.Closed() {
		e.mu.Unlock()
		return
	}
	reason := e.stopReason
	if reason == "" {
		reason = model.EndExpired
	} else {
		elapsed = min(e.stopElapsed, e.info.Duration)
	}
	e.info.Status = model.StatusCompleted
	e.info.EndTime = now
	e.info.EndReason = reason
	e.elapsed = max(elapsed, 0)
	rec := e.recordLocked()
	e.mu.Unlock()

	var archiveErr error
	if m.archiver != nil {
		if archiveErr = m.archiver.SaveSession(rec); archiveErr != nil {
			log.Printf("session level=error event=archive id=%s err=%v", rec.ID, archiveErr)
			e.mu.Lock()
			e.info.Status = model.StatusError
			e.mu.Unlock()
		}
	}

	log.Printf("session level=info event=complete id=%s reason=%s tokens=%d cost=%s",
		rec.ID, reason, rec.TotalTokens(), rec.EstimatedCost.StringFixed(4))

	ev := Event{
		Type:      EventCompleted,
		SessionID: rec.ID,
		At:        now,
		Status:    model.StatusCompleted,
		ElapsedMS: rec.Elapsed.Milliseconds(),
	}
	if archiveErr != nil {
		ev.Status = model.StatusError
		ev.Error = archiveErr.Error()
	}
	m.sinks.Publish(ev)
}

func (e *entry) recordLocked() model.SessionRecord {
	u := e.meter.Snapshot()
	return model.SessionRecord{
		Session:             e.info,
		Elapsed:             e.elapsed,
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
		EstimatedCost:       u.EstimatedCost,
		ToolCalls:           u.ToolCalls,
		Messages:            u.MessageCount,
		Objectives:          u.ObjectivesCompleted,
	}
}

func (m *Manager) publishState(e *entry, typ EventType) {
	snap := m.snapshot(e)
	m.sinks.Publish(Event{
		Type:        typ,
		SessionID:   snap.Session.ID,
		At:          m.clock.Now(),
		Status:      snap.Session.Status,
		ElapsedMS:   snap.Timer.Elapsed.Milliseconds(),
		RemainingMS: snap.Timer.Remaining.Milliseconds(),
	})
}
