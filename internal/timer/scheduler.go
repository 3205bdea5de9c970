// Package timer implements the drift-corrected countdown used to track a
// fixed-length usage session.
//
// A Scheduler anchors every wake-up to the instant the run started instead of
// chaining "now + interval" delays, so timing error stays bounded by the
// correction threshold no matter how long the countdown runs.
package timer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/theirongolddev/burnclock/internal/clock"
)

const (
	// DefaultUpdateInterval is the nominal spacing of OnUpdate calls.
	DefaultUpdateInterval = time.Second
	// DefaultCorrectionThreshold is how early a wake-up may arrive and still
	// count as landing on its interval boundary.
	DefaultCorrectionThreshold = 50 * time.Millisecond
	// SessionWindow is the length of a standard usage quota window.
	SessionWindow = 5 * time.Hour
)

var (
	// ErrInvalidDuration is returned when a duration is NaN, infinite, or
	// out of range.
	ErrInvalidDuration = errors.New("timer: invalid duration")
	// ErrInvalidTimeFormat is returned by ParseTimeString for input that is
	// not MM:SS or HH:MM:SS.
	ErrInvalidTimeFormat = errors.New("timer: invalid time format")
)

// Status is the lifecycle state of a Scheduler.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Observer receives countdown notifications. Both methods are called without
// any scheduler lock held; with the system clock they run on timer goroutines.
type Observer interface {
	OnUpdate(elapsed, remaining time.Duration)
	OnComplete()
}

// Funcs adapts plain functions to Observer. Nil fields are skipped.
type Funcs struct {
	Update   func(elapsed, remaining time.Duration)
	Complete func()
}

// OnUpdate implements Observer.
func (f Funcs) OnUpdate(elapsed, remaining time.Duration) {
	if f.Update != nil {
		f.Update(elapsed, remaining)
	}
}

// OnComplete implements Observer.
func (f Funcs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithInterval sets the update interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCorrectionThreshold sets the early-arrival tolerance. Negative values
// are ignored.
func WithCorrectionThreshold(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.threshold = d
		}
	}
}

// State is a point-in-time view of a Scheduler.
type State struct {
	Status    Status        `json:"status"`
	Duration  time.Duration `json:"duration"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Progress  float64       `json:"progress"`
}

// Scheduler is a single countdown. The zero value is not usable; construct
// with New or NewMillis.
type Scheduler struct {
	clock     clock.Clock
	duration  time.Duration
	interval  time.Duration
	threshold time.Duration

	mu       sync.Mutex
	status   Status
	anchor   time.Time
	pausedAt time.Time
	pending  clock.Timer
	gen      uint64
	obs      Observer
	notified bool
}

// New returns an idle scheduler for a countdown of length d. Zero and
// negative durations are valid and complete as soon as the timer starts.
func New(d time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     clock.System(),
		duration:  d,
		interval:  DefaultUpdateInterval,
		threshold: DefaultCorrectionThreshold,
		status:    StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMillis is New for a duration given in (possibly fractional)
// milliseconds, as read from JSON or user input.
func NewMillis(ms float64, opts ...Option) (*Scheduler, error) {
	d, err := MillisToDuration(ms)
	if err != nil {
		return nil, err
	}
	return New(d, opts...), nil
}

// MillisToDuration converts milliseconds to a Duration, rejecting values
// that are not finite or do not fit.
func MillisToDuration(ms float64) (time.Duration, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return 0, fmt.Errorf("%w: %v ms", ErrInvalidDuration, ms)
	}
	ns := ms * float64(time.Millisecond)
	if ns >= math.MaxInt64 || ns <= math.MinInt64 {
		return 0, fmt.Errorf("%w: %v ms out of range", ErrInvalidDuration, ms)
	}
	return time.Duration(ns), nil
}

// Start begins or resumes the countdown. obs replaces the current observer
// when non-nil, so a resume may pass nil to keep the original one.
//
// Start is a no-op while running: the anchor is not reset and no second
// wake-up is scheduled. It is also a no-op once completed.
func (s *Scheduler) Start(obs Observer) {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusCompleted {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	if obs != nil {
		s.obs = obs
	}
	if s.status == StatusPaused {
		s.anchor = s.anchor.Add(now.Sub(s.pausedAt))
		s.pausedAt = time.Time{}
	} else {
		s.anchor = now
		s.notified = false
	}
	s.status = StatusRunning

	var done Observer
	if s.remainingLocked(now) <= 0 {
		done = s.finishLocked()
	} else {
		s.scheduleLocked(now)
	}
	s.mu.Unlock()

	if done != nil {
		done.OnComplete()
	}
}

// Pause freezes the countdown. It does nothing unless the timer is running.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return
	}
	s.pausedAt = s.clock.Now()
	s.status = StatusPaused
	s.cancelLocked()
}

// Stop completes the countdown from any state and fires OnComplete if it has
// not fired for the current run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	done := s.finishLocked()
	s.mu.Unlock()

	if done != nil {
		done.OnComplete()
	}
}

// Elapsed returns the time counted in the current run: zero when idle,
// frozen while paused, live while running or completed.
func (s *Scheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked(s.clock.Now())
}

// Remaining returns max(0, duration - elapsed).
func (s *Scheduler) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(s.clock.Now())
}

// Status returns the lifecycle state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Progress returns elapsed/duration clamped to [0, 1]. A non-positive
// duration reports 1 once started.
func (s *Scheduler) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(s.clock.Now())
}

// Duration returns the fixed countdown length.
func (s *Scheduler) Duration() time.Duration { return s.duration }

// Interval returns the update interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// State returns status, elapsed, remaining and progress sampled at one instant.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	return State{
		Status:    s.status,
		Duration:  s.duration,
		Elapsed:   s.elapsedLocked(now),
		Remaining: s.remainingLocked(now),
		Progress:  s.progressLocked(now),
	}
}

func (s *Scheduler) elapsedLocked(now time.Time) time.Duration {
	var e time.Duration
	switch s.status {
	case StatusIdle:
		return 0
	case StatusPaused:
		e = s.pausedAt.Sub(s.anchor)
	default:
		if s.anchor.IsZero() {
			return 0
		}
		e = now.Sub(s.anchor)
	}
	if e < 0 {
		return 0
	}
	return e
}

func (s *Scheduler) remainingLocked(now time.Time) time.Duration {
	r := s.duration - s.elapsedLocked(now)
	if r < 0 {
		return 0
	}
	return r
}

func (s *Scheduler) progressLocked(now time.Time) float64 {
	if s.duration <= 0 {
		if s.status == StatusIdle {
			return 0
		}
		return 1
	}
	p := float64(s.elapsedLocked(now)) / float64(s.duration)
	return math.Max(0, math.Min(1, p))
}

// scheduleLocked arms the single pending wake-up. Any previous wake-up is
// invalidated through the generation counter.
func (s *Scheduler) scheduleLocked(now time.Time) {
	s.cancelLocked()
	delay := NextDelay(s.anchor, now, s.interval, s.threshold)
	if r := s.remainingLocked(now); r < delay {
		delay = r
	}
	gen := s.gen
	s.pending = s.clock.AfterFunc(delay, func() { s.tick(gen) })
}

func (s *Scheduler) cancelLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}

// finishLocked moves to completed and returns the observer to notify, or nil
// if completion was already reported for this run.
func (s *Scheduler) finishLocked() Observer {
	s.cancelLocked()
	s.status = StatusCompleted
	if s.notified {
		return nil
	}
	s.notified = true
	return s.obs
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.pending = nil

	now := s.clock.Now()
	elapsed := s.elapsedLocked(now)
	remaining := s.remainingLocked(now)
	obs := s.obs

	var done Observer
	if remaining <= 0 {
		done = s.finishLocked()
	} else {
		s.scheduleLocked(now)
	}
	s.mu.Unlock()

	if obs != nil {
		obs.OnUpdate(elapsed, remaining)
	}
	if done != nil {
		done.OnComplete()
	}
}

// NextDelay returns how long to wait from now so the next wake-up lands on
// the next whole interval boundary measured from anchor.
//
// The delay is derived from the anchor rather than from the previous
// wake-up, so lateness never accumulates. A wake-up that arrives less than
// threshold before a boundary is treated as being on it, and the following
// boundary is targeted instead of firing again almost immediately.
func NextDelay(anchor, now time.Time, interval, threshold time.Duration) time.Duration {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	elapsed := now.Sub(anchor)
	if elapsed < 0 {
		elapsed = 0
	}

	next := (elapsed/interval + 1) * interval
	delay := next - elapsed
	if delay < threshold {
		delay += interval
	}
	return delay
}
