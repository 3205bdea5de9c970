// Package clock abstracts wall-clock reads and scheduled callbacks so timing
// code can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by schedulers and meters.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback returned by AfterFunc.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it
	// before it fired.
	Stop() bool
}

type systemClock struct{}

// System returns the real wall clock.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced clock. Callbacks registered with AfterFunc run
// synchronously on the goroutine that calls Advance or Set, in deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	seq   int
	f     func()
	done  bool
}

// NewFake returns a fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the fake time reaches now+d.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	return true
}

func (c *Fake) removeLocked(t *fakeTimer) {
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every callback that comes due.
// Callbacks scheduled by a firing callback also run if they fall inside d.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set moves the clock to t, firing due callbacks along the way. Moving
// backwards only changes the reported time.
func (c *Fake) Set(t time.Time) {
	for {
		c.mu.Lock()
		next := c.nextDueLocked(t)
		if next == nil {
			c.now = t
			c.mu.Unlock()
			return
		}
		next.done = true
		c.removeLocked(next)
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

func (c *Fake) nextDueLocked(limit time.Time) *fakeTimer {
	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].at.Equal(c.pending[j].at) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].at.Before(c.pending[j].at)
	})
	if c.pending[0].at.After(limit) {
		return nil
	}
	return c.pending[0]
}

// Pending returns the number of callbacks not yet fired or stopped.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Sleep advances fake time without firing callbacks. It models wall-clock
// time passing while a callback is late.
func (c *Fake) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
