package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("fired %v after 2s, want [1 2]", order)
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}

	c.Advance(time.Second)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("fired %v after 3s, want [1 2 3]", order)
	}
}

func TestFakeCallbackSeesDeadlineTime(t *testing.T) {
	c := NewFake(epoch)
	var seen time.Time
	c.AfterFunc(1500*time.Millisecond, func() { seen = c.Now() })

	c.Advance(5 * time.Second)
	if want := epoch.Add(1500 * time.Millisecond); !seen.Equal(want) {
		t.Fatalf("callback saw %v, want %v", seen, want)
	}
	if want := epoch.Add(5 * time.Second); !c.Now().Equal(want) {
		t.Fatalf("Now = %v, want %v", c.Now(), want)
	}
}

func TestFakeChainedCallbacks(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	var schedule func()
	schedule = func() {
		c.AfterFunc(time.Second, func() {
			fired++
			schedule()
		})
	}
	schedule()

	c.Advance(10 * time.Second)
	if fired != 10 {
		t.Fatalf("fired = %d, want 10", fired)
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	if !tm.Stop() {
		t.Fatal("first Stop returned false")
	}
	if tm.Stop() {
		t.Fatal("second Stop returned true")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeSleepLeavesCallbacksOverdue(t *testing.T) {
	c := NewFake(epoch)
	var seen time.Time
	c.AfterFunc(time.Second, func() { seen = c.Now() })

	c.Sleep(1200 * time.Millisecond)
	if !seen.IsZero() {
		t.Fatal("Sleep fired a callback")
	}

	c.Advance(0)
	if want := epoch.Add(1200 * time.Millisecond); !seen.Equal(want) {
		t.Fatalf("late callback saw %v, want %v", seen, want)
	}
}
