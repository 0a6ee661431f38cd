// Package clock abstracts wall-clock time so timer-driven code can be
// exercised deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Timer is a pending callback registered through AfterFunc.
type Timer interface {
	// Stop cancels the timer. It reports whether the callback was prevented
	// from running; false means the callback already ran or is running.
	Stop() bool
}

// Clock provides the current instant and delayed callback execution.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// System is the wall-clock implementation backed by the time package.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d elapses.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually-advanced clock for tests. Callbacks registered through
// AfterFunc run synchronously, in due order, when Advance moves the clock
// past their deadline.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	id    int
	due   time.Time
	fn    func()
}

// NewFake creates a fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, timers: make(map[int]*fakeTimer)}
}

// Now returns the fake clock's current instant.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock is advanced past d from now.
// A non-positive d still waits for an explicit Advance; nothing fires early.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	timer := &fakeTimer{clock: c, id: c.nextID, due: c.now.Add(d), fn: f}
	c.timers[timer.id] = timer
	return timer
}

// Stop removes the timer if it has not fired yet.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, pending := t.clock.timers[t.id]; !pending {
		return false
	}
	delete(t.clock.timers, t.id)
	return true
}

// Advance moves the clock forward by d and runs every callback whose deadline
// has been reached, in due order. Callbacks run without the clock lock held,
// so they may register or stop other timers.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, timer := range c.timers {
			if timer.due.After(target) {
				continue
			}
			if next == nil || timer.due.Before(next.due) || (timer.due.Equal(next.due) && timer.id < next.id) {
				next = timer
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		delete(c.timers, next.id)
		if next.due.After(c.now) {
			c.now = next.due
		}
		c.mu.Unlock()

		next.fn()
	}
}

// Pending reports how many timers are waiting to fire.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
