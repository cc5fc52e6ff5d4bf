package timeutil

import "time"

// IntervalElapsed reports whether at least interval has passed between last
// and now. A zero last means the resource was never polled.
func IntervalElapsed(last time.Time, interval time.Duration, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}

// Gate decides whether a periodic task is due. It samples the clock on every
// call.
type Gate struct {
	now func() time.Time
}

// NewGate returns a Gate backed by now, or time.Now when nil.
func NewGate(now func() time.Time) Gate {
	if now == nil {
		now = time.Now
	}
	return Gate{now: now}
}

// ShouldRun reports whether interval has elapsed since last.
func (g Gate) ShouldRun(last time.Time, interval time.Duration) bool {
	return IntervalElapsed(last, interval, g.Now())
}

// Remaining returns how long until the task becomes due, or zero when it
// already is.
func (g Gate) Remaining(last time.Time, interval time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	left := interval - g.Now().Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

// Now returns the gate's current time.
func (g Gate) Now() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}
