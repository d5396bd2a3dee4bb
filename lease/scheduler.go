package lease

import "time"

// CancelFunc stops a scheduled callback. It reports whether the call was
// prevented from running; cancelling an already-fired or already-cancelled
// timer is a no-op.
type CancelFunc func() bool

// Scheduler provides deferred execution for abandonment timers.
// The wall-clock implementation is the default; tests substitute a fake
// to drive time deterministically.
type Scheduler interface {
	// AfterFunc runs fn on its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, fn func()) CancelFunc
}

// WallScheduler schedules via time.AfterFunc.
type WallScheduler struct{}

func (WallScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Ensure WallScheduler implements Scheduler at compile time.
var _ Scheduler = WallScheduler{}
