// Package coarsetime is a clock refreshed every 50ms by a background
// goroutine. Reading it costs an atomic load, which is cheap enough to call
// before every protocol read.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval.
const Resolution = 50 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	store(time.Now())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			store(t)
		}
	}()
}

func store(t time.Time) {
	now.Store(&t)
}

// Now returns the current coarse time.
func Now() time.Time {
	return *now.Load()
}

// Deadline returns Now()+d, or the zero time (no deadline) when d <= 0.
func Deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return Now().Add(d)
}

// Since returns the coarse time elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
