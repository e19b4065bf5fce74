package contactsync

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerSettings returns breaker settings for dialing the bridge.
//
// The breaker opens once at least 3 dials were attempted in the interval and
// 60% of them failed, which is the usual sign the bridge is not running.
func NewCircuitBreakerSettings(name string, maxRequests uint32, interval, timeout time.Duration) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
}
