// Package timeutil provides the cancellation-aware sleep both worker loops
// are built on, plus the randomized delays used to avoid bursty request
// patterns.
package timeutil

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
// Returns the context error on cancellation so callers can propagate it.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Between returns a uniformly random duration in [min, max).
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}
