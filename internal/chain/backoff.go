// Package chain owns the live log subscriptions against the chain node: it
// detects disconnects, resubscribes with backoff from a resume block, and
// produces the raw log stream the pipeline drains.
package chain

import (
	"context"
	"math/rand"
	"time"
)

// Backoff is an exponential backoff policy with jitter. It is a plain value
// so retry behavior can be tested without any network I/O.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps the grown delay.
	Max time.Duration
	// Multiplier grows the delay per attempt; values <= 1 mean constant delay.
	Multiplier float64
	// Jitter is the fraction of the delay randomized away (0..1).
	Jitter float64
}

// DefaultBackoff matches the reconnect cadence used for upstream WebSocket
// feeds: 2s base doubling up to 60s, with 20% jitter.
var DefaultBackoff = Backoff{
	Base:       2 * time.Second,
	Max:        60 * time.Second,
	Multiplier: 2,
	Jitter:     0.2,
}

// Delay returns the wait before retry number attempt (0-based). The returned
// value is in [(1-Jitter)*d, d] where d is the capped exponential delay.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Base)
	if b.Multiplier > 1 {
		for i := 0; i < attempt; i++ {
			d *= b.Multiplier
			if time.Duration(d) >= b.Max {
				d = float64(b.Max)
				break
			}
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d -= rand.Float64() * b.Jitter * d
	}
	return time.Duration(d)
}

// Wait sleeps for the attempt's delay or until the context is cancelled.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
