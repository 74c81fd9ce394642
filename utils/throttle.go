package utils

import (
	"context"
	"math/rand"
	"time"
)

// Throttle inserts a randomized delay between consecutive page visits.
// The jitter makes the request pattern look less mechanical; this is a
// politeness mechanism, not a performance one.
type Throttle struct {
	min time.Duration
	max time.Duration
	rng *rand.Rand
}

// NewThrottle creates a Throttle sleeping between minMs and maxMs
// milliseconds per Wait call. A max at or below min degenerates to a
// fixed delay of min.
func NewThrottle(minMs, maxMs int) *Throttle {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	return &Throttle{
		min: time.Duration(minMs) * time.Millisecond,
		max: time.Duration(maxMs) * time.Millisecond,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks for a randomized interval or until ctx is cancelled.
func (t *Throttle) Wait(ctx context.Context) {
	d := t.min
	if span := t.max - t.min; span > 0 {
		d += time.Duration(t.rng.Int63n(int64(span)))
	}
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
