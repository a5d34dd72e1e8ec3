// Package ratelimit spaces out consecutive fetches of one crawl session.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces delay + U(0, jitter) between consecutive Acquire calls.
// It is meant to be owned by a single crawl session; callers are serialised.
type Limiter struct {
	mu     sync.Mutex
	delay  time.Duration
	jitter time.Duration
	last   time.Time
	rnd    func() float64
}

// New creates a limiter. Negative values are treated as zero.
func New(delay, jitter time.Duration) *Limiter {
	if delay < 0 {
		delay = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Limiter{
		delay:  delay,
		jitter: jitter,
		rnd:    rand.Float64,
	}
}

// Acquire blocks until enough time has passed since the previous Acquire
// returned. The first call never waits.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		wait := l.nextGap() - time.Since(l.last)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	now := time.Now()
	if now.After(l.last) {
		l.last = now
	}
	return nil
}

func (l *Limiter) nextGap() time.Duration {
	if l.jitter == 0 {
		return l.delay
	}
	return l.delay + time.Duration(l.rnd()*float64(l.jitter))
}
