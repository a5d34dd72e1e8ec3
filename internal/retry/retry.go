// Package retry re-runs transient operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"log"
	"time"
)

// Policy configures Do. Attempts below 1 behave as 1.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultPolicy matches the fetch engine defaults: 3 attempts, 2s base.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: 2 * time.Second}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the sleep before the attempt following attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Do calls fn until it succeeds, returns a permanent error, the attempts
// are exhausted or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		log.Printf("    🔁 Attempt %d/%d failed: %v (retrying in %v)", attempt+1, attempts, err, wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
