// Package resilience wraps every mutating call to a collaborator service with
// retry, error translation, and offline queueing. It is the single boundary
// between collaborator-native failures and the core's fault taxonomy.
package resilience

import (
	"context"
	"time"

	"github.com/dayflow/dayflow/pkg/fault"
)

// Default retry parameters for collaborator calls.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialDelay   = 1 * time.Second
	DefaultMultiplier     = 2.0
	DefaultMaxDelay       = 10 * time.Second
	DefaultAttemptTimeout = 15 * time.Second
)

// Retrier executes an operation with bounded exponential backoff.
// Only failures classified transient are retried; everything else surfaces
// immediately. Backoff waiting is scoped to the single retrying call and
// honors the caller's context.
type Retrier struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// MaxDelay caps the inter-attempt delay.
	MaxDelay time.Duration

	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt timeout and leaves only the caller's context.
	AttemptTimeout time.Duration

	// sleep waits between attempts; tests replace it to observe delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier with the default backoff parameters.
func NewRetrier() *Retrier {
	return &Retrier{
		MaxAttempts:    DefaultMaxAttempts,
		InitialDelay:   DefaultInitialDelay,
		Multiplier:     DefaultMultiplier,
		MaxDelay:       DefaultMaxDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Do executes op, retrying transient failures with exponential backoff.
// It returns nil on the first success, the last error once attempts are
// exhausted or the failure is not transient, and the context error if the
// caller cancels mid-backoff.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = r.attempt(ctx, op)
		if lastErr == nil {
			return nil
		}

		if fault.Classify(lastErr) != fault.ClassTransient {
			return lastErr
		}

		if attempt == maxAttempts-1 {
			break
		}

		if err := r.wait(ctx, r.delayFor(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

// attempt runs a single attempt bounded by the per-attempt timeout.
func (r *Retrier) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if r.AttemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// delayFor returns the capped exponential delay before attempt+2.
func (r *Retrier) delayFor(attempt int) time.Duration {
	delay := float64(r.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= r.Multiplier
	}

	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

func (r *Retrier) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
