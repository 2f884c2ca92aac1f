package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrRetriesExhausted marks a throttled operation that hit its retry ceiling.
// It is always wrapped together with the last provider error.
var ErrRetriesExhausted = errors.New("all retries exhausted")

// BackoffPolicy is the one retry/backoff policy shared by every call site in
// the engine. Delay for attempt i is base * 2^i plus random jitter in [0,1)s,
// so the total wait across a batch's lifetime is bounded by
// maxRetries * maxDelay and termination is deterministic.
type BackoffPolicy struct {
	MaxRetries int           // retries allowed beyond the initial attempt
	Base       time.Duration // base delay, doubled per attempt

	// jitter and sleep are injection points for tests. Zero values use
	// rand.Float64 and a context-aware time.After sleep.
	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBackoffPolicy builds a policy with the given ceiling and base delay.
// Non-positive arguments fall back to 5 retries and a 1s base.
func NewBackoffPolicy(maxRetries int, base time.Duration) BackoffPolicy {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if base <= 0 {
		base = time.Second
	}
	return BackoffPolicy{MaxRetries: maxRetries, Base: base}
}

// Delay returns the backoff delay before retry number attempt (0-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	jitter := p.jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	backoff := time.Duration(math.Pow(2, float64(attempt)) * float64(p.Base))
	return backoff + time.Duration(jitter()*float64(time.Second))
}

// Wait sleeps for the attempt's delay, aborting early when ctx is done.
func (p BackoffPolicy) Wait(ctx context.Context, attempt int) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return sleep(ctx, p.Delay(attempt))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
