// Package retry re-issues failed operations a bounded number of times
// with a fixed delay between attempts. The last failure is returned
// unchanged, so callers can match sentinel errors from the wrapped
// operation directly.
package retry

import (
	"context"
	"time"
)

const (
	DefaultRetries = 3
	DefaultDelay   = 1000 * time.Millisecond
)

// Policy controls how an operation is retried.
//
// Retries is the number of re-attempts after the initial one; zero
// means exactly one attempt. Delay is constant across attempts — no
// jitter, no backoff growth.
//
// Retryable, when set, gates each retry: a failure it rejects is
// returned immediately. When nil every failure is retried, including
// ones that can never succeed (a 401, say) — callers wrapping
// non-idempotent operations must ensure repeats are safe.
type Policy struct {
	Retries   int
	Delay     time.Duration
	Retryable func(error) bool
}

// DefaultPolicy retries every failure, matching the historic
// behaviour of the link flow.
func DefaultPolicy() Policy {
	return Policy{Retries: DefaultRetries, Delay: DefaultDelay}
}

// Do runs op, retrying per p. The inter-attempt wait respects ctx;
// cancellation during the wait returns ctx.Err().
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	remaining := p.Retries
	for {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		if remaining <= 0 {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		remaining--

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.Delay):
		}
	}
}
