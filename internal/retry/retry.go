// Package retry wraps sethvargo/go-retry with the exponential policy shared by
// remote writes and the redis connector.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy describes a capped exponential backoff.
type Policy struct {
	// Base is the first wait; every further wait doubles. Must be > 0.
	Base time.Duration

	// Max caps a single wait. Zero means uncapped.
	Max time.Duration

	// Attempts is the total number of calls, the first one included.
	// Zero or less means retry until the context or Timeout ends.
	Attempts int

	// Timeout bounds the whole retry loop. Zero means no bound.
	Timeout time.Duration

	// OnRetry is called after each failure that will be retried.
	OnRetry func(attempt int, err error)
}

// Backoff builds the go-retry backoff for the policy.
func (p Policy) Backoff() goretry.Backoff {
	base := p.Base
	if base <= 0 {
		base = time.Millisecond
	}

	b := goretry.NewExponential(base)
	if p.Max > 0 {
		b = goretry.WithCappedDuration(p.Max, b)
	}
	if p.Attempts > 0 {
		b = goretry.WithMaxRetries(uint64(p.Attempts-1), b)
	}
	if p.Timeout > 0 {
		b = goretry.WithMaxDuration(p.Timeout, b)
	}
	return b
}

// Do calls fn until it succeeds, fails with an error retryable rejects, or
// the policy is exhausted. It returns the number of calls made and the last
// error from fn. A nil retryable treats every error as retryable.
//
// If ctx ends while waiting, the last error from fn is returned when there
// is one, so callers see the remote failure rather than the cancellation.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	var (
		attempts int
		lastErr  error
	)

	err := goretry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		attempts++
		err := fn(ctx, attempts)
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}
		if p.Attempts <= 0 || attempts < p.Attempts {
			if p.OnRetry != nil {
				p.OnRetry(attempts, err)
			}
		}
		return goretry.RetryableError(err)
	})

	if err != nil && lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return attempts, lastErr
	}
	return attempts, err
}
