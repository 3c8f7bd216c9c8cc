// Package retry provides the retry policy shared by every component that
// calls an external model service.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default policy values.
const (
	DefaultMaxAttempts     = 4
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMultiplier      = 2.0
	DefaultJitter          = 0.2
)

// Policy describes how a failing call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Multiplier grows the delay after every failed attempt.
	Multiplier float64
	// Jitter randomizes each delay by ±Jitter (0 disables).
	Jitter float64
	// Retryable reports whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		Jitter:          DefaultJitter,
	}
}

// WithRetryable returns a copy of the policy using the given predicate.
func (p Policy) WithRetryable(fn func(error) bool) Policy {
	p.Retryable = fn
	return p
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Operation is one attempt of a retried call. attempt starts at 1.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds, fails with a non-retryable error, the attempt
// ceiling is reached, or ctx is done. It returns the number of attempts made.
//
// Non-retryable errors are returned unchanged. Running out of attempts
// returns an *ExhaustedError wrapping the last error. Cancellation returns
// ctx.Err().
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, int, error) {
	p = p.normalized()

	attempts := 0
	permanent := false

	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx, attempts)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || (p.Retryable != nil && !p.Retryable(err)) {
			permanent = true
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempts, err, delay)
			}
		}),
	)
	if err == nil {
		return res, attempts, nil
	}
	if permanent {
		return res, attempts, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, attempts, ctxErr
	}
	return res, attempts, &ExhaustedError{Attempts: attempts, Err: err}
}
