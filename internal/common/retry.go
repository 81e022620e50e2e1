package common

import (
	"context"
	"errors"
	"time"
)

// Default retry constants for upstream market data calls.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// RetryPolicy bounds the attempts made against a single provider.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts (values below 1 mean 1)
	MaxRetries int

	// BaseDelay is the wait before the second attempt
	BaseDelay time.Duration

	// MaxDelay caps every computed backoff
	MaxDelay time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy from the retry config section.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.GetBaseDelay(),
		MaxDelay:   cfg.GetMaxDelay(),
	}
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Attempts returns the effective number of attempts.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// Backoff returns BaseDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := p.BaseDelay
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if p.MaxDelay > 0 && backoff >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && backoff > p.MaxDelay {
		return p.MaxDelay
	}
	return backoff
}

// Do calls fn until it succeeds, returns a permanent error, the context ends or
// the attempts run out. It sleeps Backoff(attempt) between attempts only.
// The returned error is the last one fn produced, or the context error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.Attempts()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == attempts-1 {
			break
		}
		if err := p.sleep(ctx, p.Backoff(attempt)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
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

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so RetryPolicy.Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
