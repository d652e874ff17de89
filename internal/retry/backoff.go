// Package retry implements per-service exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Config is a per-service backoff policy.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// Attempts is the total number of invocations the policy allows.
func (c Config) Attempts() int {
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// Delay returns the wait before retry number attempt (0-based):
// min(BaseDelay * Multiplier^attempt, MaxDelay).
func (c Config) Delay(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(c.BaseDelay) * math.Pow(mult, float64(attempt))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// retryableError marks an error as worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so the policy retries it. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Retryablef formats a retryable error.
func Retryablef(format string, args ...interface{}) error {
	return Retryable(fmt.Errorf(format, args...))
}

// IsRetryable reports whether err was marked retryable.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// ErrCancelled is returned when the context ends while waiting for a retry.
var ErrCancelled = errors.New("retry cancelled")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning early with ctx.Err() when ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Policy runs operations under a Config. The zero Sleep uses Sleep.
type Policy struct {
	Service string
	Config  Config
	Logger  zerolog.Logger
	Sleep   SleepFunc
}

// New creates a policy for service.
func New(service string, cfg Config, logger zerolog.Logger) *Policy {
	return &Policy{Service: service, Config: cfg, Logger: logger}
}

// Operation is one attempt; attempt is 1-based.
type Operation func(ctx context.Context, attempt int) error

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. It returns the number of invocations made and
// the last error. Waits between attempts end early when ctx is done.
func (p *Policy) Do(ctx context.Context, op Operation) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	total := p.Config.Attempts()

	var lastErr error
	for attempt := 0; attempt < total; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt, fmt.Errorf("%w: %w: %w", ErrCancelled, err, lastErr)
		}

		lastErr = op(ctx, attempt+1)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !IsRetryable(lastErr) {
			return attempt + 1, lastErr
		}
		if attempt == total-1 {
			break
		}

		delay := p.Config.Delay(attempt)
		p.Logger.Warn().
			Str("service", p.Service).
			Int("attempt", attempt+1).
			Int("max_attempts", total).
			Dur("delay", delay).
			Err(lastErr).
			Msg("attempt failed, retrying")

		if err := sleep(ctx, delay); err != nil {
			return attempt + 1, fmt.Errorf("%w: %w: %w", ErrCancelled, err, lastErr)
		}
	}

	p.Logger.Error().
		Str("service", p.Service).
		Int("attempts", total).
		Err(lastErr).
		Msg("all attempts failed")
	return total, lastErr
}

// Do is a convenience wrapper around Policy.Do.
func Do(ctx context.Context, service string, cfg Config, logger zerolog.Logger, op Operation) (int, error) {
	return New(service, cfg, logger).Do(ctx, op)
}
