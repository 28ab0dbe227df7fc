package sealbox

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior for DecryptFileWithRetry.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// BaseDelay is the initial delay between retry attempts.
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retry attempts.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay increases after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to delays
	// to prevent thundering herd.
	Jitter float64
	// RetryableOn determines if an error should trigger a retry.
	RetryableOn func(err error) bool
}

// DefaultRetryConfig returns the default retry configuration: three
// attempts with exponential backoff, retrying anything that is not a
// permanent failure.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		RetryableOn: isTransient,
	}
}

// isTransient reports whether an error is worth retrying. Denials,
// expired sessions, and validation failures will not change on a retry.
func isTransient(err error) bool {
	if errors.Is(err, ErrPolicyDenied) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrInvalidPolicyArgs) ||
		errors.Is(err, ErrMissingSession) {
		return false
	}
	var cfgErr *ConfigError
	return !errors.As(err, &cfgErr)
}

// ShouldRetry determines if an operation should be retried.
func (r *RetryConfig) ShouldRetry(attempt int, err error) bool {
	if attempt >= r.MaxRetries {
		return false
	}
	if r.RetryableOn == nil {
		return isTransient(err)
	}
	return r.RetryableOn(err)
}

// Delay calculates the delay before the next retry attempt with optional jitter.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	// Add jitter
	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait waits for the appropriate delay before retrying.
func (r *RetryConfig) Wait(ctx context.Context, attempt int) error {
	delay := r.Delay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
