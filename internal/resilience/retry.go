package resilience

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// RetryConfig tunes the retry-with-backoff policy.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
	// Factor multiplies the delay after each failed attempt
	Factor float64
	// JitterFraction randomizes each delay by ±fraction
	JitterFraction float64
	// ShouldRetry decides whether an error is worth another attempt;
	// nil selects DefaultShouldRetry
	ShouldRetry func(error) bool
	// OnRetry observes each attempt beyond the first, called with the
	// upcoming attempt number before its backoff
	OnRetry func(attempt int)
}

// DefaultRetryConfig returns the reference defaults: three attempts,
// exponential backoff from 1s doubling to a 30s cap, ±25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Factor:         2,
		JitterFraction: 0.25,
	}
}

// Retry runs op up to MaxAttempts times, sleeping between attempts.
// Non-retryable errors are returned immediately; exhausting all attempts
// returns a retry-exhausted error wrapping the final failure.
func Retry(ctx context.Context, config RetryConfig, op Operation) (any, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	shouldRetry := config.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}

	delay := config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}
		if attempt == config.MaxAttempts {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt + 1)
		}

		select {
		case <-time.After(jittered(delay, config.JitterFraction)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.Factor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return nil, errors.NewRetryExhaustedError(config.MaxAttempts, lastErr)
}

// jittered applies ±fraction random jitter to d.
func jittered(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	offset := (rand.Float64()*2 - 1) * fraction
	return time.Duration(float64(d) * (1 + offset))
}

// DefaultShouldRetry reports whether an error looks transient: network
// resets and timeouts, HTTP 5xx/408/429, and rate-limited 403 responses.
// Plain authorization failures are not retried.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// Breaker rejections and configuration errors never benefit from retry.
	if errors.IsCircuitOpen(err) || errors.IsConfiguration(err) {
		return false
	}

	msg := strings.ToLower(err.Error())

	// A 403 is only retryable when the remote signals a rate-limit condition.
	if strings.Contains(msg, "403") {
		return strings.Contains(msg, "rate limit") || strings.Contains(msg, "secondary rate")
	}

	transient := []string{
		"timeout",
		"timed out",
		"connection reset",
		"connection refused",
		"broken pipe",
		"temporary failure",
		"unexpected eof",
		"rate limit",
		"429",
		"408",
		"500",
		"502",
		"503",
		"504",
	}
	for _, marker := range transient {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
