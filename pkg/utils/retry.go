package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig holds configuration for retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts  int              // Maximum number of attempts (including first try)
	InitialDelay time.Duration    // Delay before the first retry
	MaxDelay     time.Duration    // Upper bound on any single delay
	Multiplier   float64          // Exponential backoff multiplier
	Jitter       bool             // Add ±25% random variance to delays
	Retryable    func(error) bool // Nil retries every error
}

// DatabaseRetryConfig is used when connecting to Redis at startup.
//
// Configuration:
//   - Max attempts: 5
//   - Initial delay: 100ms
//   - Max delay: 3s
//   - Multiplier: 2.0
//   - Jitter: enabled
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// ExternalAPIRetryConfig is used for idempotent reads against the assistant
// backend. Never use it for POST /chat/.
//
// Configuration:
//   - Max attempts: 3
//   - Initial delay: 250ms
//   - Max delay: 2s
//   - Multiplier: 2.0
//   - Jitter: enabled
func ExternalAPIRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NoRetryConfig performs exactly one attempt.
func NoRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// Retry executes fn until it succeeds, MaxAttempts is reached, the error is
// not retryable, or ctx is cancelled.
//
// The delay between attempts follows exponential backoff:
//
//	delay = initialDelay * multiplier^(attempt-1)
//
// Example:
//
//	err := utils.Retry(ctx, utils.DatabaseRetryConfig(), func() error {
//	    return client.Ping(ctx).Err()
//	})
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is the value-returning form of Retry. The last error is
// returned unwrapped when retries are exhausted so callers can keep using
// errors.As on typed errors.
//
// Example:
//
//	items, err := utils.RetryWithResult(ctx, utils.ExternalAPIRetryConfig(), func() ([]byte, error) {
//	    return fetchHistory(ctx)
//	})
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Int("max_attempts", attempts).
					Msg("Operation succeeded after retry")
			}
			return res, nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}
		if attempt >= attempts {
			if attempts > 1 {
				log.Warn().Err(err).Int("attempts", attempt).Msg("Max retry attempts reached")
			}
			break
		}

		delay := calculateDelay(attempt, config)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Operation failed, retrying after delay")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// calculateDelay returns initialDelay * multiplier^(attempt-1), capped at
// MaxDelay, with optional ±25% jitter.
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	return time.Duration(delay)
}
