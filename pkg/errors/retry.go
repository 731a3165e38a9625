package errors

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Jitter         bool
	RetryableError func(error) bool
}

// DefaultRetryConfig returns the retry configuration used for local
// persistence writes: a handful of quick attempts, then give up and let the
// next full-state persist paper over the gap.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableError: func(err error) bool {
			if IsRecoverable(err) {
				return true
			}

			switch GetErrorCode(err) {
			case ErrCodeStorageWrite,
				ErrCodeConnectionTimeout,
				ErrCodeTimeout:
				return true
			default:
				return false
			}
		},
	}
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry executes a function with retry logic
func Retry(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !config.RetryableError(err) {
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		delay := calculateDelay(attempt, config)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Wrap(ctx.Err(), ErrCodeTimeout, "Retry cancelled")
		}
	}

	return Wrap(lastErr, ErrCodeMaxRetriesExceeded, "All retry attempts failed").
		WithContext("attempts", config.MaxRetries+1)
}

// calculateDelay computes the delay before the next attempt
func calculateDelay(attempt int, config *RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		// Add up to 25% random jitter to avoid thundering herds
		var buf [8]byte
		if _, err := cryptorand.Read(buf[:]); err == nil {
			fraction := float64(binary.BigEndian.Uint64(buf[:])) / float64(math.MaxUint64)
			delay += delay * 0.25 * fraction
		}
	}

	return time.Duration(delay)
}
