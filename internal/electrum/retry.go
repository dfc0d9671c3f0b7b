package electrum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// RetryConfig configures retry behavior for protocol calls.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns the default retry configuration.
// 4 attempts total (1 initial + 3 retries) with delays: 1s, 2s, 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
	}
}

// retryWithConfig executes the operation with exponential backoff retry.
// Only transport failures are retried; RPC-level errors surface immediately.
func retryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !isRetryable(err) {
			return result, err
		}

		// Don't delay after the last attempt
		if attempt < cfg.MaxAttempts-1 {
			delay := calculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return result, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, err)
}

// calculateDelay calculates the delay for the given attempt using exponential backoff with jitter.
// Jitter prevents thundering herd when multiple goroutines retry simultaneously.
func calculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << attempt) // 2^attempt * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	// Jitter in [delay/2, delay).
	half := delay / 2
	return half + rand.N(half) //nolint:gosec // G404: Jitter does not require cryptographic randomness
}

// isRetryable returns true if the error should trigger a retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return sweeperr.Is(err, sweeperr.ErrConnection) || sweeperr.Is(err, sweeperr.ErrTimeout)
}
