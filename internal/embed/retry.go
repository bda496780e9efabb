package embed

import (
	"context"
	"fmt"
	"time"
)

// retryConfig configures exponential backoff for backend requests.
type retryConfig struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:   2,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     8 * time.Second,
	}
}

// withRetry runs fn with exponential backoff. Context cancellation stops
// retrying immediately; the last error is wrapped in the final failure.
func withRetry[T any](ctx context.Context, cfg retryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.initialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= cfg.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.maxRetries, lastErr)
}
