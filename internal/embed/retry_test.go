package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retryConfig {
	return retryConfig{maxRetries: 3, initialDelay: time.Millisecond, maxDelay: 4 * time.Millisecond}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := withRetry(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestWithRetry_ExhaustsAndWrapsLastError(t *testing.T) {
	sentinel := errors.New("persistent failure")
	attempts := 0
	_, err := withRetry(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 4, attempts, "initial attempt plus three retries")
}

func TestWithRetry_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := withRetry(ctx, fastRetry(), func() (int, error) {
		attempts++
		return 0, errors.New("never succeeds")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
