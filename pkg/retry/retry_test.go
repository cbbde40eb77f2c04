package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDoWithResult_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(), "test", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	boom := errors.New("down")

	attempts := 0
	err := Do(context.Background(), cfg, "test", func() error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = IsRetryable

	attempts := 0
	err := Do(context.Background(), cfg, "test", func() error {
		attempts++
		return context.Canceled
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult_CanceledWhileWaiting(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := DoWithResult(ctx, cfg, "test", func() (int, error) {
		attempts++
		cancel()
		return 0, errors.New("flaky")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPreloadConfig_DoesNotRetryCancellation(t *testing.T) {
	cfg := PreloadConfig()

	assert.False(t, cfg.retryable(context.DeadlineExceeded))
	assert.True(t, cfg.retryable(errors.New("connection refused")))
	assert.True(t, fastConfig().retryable(context.Canceled))
}

func TestConfig_Backoff(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(5))

	cfg.Jitter = true
	for i := 0; i < 20; i++ {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}
