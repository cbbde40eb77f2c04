package circuitbreaker

import (
	"context"
	"errors"
	"testing"

	"github.com/imovelhub/imovelhub-ops/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_PassesResultThrough(t *testing.T) {
	cb := NewCircuitBreaker(OriginConfig("test-origin"))

	got, err := Execute(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(OriginConfig("test-origin"))
	boom := errors.New("connection refused")

	for i := 0; i < 5; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", GetState(cb))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-origin")))

	called := false
	_, err := Execute(cb, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.False(t, called, "open breaker must not call through")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "test-origin")
}

func TestExecute_IgnoredErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(OriginConfig("test-ignored"))

	for i := 0; i < 10; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, Ignore(context.Canceled) })
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotContains(t, err.Error(), "circuit breaker")
	}

	assert.Equal(t, "closed", GetState(cb))
	got, err := Execute(cb, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestIgnore_Nil(t *testing.T) {
	assert.NoError(t, Ignore(nil))
}
