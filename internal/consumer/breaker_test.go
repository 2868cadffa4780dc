package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tastetrail_errors "tastetrail/pkg/errors"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.Failure()
	}
	require.Equal(t, BreakerClosed, cb.State())

	require.NoError(t, cb.Allow())
	cb.Failure()

	require.Equal(t, BreakerOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), tastetrail_errors.ErrCircuitOpen)
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()
	cb.Failure()
	cb.Failure()

	require.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.Failure()
	require.Equal(t, BreakerOpen, cb.State())

	// Before the reset timeout, calls fast-fail.
	require.ErrorIs(t, cb.Allow(), tastetrail_errors.ErrCircuitOpen)

	// After the timeout one probe is admitted, a second is not.
	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	require.Equal(t, BreakerHalfOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), tastetrail_errors.ErrCircuitOpen)

	cb.Success()
	require.Equal(t, BreakerClosed, cb.State())
	require.NoError(t, cb.Allow())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.Failure()
	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())

	cb.Failure()
	require.Equal(t, BreakerOpen, cb.State())
	require.ErrorIs(t, cb.Allow(), tastetrail_errors.ErrCircuitOpen)
}
