package circuitbreaker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "interview-analyzer/pkg/errors"
)

var errBoom = errors.New("boom")

func newTestBreaker(config *Config) (*CircuitBreaker, *time.Time) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	cb := NewCircuitBreaker("test", config, logger)
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(&Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.NoError(t, cb.Execute(ctx, succeed), "a success resets the count")
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, IsOpenError(err))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrUnavailable))
	assert.False(t, IsOpenError(errBoom))
}

func TestHalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(&Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Minute})
	ctx := context.Background()

	var transitions []string
	cb.SetStateChangeCallback(func(name string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	require.Error(t, cb.Execute(ctx, fail))
	*now = now.Add(time.Minute)

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestHalfOpenFailureReopensWithBackoff(t *testing.T) {
	cb, now := newTestBreaker(&Config{
		FailureThreshold:   1,
		SuccessThreshold:   1,
		Timeout:            time.Minute,
		MaxTimeout:         3 * time.Minute,
		ExponentialBackoff: true,
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, now.Add(time.Minute), cb.Statistics().NextAttempt)

	*now = now.Add(time.Minute)
	require.Error(t, cb.Execute(ctx, fail), "trial request fails")
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, now.Add(2*time.Minute), cb.Statistics().NextAttempt)

	*now = now.Add(2 * time.Minute)
	require.Error(t, cb.Execute(ctx, fail))
	assert.Equal(t, now.Add(3*time.Minute), cb.Statistics().NextAttempt, "capped at MaxTimeout")
}

func TestRequestTimeoutApplied(t *testing.T) {
	cb, _ := newTestBreaker(&Config{FailureThreshold: 5, SuccessThreshold: 1, RequestTimeout: time.Second})

	var hasDeadline bool
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}))
	assert.True(t, hasDeadline)
}

func TestStatisticsAndReset(t *testing.T) {
	cb, _ := newTestBreaker(&Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})
	ctx := context.Background()

	require.NoError(t, cb.Execute(ctx, succeed))
	require.Error(t, cb.Execute(ctx, fail))
	require.Error(t, cb.Execute(ctx, succeed))

	stats := cb.Statistics()
	assert.Equal(t, "open", stats.State)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.SuccessfulRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
	assert.Equal(t, int64(1), stats.StateTransitions)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Statistics().TotalRequests)
	assert.Equal(t, "test", cb.Name())
}
