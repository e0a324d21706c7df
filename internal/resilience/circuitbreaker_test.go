package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trend-trader/internal/errors"
)

var errBoom = errors.New("boom")

func newTestBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("broker", CircuitBreakerConfig{FailureThreshold: threshold, Cooldown: time.Minute})
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	cb, clock := newTestBreaker(2)
	ctx := context.Background()
	fail := func(context.Context) error { return errBoom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrCollaboratorUnavailable)
	assert.Zero(t, calls)

	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, CircuitClosed, cb.State())

	stats := cb.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.InDelta(t, 50.0, stats.FailureRate(), 1e-9)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
	*clock = clock.Add(2 * time.Minute)
	_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
	_ = cb.Execute(ctx, func(context.Context) error { return nil })
	_ = cb.Execute(ctx, func(context.Context) error { return errBoom })
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_IsFailureAndDisabled(t *testing.T) {
	cb := NewCircuitBreaker("broker", CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Hour,
		IsFailure:        func(err error) bool { return !errors.Is(err, apperrors.ErrExecutionFailure) },
	})
	_ = cb.Execute(context.Background(), func(context.Context) error { return apperrors.ErrExecutionFailure })
	assert.Equal(t, CircuitClosed, cb.State())

	disabled := NewCircuitBreaker("broker", CircuitBreakerConfig{})
	for i := 0; i < 10; i++ {
		_ = disabled.Execute(context.Background(), func(context.Context) error { return errBoom })
	}
	assert.Equal(t, CircuitClosed, disabled.State())
}

func TestExecuteWithResult_PassesPartialResult(t *testing.T) {
	cb, _ := newTestBreaker(3)
	var transitions []CircuitState
	cb.config.OnStateChange = func(_ string, _, to CircuitState) { transitions = append(transitions, to) }

	v, err := ExecuteWithResult(cb, context.Background(), func(context.Context) (string, error) {
		return "ORDER-1", errBoom
	})
	assert.Equal(t, "ORDER-1", v)
	assert.ErrorIs(t, err, errBoom)

	cb.Reset()
	assert.Empty(t, transitions)
}
