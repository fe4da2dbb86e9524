package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fast(opts ...Option) *Retrier {
	return New(append([]Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
		WithRetryIf(isTransient),
	}, opts...)...)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	var retried []int
	calls := 0
	r := fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		assert.ErrorIs(t, err, errTransient)
		retried = append(retried, attempt)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ReturnsLastErrorWhenAttemptsRunOut(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Equal(t, 2, calls)
	assert.Same(t, errTransient, err)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("constraint")
	calls := 0
	err := fast(WithMaxAttempts(5)).Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
}

func TestDo_WithoutPolicyNothingIsRetried(t *testing.T) {
	calls := 0
	r := New(WithMaxAttempts(4), WithInitialDelay(time.Millisecond))
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errTransient)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := fast().Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBackoff(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(3*time.Second), WithJitter(0))
	assert.Equal(t, time.Second, r.backoff(1))
	assert.Equal(t, 2*time.Second, r.backoff(2))
	assert.Equal(t, 3*time.Second, r.backoff(3))
	assert.Equal(t, 3*time.Second, r.backoff(40))

	jittered := New(WithInitialDelay(time.Second), WithJitter(0.5))
	jittered.random = func() float64 { return 1 }
	assert.Equal(t, 1500*time.Millisecond, jittered.backoff(1))
	jittered.random = func() float64 { return 0 }
	assert.Equal(t, 500*time.Millisecond, jittered.backoff(1))
}
