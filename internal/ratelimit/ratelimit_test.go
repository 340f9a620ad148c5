package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterZeroDelay(t *testing.T) {
	r := NewSimpleRateLimiter(0, 0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSimpleRateLimiterSpacesCalls(t *testing.T) {
	r := NewSimpleRateLimiter(20*time.Millisecond, 20*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestSimpleRateLimiterCancelled(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestAdaptiveRateLimiterBacksOff(t *testing.T) {
	a := NewAdaptiveRateLimiter(0, 0)

	a.RecordError()
	a.RecordError()
	min, max := a.Delays()
	assert.Zero(t, min)
	assert.Zero(t, max)

	a.RecordError()
	min, max = a.Delays()
	assert.Equal(t, 500*time.Millisecond, min)
	assert.Equal(t, 500*time.Millisecond, max)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	min, _ = a.Delays()
	assert.Equal(t, time.Second, min)

	a.RecordSuccess()
	min, max = a.Delays()
	assert.Zero(t, min)
	assert.Zero(t, max)
}

func TestAdaptiveRateLimiterCeiling(t *testing.T) {
	a := NewAdaptiveRateLimiter(20*time.Second, 25*time.Second)
	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	min, max := a.Delays()
	assert.Equal(t, 30*time.Second, min)
	assert.Equal(t, 30*time.Second, max)
}
