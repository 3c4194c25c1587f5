package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPacer_Adapts(t *testing.T) {
	p := NewPacer("test", 10, 1)
	assert.Equal(t, rate.Limit(10), p.Limit())

	p.OnRateLimit()
	assert.InDelta(t, 5.0, float64(p.Limit()), 0.001)

	p.OnRateLimit()
	p.OnRateLimit()
	assert.InDelta(t, 2.5, float64(p.Limit()), 0.001, "floor is initial/4")

	for range 20 {
		p.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(p.Limit()), 0.001, "ceiling is 2x initial")
}

func TestPacer_Disabled(t *testing.T) {
	p := NewPacer("off", 0, 0)
	assert.Equal(t, rate.Inf, p.Limit())
	p.OnRateLimit()
	p.OnSuccess()
	assert.Equal(t, rate.Inf, p.Limit())
	require.NoError(t, p.Wait(context.Background()))
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_Elapses(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitUntil(t *testing.T) {
	require.NoError(t, WaitUntil(context.Background(), time.Time{}, time.Second))
	require.NoError(t, WaitUntil(context.Background(), time.Now().Add(-time.Minute), time.Second))

	start := time.Now()
	require.NoError(t, WaitUntil(context.Background(), time.Now().Add(time.Hour), 20*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second, "wait is capped")
}
