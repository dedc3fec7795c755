package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter deterministically: sleeps record their duration
// and advance the clock instead of blocking.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestLimiterSpacesConsecutiveWrites(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 50, WriteDelay: 2 * time.Second, MaxRetries: 5})
	clock := newFakeClock()
	clock.install(l)

	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	require.NoError(t, l.Execute(ctx, noop))
	assert.Empty(t, clock.slept)

	require.NoError(t, l.Execute(ctx, noop))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 2*time.Second, clock.slept[0])
}

func TestLimiterBlocksWhenWindowFull(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 3, WriteDelay: 0, MaxRetries: 5})
	clock := newFakeClock()
	clock.install(l)

	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Execute(ctx, noop))
	}
	assert.Empty(t, clock.slept)
	assert.Equal(t, 0, l.CapacityRemaining())

	// The fourth write must wait for the oldest entry to age out.
	require.NoError(t, l.Execute(ctx, noop))
	require.Len(t, clock.slept, 1)
	assert.Equal(t, time.Minute, clock.slept[0])

	used, limit := l.Usage()
	assert.Equal(t, 1, used)
	assert.Equal(t, 3, limit)
}

func TestLimiterBacksOffOnQuotaAndResetsWindow(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 50, WriteDelay: 2 * time.Second, MaxRetries: 5})
	clock := newFakeClock()
	clock.install(l)

	calls := 0
	op := func(context.Context) error {
		calls++
		if calls <= 2 {
			return &QuotaError{}
		}
		return nil
	}

	require.NoError(t, l.Execute(context.Background(), op))
	assert.Equal(t, 3, calls)

	// Pauses grow by 45s per attempt; the window is cleared after each
	// pause, so the retries themselves need no spacing sleeps.
	require.Len(t, clock.slept, 2)
	assert.Equal(t, 45*time.Second, clock.slept[0])
	assert.Equal(t, 90*time.Second, clock.slept[1])

	used, _ := l.Usage()
	assert.Equal(t, 1, used)
}

func TestLimiterBackoffCapped(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 50, WriteDelay: 0, MaxRetries: 8})
	clock := newFakeClock()
	clock.install(l)

	err := l.Execute(context.Background(), func(context.Context) error {
		return &QuotaError{}
	})
	require.Error(t, err)
	assert.True(t, IsQuota(err))

	require.Len(t, clock.slept, 8)
	assert.Equal(t, 45*time.Second, clock.slept[0])
	// (attempt+1)*45s caps at 300s.
	assert.Equal(t, 300*time.Second, clock.slept[6])
	assert.Equal(t, 300*time.Second, clock.slept[7])
}

func TestLimiterRetriesExhausted(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 50, WriteDelay: 0, MaxRetries: 2})
	clock := newFakeClock()
	clock.install(l)

	calls := 0
	err := l.Execute(context.Background(), func(context.Context) error {
		calls++
		return &QuotaError{}
	})
	require.Error(t, err)
	assert.True(t, IsQuota(err))
	assert.Equal(t, 3, calls)
}

func TestLimiterPassesThroughOtherErrors(t *testing.T) {
	l := NewLimiter(DefaultLimiterConfig())
	clock := newFakeClock()
	clock.install(l)

	calls := 0
	err := l.Execute(context.Background(), func(context.Context) error {
		calls++
		return ErrUnavailable
	})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestCapacityRemaining(t *testing.T) {
	l := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 5, WriteDelay: 0, MaxRetries: 0})
	clock := newFakeClock()
	clock.install(l)

	assert.Equal(t, 5, l.CapacityRemaining())

	noop := func(context.Context) error { return nil }
	require.NoError(t, l.Execute(context.Background(), noop))
	require.NoError(t, l.Execute(context.Background(), noop))
	assert.Equal(t, 3, l.CapacityRemaining())

	// Entries age out of the window.
	clock.now = clock.now.Add(2 * time.Minute)
	assert.Equal(t, 5, l.CapacityRemaining())
}
