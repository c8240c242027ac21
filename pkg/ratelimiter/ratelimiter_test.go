package ratelimiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T, clock *testClock) *ratelimiter.Limiter {
	t.Helper()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(store.Close)
	return ratelimiter.New(store, ratelimiter.WithClock(clock.Now))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   ratelimiter.Config
		errorMsg string
	}{
		{"valid", ratelimiter.Config{Window: time.Minute, MaxRequests: 5}, ""},
		{"zero window", ratelimiter.Config{Window: 0, MaxRequests: 5}, "window must be positive"},
		{"negative window", ratelimiter.Config{Window: -time.Second, MaxRequests: 5}, "window must be positive"},
		{"zero max", ratelimiter.Config{Window: time.Minute, MaxRequests: 0}, "max requests must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestCheckAndConsumeWithinWindow(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	limiter := newLimiter(t, clock)
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Minute, MaxRequests: 5}

	for i := 1; i <= cfg.MaxRequests; i++ {
		res, err := limiter.CheckAndConsume(ctx, "ai_plans:user123", cfg)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, i, res.Count)
		assert.Equal(t, cfg.MaxRequests-i, res.Remaining)
		clock.Advance(time.Second)
	}

	res, err := limiter.CheckAndConsume(ctx, "ai_plans:user123", cfg)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 55*time.Second, res.ResetIn)
	assert.Equal(t, 55*time.Second, res.RetryAfter())
}

func TestCheckAndConsumeWindowReset(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	limiter := newLimiter(t, clock)
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Minute, MaxRequests: 2}

	for range 10 {
		_, err := limiter.CheckAndConsume(ctx, "api:u1", cfg)
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)

	res, err := limiter.CheckAndConsume(ctx, "api:u1", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, time.Minute, res.ResetIn)
}

func TestCheckAndConsumeJustBeforeReset(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	limiter := newLimiter(t, clock)
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Minute, MaxRequests: 1}

	_, err := limiter.CheckAndConsume(ctx, "k", cfg)
	require.NoError(t, err)

	clock.Advance(time.Minute - time.Millisecond)
	res, err := limiter.CheckAndConsume(ctx, "k", cfg)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Millisecond, res.ResetIn)
}

func TestCheckAndConsumeKeysAreIsolated(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	limiter := newLimiter(t, clock)
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Minute, MaxRequests: 1}

	res, err := limiter.CheckAndConsume(ctx, "ai_plans:a", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.CheckAndConsume(ctx, "ai_plans:b", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.CheckAndConsume(ctx, "api:a", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckAndConsumeValidation(t *testing.T) {
	t.Parallel()

	limiter := newLimiter(t, newTestClock())

	_, err := limiter.CheckAndConsume(context.Background(), "", ratelimiter.Config{Window: time.Minute, MaxRequests: 1})
	assert.ErrorIs(t, err, ratelimiter.ErrKeyRequired)

	_, err = limiter.CheckAndConsume(context.Background(), "k", ratelimiter.Config{})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestReset(t *testing.T) {
	t.Parallel()

	limiter := newLimiter(t, newTestClock())
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Hour, MaxRequests: 1}

	_, err := limiter.CheckAndConsume(ctx, "k", cfg)
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "k"))

	res, err := limiter.CheckAndConsume(ctx, "k", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestConcurrentCheckAndConsume(t *testing.T) {
	t.Parallel()

	limiter := newLimiter(t, newTestClock())
	ctx := context.Background()
	cfg := ratelimiter.Config{Window: time.Minute, MaxRequests: 10}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.CheckAndConsume(ctx, "k", cfg)
			if assert.NoError(t, err) && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, cfg.MaxRequests, allowed)
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ai_plans:user123", ratelimiter.Key("ai_plans", "user123"))
	assert.Equal(t, "api", ratelimiter.Key("api", ""))
	assert.Equal(t, "", ratelimiter.Key("", ""))

	long := ratelimiter.Key("ai_plans", "00000000-0000-0000-0000-000000000000", "extra-segment-to-overflow")
	assert.LessOrEqual(t, len(long), 64)
	assert.Equal(t, long, ratelimiter.Key("ai_plans", "00000000-0000-0000-0000-000000000000", "extra-segment-to-overflow"))
}
