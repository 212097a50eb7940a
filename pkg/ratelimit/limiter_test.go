package ratelimit_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChaosClubCo/tiktok-story-ai-sub001/pkg/ratelimit"
)

// fakeClock lets tests roll the window forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, cfg ratelimit.Config) (*ratelimit.Limiter, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := ratelimit.NewMemoryStore(ratelimit.WithTimeSource(clock.Now))
	t.Cleanup(func() { _ = store.Close() })

	limiter, err := ratelimit.New(store, cfg)
	require.NoError(t, err)
	return limiter, clock
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	_, err := ratelimit.New(store, ratelimit.Config{MaxAttempts: 0, Window: time.Minute})
	require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)

	_, err = ratelimit.New(store, ratelimit.Config{MaxAttempts: 3, Window: 0})
	require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
}

func TestAllow_FixedWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, clock := newTestLimiter(t, ratelimit.Config{MaxAttempts: 3, Window: time.Minute})

	// Three checks fit the budget with remaining 2, 1, 0.
	for i, wantRemaining := range []int{2, 1, 0} {
		res, err := limiter.Allow(ctx, "2fa_verify:u-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "attempt %d", i+1)
		assert.Equal(t, wantRemaining, res.Remaining, "attempt %d", i+1)
		assert.Equal(t, 0, res.RetryAfterSeconds(), "attempt %d", i+1)
	}

	// The fourth is denied with a retry-after within the window.
	res, err := limiter.Allow(ctx, "2fa_verify:u-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, res.JustLimited())
	assert.LessOrEqual(t, res.RetryAfterSeconds(), 60)
	assert.Positive(t, res.RetryAfterSeconds())

	// A fifth denial in the same lockout is not "just limited" again.
	res, err = limiter.Allow(ctx, "2fa_verify:u-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.False(t, res.JustLimited())

	// Past the window the counter starts fresh.
	clock.Advance(61 * time.Second)
	res, err = limiter.Allow(ctx, "2fa_verify:u-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 2, res.Remaining)
}

func TestAllow_IndependentKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, _ := newTestLimiter(t, ratelimit.Config{MaxAttempts: 1, Window: time.Minute})

	res, err := limiter.Allow(ctx, "login:u-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())

	res, err = limiter.Allow(ctx, "login:u-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	// A different identifier has its own window.
	res, err = limiter.Allow(ctx, "login:u-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, _ := newTestLimiter(t, ratelimit.Config{MaxAttempts: 1, Window: time.Minute})

	_, err := limiter.Allow(ctx, "recovery_verify:u-1")
	require.NoError(t, err)

	res, err := limiter.Allow(ctx, "recovery_verify:u-1")
	require.NoError(t, err)
	require.False(t, res.Allowed())

	require.NoError(t, limiter.Reset(ctx, "recovery_verify:u-1"))

	res, err = limiter.Allow(ctx, "recovery_verify:u-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestResult_SeverityEscalation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, _ := newTestLimiter(t, ratelimit.Config{MaxAttempts: 3, Window: time.Hour})

	var last *ratelimit.Result
	for i := 0; i < 10; i++ {
		res, err := limiter.Allow(ctx, "2fa_verify:u-1")
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, ratelimit.SeverityMedium, last.Severity())

	last, err := limiter.Allow(ctx, "2fa_verify:u-1")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.SeverityHigh, last.Severity())

	for i := 0; i < 10; i++ {
		last, err = limiter.Allow(ctx, "2fa_verify:u-1")
		require.NoError(t, err)
	}
	assert.Equal(t, ratelimit.SeverityCritical, last.Severity())
}

func TestResult_JustEscalated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, _ := newTestLimiter(t, ratelimit.Config{MaxAttempts: 3, Window: time.Hour})

	// Escalation fires on the first denial and again on entering the high
	// and critical tiers, never on the checks between.
	wantAttempts := map[int64]ratelimit.Severity{
		4:  ratelimit.SeverityMedium,
		11: ratelimit.SeverityHigh,
		21: ratelimit.SeverityCritical,
	}
	for attempt := int64(1); attempt <= 25; attempt++ {
		res, err := limiter.Allow(ctx, "2fa_verify:u-1")
		require.NoError(t, err)

		severity, want := wantAttempts[attempt]
		assert.Equal(t, want, res.JustEscalated(), "attempt %d", attempt)
		if want {
			assert.Equal(t, severity, res.Severity(), "attempt %d", attempt)
		}
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "login:u***@example.com", ratelimit.Key("login", "u***@example.com"))

	long := ratelimit.Key("login", strings.Repeat("x", 200))
	assert.True(t, strings.HasPrefix(long, "login:"))
	assert.LessOrEqual(t, len(long), 64)

	// Distinct identifiers keep distinct keys even when hashed.
	other := ratelimit.Key("login", strings.Repeat("y", 200))
	assert.NotEqual(t, long, other)
}
