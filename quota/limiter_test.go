package quota_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/quota"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestTryAcquireRespectsDailyBudget(t *testing.T) {
	l := quota.NewLimiter(quota.WithCost("youtube.search", 100), quota.WithDailyBudget(100))
	assert.True(t, l.TryAcquire("youtube.search", 1), "first search should fit the budget")
	assert.False(t, l.TryAcquire("youtube.search", 1), "second search should exceed the budget")
}

func TestAdmitGrantsTheCallThatCrossesTheLine(t *testing.T) {
	l := quota.NewLimiter(quota.WithCost("youtube.search", 100), quota.WithDailyBudget(1))

	assert.True(t, l.Admit("youtube.search", 1), "first oversized search is admitted")
	assert.False(t, l.Admit("youtube.search", 1), "second search finds the window spent")
	assert.True(t, l.Exhausted("youtube.search"))
	assert.Equal(t, 100, l.UsedTotal())
}

func TestReserveRefundReturnsBudget(t *testing.T) {
	l := quota.NewLimiter(quota.WithCost("spotify.search", 1), quota.WithDailyBudget(1))

	h, ok := l.Reserve("spotify.search", 1)
	require.True(t, ok)
	h.Refund()

	h2, ok := l.Reserve("spotify.search", 1)
	require.True(t, ok, "refunded budget should be available again")
	h2.Commit()
}

func TestWindowResetsAtUTCMidnight(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)}
	l := quota.NewLimiter(quota.WithClock(clk), quota.WithCost("op", 1), quota.WithDailyBudget(1))

	require.True(t, l.TryAcquire("op", 1))
	require.False(t, l.TryAcquire("op", 1))

	clk.t = clk.t.Add(2 * time.Hour) // past UTC midnight
	assert.True(t, l.TryAcquire("op", 1), "budget should reset after the window rolls over")
}

func TestCacheHitDoesNotRequireLimiter(t *testing.T) {
	c := quota.NewCache(quota.DefaultTTLs())
	c.Set("spotify.search", quota.Key("spotify.search", "name=alice"), "cached-value")

	v, ok := c.Get("spotify.search", quota.Key("spotify.search", "name=alice"))
	require.True(t, ok)
	assert.Equal(t, "cached-value", v)
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := quota.NewCache(map[string]time.Duration{"op": time.Minute}).WithClock(clk)
	c.Set("op", "k", 1)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok := c.Get("op", "k")
	assert.False(t, ok, "entry should have expired")
}
