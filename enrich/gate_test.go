package enrich

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssharples/music-discovery-system/pkgerrors"
	"github.com/ssharples/music-discovery-system/quota"
)

func newGate(budget int) *Gate {
	return &Gate{
		Limiter: quota.NewLimiter(
			quota.WithDailyBudget(budget),
			quota.WithCost("op", 1),
		),
		Cache: quota.NewCache(map[string]time.Duration{"op": time.Hour}),
	}
}

func TestGateCacheHitConsumesNoBudget(t *testing.T) {
	g := newGate(1)
	calls := 0
	fn := func() (any, error) {
		calls++
		return "value", nil
	}

	v, err := g.Do("op", "params", 1, fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	// Budget is now gone, but the cached value still serves.
	v, err = g.Do("op", "params", 1, fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 1, calls)

	// A different key cannot be afforded.
	_, err = g.Do("op", "other", 1, fn)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.RateLimited, pkgerrors.KindOf(err))
}

func TestGateRefundsOnFailure(t *testing.T) {
	g := newGate(1)

	_, err := g.Do("op", "params", 1, func() (any, error) {
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)

	// The failed call's reservation was refunded, so this succeeds.
	v, err := g.Do("op", "params", 1, func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestNilGateRunsDirectly(t *testing.T) {
	var g *Gate
	v, err := g.Do("op", "params", 1, func() (any, error) { return "direct", nil })
	require.NoError(t, err)
	assert.Equal(t, "direct", v)
	assert.False(t, g.BudgetExhausted("op"))
}
