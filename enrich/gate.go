package enrich

import (
	"github.com/ssharples/music-discovery-system/pkgerrors"
	"github.com/ssharples/music-discovery-system/quota"
)

// Gate is the cache-then-budget admission check every source call runs
// through. The cache is consulted first so a hit never consumes budget;
// the reservation is refunded when the underlying call fails.
type Gate struct {
	Limiter *quota.Limiter
	Cache   *quota.Cache
}

// Do runs fn under admission control for op with the given canonical
// params and cost. A nil *Gate runs fn directly.
func (g *Gate) Do(op, params string, cost int, fn func() (any, error)) (any, error) {
	if g == nil {
		return fn()
	}

	key := quota.Key(op, params)
	if g.Cache != nil {
		if v, ok := g.Cache.Get(op, key); ok {
			return v, nil
		}
	}

	var handle *quota.Handle
	if g.Limiter != nil {
		var ok bool
		handle, ok = g.Limiter.Reserve(op, cost)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.RateLimited, "budget exhausted for "+op)
		}
	}

	v, err := fn()
	if err != nil {
		if handle != nil {
			handle.Refund()
		}
		return nil, err
	}
	if handle != nil {
		handle.Commit()
	}
	if g.Cache != nil {
		g.Cache.Set(op, key, v)
	}
	return v, nil
}

// BudgetExhausted reports whether op can no longer be afforded.
func (g *Gate) BudgetExhausted(op string) bool {
	if g == nil || g.Limiter == nil {
		return false
	}
	return g.Limiter.Exhausted(op)
}
