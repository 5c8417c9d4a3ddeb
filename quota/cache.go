package quota

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the cache's memory footprint.
const DefaultCacheSize = 2048

// entry pairs a cached value with its expiry, per the TTL-over-LRU layer
// the plain hashicorp/golang-lru doesn't provide natively.
type entry struct {
	value   any
	expires time.Time
}

// Cache is a TTL+LRU map keyed by (op, canonicalized params), consulted
// before the QuotaLimiter so that hits never consume budget.
type Cache struct {
	mu    sync.Mutex
	clock Clock
	lru   *lru.Cache[string, entry]
	ttls  map[string]time.Duration
}

// NewCache constructs a Cache with the given per-op TTL table; keys absent
// from ttls fall back to a 15-minute TTL.
func NewCache(ttls map[string]time.Duration) *Cache {
	l, _ := lru.New[string, entry](DefaultCacheSize)
	return &Cache{clock: SystemClock, lru: l, ttls: ttls}
}

// WithClock overrides the Clock used for expiry checks (tests only).
func (c *Cache) WithClock(clk Clock) *Cache {
	c.clock = clk
	return c
}

// Key builds the canonical cache key for an operation and its
// canonicalized parameter string (the caller is responsible for
// canonicalizing params, e.g. sorted query args).
func Key(op, canonicalParams string) string {
	return op + "\x00" + canonicalParams
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(op, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the TTL registered for op (or the
// package default TTL of 15 minutes if op has none registered).
func (c *Cache) Set(op, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl, ok := c.ttls[op]
	if !ok {
		ttl = 15 * time.Minute
	}
	c.lru.Add(key, entry{value: value, expires: c.clock.Now().Add(ttl)})
}

// DefaultTTLs returns the per-op TTL table for the pipeline's named
// operations.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		"spotify.search":    24 * time.Hour,
		"spotify.artist":    6 * time.Hour,
		"instagram.profile": time.Hour,
		"fetch.plain":       15 * time.Minute,
		"fetch.headless":    15 * time.Minute,
	}
}
