// Package quota implements the cost-aware admission control (QuotaLimiter)
// and the TTL+LRU response cache (Cache) that gate every outbound call the
// pipeline makes.
package quota

import (
	"sync"
	"time"
)

// Clock abstracts wall-clock time so tests can control the UTC-midnight
// reset boundary deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock.
var SystemClock Clock = systemClock{}

// Handle is returned by Reserve and lets the caller refund the reservation
// on a failure path or commit it as a no-op on success.
type Handle struct {
	limiter *Limiter
	op      string
	count   int
	spent   bool
}

// Commit is a no-op: the reservation already decremented the budget.
func (h *Handle) Commit() {}

// Refund returns the reserved budget, idempotently.
func (h *Handle) Refund() {
	if h.spent {
		return
	}
	h.spent = true
	h.limiter.refund(h.op, h.count)
}

// Limiter models a daily cost budget per named operation, reset at the
// wall-clock boundary (default UTC midnight).
type Limiter struct {
	mu          sync.Mutex
	clock       Clock
	costs       map[string]int // default cost per unit of `op`
	dailyBudget int            // 0 means unbounded
	windowStart time.Time
	used        map[string]int
	totalUsed   int
}

// Option configures a Limiter at construction time.
type Option func(*Limiter)

// WithClock overrides the Clock used for window resets.
func WithClock(c Clock) Option { return func(l *Limiter) { l.clock = c } }

// WithCost sets the default per-call cost for a named operation (e.g.
// "youtube.search" -> 100).
func WithCost(op string, cost int) Option {
	return func(l *Limiter) { l.costs[op] = cost }
}

// WithDailyBudget sets the total cost units available per window; 0 (the
// default) means unbounded.
func WithDailyBudget(units int) Option {
	return func(l *Limiter) { l.dailyBudget = units }
}

// NewLimiter constructs a Limiter, applying opts in order.
func NewLimiter(opts ...Option) *Limiter {
	l := &Limiter{
		clock: SystemClock,
		costs: map[string]int{},
		used:  map[string]int{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowStart = startOfDayUTC(l.clock.Now())
	return l
}

func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// checkAndResetWindow clears usage once the wall-clock window has rolled
// over. Caller holds l.mu.
func (l *Limiter) checkAndResetWindow() {
	now := startOfDayUTC(l.clock.Now())
	if now.After(l.windowStart) {
		l.windowStart = now
		l.used = map[string]int{}
		l.totalUsed = 0
	}
}

func (l *Limiter) costOf(op string, count int) int {
	unit, ok := l.costs[op]
	if !ok {
		unit = 1
	}
	return unit * count
}

// TryAcquire attempts to spend the cost of `count` units of op. It never
// blocks: it returns false immediately if the budget is insufficient.
func (l *Limiter) TryAcquire(op string, count int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkAndResetWindow()

	cost := l.costOf(op, count)
	if l.dailyBudget > 0 && l.totalUsed+cost > l.dailyBudget {
		return false
	}
	l.used[op] += cost
	l.totalUsed += cost
	return true
}

// Admit grants op while any budget remains in the window, recording the
// full cost even when it overdraws. This matches provider quota models
// where the operation that crosses the line is still billed whole: the
// first oversized call is admitted, every later one is refused.
func (l *Limiter) Admit(op string, count int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkAndResetWindow()

	if l.dailyBudget > 0 && l.totalUsed >= l.dailyBudget {
		return false
	}
	cost := l.costOf(op, count)
	l.used[op] += cost
	l.totalUsed += cost
	return true
}

// Reserve is TryAcquire with a refundable Handle for failure paths.
func (l *Limiter) Reserve(op string, count int) (*Handle, bool) {
	if !l.TryAcquire(op, count) {
		return nil, false
	}
	return &Handle{limiter: l, op: op, count: count}, true
}

func (l *Limiter) refund(op string, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkAndResetWindow()
	cost := l.costOf(op, count)
	l.used[op] -= cost
	l.totalUsed -= cost
	if l.used[op] < 0 {
		l.used[op] = 0
	}
	if l.totalUsed < 0 {
		l.totalUsed = 0
	}
}

// Exhausted reports whether one more unit of op would overdraw the budget
// of the current window, without consuming anything — used by the
// orchestrator to set SessionSummary.BudgetExhausted.
func (l *Limiter) Exhausted(op string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkAndResetWindow()
	if l.dailyBudget == 0 {
		return false
	}
	return l.totalUsed+l.costOf(op, 1) > l.dailyBudget
}

// UsedTotal returns the total cost units consumed in the current window.
func (l *Limiter) UsedTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkAndResetWindow()
	return l.totalUsed
}
