// Package query is the read side of the rule engine: filterable, cached
// access over the store. It owns no rules; it reads, and it caches read-only
// snapshots (clones, never live references), so nothing reached through a
// query result can corrupt a store index.
//
// Read-path availability is prioritized over read-path performance: a
// degenerate cache entry degrades to a fresh full scan rather than failing
// the read.
package query

import (
	"log/slog"
	"sync"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// Cache and performance bounds.
const (
	// DefaultCacheTTL bounds staleness when nothing invalidates a cached
	// entry. The store observer hook invalidates far sooner in practice.
	DefaultCacheTTL = 30 * time.Second

	// DefaultMaxCacheSize bounds the cache entry count. Eviction is
	// oldest-insertion-order, not LRU by access.
	DefaultMaxCacheSize = 100

	// SlowQueryThreshold marks a query as slow for diagnostics.
	SlowQueryThreshold = 100 * time.Millisecond

	// MaxSlowQueries bounds the retained slow-query list.
	MaxSlowQueries = 50
)

type cacheEntry struct {
	rules    []*rule.ActiveRule
	storedAt time.Time
}

// SlowQuery records one query that exceeded SlowQueryThreshold.
type SlowQuery struct {
	Key      string
	Duration time.Duration
	At       time.Time
}

// Perf is a snapshot of the query layer's performance counters.
type Perf struct {
	TotalQueries  int64
	CacheHits     int64
	CacheHitRatio float64
	AvgExecTime   time.Duration
	SlowQueries   []SlowQuery
}

// Engine serves cached, filtered reads over one store. Construct with New.
// Safe for concurrent use; reads may interleave freely.
//
// Engine implements store.Observer: register it on the store (the facade
// does this at wiring time) and every store mutation invalidates the
// session's cached queries, so correctness does not rest on callers
// remembering to clear the cache.
type Engine struct {
	store *store.Store
	ttl   time.Duration
	max   int
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	order []string // cache keys in insertion order, for eviction

	totalQueries int64
	cacheHits    int64
	avgExec      time.Duration
	slow         []SlowQuery
}

// Option configures a query Engine.
type Option func(*Engine)

// WithCacheTTL overrides the default cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// WithMaxCacheSize overrides the cache entry bound.
func WithMaxCacheSize(n int) Option {
	return func(e *Engine) { e.max = n }
}

// WithClock overrides the wall clock, for deterministic TTL tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a query engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		ttl:   DefaultCacheTTL,
		max:   DefaultMaxCacheSize,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StoreChanged implements store.Observer: any mutation of a session purges
// that session's cached queries.
func (e *Engine) StoreChanged(sessionID string) {
	e.ClearCache(sessionID)
}

// Query evaluates f against the session. With useCache, a hit younger than
// the TTL returns the cached snapshot flagged FromCache; a miss dispatches
// to the most selective applicable store index (state, then kind, then
// owner, then card, then a full scan), applies the full predicate, and
// caches a clone of the result.
func (e *Engine) Query(sessionID string, f Filter, useCache bool) *Result {
	start := time.Now()
	key := sessionID + ":" + f.CacheKey()

	if useCache {
		if rules, ok := e.cacheGet(key); ok {
			e.recordQuery(key, time.Since(start), true)
			return &Result{Rules: rules, FromCache: true, ExecutedIn: time.Since(start)}
		}
	}

	candidates := e.candidates(sessionID, f)
	matched := make([]*rule.ActiveRule, 0, len(candidates))
	for _, r := range candidates {
		if f.Matches(r) {
			matched = append(matched, r)
		}
	}

	if useCache {
		e.cachePut(key, matched)
	}

	elapsed := time.Since(start)
	e.recordQuery(key, elapsed, false)
	return &Result{Rules: matched, ExecutedIn: elapsed}
}

// candidates narrows the scan set using the most selective index the filter
// allows. State first: with four states and up to a hundred rules it is the
// cheapest discriminator the store indexes.
func (e *Engine) candidates(sessionID string, f Filter) []*rule.ActiveRule {
	switch {
	case f.State != nil:
		return e.store.RulesByState(sessionID, *f.State)
	case f.Kind != nil:
		return e.store.RulesByKind(sessionID, *f.Kind)
	case f.OwnerID != nil:
		return e.store.RulesByPlayer(sessionID, *f.OwnerID)
	case f.CardID != nil:
		return e.store.RulesByCard(sessionID, *f.CardID)
	default:
		return e.store.AllRules(sessionID)
	}
}

// cacheGet returns a cloned snapshot for a fresh entry. Degenerate entries
// (nil rules slipped in through future refactors) are treated as misses so
// the read path degrades to a scan instead of failing.
func (e *Engine) cacheGet(key string) ([]*rule.ActiveRule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache[key]
	if !ok {
		return nil, false
	}
	if e.now().Sub(entry.storedAt) > e.ttl {
		return nil, false
	}
	if entry.rules == nil {
		return nil, false
	}
	return cloneRules(entry.rules), true
}

// cachePut stores a cloned snapshot, evicting the oldest-inserted entry once
// the bound is reached.
func (e *Engine) cachePut(key string, rules []*rule.ActiveRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.cache[key]; !exists {
		for len(e.cache) >= e.max && len(e.order) > 0 {
			oldest := e.order[0]
			e.order = e.order[1:]
			delete(e.cache, oldest)
		}
		e.order = append(e.order, key)
	}
	e.cache[key] = cacheEntry{rules: cloneRules(rules), storedAt: e.now()}
}

// ClearCache purges one session's cached queries, or everything when
// sessionID is empty.
func (e *Engine) ClearCache(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sessionID == "" {
		e.cache = make(map[string]cacheEntry)
		e.order = nil
		return
	}

	prefix := sessionID + ":"
	kept := e.order[:0]
	for _, key := range e.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.cache, key)
			continue
		}
		kept = append(kept, key)
	}
	e.order = kept
}

// CacheSize returns the current number of cached entries.
func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// MaxCacheSize returns the configured cache bound.
func (e *Engine) MaxCacheSize() int {
	return e.max
}

// Perf returns a snapshot of the performance counters.
func (e *Engine) Perf() Perf {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := Perf{
		TotalQueries: e.totalQueries,
		CacheHits:    e.cacheHits,
		AvgExecTime:  e.avgExec,
		SlowQueries:  make([]SlowQuery, len(e.slow)),
	}
	copy(p.SlowQueries, e.slow)
	if e.totalQueries > 0 {
		p.CacheHitRatio = float64(e.cacheHits) / float64(e.totalQueries)
	}
	return p
}

// recordQuery updates the rolling counters and the bounded slow-query list.
func (e *Engine) recordQuery(key string, elapsed time.Duration, hit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalQueries++
	if hit {
		e.cacheHits++
	}
	// Rolling average over all queries so far.
	e.avgExec += (elapsed - e.avgExec) / time.Duration(e.totalQueries)

	if elapsed > SlowQueryThreshold {
		slog.Warn("slow rule query", "key", key, "elapsed", elapsed)
		e.slow = append(e.slow, SlowQuery{Key: key, Duration: elapsed, At: e.now()})
		if len(e.slow) > MaxSlowQueries {
			e.slow = e.slow[len(e.slow)-MaxSlowQueries:]
		}
	}
}

func cloneRules(rules []*rule.ActiveRule) []*rule.ActiveRule {
	out := make([]*rule.ActiveRule, len(rules))
	for i, r := range rules {
		out[i] = r.Clone()
	}
	return out
}
