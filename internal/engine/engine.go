// Package engine is the facade external callers touch: one Engine owns one
// rule store, one lifecycle manager, and one query engine, partitions all
// state by session ID, and exposes the card-driven activation entry point,
// read passthroughs, lifecycle passthroughs, typed event subscription,
// performance counters, and a health check.
//
// Engines are constructed explicitly with New and share nothing: multiple
// engines (per test, per shard) coexist without cross-contamination.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/driftwood-games/houserules/internal/event"
	"github.com/driftwood-games/houserules/internal/lifecycle"
	"github.com/driftwood-games/houserules/internal/query"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// Engine wires the store, lifecycle manager, and query layer together.
// Construct with New; the zero value is not usable.
//
// Mutating operations on one (session, rule) pair are serialized by the
// store's per-session locking; reads may interleave freely. The query cache
// is registered as a store observer at construction, so every mutation
// invalidates the affected session's cached reads without caller discipline.
type Engine struct {
	store   *store.Store
	manager *lifecycle.Manager
	query   *query.Engine
	bus     *event.Bus

	mu          sync.Mutex
	opsCount    int64
	avgResponse time.Duration
}

// Options configures an Engine. The zero value of every field means "use
// the default".
type Options struct {
	Limits          store.Limits
	CacheTTL        time.Duration
	MaxCacheSize    int
	ActivationDelay time.Duration
	IDGenerator     rule.IDGenerator
	Clock           func() time.Time
	Bus             *event.Bus
}

// New creates a fully wired Engine.
func New(opts Options) *Engine {
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}

	var storeOpts []store.Option
	if opts.Limits != (store.Limits{}) {
		storeOpts = append(storeOpts, store.WithLimits(opts.Limits))
	}
	if opts.Clock != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Clock))
	}
	st := store.New(storeOpts...)

	var mgrOpts []lifecycle.Option
	if opts.IDGenerator != nil {
		mgrOpts = append(mgrOpts, lifecycle.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Clock != nil {
		mgrOpts = append(mgrOpts, lifecycle.WithClock(opts.Clock))
	}
	if opts.ActivationDelay > 0 {
		mgrOpts = append(mgrOpts, lifecycle.WithActivationDelay(opts.ActivationDelay))
	}
	mgr := lifecycle.New(st, opts.Bus, mgrOpts...)

	var qOpts []query.Option
	if opts.CacheTTL > 0 {
		qOpts = append(qOpts, query.WithCacheTTL(opts.CacheTTL))
	}
	if opts.MaxCacheSize > 0 {
		qOpts = append(qOpts, query.WithMaxCacheSize(opts.MaxCacheSize))
	}
	q := query.New(st, qOpts...)

	// The store invalidates the query cache directly; staleness is
	// bounded by mutation, not only by the TTL backstop.
	st.AddObserver(q)

	return &Engine{
		store:   st,
		manager: mgr,
		query:   q,
		bus:     opts.Bus,
	}
}

// track updates the performance counters for one public operation.
func (e *Engine) track(start time.Time) {
	elapsed := time.Since(start)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opsCount++
	e.avgResponse += (elapsed - e.avgResponse) / time.Duration(e.opsCount)
}

// InitializeSession allocates session state. Idempotent.
func (e *Engine) InitializeSession(sessionID string) {
	defer e.track(time.Now())
	e.store.InitializeSession(sessionID)
	slog.Info("session ready", "session_id", sessionID)
}

// CleanupSession tears a session down completely: cancels pending activation
// timers, releases all store structures, and purges cached queries. Must be
// called on game end or disconnect; sessions are never collected
// automatically.
func (e *Engine) CleanupSession(sessionID string) {
	defer e.track(time.Now())
	e.manager.ClearSession(sessionID)
	e.store.ClearSession(sessionID)
	e.query.ClearCache(sessionID)
	slog.Info("session cleaned up", "session_id", sessionID)
}

// HandleCardDrawn is the card-driven activation entry point: it converts a
// drawn card into a tracked rule, activating or scheduling per the card's
// trigger. Returns nil for cards that carry no rule.
func (e *Engine) HandleCardDrawn(sessionID, playerID string, card rule.CardData, ctx lifecycle.Context) (*rule.ActiveRule, error) {
	defer e.track(time.Now())
	r, err := e.manager.ActivateRuleFromCard(sessionID, playerID, card, ctx)
	if err != nil {
		slog.Error("card draw failed",
			"session_id", sessionID,
			"player_id", playerID,
			"card_id", card.CardID,
			"error", err,
		)
		return nil, err
	}
	return r, nil
}

// ActiveRules returns the session's currently active rules.
func (e *Engine) ActiveRules(sessionID string) []*rule.ActiveRule {
	defer e.track(time.Now())
	active := rule.StateActive
	return e.query.Query(sessionID, query.Filter{State: &active}, true).Rules
}

// EffectiveRulesForPlayer returns the rules currently constraining a player:
// active global rules plus the player's own active rules, deduplicated.
func (e *Engine) EffectiveRulesForPlayer(sessionID, playerID string) []*rule.ActiveRule {
	defer e.track(time.Now())
	return e.query.ActiveRulesForPlayer(sessionID, playerID)
}

// Query exposes the filtered read path directly.
func (e *Engine) Query(sessionID string, f query.Filter, useCache bool) *query.Result {
	defer e.track(time.Now())
	return e.query.Query(sessionID, f, useCache)
}

// Statistics returns fresh aggregate statistics, or nil for an unknown
// session.
func (e *Engine) Statistics(sessionID string) *query.Statistics {
	defer e.track(time.Now())
	return e.query.Statistics(sessionID)
}

// SuspendRule suspends an active rule.
func (e *Engine) SuspendRule(sessionID, ruleID, reason string) (*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.SuspendRule(sessionID, ruleID, reason)
}

// ResumeRule resumes a suspended rule.
func (e *Engine) ResumeRule(sessionID, ruleID string) (*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.ResumeRule(sessionID, ruleID)
}

// DeactivateRule ends a rule for the given reason.
func (e *Engine) DeactivateRule(sessionID, ruleID, reason string) (*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.DeactivateRule(sessionID, ruleID, reason)
}

// HandleCalloutSuccess applies a successful callout; an empty result is a
// valid outcome, not an error.
func (e *Engine) HandleCalloutSuccess(sessionID, targetPlayerID, callingPlayerID, ruleID string) ([]*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.HandleCalloutSuccess(sessionID, targetPlayerID, callingPlayerID, ruleID)
}

// HandleCardTransfer moves a card's rules between players; an empty result
// is a valid outcome, not an error.
func (e *Engine) HandleCardTransfer(sessionID, fromPlayerID, toPlayerID, cardID string) ([]*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.HandleCardTransfer(sessionID, fromPlayerID, toPlayerID, cardID)
}

// ProcessTurnExpirations sweeps turn-based expirations. The engine has no
// internal clock; the caller invokes this once per turn advance.
func (e *Engine) ProcessTurnExpirations(sessionID string, currentTurn int) []*rule.ActiveRule {
	defer e.track(time.Now())
	return e.manager.ProcessTurnBasedExpirations(sessionID, currentTurn)
}

// ProcessConditionalExpirations sweeps conditional-duration rules against
// the caller's game state.
func (e *Engine) ProcessConditionalExpirations(sessionID string, gameState map[string]any) ([]*rule.ActiveRule, error) {
	defer e.track(time.Now())
	return e.manager.ProcessConditionalExpirations(sessionID, gameState)
}

// Subscribe registers a lifecycle event subscriber, optionally filtered by
// kind. Returns a token for Unsubscribe.
func (e *Engine) Subscribe(sub event.Subscriber, kinds ...event.Kind) int {
	return e.bus.Subscribe(sub, kinds...)
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(token int) {
	e.bus.Unsubscribe(token)
}

// History returns the session's lifecycle audit trail, oldest first.
func (e *Engine) History(sessionID string) []rule.LifecycleEvent {
	defer e.track(time.Now())
	return e.store.History(sessionID)
}
