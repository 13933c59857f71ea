package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/driftwood-games/houserules/internal/event"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// DefaultActivationDelay is how far in the future a scheduled (non-immediate)
// activation fires when the caller does not supply an explicit time.
const DefaultActivationDelay = 100 * time.Millisecond

// Context carries the caller's game situation into an activation.
type Context struct {
	// CurrentTurn is the game turn at the time of the call. Turn-based
	// expiry counts from this value.
	CurrentTurn int

	// ActivateAt optionally pins a scheduled activation to a wall-clock
	// time. A zero value means "now plus the manager's default delay".
	// Times already in the past activate synchronously instead of
	// scheduling a zero-delay timer.
	ActivateAt time.Time

	// GameState is arbitrary caller state, fed to conditional-trigger and
	// conditional-expiry predicates.
	GameState map[string]any
}

// Manager drives the rule lifecycle against a store and publishes typed
// events on every transition. Construct with New.
type Manager struct {
	store *store.Store
	bus   *event.Bus
	ids   rule.IDGenerator
	now   func() time.Time
	delay time.Duration

	mu      sync.Mutex
	pending map[string]map[string]*time.Timer // session → rule → activation timer
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator overrides rule ID generation, for deterministic tests.
func WithIDGenerator(g rule.IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithActivationDelay overrides the default scheduled-activation delay.
func WithActivationDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// New creates a Manager bound to a store and an event bus.
func New(s *store.Store, bus *event.Bus, opts ...Option) *Manager {
	m := &Manager{
		store:   s,
		bus:     bus,
		ids:     rule.UUIDv7Generator{},
		now:     time.Now,
		delay:   DefaultActivationDelay,
		pending: make(map[string]map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// publish emits a lifecycle event to the bus.
func (m *Manager) publish(kind event.Kind, sessionID string, r *rule.ActiveRule, reason string, ctx *Context) {
	ev := event.Event{
		Kind:      kind,
		SessionID: sessionID,
		Rule:      r,
		Reason:    reason,
	}
	if ctx != nil {
		ev.Context = ctx.GameState
	}
	m.bus.Publish(ev)
}

// trackTimer records a pending activation timer for the session.
func (m *Manager) trackTimer(sessionID, ruleID string, t *time.Timer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timers, ok := m.pending[sessionID]
	if !ok {
		timers = make(map[string]*time.Timer)
		m.pending[sessionID] = timers
	}
	timers[ruleID] = t
}

// untrackTimer removes the record for a fired or canceled timer. Reports
// whether the record was still present, i.e. the session has not been
// cleaned up underneath the timer.
func (m *Manager) untrackTimer(sessionID, ruleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	timers, ok := m.pending[sessionID]
	if !ok {
		return false
	}
	if _, ok := timers[ruleID]; !ok {
		return false
	}
	delete(timers, ruleID)
	if len(timers) == 0 {
		delete(m.pending, sessionID)
	}
	return true
}

// PendingActivations returns the rule IDs with a scheduled activation in the
// session. Diagnostic; order is unspecified.
func (m *Manager) PendingActivations(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.pending[sessionID]))
	for id := range m.pending[sessionID] {
		ids = append(ids, id)
	}
	return ids
}

// ClearSession cancels every pending activation timer for the session and
// drops their records. The store's ClearSession is separate; the engine
// calls both during cleanup.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	timers := m.pending[sessionID]
	delete(m.pending, sessionID)
	m.mu.Unlock()

	for ruleID, t := range timers {
		t.Stop()
		slog.Debug("pending activation canceled",
			"session_id", sessionID,
			"rule_id", ruleID,
		)
	}
}
