package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Limits bounds a session's live rules and history log.
type Limits struct {
	MaxRulesPerSession   int
	MaxRulesPerPlayer    int
	MaxHistoryPerSession int
}

// DefaultLimits returns the standard engine limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRulesPerSession:   rule.MaxRulesPerSession,
		MaxRulesPerPlayer:    rule.MaxRulesPerPlayer,
		MaxHistoryPerSession: rule.MaxHistoryPerSession,
	}
}

// Observer is notified after every successful mutation of a session.
// The engine registers the query cache here so cached reads are invalidated
// by the store itself rather than by caller discipline.
type Observer interface {
	StoreChanged(sessionID string)
}

// session holds all state for one game session. Guarded by its own mutex so
// concurrent mutations on the same session cannot race on index maintenance.
type session struct {
	mu sync.RWMutex

	rules map[string]*rule.ActiveRule

	// Secondary indexes: key → set of rule IDs. Lazily created, eagerly
	// pruned when a key-set empties.
	byOwner map[string]map[string]struct{}
	byKind  map[rule.Kind]map[string]struct{}
	byState map[rule.State]map[string]struct{}
	byCard  map[string]map[string]struct{}

	history []rule.LifecycleEvent

	createdAt   time.Time
	lastUpdated time.Time
}

func newSession(now time.Time) *session {
	return &session{
		rules:       make(map[string]*rule.ActiveRule),
		byOwner:     make(map[string]map[string]struct{}),
		byKind:      make(map[rule.Kind]map[string]struct{}),
		byState:     make(map[rule.State]map[string]struct{}),
		byCard:      make(map[string]map[string]struct{}),
		createdAt:   now,
		lastUpdated: now,
	}
}

// Store is the session-partitioned rule store. Construct with New; the zero
// value is not usable. Multiple Store instances are fully independent, so
// tests and shards can each own one without cross-contamination.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	limits    Limits
	now       func() time.Time
	observers []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithLimits overrides the default capacity limits.
func WithLimits(l Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		limits:   DefaultLimits(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddObserver registers an observer for mutation notifications.
// Not safe to call concurrently with mutations; register at wiring time.
func (s *Store) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// notify runs outside any session lock.
func (s *Store) notify(sessionID string) {
	for _, o := range s.observers {
		o.StoreChanged(sessionID)
	}
}

// InitializeSession allocates empty maps, indexes, and metadata for the
// session if absent. Idempotent: calling it twice has the same observable
// effect as calling it once.
func (s *Store) InitializeSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return
	}
	s.sessions[sessionID] = newSession(s.now())
	slog.Debug("session initialized", "session_id", sessionID)
}

// getSession returns the session, or nil if unknown.
func (s *Store) getSession(sessionID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// getOrCreateSession returns the session, creating it lazily on first write.
func (s *Store) getOrCreateSession(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = newSession(s.now())
		s.sessions[sessionID] = sess
	}
	return sess
}

// HasSession reports whether the session exists.
func (s *Store) HasSession(sessionID string) bool {
	return s.getSession(sessionID) != nil
}

// Sessions returns the IDs of every live session.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ClearSession removes every structure associated with the session: primary
// map, all indexes, history, and metadata. Nothing is garbage-collected
// automatically; the engine must call this on game-end or disconnect cleanup
// or the process leaks one session's worth of memory per game.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	_, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if existed {
		slog.Debug("session cleared", "session_id", sessionID)
		s.notify(sessionID)
	}
}

// Limits returns the store's configured limits.
func (s *Store) Limits() Limits {
	return s.limits
}

// CheckCapacity reports whether the session can accept one more rule owned
// by ownerID (empty for a global rule). Used by the lifecycle manager as a
// fail-fast pre-check; AddRule re-validates on insert regardless.
func (s *Store) CheckCapacity(sessionID, ownerID string) error {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil // session will be created lazily, necessarily under limit
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return s.checkCapacityLocked(sess, sessionID, ownerID)
}

// checkCapacityLocked requires at least a read lock on sess.
func (s *Store) checkCapacityLocked(sess *session, sessionID, ownerID string) error {
	if len(sess.rules) >= s.limits.MaxRulesPerSession {
		return &rule.CapacityError{SessionID: sessionID, Limit: s.limits.MaxRulesPerSession}
	}
	if ownerID != "" && len(sess.byOwner[ownerID]) >= s.limits.MaxRulesPerPlayer {
		return &rule.CapacityError{SessionID: sessionID, OwnerID: ownerID, Limit: s.limits.MaxRulesPerPlayer}
	}
	return nil
}
