package store

import (
	"log/slog"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Updates names the lifecycle fields UpdateRule may change. Policy fields
// are immutable after creation and deliberately have no entry here.
// Nil pointer fields impose no change; Metadata entries are merged in.
type Updates struct {
	State           *rule.State
	OwnerID         *string
	ActivatedAt     *time.Time
	ActivatedOnTurn *int
	Metadata        map[string]any

	// Reason tags the history entry for this update. Defaults to
	// "updated"; lifecycle transitions pass their own tag ("activated",
	// "suspended", ...).
	Reason string
}

// indexAdd inserts id under key in a two-level index, creating the key-set
// lazily.
func indexAdd[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}

// indexRemove deletes id from key's set and prunes the set when it empties.
// A dangling empty set would make the index grow without bound across the
// life of a long-running process.
func indexRemove[K comparable](idx map[K]map[string]struct{}, key K, id string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, key)
	}
}

// indexInsert adds r to all four secondary indexes. Requires sess.mu held.
func (sess *session) indexInsert(r *rule.ActiveRule) {
	if r.OwnerID != "" {
		indexAdd(sess.byOwner, r.OwnerID, r.ID)
	}
	indexAdd(sess.byKind, r.Kind, r.ID)
	indexAdd(sess.byState, r.State, r.ID)
	if r.CardID != "" {
		indexAdd(sess.byCard, r.CardID, r.ID)
	}
}

// indexDelete removes r from all four secondary indexes, computing keys from
// r itself. Requires sess.mu held.
func (sess *session) indexDelete(r *rule.ActiveRule) {
	if r.OwnerID != "" {
		indexRemove(sess.byOwner, r.OwnerID, r.ID)
	}
	indexRemove(sess.byKind, r.Kind, r.ID)
	indexRemove(sess.byState, r.State, r.ID)
	if r.CardID != "" {
		indexRemove(sess.byCard, r.CardID, r.ID)
	}
}

// appendHistory appends an event, discarding the oldest entry once the
// session cap is reached. Requires sess.mu held.
func (sess *session) appendHistory(ev rule.LifecycleEvent, cap int) {
	sess.history = append(sess.history, ev)
	if len(sess.history) > cap {
		// Drop oldest. Copy so the backing array does not pin dropped
		// events in memory.
		trimmed := make([]rule.LifecycleEvent, cap)
		copy(trimmed, sess.history[len(sess.history)-cap:])
		sess.history = trimmed
	}
}

// AddRule validates r, inserts a private copy into the primary map and all
// four indexes, and appends an "added" history entry. The session is created
// lazily on first write. Fails with a CapacityError when the session or the
// owner is at limit, and a ValidationError when r is malformed. Returns a
// clone of the stored rule.
func (s *Store) AddRule(sessionID string, r *rule.ActiveRule) (*rule.ActiveRule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	sess := s.getOrCreateSession(sessionID)

	sess.mu.Lock()
	if err := s.checkCapacityLocked(sess, sessionID, r.OwnerID); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if _, exists := sess.rules[r.ID]; exists {
		sess.mu.Unlock()
		return nil, &rule.ValidationError{Field: "id", Message: "rule id already present in session"}
	}

	stored := r.Clone()
	sess.rules[stored.ID] = stored
	sess.indexInsert(stored)
	sess.appendHistory(rule.LifecycleEvent{
		RuleID:    stored.ID,
		To:        stored.State,
		Reason:    "added",
		Timestamp: s.now(),
	}, s.limits.MaxHistoryPerSession)
	sess.lastUpdated = s.now()
	out := stored.Clone()
	sess.mu.Unlock()

	slog.Debug("rule added",
		"session_id", sessionID,
		"rule_id", out.ID,
		"owner_id", out.OwnerID,
		"card_id", out.CardID,
		"state", out.State,
	)

	s.notify(sessionID)
	return out, nil
}

// UpdateRule clones the stored rule, applies u, and re-indexes it. Index
// maintenance is strictly remove-then-add: stale entries are removed using
// keys computed from the old rule before new entries are inserted using keys
// from the new rule, so an owner or state change can never leave a dangling
// index entry. Appends an "updated" history entry and returns a clone of the
// new rule. Fails with a NotFoundError when the session or rule is unknown.
func (s *Store) UpdateRule(sessionID, ruleID string, u Updates) (*rule.ActiveRule, error) {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil, &rule.NotFoundError{SessionID: sessionID}
	}

	sess.mu.Lock()
	old, ok := sess.rules[ruleID]
	if !ok {
		sess.mu.Unlock()
		return nil, &rule.NotFoundError{SessionID: sessionID, RuleID: ruleID}
	}

	next := old.Clone()
	if u.State != nil {
		next.State = *u.State
	}
	if u.OwnerID != nil {
		next.OwnerID = *u.OwnerID
	}
	if u.ActivatedAt != nil {
		next.ActivatedAt = *u.ActivatedAt
	}
	if u.ActivatedOnTurn != nil {
		next.ActivatedOnTurn = *u.ActivatedOnTurn
	}
	if len(u.Metadata) > 0 {
		if next.Metadata == nil {
			next.Metadata = make(map[string]any, len(u.Metadata))
		}
		for k, v := range u.Metadata {
			next.Metadata[k] = v
		}
	}

	if err := next.Validate(); err != nil {
		sess.mu.Unlock()
		return nil, err
	}

	reason := u.Reason
	if reason == "" {
		reason = "updated"
	}

	sess.indexDelete(old)
	sess.rules[ruleID] = next
	sess.indexInsert(next)
	sess.appendHistory(rule.LifecycleEvent{
		RuleID:    ruleID,
		From:      old.State,
		To:        next.State,
		Reason:    reason,
		Timestamp: s.now(),
	}, s.limits.MaxHistoryPerSession)
	sess.lastUpdated = s.now()
	out := next.Clone()
	sess.mu.Unlock()

	slog.Debug("rule updated",
		"session_id", sessionID,
		"rule_id", ruleID,
		"from_state", old.State,
		"to_state", out.State,
	)

	s.notify(sessionID)
	return out, nil
}

// RemoveRule deletes the rule from the primary map and every index and
// appends a "removed" history entry tagged with reason. Returns false when
// the session or rule is unknown; removal of an absent rule is not an error.
func (s *Store) RemoveRule(sessionID, ruleID, reason string) bool {
	sess := s.getSession(sessionID)
	if sess == nil {
		return false
	}

	sess.mu.Lock()
	r, ok := sess.rules[ruleID]
	if !ok {
		sess.mu.Unlock()
		return false
	}

	sess.indexDelete(r)
	delete(sess.rules, ruleID)
	sess.appendHistory(rule.LifecycleEvent{
		RuleID:    ruleID,
		From:      r.State,
		To:        rule.StateExpired,
		Reason:    reason,
		Timestamp: s.now(),
	}, s.limits.MaxHistoryPerSession)
	sess.lastUpdated = s.now()
	sess.mu.Unlock()

	slog.Debug("rule removed",
		"session_id", sessionID,
		"rule_id", ruleID,
		"reason", reason,
	)

	s.notify(sessionID)
	return true
}

// AppendHistory records a lifecycle event that did not itself change stored
// rule fields, such as an activation notice from the lifecycle manager.
// No-op when the session is unknown.
func (s *Store) AppendHistory(sessionID string, ev rule.LifecycleEvent) {
	sess := s.getSession(sessionID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	sess.appendHistory(ev, s.limits.MaxHistoryPerSession)
	sess.lastUpdated = s.now()
	sess.mu.Unlock()
}
