package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Stats aggregates a session's live rule counts.
type Stats struct {
	TotalRules    int
	ByState       map[rule.State]int
	ByKind        map[rule.Kind]int
	HistoryLength int
	CreatedAt     time.Time
	LastUpdated   time.Time
}

// GetRule returns a clone of the rule, or nil when the session or rule is
// unknown.
func (s *Store) GetRule(sessionID, ruleID string) *rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	r, ok := sess.rules[ruleID]
	if !ok {
		return nil
	}
	return r.Clone()
}

// collect clones the rules for a set of IDs, sorted by ID for deterministic
// output. Requires at least a read lock on sess.
func (sess *session) collect(ids map[string]struct{}) []*rule.ActiveRule {
	out := make([]*rule.ActiveRule, 0, len(ids))
	for id := range ids {
		if r, ok := sess.rules[id]; ok {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllRules returns clones of every rule in the session, sorted by ID.
// Empty (never nil semantics surprises) when the session is unknown.
func (s *Store) AllRules(sessionID string) []*rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	out := make([]*rule.ActiveRule, 0, len(sess.rules))
	for _, r := range sess.rules {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RulesByPlayer returns clones of the rules owned by ownerID.
func (s *Store) RulesByPlayer(sessionID, ownerID string) []*rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.collect(sess.byOwner[ownerID])
}

// RulesByKind returns clones of the rules of one kind.
func (s *Store) RulesByKind(sessionID string, k rule.Kind) []*rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.collect(sess.byKind[k])
}

// RulesByState returns clones of the rules in one state.
func (s *Store) RulesByState(sessionID string, st rule.State) []*rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.collect(sess.byState[st])
}

// RulesByCard returns clones of the rules originating from one card.
func (s *Store) RulesByCard(sessionID, cardID string) []*rule.ActiveRule {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.collect(sess.byCard[cardID])
}

// SessionStats returns aggregate counts for the session, or nil when the
// session is unknown.
func (s *Store) SessionStats(sessionID string) *Stats {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	st := &Stats{
		TotalRules:    len(sess.rules),
		ByState:       make(map[rule.State]int),
		ByKind:        make(map[rule.Kind]int),
		HistoryLength: len(sess.history),
		CreatedAt:     sess.createdAt,
		LastUpdated:   sess.lastUpdated,
	}
	for _, r := range sess.rules {
		st.ByState[r.State]++
		st.ByKind[r.Kind]++
	}
	return st
}

// History returns a copy of the session's lifecycle history, oldest first.
func (s *Store) History(sessionID string) []rule.LifecycleEvent {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	out := make([]rule.LifecycleEvent, len(sess.history))
	copy(out, sess.history)
	return out
}

// ValidateIndexes cross-checks every index bucket against the primary map
// and reports human-readable inconsistencies. Healthy sessions return an
// empty slice. Used by the engine's health check.
func (s *Store) ValidateIndexes(sessionID string) []string {
	sess := s.getSession(sessionID)
	if sess == nil {
		return nil
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	var issues []string

	check := func(index, key, id string) {
		if _, ok := sess.rules[id]; !ok {
			issues = append(issues, fmt.Sprintf("%s index key %q references missing rule %s", index, key, id))
		}
	}
	for owner, set := range sess.byOwner {
		if len(set) == 0 {
			issues = append(issues, fmt.Sprintf("owner index key %q is an empty set", owner))
		}
		for id := range set {
			check("owner", owner, id)
		}
	}
	for k, set := range sess.byKind {
		if len(set) == 0 {
			issues = append(issues, fmt.Sprintf("kind index key %q is an empty set", k))
		}
		for id := range set {
			check("kind", string(k), id)
		}
	}
	for st, set := range sess.byState {
		if len(set) == 0 {
			issues = append(issues, fmt.Sprintf("state index key %q is an empty set", st))
		}
		for id := range set {
			check("state", string(st), id)
		}
	}
	for card, set := range sess.byCard {
		if len(set) == 0 {
			issues = append(issues, fmt.Sprintf("card index key %q is an empty set", card))
		}
		for id := range set {
			check("card", card, id)
		}
	}

	// Reverse direction: every rule must appear in its implied buckets.
	for id, r := range sess.rules {
		if r.OwnerID != "" {
			if _, ok := sess.byOwner[r.OwnerID][id]; !ok {
				issues = append(issues, fmt.Sprintf("rule %s missing from owner index %q", id, r.OwnerID))
			}
		}
		if _, ok := sess.byKind[r.Kind][id]; !ok {
			issues = append(issues, fmt.Sprintf("rule %s missing from kind index %q", id, r.Kind))
		}
		if _, ok := sess.byState[r.State][id]; !ok {
			issues = append(issues, fmt.Sprintf("rule %s missing from state index %q", id, r.State))
		}
		if r.CardID != "" {
			if _, ok := sess.byCard[r.CardID][id]; !ok {
				issues = append(issues, fmt.Sprintf("rule %s missing from card index %q", id, r.CardID))
			}
		}
	}

	return issues
}
