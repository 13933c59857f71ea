package query

import (
	"sort"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
)

// ActiveRulesForPlayer returns the rules that currently constrain playerID:
// the union of active global-scope rules and active rules the player owns,
// de-duplicated by rule ID and ordered by priority, highest first.
func (e *Engine) ActiveRulesForPlayer(sessionID, playerID string) []*rule.ActiveRule {
	active := rule.StateActive
	global := rule.ScopeGlobal

	globals := e.Query(sessionID, Filter{State: &active, Scope: &global}, true)
	owned := e.Query(sessionID, Filter{State: &active, OwnerID: &playerID}, true)

	seen := make(map[string]bool, len(globals.Rules)+len(owned.Rules))
	merged := make([]*rule.ActiveRule, 0, len(globals.Rules)+len(owned.Rules))
	for _, r := range append(globals.Rules, owned.Rules...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Priority > merged[j].Priority })
	return merged
}

// ExpiringRules returns the active turn-based rules whose remaining turns at
// currentTurn fall within (0, turnsAhead]. turnsAhead defaults to 1 when
// non-positive.
func (e *Engine) ExpiringRules(sessionID string, currentTurn, turnsAhead int) []*rule.ActiveRule {
	if turnsAhead <= 0 {
		turnsAhead = 1
	}

	active := rule.StateActive
	turnBased := rule.DurationTurnBased
	res := e.Query(sessionID, Filter{State: &active, DurationType: &turnBased}, true)

	out := make([]*rule.ActiveRule, 0, len(res.Rules))
	for _, r := range res.Rules {
		left := r.TurnsRemaining(currentTurn)
		if left > 0 && left <= turnsAhead {
			out = append(out, r)
		}
	}
	return out
}

// RulesByPriorityRange returns rules with min <= priority <= max.
func (e *Engine) RulesByPriorityRange(sessionID string, min, max int) []*rule.ActiveRule {
	return e.Query(sessionID, Filter{PriorityMin: &min, PriorityMax: &max}, true).Rules
}

// SearchRulesByText returns rules whose text contains the case-folded
// substring.
func (e *Engine) SearchRulesByText(sessionID, text string) []*rule.ActiveRule {
	return e.Query(sessionID, Filter{TextContains: text}, true).Rules
}

// RulesRemovableBy returns rules that the given trigger may end.
func (e *Engine) RulesRemovableBy(sessionID string, cond rule.RemovalCondition) []*rule.ActiveRule {
	return e.Query(sessionID, Filter{RemovableBy: &cond}, true).Rules
}

// ConflictingRules returns the live rules a new rule would plausibly clash
// with: same kind and scope, and either owned by the same player or globally
// scoped. This is a hint set for the caller (typically a UI prompting the
// table); the engine never auto-resolves conflicts or applies stacking
// behavior itself.
func (e *Engine) ConflictingRules(sessionID string, candidate *rule.ActiveRule) []*rule.ActiveRule {
	if candidate == nil {
		return nil
	}

	res := e.Query(sessionID, Filter{Kind: &candidate.Kind, Scope: &candidate.Scope}, true)
	out := make([]*rule.ActiveRule, 0, len(res.Rules))
	for _, r := range res.Rules {
		if r.ID == candidate.ID {
			continue
		}
		if r.Scope == rule.ScopeGlobal || (candidate.OwnerID != "" && r.OwnerID == candidate.OwnerID) {
			out = append(out, r)
		}
	}
	return out
}

// Statistics aggregates the live store for one session. Always computed
// fresh, bypassing the cache: statistics must reflect the store as it is,
// not as it was up to a TTL ago. Returns nil for unknown sessions.
type Statistics struct {
	TotalRules      int
	ByState         map[rule.State]int
	ByKind          map[rule.Kind]int
	ByScope         map[rule.Scope]int
	ByDuration      map[rule.DurationType]int
	AveragePriority float64
	OldestActivated *rule.ActiveRule
	NewestActivated *rule.ActiveRule
}

// Statistics computes fresh aggregate statistics for the session.
func (e *Engine) Statistics(sessionID string) *Statistics {
	if !e.store.HasSession(sessionID) {
		return nil
	}

	all := e.store.AllRules(sessionID)
	stats := &Statistics{
		TotalRules: len(all),
		ByState:    make(map[rule.State]int),
		ByKind:     make(map[rule.Kind]int),
		ByScope:    make(map[rule.Scope]int),
		ByDuration: make(map[rule.DurationType]int),
	}

	var prioritySum int
	var oldest, newest time.Time
	for _, r := range all {
		stats.ByState[r.State]++
		stats.ByKind[r.Kind]++
		stats.ByScope[r.Scope]++
		stats.ByDuration[r.DurationType]++
		prioritySum += r.Priority

		if r.ActivatedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || r.ActivatedAt.Before(oldest) {
			oldest = r.ActivatedAt
			stats.OldestActivated = r
		}
		if newest.IsZero() || r.ActivatedAt.After(newest) {
			newest = r.ActivatedAt
			stats.NewestActivated = r
		}
	}
	if len(all) > 0 {
		stats.AveragePriority = float64(prioritySum) / float64(len(all))
	}
	return stats
}
