package query

import (
	"sort"
	"time"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Result wraps a query's matched rules with execution metadata and supports
// fluent, non-mutating post-processing: every method returns a new Result
// and leaves the receiver (and any cached data) untouched.
type Result struct {
	Rules      []*rule.ActiveRule
	FromCache  bool
	ExecutedIn time.Duration
}

// Count returns the number of matched rules.
func (r *Result) Count() int {
	return len(r.Rules)
}

// derive copies the receiver with a fresh rule slice.
func (r *Result) derive(rules []*rule.ActiveRule) *Result {
	return &Result{Rules: rules, FromCache: r.FromCache, ExecutedIn: r.ExecutedIn}
}

// SortByPriority returns a new result ordered by priority, highest first.
// Ties keep their existing relative order.
func (r *Result) SortByPriority() *Result {
	rules := make([]*rule.ActiveRule, len(r.Rules))
	copy(rules, r.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	return r.derive(rules)
}

// SortByActivationTime returns a new result ordered by activation time,
// newest first. Never-activated rules sort last.
func (r *Result) SortByActivationTime() *Result {
	rules := make([]*rule.ActiveRule, len(r.Rules))
	copy(rules, r.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].ActivatedAt.After(rules[j].ActivatedAt) })
	return r.derive(rules)
}

// GroupBy buckets the rules by one of: "state", "kind", "scope", "owner",
// "card", "duration_type", "trigger_type", "stacking". Unknown fields yield
// a single "" bucket holding everything, keeping the read path non-failing.
func (r *Result) GroupBy(field string) map[string][]*rule.ActiveRule {
	key := func(x *rule.ActiveRule) string {
		switch field {
		case "state":
			return string(x.State)
		case "kind":
			return string(x.Kind)
		case "scope":
			return string(x.Scope)
		case "owner":
			return x.OwnerID
		case "card":
			return x.CardID
		case "duration_type":
			return string(x.DurationType)
		case "trigger_type":
			return string(x.TriggerType)
		case "stacking":
			return string(x.Stacking)
		default:
			return ""
		}
	}

	groups := make(map[string][]*rule.ActiveRule)
	for _, x := range r.Rules {
		k := key(x)
		groups[k] = append(groups[k], x)
	}
	return groups
}

// Limit returns a new result holding at most n rules.
func (r *Result) Limit(n int) *Result {
	if n < 0 {
		n = 0
	}
	if n > len(r.Rules) {
		n = len(r.Rules)
	}
	rules := make([]*rule.ActiveRule, n)
	copy(rules, r.Rules[:n])
	return r.derive(rules)
}

// Skip returns a new result without the first n rules.
func (r *Result) Skip(n int) *Result {
	if n < 0 {
		n = 0
	}
	if n > len(r.Rules) {
		n = len(r.Rules)
	}
	rules := make([]*rule.ActiveRule, len(r.Rules)-n)
	copy(rules, r.Rules[n:])
	return r.derive(rules)
}
