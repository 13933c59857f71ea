package query

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/driftwood-games/houserules/internal/rule"
)

// folder lowercases text for matching independent of locale quirks.
var folder = cases.Fold()

// Filter is a conjunctive predicate over active rules. Nil (or zero) fields
// impose no constraint; every set field must match. Filters are plain values
// so callers can build them literally.
type Filter struct {
	State        *rule.State
	Kind         *rule.Kind
	OwnerID      *string
	CardID       *string
	Scope        *rule.Scope
	DurationType *rule.DurationType
	TriggerType  *rule.TriggerType
	Stacking     *rule.StackingBehavior

	// Priority matches exactly; PriorityMin/PriorityMax bound a range.
	Priority    *int
	PriorityMin *int
	PriorityMax *int

	// ActivatedAfter/ActivatedBefore bound the activation timestamp.
	// Rules never activated (zero ActivatedAt) fail either bound.
	ActivatedAfter  *time.Time
	ActivatedBefore *time.Time

	// TextContains is a case-folded substring match on the rule text.
	TextContains string

	// RemovableBy requires the rule's removal set to contain the trigger.
	RemovableBy *rule.RemovalCondition

	// MetadataKey requires the key to be present; with MetadataValue also
	// set, the stored value must compare equal (by fmt representation,
	// since metadata is free-form).
	MetadataKey   string
	MetadataValue any
}

// Matches reports whether r satisfies every set predicate field.
func (f Filter) Matches(r *rule.ActiveRule) bool {
	if f.State != nil && r.State != *f.State {
		return false
	}
	if f.Kind != nil && r.Kind != *f.Kind {
		return false
	}
	if f.OwnerID != nil && r.OwnerID != *f.OwnerID {
		return false
	}
	if f.CardID != nil && r.CardID != *f.CardID {
		return false
	}
	if f.Scope != nil && r.Scope != *f.Scope {
		return false
	}
	if f.DurationType != nil && r.DurationType != *f.DurationType {
		return false
	}
	if f.TriggerType != nil && r.TriggerType != *f.TriggerType {
		return false
	}
	if f.Stacking != nil && r.Stacking != *f.Stacking {
		return false
	}
	if f.Priority != nil && r.Priority != *f.Priority {
		return false
	}
	if f.PriorityMin != nil && r.Priority < *f.PriorityMin {
		return false
	}
	if f.PriorityMax != nil && r.Priority > *f.PriorityMax {
		return false
	}
	if f.ActivatedAfter != nil && (r.ActivatedAt.IsZero() || r.ActivatedAt.Before(*f.ActivatedAfter)) {
		return false
	}
	if f.ActivatedBefore != nil && (r.ActivatedAt.IsZero() || r.ActivatedAt.After(*f.ActivatedBefore)) {
		return false
	}
	if f.TextContains != "" && !strings.Contains(folder.String(r.RuleText), folder.String(f.TextContains)) {
		return false
	}
	if f.RemovableBy != nil && !r.RemovableBy(*f.RemovableBy) {
		return false
	}
	if f.MetadataKey != "" {
		v, ok := r.Metadata[f.MetadataKey]
		if !ok {
			return false
		}
		if f.MetadataValue != nil && fmt.Sprintf("%v", v) != fmt.Sprintf("%v", f.MetadataValue) {
			return false
		}
	}
	return true
}

// CacheKey renders the filter as a deterministic string: every field in a
// fixed order, "any" for unset fields. Two filters with the same constraints
// always produce the same key.
func (f Filter) CacheKey() string {
	parts := []string{
		keyOf(f.State),
		keyOf(f.Kind),
		keyOf(f.OwnerID),
		keyOf(f.CardID),
		keyOf(f.Scope),
		keyOf(f.DurationType),
		keyOf(f.TriggerType),
		keyOf(f.Stacking),
		keyOf(f.Priority),
		keyOf(f.PriorityMin),
		keyOf(f.PriorityMax),
		timeKey(f.ActivatedAfter),
		timeKey(f.ActivatedBefore),
		stringKey(f.TextContains),
		keyOf(f.RemovableBy),
		stringKey(f.MetadataKey),
		anyKey(f.MetadataValue),
	}
	return strings.Join(parts, "|")
}

const unset = "any"

func keyOf[T any](p *T) string {
	if p == nil {
		return unset
	}
	return fmt.Sprintf("%v", *p)
}

func timeKey(p *time.Time) string {
	if p == nil {
		return unset
	}
	return fmt.Sprintf("%d", p.UnixNano())
}

func stringKey(s string) string {
	if s == "" {
		return unset
	}
	return s
}

func anyKey(v any) string {
	if v == nil {
		return unset
	}
	return fmt.Sprintf("%v", v)
}
