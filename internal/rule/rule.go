package rule

import (
	"fmt"
	"time"
)

// ActiveRule is the central entity: one game-modifying effect derived from a
// drawn card, tracked for the life of a session.
//
// Policy fields (Kind, DurationType, TurnDuration, TriggerType, Scope,
// Priority, RemovalConditions, Stacking) are set from the card template at
// construction and never change afterward. Lifecycle fields (State,
// ActivatedAt, ActivatedOnTurn, OwnerID) change only through the store so
// its indexes stay consistent.
type ActiveRule struct {
	// ID is unique within a session for the rule's lifetime. Once removed
	// it is never reused or resurrected.
	ID string

	// CardID identifies the originating card.
	CardID string

	// OwnerID is the player who drew the card. Empty for global or
	// system-issued rules.
	OwnerID string

	// RuleText is the human-readable rule, 1..500 bytes.
	RuleText string

	Kind  Kind
	State State

	// ActivatedAt is stamped on the transition to active.
	ActivatedAt time.Time

	// ActivatedOnTurn is the game turn at activation time. Turn-based
	// expiry counts from this value, never from wall-clock time. Zero when
	// the rule was activated outside any turn context.
	ActivatedOnTurn int

	DurationType DurationType

	// TurnDuration is the lifetime in turns. Required (1..50) iff
	// DurationType is turn_based; must be zero otherwise.
	TurnDuration int

	TriggerType TriggerType
	Scope       Scope

	// Priority orders rules for presentation and tie-breaking, 1..20.
	Priority int

	// RemovalConditions is the set of triggers that may end this rule.
	RemovalConditions map[RemovalCondition]bool

	Stacking StackingBehavior

	// Metadata carries free-form card data, including the optional
	// jsonlogic predicates under "activation_condition" and
	// "expiry_condition" for conditional rules.
	Metadata map[string]any
}

// Validate checks every constructed field against the vocabulary and limits.
// It returns a *ValidationError naming the first offending field.
func (r *ActiveRule) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}
	if n := len(r.RuleText); n < MinRuleTextLen || n > MaxRuleTextLen {
		return &ValidationError{
			Field:   "rule_text",
			Message: fmt.Sprintf("length %d outside %d..%d", n, MinRuleTextLen, MaxRuleTextLen),
		}
	}
	if !r.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", string(r.Kind))}
	}
	if !r.State.Valid() {
		return &ValidationError{Field: "state", Message: fmt.Sprintf("unknown state %q", string(r.State))}
	}
	if !r.DurationType.Valid() {
		return &ValidationError{Field: "duration_type", Message: fmt.Sprintf("unknown duration type %q", string(r.DurationType))}
	}
	if r.DurationType == DurationTurnBased {
		if r.TurnDuration < MinTurnDuration || r.TurnDuration > MaxTurnDuration {
			return &ValidationError{
				Field:   "turn_duration",
				Message: fmt.Sprintf("%d outside %d..%d", r.TurnDuration, MinTurnDuration, MaxTurnDuration),
			}
		}
	} else if r.TurnDuration != 0 {
		return &ValidationError{
			Field:   "turn_duration",
			Message: fmt.Sprintf("set to %d but duration type is %s", r.TurnDuration, r.DurationType),
		}
	}
	if !r.TriggerType.Valid() {
		return &ValidationError{Field: "trigger_type", Message: fmt.Sprintf("unknown trigger type %q", string(r.TriggerType))}
	}
	if !r.Scope.Valid() {
		return &ValidationError{Field: "scope", Message: fmt.Sprintf("unknown scope %q", string(r.Scope))}
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return &ValidationError{
			Field:   "priority",
			Message: fmt.Sprintf("%d outside %d..%d", r.Priority, MinPriority, MaxPriority),
		}
	}
	if !r.Stacking.Valid() {
		return &ValidationError{Field: "stacking_behavior", Message: fmt.Sprintf("unknown stacking behavior %q", string(r.Stacking))}
	}
	for c := range r.RemovalConditions {
		if !c.Valid() {
			return &ValidationError{Field: "removal_conditions", Message: fmt.Sprintf("unknown removal condition %q", string(c))}
		}
	}
	return nil
}

// Clone returns a deep copy. The store hands callers clones and mutates only
// clones, so a caller holding a previously returned rule can never corrupt
// an index by editing it.
func (r *ActiveRule) Clone() *ActiveRule {
	cp := *r
	if r.RemovalConditions != nil {
		cp.RemovalConditions = make(map[RemovalCondition]bool, len(r.RemovalConditions))
		for c, v := range r.RemovalConditions {
			cp.RemovalConditions[c] = v
		}
	}
	if r.Metadata != nil {
		cp.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// RemovableBy reports whether cond authorizes ending this rule.
func (r *ActiveRule) RemovableBy(cond RemovalCondition) bool {
	return r.RemovalConditions[cond]
}

// ShouldExpire reports whether a turn-based rule has run out at currentTurn.
// Non-turn-based rules never self-expire here. A rule expires once
// currentTurn - ActivatedOnTurn reaches its TurnDuration.
func (r *ActiveRule) ShouldExpire(currentTurn int) bool {
	if r.DurationType != DurationTurnBased {
		return false
	}
	return currentTurn-r.ActivatedOnTurn >= r.TurnDuration
}

// TurnsRemaining returns how many turns a turn-based rule has left at
// currentTurn, clamped at zero. Returns -1 for non-turn-based rules.
func (r *ActiveRule) TurnsRemaining(currentTurn int) int {
	if r.DurationType != DurationTurnBased {
		return -1
	}
	left := r.TurnDuration - (currentTurn - r.ActivatedOnTurn)
	if left < 0 {
		return 0
	}
	return left
}

// ExportMap renders the rule as a plain document-store-shaped map. The
// engine performs no persistence itself; collaborators (the journal, or a
// caller's own adapter) serialize this form.
func (r *ActiveRule) ExportMap() map[string]any {
	conditions := make([]string, 0, len(r.RemovalConditions))
	for c := range r.RemovalConditions {
		conditions = append(conditions, string(c))
	}
	m := map[string]any{
		"id":                 r.ID,
		"card_id":            r.CardID,
		"owner_id":           r.OwnerID,
		"rule_text":          r.RuleText,
		"kind":               string(r.Kind),
		"state":              string(r.State),
		"duration_type":      string(r.DurationType),
		"turn_duration":      r.TurnDuration,
		"trigger_type":       string(r.TriggerType),
		"scope":              string(r.Scope),
		"priority":           r.Priority,
		"removal_conditions": conditions,
		"stacking_behavior":  string(r.Stacking),
		"activated_on_turn":  r.ActivatedOnTurn,
	}
	if !r.ActivatedAt.IsZero() {
		m["activated_at"] = r.ActivatedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(r.Metadata) > 0 {
		m["metadata"] = r.Metadata
	}
	return m
}
