package rule

import "fmt"

// State is the lifecycle state of an active rule.
//
// Transitions are monotonic within a single life:
//
//	pending → active → {suspended ⇄ active} → expired
//
// Expired is terminal. A deactivated rule is removed from the live store;
// the terminal state survives only in history entries and journal rows.
type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateExpired   State = "expired"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateActive, StateSuspended, StateExpired:
		return true
	}
	return false
}

// Kind classifies what a drawn card introduced.
type Kind string

const (
	KindRule     Kind = "rule"     // standing game rule
	KindModifier Kind = "modifier" // modifies an existing mechanic
	KindPrompt   Kind = "prompt"   // one-shot prompt tracked until completed
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRule, KindModifier, KindPrompt:
		return true
	}
	return false
}

// DurationType controls how a rule ends on its own.
type DurationType string

const (
	DurationPermanent   DurationType = "permanent"
	DurationTurnBased   DurationType = "turn_based"
	DurationConditional DurationType = "conditional"
	DurationSession     DurationType = "session"
)

// Valid reports whether d is a known duration type.
func (d DurationType) Valid() bool {
	switch d {
	case DurationPermanent, DurationTurnBased, DurationConditional, DurationSession:
		return true
	}
	return false
}

// TriggerType controls when a rule built from a card becomes active.
type TriggerType string

const (
	TriggerImmediate   TriggerType = "immediate"
	TriggerOnTurn      TriggerType = "on_turn"
	TriggerOnSpin      TriggerType = "on_spin"
	TriggerOnCallout   TriggerType = "on_callout"
	TriggerConditional TriggerType = "conditional"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerImmediate, TriggerOnTurn, TriggerOnSpin, TriggerOnCallout, TriggerConditional:
		return true
	}
	return false
}

// Scope identifies who a rule constrains.
type Scope string

const (
	ScopeGlobal Scope = "global" // everyone at the table
	ScopePlayer Scope = "player" // one designated player
	ScopeOwner  Scope = "owner"  // only the player who drew the card
	ScopeTarget Scope = "target" // a target chosen at activation time
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopePlayer, ScopeOwner, ScopeTarget:
		return true
	}
	return false
}

// StackingBehavior declares how a new rule intends to relate to an existing
// similar one. Advisory metadata: the engine surfaces conflicts but never
// auto-resolves them.
type StackingBehavior string

const (
	StackAdditive StackingBehavior = "additive"
	StackReplace  StackingBehavior = "replace"
	StackIgnore   StackingBehavior = "ignore"
	StackMerge    StackingBehavior = "merge"
)

// Valid reports whether b is a known stacking behavior.
func (b StackingBehavior) Valid() bool {
	switch b {
	case StackAdditive, StackReplace, StackIgnore, StackMerge:
		return true
	}
	return false
}

// RemovalCondition is an enumerated trigger that authorizes ending a rule.
type RemovalCondition string

const (
	RemoveOnCalloutSuccess  RemovalCondition = "callout_success"
	RemoveOnCardTransfer    RemovalCondition = "card_transfer"
	RemoveOnTurnLimit       RemovalCondition = "turn_limit"
	RemoveOnPromptCompleted RemovalCondition = "prompt_completion"
	RemoveManual            RemovalCondition = "manual"
	RemoveOnGameEnd         RemovalCondition = "game_end"
)

// Valid reports whether c is a known removal condition.
func (c RemovalCondition) Valid() bool {
	switch c {
	case RemoveOnCalloutSuccess, RemoveOnCardTransfer, RemoveOnTurnLimit,
		RemoveOnPromptCompleted, RemoveManual, RemoveOnGameEnd:
		return true
	}
	return false
}

// Validation limits. These bound both single rules and whole sessions so a
// long-running process hosting many games cannot grow without bound.
const (
	// MinRuleTextLen and MaxRuleTextLen bound the rule text, in bytes.
	MinRuleTextLen = 1
	MaxRuleTextLen = 500

	// MinTurnDuration and MaxTurnDuration bound turn-based lifetimes.
	MinTurnDuration = 1
	MaxTurnDuration = 50

	// MinPriority, MaxPriority, and DefaultPriority bound rule priority.
	// Higher values win ties when the caller orders by priority.
	MinPriority     = 1
	MaxPriority     = 20
	DefaultPriority = 5

	// MaxRulesPerSession caps live rules in one session.
	MaxRulesPerSession = 100

	// MaxRulesPerPlayer caps live rules owned by one player in one session.
	MaxRulesPerPlayer = 20

	// MaxHistoryPerSession caps the per-session lifecycle history log.
	// Oldest entries are discarded first.
	MaxHistoryPerSession = 1000
)

// parseError builds the ValidationError used by the Parse helpers.
func parseError(field, value string) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("unknown %s %q", field, value),
	}
}

// ParseState converts a raw string into a State.
func ParseState(s string) (State, error) {
	v := State(s)
	if !v.Valid() {
		return "", parseError("state", s)
	}
	return v, nil
}

// ParseKind converts a raw string into a Kind.
func ParseKind(s string) (Kind, error) {
	v := Kind(s)
	if !v.Valid() {
		return "", parseError("kind", s)
	}
	return v, nil
}

// ParseDurationType converts a raw string into a DurationType.
func ParseDurationType(s string) (DurationType, error) {
	v := DurationType(s)
	if !v.Valid() {
		return "", parseError("duration_type", s)
	}
	return v, nil
}

// ParseTriggerType converts a raw string into a TriggerType.
func ParseTriggerType(s string) (TriggerType, error) {
	v := TriggerType(s)
	if !v.Valid() {
		return "", parseError("trigger_type", s)
	}
	return v, nil
}

// ParseScope converts a raw string into a Scope.
func ParseScope(s string) (Scope, error) {
	v := Scope(s)
	if !v.Valid() {
		return "", parseError("scope", s)
	}
	return v, nil
}

// ParseStackingBehavior converts a raw string into a StackingBehavior.
func ParseStackingBehavior(s string) (StackingBehavior, error) {
	v := StackingBehavior(s)
	if !v.Valid() {
		return "", parseError("stacking_behavior", s)
	}
	return v, nil
}

// ParseRemovalCondition converts a raw string into a RemovalCondition.
func ParseRemovalCondition(s string) (RemovalCondition, error) {
	v := RemovalCondition(s)
	if !v.Valid() {
		return "", parseError("removal_condition", s)
	}
	return v, nil
}
