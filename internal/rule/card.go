package rule

// CardData is the plain payload a caller hands the engine when a card is
// drawn. It carries the card's rule template and policy fields; unset policy
// fields fall back to engine defaults (permanent, immediate, global,
// priority 5, additive, removable by callout).
//
// CardData crosses the engine boundary as data only. Deck loading and
// shuffling are the caller's concern; internal/cardspec can compile CUE deck
// definitions into this shape.
type CardData struct {
	CardID   string
	RuleText string

	// HasRule reports whether this card introduces a trackable rule at
	// all. Cards without rules (pure point cards, etc.) are ignored by
	// the engine.
	HasRule bool

	Kind              Kind
	DurationType      DurationType
	TurnDuration      int
	TriggerType       TriggerType
	Scope             Scope
	Priority          int
	RemovalConditions []RemovalCondition
	Stacking          StackingBehavior
	Metadata          map[string]any
}

// withDefaults returns a copy of c with every unset policy field replaced by
// the engine default.
func (c CardData) withDefaults() CardData {
	if c.Kind == "" {
		c.Kind = KindRule
	}
	if c.DurationType == "" {
		c.DurationType = DurationPermanent
	}
	if c.TriggerType == "" {
		c.TriggerType = TriggerImmediate
	}
	if c.Scope == "" {
		c.Scope = ScopeGlobal
	}
	if c.Priority == 0 {
		c.Priority = DefaultPriority
	}
	if len(c.RemovalConditions) == 0 {
		c.RemovalConditions = []RemovalCondition{RemoveOnCalloutSuccess}
	}
	if c.Stacking == "" {
		c.Stacking = StackAdditive
	}
	return c
}

// NewFromCard builds a pending ActiveRule from a card payload, applying
// policy defaults and validating the result. The caller supplies the
// generated id and the owning player (empty ownerID means a global or
// system rule).
func NewFromCard(id, ownerID string, card CardData) (*ActiveRule, error) {
	c := card.withDefaults()

	conditions := make(map[RemovalCondition]bool, len(c.RemovalConditions))
	for _, cond := range c.RemovalConditions {
		conditions[cond] = true
	}
	// Turn-based rules are always removable at the turn limit, whether or
	// not the card says so.
	if c.DurationType == DurationTurnBased {
		conditions[RemoveOnTurnLimit] = true
	}

	var meta map[string]any
	if len(c.Metadata) > 0 {
		meta = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
	}

	r := &ActiveRule{
		ID:                id,
		CardID:            c.CardID,
		OwnerID:           ownerID,
		RuleText:          c.RuleText,
		Kind:              c.Kind,
		State:             StatePending,
		DurationType:      c.DurationType,
		TurnDuration:      c.TurnDuration,
		TriggerType:       c.TriggerType,
		Scope:             c.Scope,
		Priority:          c.Priority,
		RemovalConditions: conditions,
		Stacking:          c.Stacking,
		Metadata:          meta,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
