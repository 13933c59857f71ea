package lifecycle

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/driftwood-games/houserules/internal/condition"
	"github.com/driftwood-games/houserules/internal/event"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// ActivateRuleFromCard converts a drawn card into a tracked rule. Cards
// without a rule payload produce nothing (nil, nil). The rule is stored
// pending, then either activated immediately (immediate trigger, or a
// conditional trigger whose predicate already holds) or scheduled for later
// activation (on_turn, on_spin, on_callout, unmet conditional).
//
// playerID is the player who drew the card; empty means a global or
// system-issued rule.
func (m *Manager) ActivateRuleFromCard(sessionID, playerID string, card rule.CardData, ctx Context) (*rule.ActiveRule, error) {
	if !card.HasRule {
		return nil, nil
	}

	if err := m.ValidateRuleActivation(sessionID, playerID); err != nil {
		slog.Error("rule activation rejected",
			"session_id", sessionID,
			"player_id", playerID,
			"card_id", card.CardID,
			"error", err,
		)
		return nil, err
	}

	r, err := rule.NewFromCard(m.ids.NewID(), playerID, card)
	if err != nil {
		return nil, fmt.Errorf("build rule from card %s: %w", card.CardID, err)
	}

	// A malformed conditional predicate must fail before anything is
	// stored; evaluate it up front.
	conditionMet := false
	if r.TriggerType == rule.TriggerConditional {
		pred := condition.FromMetadata(r.Metadata, condition.ActivationKey)
		if pred != nil {
			conditionMet, err = condition.Evaluate(pred, ctx.GameState)
			if err != nil {
				return nil, fmt.Errorf("card %s activation condition: %w", card.CardID, err)
			}
		}
	}

	stored, err := m.store.AddRule(sessionID, r)
	if err != nil {
		return nil, err
	}

	switch {
	case r.TriggerType == rule.TriggerImmediate,
		r.TriggerType == rule.TriggerConditional && conditionMet:
		return m.ActivateRule(sessionID, stored.ID, ctx)
	default:
		m.scheduleRuleActivation(sessionID, stored.ID, ctx)
		return m.store.GetRule(sessionID, stored.ID), nil
	}
}

// ValidateRuleActivation is the fail-fast capacity pre-check before a card
// becomes a rule. The store re-validates limits on insert regardless; this
// exists so callers get a clean CapacityError before any work happens.
func (m *Manager) ValidateRuleActivation(sessionID, playerID string) error {
	return m.store.CheckCapacity(sessionID, playerID)
}

// ActivateRule transitions a pending rule to active, stamping ActivatedAt
// and capturing the activation turn for turn-based expiry. Fails with a
// TransitionError when the rule is not pending and a NotFoundError when it
// does not exist.
func (m *Manager) ActivateRule(sessionID, ruleID string, ctx Context) (*rule.ActiveRule, error) {
	current := m.store.GetRule(sessionID, ruleID)
	if current == nil {
		err := &rule.NotFoundError{SessionID: sessionID, RuleID: ruleID}
		slog.Error("activate failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}
	if current.State != rule.StatePending {
		err := &rule.TransitionError{RuleID: ruleID, From: current.State, To: rule.StateActive}
		slog.Error("activate failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}

	active := rule.StateActive
	activatedAt := m.now()
	turn := ctx.CurrentTurn
	updated, err := m.store.UpdateRule(sessionID, ruleID, store.Updates{
		State:           &active,
		ActivatedAt:     &activatedAt,
		ActivatedOnTurn: &turn,
		Reason:          "activated",
	})
	if err != nil {
		return nil, err
	}

	slog.Info("rule activated",
		"session_id", sessionID,
		"rule_id", ruleID,
		"owner_id", updated.OwnerID,
		"turn", turn,
	)
	m.publish(event.RuleActivated, sessionID, updated, "activated", &ctx)
	return updated, nil
}

// scheduleRuleActivation arms a tracked timer that activates the rule later.
// When the computed activation time has already passed the rule activates
// synchronously instead of arming a zero or negative delay timer.
func (m *Manager) scheduleRuleActivation(sessionID, ruleID string, ctx Context) {
	at := ctx.ActivateAt
	if at.IsZero() {
		at = m.now().Add(m.delay)
	}

	delay := at.Sub(m.now())
	if delay <= 0 {
		if _, err := m.ActivateRule(sessionID, ruleID, ctx); err != nil {
			slog.Error("past-due activation failed",
				"session_id", sessionID,
				"rule_id", ruleID,
				"error", err,
			)
		}
		return
	}

	timer := time.AfterFunc(delay, func() {
		// The session may have been cleaned up while the timer was
		// armed; an untracked record means exactly that.
		if !m.untrackTimer(sessionID, ruleID) {
			return
		}
		if _, err := m.ActivateRule(sessionID, ruleID, ctx); err != nil {
			slog.Error("scheduled activation failed",
				"session_id", sessionID,
				"rule_id", ruleID,
				"error", err,
			)
		}
	})
	m.trackTimer(sessionID, ruleID, timer)

	slog.Debug("rule activation scheduled",
		"session_id", sessionID,
		"rule_id", ruleID,
		"delay", delay,
	)
}
