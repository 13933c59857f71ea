package lifecycle

import (
	"fmt"
	"log/slog"

	"github.com/driftwood-games/houserules/internal/condition"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// ProcessTurnBasedExpirations sweeps the session's active turn-based rules
// and deactivates every one whose turn budget has run out at currentTurn,
// with reason "turn_limit". The engine has no internal clock; callers invoke
// this once per turn advance. Returns the expired rules; an empty sweep is a
// valid outcome.
func (m *Manager) ProcessTurnBasedExpirations(sessionID string, currentTurn int) []*rule.ActiveRule {
	var expired []*rule.ActiveRule
	for _, r := range m.store.RulesByState(sessionID, rule.StateActive) {
		if !r.ShouldExpire(currentTurn) {
			continue
		}
		gone, err := m.DeactivateRule(sessionID, r.ID, "turn_limit")
		if err != nil {
			// Another path removed it between scan and deactivate.
			slog.Debug("turn sweep skipped rule",
				"session_id", sessionID,
				"rule_id", r.ID,
				"error", err,
			)
			continue
		}
		expired = append(expired, gone)
	}

	if len(expired) > 0 {
		slog.Info("turn-based rules expired",
			"session_id", sessionID,
			"turn", currentTurn,
			"count", len(expired),
		)
	}
	return expired
}

// ProcessConditionalExpirations sweeps active conditional-duration rules and
// deactivates those whose expiry predicate holds against gameState, with
// reason "condition_met". Rules without an expiry predicate persist until
// some other removal path ends them. A malformed predicate fails the sweep.
func (m *Manager) ProcessConditionalExpirations(sessionID string, gameState map[string]any) ([]*rule.ActiveRule, error) {
	var expired []*rule.ActiveRule
	for _, r := range m.store.RulesByState(sessionID, rule.StateActive) {
		if r.DurationType != rule.DurationConditional {
			continue
		}
		pred := condition.FromMetadata(r.Metadata, condition.ExpiryKey)
		if pred == nil {
			continue
		}
		met, err := condition.Evaluate(pred, gameState)
		if err != nil {
			return expired, fmt.Errorf("rule %s expiry condition: %w", r.ID, err)
		}
		if !met {
			continue
		}
		gone, err := m.DeactivateRule(sessionID, r.ID, "condition_met")
		if err != nil {
			slog.Debug("conditional sweep skipped rule",
				"session_id", sessionID,
				"rule_id", r.ID,
				"error", err,
			)
			continue
		}
		expired = append(expired, gone)
	}
	return expired, nil
}

// HandleCalloutSuccess applies a successful callout against targetPlayerID.
// With a specific ruleID the rule is removed iff it is removable by
// callout_success; otherwise every rule owned by the target and removable by
// callout_success is removed. Returns the removed rules; an empty list (no
// qualifying rules) is a valid, non-error outcome.
func (m *Manager) HandleCalloutSuccess(sessionID, targetPlayerID, callingPlayerID, ruleID string) ([]*rule.ActiveRule, error) {
	var candidates []*rule.ActiveRule
	if ruleID != "" {
		r := m.store.GetRule(sessionID, ruleID)
		if r == nil {
			return []*rule.ActiveRule{}, nil
		}
		candidates = []*rule.ActiveRule{r}
	} else {
		candidates = m.store.RulesByPlayer(sessionID, targetPlayerID)
	}

	removed := make([]*rule.ActiveRule, 0, len(candidates))
	for _, r := range candidates {
		if !r.RemovableBy(rule.RemoveOnCalloutSuccess) {
			continue
		}
		gone, err := m.DeactivateRule(sessionID, r.ID, "callout_success")
		if err != nil {
			if rule.IsTransition(err) {
				// Pending rules are not callable out yet.
				continue
			}
			return removed, err
		}
		removed = append(removed, gone)
	}

	slog.Info("callout applied",
		"session_id", sessionID,
		"target_player", targetPlayerID,
		"calling_player", callingPlayerID,
		"removed", len(removed),
	)
	return removed, nil
}

// HandleCardTransfer moves a card between players. Rules tied to the card
// that are removable by card_transfer are deactivated; rules owned by
// fromPlayerID are reassigned to toPlayerID through an index-consistent
// update. Returns the rules whose ownership changed; an empty list is a
// valid outcome.
func (m *Manager) HandleCardTransfer(sessionID, fromPlayerID, toPlayerID, cardID string) ([]*rule.ActiveRule, error) {
	reassigned := make([]*rule.ActiveRule, 0)
	for _, r := range m.store.RulesByCard(sessionID, cardID) {
		if r.RemovableBy(rule.RemoveOnCardTransfer) {
			if _, err := m.DeactivateRule(sessionID, r.ID, "card_transfer"); err != nil {
				if rule.IsTransition(err) {
					// Pending rule tied to the card: withdraw it
					// outright, it never came into force.
					m.store.RemoveRule(sessionID, r.ID, "card_transfer")
					continue
				}
				return reassigned, err
			}
			continue
		}
		if r.OwnerID != fromPlayerID {
			continue
		}
		owner := toPlayerID
		updated, err := m.store.UpdateRule(sessionID, r.ID, store.Updates{
			OwnerID: &owner,
			Reason:  "ownership_transferred",
		})
		if err != nil {
			return reassigned, err
		}
		reassigned = append(reassigned, updated)
	}

	slog.Info("card transferred",
		"session_id", sessionID,
		"card_id", cardID,
		"from_player", fromPlayerID,
		"to_player", toPlayerID,
		"reassigned", len(reassigned),
	)
	return reassigned, nil
}
