package lifecycle

import (
	"log/slog"

	"github.com/driftwood-games/houserules/internal/event"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// SuspendRule transitions an active rule to suspended. Only legal from
// active; anything else fails with a TransitionError and no mutation.
func (m *Manager) SuspendRule(sessionID, ruleID, reason string) (*rule.ActiveRule, error) {
	current := m.store.GetRule(sessionID, ruleID)
	if current == nil {
		err := &rule.NotFoundError{SessionID: sessionID, RuleID: ruleID}
		slog.Error("suspend failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}
	if current.State != rule.StateActive {
		err := &rule.TransitionError{RuleID: ruleID, From: current.State, To: rule.StateSuspended}
		slog.Error("suspend failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}

	if reason == "" {
		reason = "suspended"
	}
	suspended := rule.StateSuspended
	updated, err := m.store.UpdateRule(sessionID, ruleID, store.Updates{State: &suspended, Reason: reason})
	if err != nil {
		return nil, err
	}

	slog.Info("rule suspended", "session_id", sessionID, "rule_id", ruleID, "reason", reason)
	m.publish(event.RuleSuspended, sessionID, updated, reason, nil)
	return updated, nil
}

// ResumeRule transitions a suspended rule back to active. Only legal from
// suspended. The original activation turn is kept: suspension does not pause
// a turn-based rule's countdown.
func (m *Manager) ResumeRule(sessionID, ruleID string) (*rule.ActiveRule, error) {
	current := m.store.GetRule(sessionID, ruleID)
	if current == nil {
		err := &rule.NotFoundError{SessionID: sessionID, RuleID: ruleID}
		slog.Error("resume failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}
	if current.State != rule.StateSuspended {
		err := &rule.TransitionError{RuleID: ruleID, From: current.State, To: rule.StateActive}
		slog.Error("resume failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}

	active := rule.StateActive
	updated, err := m.store.UpdateRule(sessionID, ruleID, store.Updates{State: &active, Reason: "resumed"})
	if err != nil {
		return nil, err
	}

	slog.Info("rule resumed", "session_id", sessionID, "rule_id", ruleID)
	m.publish(event.RuleResumed, sessionID, updated, "resumed", nil)
	return updated, nil
}

// DeactivateRule ends a rule for the given reason and removes it from the
// live store; the expired state survives only in history and events. Legal
// from active or suspended. Fails with a NotFoundError for unknown rules and
// a TransitionError for pending ones (a never-activated rule is withdrawn by
// card transfer or session cleanup, not deactivated).
func (m *Manager) DeactivateRule(sessionID, ruleID, reason string) (*rule.ActiveRule, error) {
	current := m.store.GetRule(sessionID, ruleID)
	if current == nil {
		err := &rule.NotFoundError{SessionID: sessionID, RuleID: ruleID}
		slog.Error("deactivate failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}
	if current.State != rule.StateActive && current.State != rule.StateSuspended {
		err := &rule.TransitionError{RuleID: ruleID, From: current.State, To: rule.StateExpired}
		slog.Error("deactivate failed", "session_id", sessionID, "rule_id", ruleID, "error", err)
		return nil, err
	}

	if reason == "" {
		reason = "manual"
	}
	m.store.RemoveRule(sessionID, ruleID, reason)

	expired := current.Clone()
	expired.State = rule.StateExpired

	slog.Info("rule expired",
		"session_id", sessionID,
		"rule_id", ruleID,
		"reason", reason,
	)
	m.publish(event.RuleExpired, sessionID, expired, reason, nil)
	return expired, nil
}
