package rule

import (
	"errors"
	"fmt"
)

// ValidationError reports a rule or card field that is out of bounds or not
// a known enumeration value. Raised at construction; values are never
// silently coerced.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// CapacityError reports that a session or per-player rule limit was reached.
type CapacityError struct {
	SessionID string
	OwnerID   string // empty for session-level capacity
	Limit     int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.OwnerID != "" {
		return fmt.Sprintf("capacity exceeded: player %s in session %s at limit %d", e.OwnerID, e.SessionID, e.Limit)
	}
	return fmt.Sprintf("capacity exceeded: session %s at limit %d", e.SessionID, e.Limit)
}

// NotFoundError reports an operation referencing an unknown session or rule.
type NotFoundError struct {
	SessionID string
	RuleID    string // empty when the session itself is unknown
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("not found: rule %s in session %s", e.RuleID, e.SessionID)
	}
	return fmt.Sprintf("not found: session %s", e.SessionID)
}

// TransitionError reports a lifecycle transition attempted from an illegal
// state, e.g. resuming a rule that is not suspended. The attempted operation
// performs no partial mutation.
type TransitionError struct {
	RuleID string
	From   State
	To     State
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: rule %s cannot move from %s to %s", e.RuleID, e.From, e.To)
}

// IsValidation reports whether err is a ValidationError, unwrapping as needed.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCapacity reports whether err is a CapacityError, unwrapping as needed.
func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError, unwrapping as needed.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsTransition reports whether err is a TransitionError, unwrapping as needed.
func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
