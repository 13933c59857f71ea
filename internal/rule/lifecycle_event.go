package rule

import "time"

// LifecycleEvent is one immutable entry in a session's append-only history
// log: a rule moved from one state to another for a reason.
//
// Reason tags are short strings such as "added", "activated",
// "callout_success", "turn_limit", "card_transfer". The history log is the
// audit trail; it is capped per session, oldest entries first.
type LifecycleEvent struct {
	RuleID    string
	From      State
	To        State
	Reason    string
	Timestamp time.Time
	Metadata  map[string]any
}
