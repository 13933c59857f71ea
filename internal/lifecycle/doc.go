// Package lifecycle implements the rule state machine and the
// domain-specific removal policies.
//
// The state machine is:
//
//	pending → active → {suspended ⇄ active} → expired
//
// Expired is terminal and has no live representation: deactivation removes
// the rule from the store, and only history entries and published events
// record that it ever existed.
//
// The manager is the only component that drives transitions. It mutates
// rules exclusively through store methods so indexes stay consistent, and it
// publishes a typed event for every transition so observers never need to
// poll. Illegal transitions (suspending a pending rule, resuming an active
// one, deactivating a ghost) fail with a descriptive error and perform no
// partial mutation. The bulk policies (callout success, card transfer) treat
// "zero qualifying rules" as a valid outcome, not an error.
//
// Scheduled activations (on_turn, on_spin, unmet conditional triggers) are
// tracked per session with their timers so CleanupSession can cancel them;
// an untracked timer would fire into a torn-down session.
package lifecycle
