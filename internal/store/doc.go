// Package store provides the authoritative, indexed, session-partitioned
// storage for active rules.
//
// One Store serves many logical game sessions. Every entry is keyed by an
// opaque session ID; sessions never see each other's data. Per session the
// store keeps:
//
//   - the primary map of rule ID to rule
//   - four secondary indexes (owner, kind, state, card), each a map from
//     key to a set of rule IDs, lazily created and eagerly pruned
//   - an append-only lifecycle history log, capped per session
//   - session metadata (created, last updated, rule count)
//
// # Invariants
//
// A rule ID appears in exactly the index buckets implied by its current
// OwnerID/Kind/State/CardID, and in no others, after any sequence of add,
// update, and remove operations. Index maintenance on update is strictly
// remove-then-add: stale entries are computed from the old rule, new entries
// from the new rule. Empty key-sets are deleted, never left dangling, so
// index maps cannot grow without bound over the life of a long-running
// process.
//
// # Ownership
//
// The store exclusively owns rule instances. It stores and mutates only its
// private copies and hands callers clones, so nothing a caller does to a
// returned rule can corrupt an index. All lifecycle mutation goes through
// AddRule, UpdateRule, and RemoveRule.
//
// # Concurrency
//
// Each session carries its own RWMutex. Mutations on one session are
// serialized; reads may interleave freely with each other. Registered
// observers are notified after every successful mutation, outside the
// session lock.
package store
