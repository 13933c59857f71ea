// Package rule defines the vocabulary and data model for session-scoped
// active rules: the typed enumerations (state, kind, duration, trigger,
// scope, stacking, removal conditions), validation limits, the ActiveRule
// entity itself, lifecycle event records, and the error taxonomy shared by
// the store, lifecycle, and query layers.
//
// The package has no behavior beyond construction and validation. Everything
// else in the engine depends on it; it depends on nothing above it.
package rule
