// Package event provides the typed publish/subscribe channel between the
// rule engine and its observers (UI layers, persistence collaborators such
// as the journal). Event kinds are a fixed enumeration, not free-form
// strings, so a subscriber cannot silently typo itself out of a stream.
package event

import (
	"log/slog"
	"sync"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Kind enumerates the lifecycle notifications the engine emits.
type Kind int

const (
	// RuleActivated fires when a rule transitions to active.
	RuleActivated Kind = iota + 1
	// RuleExpired fires when a rule is deactivated and removed.
	RuleExpired
	// RuleSuspended fires when an active rule is suspended.
	RuleSuspended
	// RuleResumed fires when a suspended rule returns to active.
	RuleResumed
)

// String returns the wire-friendly name of the kind.
func (k Kind) String() string {
	switch k {
	case RuleActivated:
		return "rule_activated"
	case RuleExpired:
		return "rule_expired"
	case RuleSuspended:
		return "rule_suspended"
	case RuleResumed:
		return "rule_resumed"
	default:
		return "unknown"
	}
}

// Event carries one lifecycle notification. Rule is a clone owned by the
// subscriber; Context is the caller-supplied game context, when any.
type Event struct {
	Kind      Kind
	SessionID string
	Rule      *rule.ActiveRule
	Reason    string
	Context   map[string]any
}

// Subscriber receives published events. HandleEvent is called synchronously
// on the publishing goroutine; long-running subscribers should hand off to
// their own goroutine.
type Subscriber interface {
	HandleEvent(ev Event)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ev Event)

// HandleEvent implements Subscriber.
func (f SubscriberFunc) HandleEvent(ev Event) { f(ev) }

// Bus fans events out to subscribers, optionally filtered by kind.
// Publish order per session matches lifecycle order because the engine
// publishes while holding the session's mutation serialization.
//
// Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	kinds map[Kind]bool // nil means all kinds
	sub   Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers sub for the given kinds; with no kinds it receives
// everything. Returns a token for Unsubscribe.
func (b *Bus) Subscribe(sub Subscriber, kinds ...Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var set map[Kind]bool
	if len(kinds) > 0 {
		set = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			set[k] = true
		}
	}
	b.nextID++
	b.subs[b.nextID] = subscription{kinds: set, sub: sub}
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown tokens are ignored.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, token)
}

// Publish delivers ev synchronously to every matching subscriber.
// A panicking subscriber is logged and skipped; one broken observer must not
// take down lifecycle processing for the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kinds == nil || s.kinds[ev.Kind] {
			subs = append(subs, s.sub)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s, ev)
	}
}

func deliver(s Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked",
				"kind", ev.Kind.String(),
				"session_id", ev.SessionID,
				"panic", r,
			)
		}
	}()
	s.HandleEvent(ev)
}
