package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftwood-games/houserules/internal/rule"
)

func TestBus_PublishToAll(t *testing.T) {
	b := NewBus()
	var got []Kind
	b.Subscribe(SubscriberFunc(func(ev Event) { got = append(got, ev.Kind) }))

	b.Publish(Event{Kind: RuleActivated, SessionID: "s1"})
	b.Publish(Event{Kind: RuleExpired, SessionID: "s1"})

	assert.Equal(t, []Kind{RuleActivated, RuleExpired}, got)
}

func TestBus_KindFilter(t *testing.T) {
	b := NewBus()
	var expired int
	b.Subscribe(SubscriberFunc(func(ev Event) { expired++ }), RuleExpired)

	b.Publish(Event{Kind: RuleActivated})
	b.Publish(Event{Kind: RuleExpired})
	b.Publish(Event{Kind: RuleSuspended})

	assert.Equal(t, 1, expired)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	var count int
	token := b.Subscribe(SubscriberFunc(func(ev Event) { count++ }))

	b.Publish(Event{Kind: RuleActivated})
	b.Unsubscribe(token)
	b.Publish(Event{Kind: RuleActivated})

	assert.Equal(t, 1, count)
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBus()
	var reached bool
	b.Subscribe(SubscriberFunc(func(ev Event) { panic("bad observer") }))
	b.Subscribe(SubscriberFunc(func(ev Event) { reached = true }))

	b.Publish(Event{Kind: RuleResumed, Rule: &rule.ActiveRule{ID: "r1"}})

	assert.True(t, reached)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "rule_activated", RuleActivated.String())
	assert.Equal(t, "rule_expired", RuleExpired.String())
	assert.Equal(t, "rule_suspended", RuleSuspended.String())
	assert.Equal(t, "rule_resumed", RuleResumed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
