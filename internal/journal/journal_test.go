package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-games/houserules/internal/engine"
	"github.com/driftwood-games/houserules/internal/event"
	"github.com/driftwood-games/houserules/internal/lifecycle"
	"github.com/driftwood-games/houserules/internal/rule"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, j.Close()) })
	return j
}

func sampleRule(id string) *rule.ActiveRule {
	r, err := rule.NewFromCard(id, "alice", rule.CardData{
		CardID:   "c1",
		RuleText: "Speak in rhyme",
		HasRule:  true,
	})
	if err != nil {
		panic(err)
	}
	return r
}

func TestAppendAndReadBack(t *testing.T) {
	j := openTestJournal(t)

	r := sampleRule("r1")
	require.NoError(t, j.Append(event.Event{
		Kind:      event.RuleActivated,
		SessionID: "game-1",
		Rule:      r,
		Reason:    "activated",
	}))
	require.NoError(t, j.Append(event.Event{
		Kind:      event.RuleExpired,
		SessionID: "game-1",
		Rule:      r,
		Reason:    "manual",
	}))
	require.NoError(t, j.Append(event.Event{
		Kind:      event.RuleActivated,
		SessionID: "game-2",
		Rule:      sampleRule("r2"),
	}))

	entries, err := j.EventsForSession("game-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "rule_activated", entries[0].Kind)
	assert.Equal(t, "rule_expired", entries[1].Kind)
	assert.Equal(t, "manual", entries[1].Reason)
	assert.Less(t, entries[0].Seq, entries[1].Seq)

	doc, err := entries[0].Rule()
	require.NoError(t, err)
	assert.Equal(t, "r1", doc["id"])
	assert.Equal(t, "Speak in rhyme", doc["rule_text"])

	total, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestAppendRejectsNilRule(t *testing.T) {
	j := openTestJournal(t)
	require.Error(t, j.Append(event.Event{Kind: event.RuleActivated, SessionID: "game-1"}))
}

func TestEventsForUnknownSession(t *testing.T) {
	j := openTestJournal(t)
	entries, err := j.EventsForSession("ghost")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournalRecordsEngineLifecycle(t *testing.T) {
	j := openTestJournal(t)

	bus := event.NewBus()
	j.Attach(bus)

	e := engine.New(engine.Options{
		Bus:         bus,
		IDGenerator: rule.NewFixedGenerator("r1", "r2"),
	})

	r, err := e.HandleCardDrawn("game-1", "alice", rule.CardData{
		CardID:   "c1",
		RuleText: "No phones",
		HasRule:  true,
	}, lifecycle.Context{CurrentTurn: 1})
	require.NoError(t, err)

	_, err = e.SuspendRule("game-1", r.ID, "timeout_round")
	require.NoError(t, err)
	_, err = e.ResumeRule("game-1", r.ID)
	require.NoError(t, err)
	_, err = e.DeactivateRule("game-1", r.ID, "manual")
	require.NoError(t, err)

	entries, err := j.EventsForSession("game-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	kinds := make([]string, len(entries))
	for i, en := range entries {
		kinds[i] = en.Kind
	}
	assert.Equal(t, []string{
		"rule_activated", "rule_suspended", "rule_resumed", "rule_expired",
	}, kinds)

	// Detached journals stop recording.
	j.Detach()
	_, err = e.HandleCardDrawn("game-1", "bob", rule.CardData{
		CardID:   "c2",
		RuleText: "No names",
		HasRule:  true,
	}, lifecycle.Context{})
	require.NoError(t, err)

	total, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Append(event.Event{
		Kind:      event.RuleActivated,
		SessionID: "game-1",
		Rule:      sampleRule("r1"),
	}))

	entries, err := j.EventsForSession("game-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fixed.Format(time.RFC3339Nano), entries[0].RecordedAt)
}
