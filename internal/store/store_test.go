package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-games/houserules/internal/rule"
)

func testRule(id, owner, card string) *rule.ActiveRule {
	return &rule.ActiveRule{
		ID:                id,
		CardID:            card,
		OwnerID:           owner,
		RuleText:          "No saying the word drink",
		Kind:              rule.KindRule,
		State:             rule.StatePending,
		DurationType:      rule.DurationPermanent,
		TriggerType:       rule.TriggerImmediate,
		Scope:             rule.ScopeGlobal,
		Priority:          rule.DefaultPriority,
		RemovalConditions: map[rule.RemovalCondition]bool{rule.RemoveOnCalloutSuccess: true},
		Stacking:          rule.StackAdditive,
	}
}

func TestInitializeSession_Idempotent(t *testing.T) {
	s := New()
	s.InitializeSession("game-1")

	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)

	s.InitializeSession("game-1") // must not wipe anything

	assert.Len(t, s.AllRules("game-1"), 1)
	assert.True(t, s.HasSession("game-1"))
}

func TestAddRule_RoundTrip(t *testing.T) {
	s := New()
	in := testRule("r1", "alice", "c1")

	stored, err := s.AddRule("game-1", in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, stored.ID)

	got := s.GetRule("game-1", "r1")
	require.NotNil(t, got)
	assert.Equal(t, in.RuleText, got.RuleText)
	assert.Equal(t, in.OwnerID, got.OwnerID)
	assert.Equal(t, in.CardID, got.CardID)
	assert.Equal(t, in.State, got.State)
}

func TestAddRule_CallerCannotCorruptStore(t *testing.T) {
	s := New()
	in := testRule("r1", "alice", "c1")
	stored, err := s.AddRule("game-1", in)
	require.NoError(t, err)

	// Mutating either the input or the returned copy must not affect the
	// store's private copy.
	in.State = rule.StateExpired
	stored.OwnerID = "mallory"

	got := s.GetRule("game-1", "r1")
	assert.Equal(t, rule.StatePending, got.State)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Empty(t, s.ValidateIndexes("game-1"))
}

func TestAddRule_DuplicateID(t *testing.T) {
	s := New()
	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)

	_, err = s.AddRule("game-1", testRule("r1", "bob", "c2"))
	require.Error(t, err)
	assert.True(t, rule.IsValidation(err))
}

func TestAddRule_SessionCapacity(t *testing.T) {
	s := New()
	// Spread across owners so the per-player limit does not fire first.
	for i := 0; i < rule.MaxRulesPerSession; i++ {
		owner := fmt.Sprintf("player-%d", i%10)
		_, err := s.AddRule("game-1", testRule(fmt.Sprintf("r%03d", i), owner, "c1"))
		require.NoError(t, err)
	}

	_, err := s.AddRule("game-1", testRule("r-overflow", "player-11", "c1"))
	require.Error(t, err)
	assert.True(t, rule.IsCapacity(err))
	assert.Equal(t, rule.MaxRulesPerSession, s.SessionStats("game-1").TotalRules)
}

func TestAddRule_PlayerCapacity(t *testing.T) {
	s := New()
	for i := 0; i < rule.MaxRulesPerPlayer; i++ {
		_, err := s.AddRule("game-1", testRule(fmt.Sprintf("r%02d", i), "alice", "c1"))
		require.NoError(t, err)
	}

	_, err := s.AddRule("game-1", testRule("r-overflow", "alice", "c1"))
	require.Error(t, err)
	var ce *rule.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "alice", ce.OwnerID)

	// A different player can still add.
	_, err = s.AddRule("game-1", testRule("r-bob", "bob", "c1"))
	assert.NoError(t, err)
}

func TestUpdateRule_ReindexesOwnerAndState(t *testing.T) {
	s := New()
	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)

	newOwner := "bob"
	active := rule.StateActive
	updated, err := s.UpdateRule("game-1", "r1", Updates{OwnerID: &newOwner, State: &active})
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.OwnerID)
	assert.Equal(t, rule.StateActive, updated.State)

	assert.Empty(t, s.RulesByPlayer("game-1", "alice"))
	require.Len(t, s.RulesByPlayer("game-1", "bob"), 1)
	assert.Empty(t, s.RulesByState("game-1", rule.StatePending))
	require.Len(t, s.RulesByState("game-1", rule.StateActive), 1)
	assert.Empty(t, s.ValidateIndexes("game-1"))
}

func TestUpdateRule_NotFound(t *testing.T) {
	s := New()
	s.InitializeSession("game-1")

	_, err := s.UpdateRule("game-1", "ghost", Updates{})
	require.Error(t, err)
	assert.True(t, rule.IsNotFound(err))

	_, err = s.UpdateRule("no-session", "ghost", Updates{})
	require.Error(t, err)
	assert.True(t, rule.IsNotFound(err))
}

func TestRemoveRule(t *testing.T) {
	s := New()
	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)

	assert.True(t, s.RemoveRule("game-1", "r1", "manual"))
	assert.Nil(t, s.GetRule("game-1", "r1"))
	assert.Empty(t, s.RulesByPlayer("game-1", "alice"))
	assert.Empty(t, s.ValidateIndexes("game-1"))

	// Second removal is not an error, just false.
	assert.False(t, s.RemoveRule("game-1", "r1", "manual"))
	assert.False(t, s.RemoveRule("unknown", "r1", "manual"))

	hist := s.History("game-1")
	require.NotEmpty(t, hist)
	last := hist[len(hist)-1]
	assert.Equal(t, "manual", last.Reason)
	assert.Equal(t, rule.StateExpired, last.To)
}

func TestStatsMatchLiveRules(t *testing.T) {
	s := New()
	for i := 0; i < 7; i++ {
		r := testRule(fmt.Sprintf("r%d", i), fmt.Sprintf("p%d", i%3), "c1")
		if i%2 == 0 {
			r.Kind = rule.KindModifier
		}
		_, err := s.AddRule("game-1", r)
		require.NoError(t, err)
	}
	s.RemoveRule("game-1", "r3", "manual")

	stats := s.SessionStats("game-1")
	require.NotNil(t, stats)
	assert.Equal(t, len(s.AllRules("game-1")), stats.TotalRules)
	assert.Equal(t, 6, stats.TotalRules)
	assert.Equal(t, 6, stats.ByState[rule.StatePending])

	assert.Nil(t, s.SessionStats("unknown"))
}

func TestHistoryCap(t *testing.T) {
	s := New(WithLimits(Limits{
		MaxRulesPerSession:   1000,
		MaxRulesPerPlayer:    1000,
		MaxHistoryPerSession: 5,
	}))

	for i := 0; i < 8; i++ {
		s.InitializeSession("game-1")
		s.AppendHistory("game-1", rule.LifecycleEvent{RuleID: fmt.Sprintf("r%d", i), Reason: "activated"})
	}

	hist := s.History("game-1")
	require.Len(t, hist, 5)
	assert.Equal(t, "r3", hist[0].RuleID, "oldest entries discarded first")
	assert.Equal(t, "r7", hist[4].RuleID)
}

func TestClearSession_ReleasesEverything(t *testing.T) {
	s := New()
	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)
	_, err = s.AddRule("game-2", testRule("r1", "bob", "c1"))
	require.NoError(t, err)

	s.ClearSession("game-1")

	assert.False(t, s.HasSession("game-1"))
	assert.Nil(t, s.GetRule("game-1", "r1"))
	assert.Nil(t, s.SessionStats("game-1"))
	assert.Nil(t, s.History("game-1"))

	// Other sessions are untouched.
	assert.Len(t, s.AllRules("game-2"), 1)
	assert.ElementsMatch(t, []string{"game-2"}, s.Sessions())
}

func TestObserver_NotifiedOnMutations(t *testing.T) {
	s := New()
	var changed []string
	s.AddObserver(observerFunc(func(id string) { changed = append(changed, id) }))

	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)
	active := rule.StateActive
	_, err = s.UpdateRule("game-1", "r1", Updates{State: &active})
	require.NoError(t, err)
	s.RemoveRule("game-1", "r1", "manual")
	s.ClearSession("game-1")

	assert.Equal(t, []string{"game-1", "game-1", "game-1", "game-1"}, changed)
}

type observerFunc func(string)

func (f observerFunc) StoreChanged(sessionID string) { f(sessionID) }

func TestWithClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	_, err := s.AddRule("game-1", testRule("r1", "alice", "c1"))
	require.NoError(t, err)

	stats := s.SessionStats("game-1")
	assert.Equal(t, fixed, stats.CreatedAt)
	assert.Equal(t, fixed, stats.LastUpdated)
	assert.Equal(t, fixed, s.History("game-1")[0].Timestamp)
}
