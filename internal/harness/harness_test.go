package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-games/houserules/internal/rule"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
name: smoke
cards:
  rhyme:
    rule_text: Rhyme everything
steps:
  - draw: {player: alice, card: rhyme}
  - expect: {active: 1}
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", s.Name)
	require.Len(t, s.Steps, 2)
	assert.NotNil(t, s.Steps[0].Draw)
	assert.NotNil(t, s.Steps[1].Expect)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
cards:
  rhyme: {rule_text: Rhyme}
steps:
  - draw: {player: alice, card: rhyme}
stepz: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src: `
cards: {rhyme: {rule_text: Rhyme}}
steps: [{draw: {player: a, card: rhyme}}]
`,
			want: "name",
		},
		{
			name: "no cards or deck",
			src: `
name: empty
steps: [{draw: {player: a, card: rhyme}}]
`,
			want: "cards or deck",
		},
		{
			name: "no steps",
			src: `
name: empty
cards: {rhyme: {rule_text: Rhyme}}
steps: []
`,
			want: "steps",
		},
		{
			name: "two actions in one step",
			src: `
name: doubled
cards: {rhyme: {rule_text: Rhyme}}
steps:
  - draw: {player: a, card: rhyme}
    advance: {turn: 2}
`,
			want: "exactly one action",
		},
		{
			name: "empty expect",
			src: `
name: blank
cards: {rhyme: {rule_text: Rhyme}}
steps:
  - expect: {}
`,
			want: "active or gone",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCardSpecToCard(t *testing.T) {
	spec := CardSpec{
		RuleText:          "Whisper",
		DurationType:      "turn_based",
		TurnDuration:      2,
		Scope:             "player",
		Priority:          7,
		RemovalConditions: []string{"turn_limit", "manual"},
	}
	card, err := spec.toCard("whisper")
	require.NoError(t, err)
	assert.Equal(t, "whisper", card.CardID)
	assert.True(t, card.HasRule)
	assert.Equal(t, rule.DurationTurnBased, card.DurationType)
	assert.Equal(t, rule.ScopePlayer, card.Scope)
	assert.Equal(t, []rule.RemovalCondition{rule.RemoveOnTurnLimit, rule.RemoveManual}, card.RemovalConditions)

	_, err = CardSpec{RuleText: "x", Kind: "sorcery"}.toCard("bad")
	require.Error(t, err)
}

func TestRunRecordsFailedExpectations(t *testing.T) {
	s := &Scenario{
		Name:  "failing",
		Cards: map[string]CardSpec{"rhyme": {RuleText: "Rhyme"}},
		Steps: []Step{
			{Draw: &DrawStep{Player: "alice", Card: "rhyme"}},
			{Expect: &ExpectStep{Active: intp(2)}},
			{Expect: &ExpectStep{Gone: "rhyme"}},
		},
	}

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Passed())
	require.Len(t, res.Failures, 2)
	assert.Contains(t, res.Trace[1], "FAIL")
	assert.Contains(t, res.Trace[2], "still-present")
}

func TestRunUnknownCardAborts(t *testing.T) {
	s := &Scenario{
		Name:  "ghost-card",
		Cards: map[string]CardSpec{"rhyme": {RuleText: "Rhyme"}},
		Steps: []Step{{Draw: &DrawStep{Player: "alice", Card: "ghost"}}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown card")
}

func TestRunNoRuleCard(t *testing.T) {
	s := &Scenario{
		Name:  "points",
		Cards: map[string]CardSpec{"ace": {Metadata: map[string]any{"points": 11}}},
		Steps: []Step{
			{Draw: &DrawStep{Player: "alice", Card: "ace"}},
			{Expect: &ExpectStep{Active: intp(0)}},
		},
	}
	res, err := Run(s)
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Equal(t, "draw player=alice card=ace rule=none", res.Trace[0])
}

func intp(n int) *int { return &n }
