package cardspec

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-games/houserules/internal/rule"
)

func compileCardString(t *testing.T, src, path string) (*rule.CardData, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileCard(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileCardFull(t *testing.T) {
	card, err := compileCardString(t, `
		card: "rhyme-time": {
			rule_text:     "All answers must rhyme"
			kind:          "rule"
			duration_type: "turn_based"
			turn_duration: 3
			trigger_type:  "immediate"
			scope:         "global"
			priority:      8
			removal_conditions: ["callout_success", "manual"]
			metadata: {
				category: "speech"
			}
		}
	`, `card."rhyme-time"`)
	require.NoError(t, err)

	assert.Equal(t, "rhyme-time", card.CardID)
	assert.True(t, card.HasRule)
	assert.Equal(t, "All answers must rhyme", card.RuleText)
	assert.Equal(t, rule.KindRule, card.Kind)
	assert.Equal(t, rule.DurationTurnBased, card.DurationType)
	assert.Equal(t, 3, card.TurnDuration)
	assert.Equal(t, rule.TriggerImmediate, card.TriggerType)
	assert.Equal(t, rule.ScopeGlobal, card.Scope)
	assert.Equal(t, 8, card.Priority)
	assert.Equal(t, []rule.RemovalCondition{rule.RemoveOnCalloutSuccess, rule.RemoveManual}, card.RemovalConditions)
	assert.Equal(t, map[string]any{"category": "speech"}, card.Metadata)
}

func TestCompileCardNoRuleText(t *testing.T) {
	card, err := compileCardString(t, `
		card: "plain-points": {
			metadata: { points: 2 }
		}
	`, `card."plain-points"`)
	require.NoError(t, err)

	assert.Equal(t, "plain-points", card.CardID)
	assert.False(t, card.HasRule)
	assert.Empty(t, card.RuleText)
}

func TestCompileCardInvalidEnum(t *testing.T) {
	_, err := compileCardString(t, `
		card: "bad": {
			rule_text: "text"
			kind:      "sorcery"
		}
	`, `card."bad"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind")

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "kind", cerr.Field)
}

func TestCompileCardInvalidRemovalCondition(t *testing.T) {
	_, err := compileCardString(t, `
		card: "bad": {
			rule_text: "text"
			removal_conditions: ["on_fire"]
		}
	`, `card."bad"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "removal_conditions")
}

func writeDeckFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestLoadDeck(t *testing.T) {
	dir := t.TempDir()
	writeDeckFile(t, dir, "speech.cue", `
card: "rhyme-time": {
	rule_text: "All answers must rhyme"
}
card: "whisper": {
	rule_text:     "Everyone whispers"
	duration_type: "turn_based"
	turn_duration: 2
}
`)
	writeDeckFile(t, dir, "points.cue", `
card: "ace-high": {
	metadata: { points: 11 }
}
`)

	deck, errs := LoadDeck(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, deck)

	assert.Equal(t, 2, deck.FileCount)
	require.Len(t, deck.Cards, 3)
	// Deterministic ID order regardless of file layout.
	assert.Equal(t, "ace-high", deck.Cards[0].CardID)
	assert.Equal(t, "rhyme-time", deck.Cards[1].CardID)
	assert.Equal(t, "whisper", deck.Cards[2].CardID)

	found := deck.Lookup("whisper")
	require.NotNil(t, found)
	assert.Equal(t, 2, found.TurnDuration)
	assert.Nil(t, deck.Lookup("ghost"))
}

func TestLoadDeckCollectAll(t *testing.T) {
	dir := t.TempDir()
	writeDeckFile(t, dir, "deck.cue", `
card: "good": {
	rule_text: "Fine"
}
card: "bad-kind": {
	rule_text: "Broken"
	kind:      "sorcery"
}
card: "bad-scope": {
	rule_text: "Broken"
	scope:     "universe"
}
`)

	deck, errs := LoadDeck(dir, LoadModeCollectAll)
	require.NotNil(t, deck)
	assert.Len(t, errs, 2)
	require.Len(t, deck.Cards, 1)
	assert.Equal(t, "good", deck.Cards[0].CardID)
}

func TestLoadDeckFailFastStopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeDeckFile(t, dir, "deck.cue", `
card: "bad-kind": {
	rule_text: "Broken"
	kind:      "sorcery"
}
card: "bad-scope": {
	rule_text: "Broken"
	scope:     "universe"
}
`)

	_, errs := LoadDeck(dir, LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadDeckMissingDirectory(t *testing.T) {
	_, errs := LoadDeck(filepath.Join(t.TempDir(), "nope"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not found")
}

func TestLoadDeckNoCards(t *testing.T) {
	dir := t.TempDir()
	writeDeckFile(t, dir, "empty.cue", `other: 1`)

	_, errs := LoadDeck(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "card")
}

func TestDeckCardsFeedTheEngine(t *testing.T) {
	dir := t.TempDir()
	writeDeckFile(t, dir, "deck.cue", `
card: "left-hand": {
	rule_text: "Drink with your left hand"
	scope:     "player"
}
`)

	deck, errs := LoadDeck(dir, LoadModeFailFast)
	require.Empty(t, errs)

	card := deck.Lookup("left-hand")
	require.NotNil(t, card)
	r, err := rule.NewFromCard("r1", "alice", *card)
	require.NoError(t, err)
	assert.Equal(t, rule.ScopePlayer, r.Scope)
	assert.NoError(t, r.Validate())
}
