// Package cardspec compiles CUE card and deck definitions into the plain
// CardData payloads the engine accepts. Decks are authored as .cue files;
// every enum field is validated at compile time, so a bad deck fails here
// instead of mid-game.
package cardspec

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/driftwood-games/houserules/internal/rule"
)

// CompileCard parses one CUE card struct into CardData.
//
// The value should be the card struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`card: "rhyme-time": { rule_text: "..." }`)
//	card, err := CompileCard(v.LookupPath(cue.ParsePath(`card."rhyme-time"`)))
//
// The card ID is taken from the struct label. Cards without a rule_text
// field compile to a payload with HasRule false (point cards, blanks).
func CompileCard(v cue.Value) (*rule.CardData, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	card := &rule.CardData{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		sel := labels[len(labels)-1]
		if sel.IsString() {
			card.CardID = sel.Unquoted()
		} else {
			card.CardID = sel.String()
		}
	}
	if card.CardID == "" {
		return nil, &CompileError{
			Field:   "card",
			Message: "card id label is required",
			Pos:     v.Pos(),
		}
	}

	textVal := v.LookupPath(cue.ParsePath("rule_text"))
	if !textVal.Exists() {
		return card, nil
	}
	text, err := textVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	card.RuleText = text
	card.HasRule = true

	if err := parseEnums(v, card); err != nil {
		return nil, err
	}

	if durVal := v.LookupPath(cue.ParsePath("turn_duration")); durVal.Exists() {
		dur, err := durVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		card.TurnDuration = int(dur)
	}

	if prioVal := v.LookupPath(cue.ParsePath("priority")); prioVal.Exists() {
		prio, err := prioVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		card.Priority = int(prio)
	}

	if remVal := v.LookupPath(cue.ParsePath("removal_conditions")); remVal.Exists() {
		iter, err := remVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			raw, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			cond, perr := rule.ParseRemovalCondition(raw)
			if perr != nil {
				return nil, &CompileError{
					Field:   "removal_conditions",
					Message: perr.Error(),
					Pos:     iter.Value().Pos(),
				}
			}
			card.RemovalConditions = append(card.RemovalConditions, cond)
		}
	}

	if metaVal := v.LookupPath(cue.ParsePath("metadata")); metaVal.Exists() {
		var meta map[string]any
		if err := metaVal.Decode(&meta); err != nil {
			return nil, formatCUEError(err)
		}
		card.Metadata = meta
	}

	return card, nil
}

// parseEnums reads and validates the string-valued policy fields. Each is
// optional; absent fields keep the engine's defaults.
func parseEnums(v cue.Value, card *rule.CardData) error {
	read := func(field string) (string, bool, error) {
		fv := v.LookupPath(cue.ParsePath(field))
		if !fv.Exists() {
			return "", false, nil
		}
		s, err := fv.String()
		if err != nil {
			return "", false, formatCUEError(err)
		}
		return s, true, nil
	}
	fail := func(field string, err error) error {
		return &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.LookupPath(cue.ParsePath(field)).Pos(),
		}
	}

	if raw, ok, err := read("kind"); err != nil {
		return err
	} else if ok {
		k, perr := rule.ParseKind(raw)
		if perr != nil {
			return fail("kind", perr)
		}
		card.Kind = k
	}

	if raw, ok, err := read("duration_type"); err != nil {
		return err
	} else if ok {
		d, perr := rule.ParseDurationType(raw)
		if perr != nil {
			return fail("duration_type", perr)
		}
		card.DurationType = d
	}

	if raw, ok, err := read("trigger_type"); err != nil {
		return err
	} else if ok {
		tr, perr := rule.ParseTriggerType(raw)
		if perr != nil {
			return fail("trigger_type", perr)
		}
		card.TriggerType = tr
	}

	if raw, ok, err := read("scope"); err != nil {
		return err
	} else if ok {
		sc, perr := rule.ParseScope(raw)
		if perr != nil {
			return fail("scope", perr)
		}
		card.Scope = sc
	}

	if raw, ok, err := read("stacking_behavior"); err != nil {
		return err
	} else if ok {
		st, perr := rule.ParseStackingBehavior(raw)
		if perr != nil {
			return fail("stacking_behavior", perr)
		}
		card.Stacking = st
	}

	return nil
}

// CompileError is a card compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
