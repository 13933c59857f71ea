// Package harness runs YAML-defined game scenarios against a fresh engine
// with deterministic IDs and a fixed clock, producing a step-by-step trace
// plus the final history and statistics. Golden tests compare the rendered
// snapshot against testdata fixtures.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Scenario defines one scripted game session.
type Scenario struct {
	// Name uniquely identifies the scenario; golden fixtures use it as the
	// file name.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Players lists the participants, for documentation.
	Players []string `yaml:"players,omitempty"`

	// Deck optionally names a CUE deck directory to compile cards from.
	Deck string `yaml:"deck,omitempty"`

	// Cards defines inline cards keyed by card ID. Inline cards shadow
	// deck cards with the same ID.
	Cards map[string]CardSpec `yaml:"cards,omitempty"`

	// Steps is the scripted flow.
	Steps []Step `yaml:"steps"`
}

// CardSpec is the YAML form of a card. A card with empty rule_text carries
// no rule.
type CardSpec struct {
	RuleText          string         `yaml:"rule_text,omitempty"`
	Kind              string         `yaml:"kind,omitempty"`
	DurationType      string         `yaml:"duration_type,omitempty"`
	TurnDuration      int            `yaml:"turn_duration,omitempty"`
	TriggerType       string         `yaml:"trigger_type,omitempty"`
	Scope             string         `yaml:"scope,omitempty"`
	Priority          int            `yaml:"priority,omitempty"`
	RemovalConditions []string       `yaml:"removal_conditions,omitempty"`
	Stacking          string         `yaml:"stacking_behavior,omitempty"`
	Metadata          map[string]any `yaml:"metadata,omitempty"`
}

// toCard converts the spec to the engine's card payload.
func (c CardSpec) toCard(cardID string) (rule.CardData, error) {
	card := rule.CardData{
		CardID:       cardID,
		RuleText:     c.RuleText,
		HasRule:      c.RuleText != "",
		TurnDuration: c.TurnDuration,
		Priority:     c.Priority,
		Metadata:     c.Metadata,
	}

	var err error
	if c.Kind != "" {
		if card.Kind, err = rule.ParseKind(c.Kind); err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
	}
	if c.DurationType != "" {
		if card.DurationType, err = rule.ParseDurationType(c.DurationType); err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
	}
	if c.TriggerType != "" {
		if card.TriggerType, err = rule.ParseTriggerType(c.TriggerType); err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
	}
	if c.Scope != "" {
		if card.Scope, err = rule.ParseScope(c.Scope); err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
	}
	if c.Stacking != "" {
		if card.Stacking, err = rule.ParseStackingBehavior(c.Stacking); err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
	}
	for _, raw := range c.RemovalConditions {
		cond, err := rule.ParseRemovalCondition(raw)
		if err != nil {
			return card, fmt.Errorf("card %s: %w", cardID, err)
		}
		card.RemovalConditions = append(card.RemovalConditions, cond)
	}
	return card, nil
}

// Step is one scripted action. Exactly one field must be set.
type Step struct {
	Draw     *DrawStep     `yaml:"draw,omitempty"`
	Advance  *AdvanceStep  `yaml:"advance,omitempty"`
	Callout  *CalloutStep  `yaml:"callout,omitempty"`
	Transfer *TransferStep `yaml:"transfer,omitempty"`
	Suspend  *SuspendStep  `yaml:"suspend,omitempty"`
	Resume   *ResumeStep   `yaml:"resume,omitempty"`
	Expect   *ExpectStep   `yaml:"expect,omitempty"`
}

// DrawStep draws a card for a player at the current turn.
type DrawStep struct {
	Player string `yaml:"player"`
	Card   string `yaml:"card"`
}

// AdvanceStep moves the game to the given turn and sweeps turn-based
// expirations.
type AdvanceStep struct {
	Turn int `yaml:"turn"`
}

// CalloutStep applies a successful callout. Card optionally pins the callout
// to the rule created from that card.
type CalloutStep struct {
	Target string `yaml:"target"`
	Caller string `yaml:"caller"`
	Card   string `yaml:"card,omitempty"`
}

// TransferStep moves a card between players.
type TransferStep struct {
	Card string `yaml:"card"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SuspendStep suspends the rule created from the named card.
type SuspendStep struct {
	Card   string `yaml:"card"`
	Reason string `yaml:"reason,omitempty"`
}

// ResumeStep resumes the rule created from the named card.
type ResumeStep struct {
	Card string `yaml:"card"`
}

// ExpectStep asserts on the session. Active checks the live active-rule
// count; Gone checks that no live rule remains for the card.
type ExpectStep struct {
	Active *int   `yaml:"active,omitempty"`
	Gone   string `yaml:"gone,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file. Unknown fields are
// rejected so a typoed key fails loudly instead of silently skipping a step.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cards) == 0 && s.Deck == "" {
		return fmt.Errorf("cards or deck is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Draw != nil {
			set++
			if step.Draw.Player == "" || step.Draw.Card == "" {
				return fmt.Errorf("steps[%d].draw: player and card are required", i)
			}
		}
		if step.Advance != nil {
			set++
			if step.Advance.Turn <= 0 {
				return fmt.Errorf("steps[%d].advance: turn must be positive", i)
			}
		}
		if step.Callout != nil {
			set++
			if step.Callout.Target == "" || step.Callout.Caller == "" {
				return fmt.Errorf("steps[%d].callout: target and caller are required", i)
			}
		}
		if step.Transfer != nil {
			set++
			if step.Transfer.Card == "" || step.Transfer.From == "" || step.Transfer.To == "" {
				return fmt.Errorf("steps[%d].transfer: card, from, and to are required", i)
			}
		}
		if step.Suspend != nil {
			set++
			if step.Suspend.Card == "" {
				return fmt.Errorf("steps[%d].suspend: card is required", i)
			}
		}
		if step.Resume != nil {
			set++
			if step.Resume.Card == "" {
				return fmt.Errorf("steps[%d].resume: card is required", i)
			}
		}
		if step.Expect != nil {
			set++
			if step.Expect.Active == nil && step.Expect.Gone == "" {
				return fmt.Errorf("steps[%d].expect: active or gone is required", i)
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, found %d", i, set)
		}
	}
	return nil
}
