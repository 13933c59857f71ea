package harness

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driftwood-games/houserules/internal/cardspec"
	"github.com/driftwood-games/houserules/internal/engine"
	"github.com/driftwood-games/houserules/internal/lifecycle"
	"github.com/driftwood-games/houserules/internal/query"
	"github.com/driftwood-games/houserules/internal/rule"
)

const sessionID = "scenario"

// fixedNow pins the engine clock so activation timestamps never vary
// between runs.
var fixedNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// Result is the outcome of one scenario run.
type Result struct {
	Name    string
	Trace   []string
	History []rule.LifecycleEvent
	Stats   *query.Statistics

	// Failures collects failed expect steps. Empty means the scenario
	// passed.
	Failures []string
}

// Passed reports whether every expect step held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

type runner struct {
	engine *engine.Engine
	deck   map[string]rule.CardData
	turn   int
	result *Result
}

// Run executes the scenario against a fresh engine with deterministic rule
// IDs and a fixed clock. Scripting errors (unknown cards, illegal
// transitions) abort the run; failed expectations do not, they are recorded
// in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(scenario, engine.Options{})
}

// RunWithOptions runs the scenario on an engine built from opts. The ID
// generator and clock are always replaced with deterministic ones; limits
// and cache settings pass through.
func RunWithOptions(scenario *Scenario, opts engine.Options) (*Result, error) {
	ids := make([]string, 0, 64)
	for i := 1; i <= 64; i++ {
		ids = append(ids, fmt.Sprintf("rule-%03d", i))
	}
	opts.IDGenerator = rule.NewFixedGenerator(ids...)
	opts.Clock = func() time.Time { return fixedNow }

	eng := engine.New(opts)
	eng.InitializeSession(sessionID)

	deck := make(map[string]rule.CardData)
	if scenario.Deck != "" {
		compiled, errs := cardspec.LoadDeck(scenario.Deck, cardspec.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load deck %s: %w", scenario.Deck, errs[0])
		}
		for _, card := range compiled.Cards {
			deck[card.CardID] = card
		}
	}
	for id, spec := range scenario.Cards {
		card, err := spec.toCard(id)
		if err != nil {
			return nil, err
		}
		deck[id] = card
	}

	r := &runner{
		engine: eng,
		deck:   deck,
		turn:   1,
		result: &Result{Name: scenario.Name},
	}

	for i, step := range scenario.Steps {
		if err := r.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	r.result.History = eng.History(sessionID)
	r.result.Stats = eng.Statistics(sessionID)
	return r.result, nil
}

func (r *runner) execute(step Step) error {
	switch {
	case step.Draw != nil:
		return r.draw(*step.Draw)
	case step.Advance != nil:
		return r.advance(*step.Advance)
	case step.Callout != nil:
		return r.callout(*step.Callout)
	case step.Transfer != nil:
		return r.transfer(*step.Transfer)
	case step.Suspend != nil:
		return r.suspend(*step.Suspend)
	case step.Resume != nil:
		return r.resume(*step.Resume)
	case step.Expect != nil:
		return r.expect(*step.Expect)
	default:
		return fmt.Errorf("empty step")
	}
}

func (r *runner) trace(format string, args ...any) {
	r.result.Trace = append(r.result.Trace, fmt.Sprintf(format, args...))
}

// ruleForCard resolves the live rule created from cardID, lowest rule ID
// first when a card produced several.
func (r *runner) ruleForCard(cardID string) *rule.ActiveRule {
	res := r.engine.Query(sessionID, query.Filter{CardID: &cardID}, false)
	if len(res.Rules) == 0 {
		return nil
	}
	return res.Rules[0]
}

func (r *runner) draw(step DrawStep) error {
	card, ok := r.deck[step.Card]
	if !ok {
		return fmt.Errorf("draw: unknown card %q", step.Card)
	}

	drawn, err := r.engine.HandleCardDrawn(sessionID, step.Player, card, lifecycle.Context{CurrentTurn: r.turn})
	if err != nil {
		return fmt.Errorf("draw %s for %s: %w", step.Card, step.Player, err)
	}
	if drawn == nil {
		r.trace("draw player=%s card=%s rule=none", step.Player, step.Card)
		return nil
	}
	r.trace("draw player=%s card=%s rule=%s state=%s", step.Player, step.Card, drawn.ID, drawn.State)
	return nil
}

func (r *runner) advance(step AdvanceStep) error {
	r.turn = step.Turn
	expired := r.engine.ProcessTurnExpirations(sessionID, r.turn)
	r.trace("advance turn=%d expired=%s", r.turn, idList(expired))
	return nil
}

func (r *runner) callout(step CalloutStep) error {
	ruleID := ""
	if step.Card != "" {
		target := r.ruleForCard(step.Card)
		if target == nil {
			return fmt.Errorf("callout: no live rule for card %q", step.Card)
		}
		ruleID = target.ID
	}
	removed, err := r.engine.HandleCalloutSuccess(sessionID, step.Target, step.Caller, ruleID)
	if err != nil {
		return fmt.Errorf("callout against %s: %w", step.Target, err)
	}
	r.trace("callout target=%s caller=%s removed=%s", step.Target, step.Caller, idList(removed))
	return nil
}

func (r *runner) transfer(step TransferStep) error {
	moved, err := r.engine.HandleCardTransfer(sessionID, step.From, step.To, step.Card)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", step.Card, err)
	}
	r.trace("transfer card=%s from=%s to=%s reassigned=%s", step.Card, step.From, step.To, idList(moved))
	return nil
}

func (r *runner) suspend(step SuspendStep) error {
	target := r.ruleForCard(step.Card)
	if target == nil {
		return fmt.Errorf("suspend: no live rule for card %q", step.Card)
	}
	suspended, err := r.engine.SuspendRule(sessionID, target.ID, step.Reason)
	if err != nil {
		return fmt.Errorf("suspend %s: %w", target.ID, err)
	}
	r.trace("suspend card=%s rule=%s state=%s", step.Card, suspended.ID, suspended.State)
	return nil
}

func (r *runner) resume(step ResumeStep) error {
	target := r.ruleForCard(step.Card)
	if target == nil {
		return fmt.Errorf("resume: no live rule for card %q", step.Card)
	}
	resumed, err := r.engine.ResumeRule(sessionID, target.ID)
	if err != nil {
		return fmt.Errorf("resume %s: %w", target.ID, err)
	}
	r.trace("resume card=%s rule=%s state=%s", step.Card, resumed.ID, resumed.State)
	return nil
}

func (r *runner) expect(step ExpectStep) error {
	if step.Active != nil {
		got := len(r.engine.ActiveRules(sessionID))
		if got == *step.Active {
			r.trace("expect active=%d ok", *step.Active)
		} else {
			r.trace("expect active=%d got=%d FAIL", *step.Active, got)
			r.result.Failures = append(r.result.Failures,
				fmt.Sprintf("expected %d active rules, found %d", *step.Active, got))
		}
	}
	if step.Gone != "" {
		if r.ruleForCard(step.Gone) == nil {
			r.trace("expect gone=%s ok", step.Gone)
		} else {
			r.trace("expect gone=%s still-present FAIL", step.Gone)
			r.result.Failures = append(r.result.Failures,
				fmt.Sprintf("expected no live rule for card %s", step.Gone))
		}
	}
	return nil
}

// idList renders rule IDs as a stable bracketed list.
func idList(rules []*rule.ActiveRule) string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return "[" + strings.Join(ids, ",") + "]"
}
