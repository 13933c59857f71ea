package store

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Property: after any sequence of add/update/remove operations, every rule
// appears in exactly the index buckets implied by its current fields, and
// session stats agree with the live rule count.
func TestIndexConsistency_Property(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200

	owners := []string{"alice", "bob", "carol", ""}
	cards := []string{"card-a", "card-b", "card-c"}
	states := []rule.State{rule.StatePending, rule.StateActive, rule.StateSuspended}

	properties := gopter.NewProperties(params)
	properties.Property("indexes stay consistent under random op sequences", prop.ForAll(
		func(ops []int) bool {
			s := New(WithLimits(Limits{
				MaxRulesPerSession:   50,
				MaxRulesPerPlayer:    50,
				MaxHistoryPerSession: 200,
			}))
			const sessionID = "prop-game"
			var live []string
			nextID := 0

			for _, op := range ops {
				switch op % 4 {
				case 0: // add
					id := fmt.Sprintf("r%03d", nextID)
					nextID++
					r := testRule(id, owners[op%len(owners)], cards[op%len(cards)])
					if _, err := s.AddRule(sessionID, r); err == nil {
						live = append(live, id)
					}
				case 1: // change state
					if len(live) == 0 {
						continue
					}
					id := live[op%len(live)]
					st := states[op%len(states)]
					if _, err := s.UpdateRule(sessionID, id, Updates{State: &st}); err != nil {
						return false
					}
				case 2: // transfer ownership
					if len(live) == 0 {
						continue
					}
					id := live[op%len(live)]
					owner := owners[(op/4)%len(owners)]
					if _, err := s.UpdateRule(sessionID, id, Updates{OwnerID: &owner}); err != nil {
						return false
					}
				case 3: // remove
					if len(live) == 0 {
						continue
					}
					i := op % len(live)
					if !s.RemoveRule(sessionID, live[i], "manual") {
						return false
					}
					live = append(live[:i], live[i+1:]...)
				}
			}

			if issues := s.ValidateIndexes(sessionID); len(issues) != 0 {
				return false
			}
			stats := s.SessionStats(sessionID)
			if stats == nil {
				return len(live) == 0
			}
			return stats.TotalRules == len(live) && stats.TotalRules == len(s.AllRules(sessionID))
		},
		gen.SliceOf(gen.IntRange(0, 1_000_000)),
	))

	properties.TestingRun(t)
}
