package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/driftwood-games/houserules/internal/rule"
)

// Render serializes a result into the deterministic text form golden tests
// compare: the step trace, the session's lifecycle history, and the final
// state counts.
func Render(res *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", res.Name)

	buf.WriteString("trace:\n")
	for _, line := range res.Trace {
		fmt.Fprintf(&buf, "  %s\n", line)
	}

	buf.WriteString("history:\n")
	for _, ev := range res.History {
		from := string(ev.From)
		if from == "" {
			from = "none"
		}
		fmt.Fprintf(&buf, "  %s %s->%s %s\n", ev.RuleID, from, ev.To, ev.Reason)
	}

	buf.WriteString("stats:\n")
	if res.Stats != nil {
		fmt.Fprintf(&buf, "  total=%d\n", res.Stats.TotalRules)
		fmt.Fprintf(&buf, "  pending=%d\n", res.Stats.ByState[rule.StatePending])
		fmt.Fprintf(&buf, "  active=%d\n", res.Stats.ByState[rule.StateActive])
		fmt.Fprintf(&buf, "  suspended=%d\n", res.Stats.ByState[rule.StateSuspended])
	}

	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the rendered snapshot
// against testdata/golden/{scenario.Name}.golden. Regenerate fixtures with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	res, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Render(res))
	return res, nil
}
