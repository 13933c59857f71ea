package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftwood-games/houserules/internal/harness"
)

// SimulateResult is the JSON payload for a simulate run.
type SimulateResult struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Trace    []string `json:"trace"`
	Failures []string `json:"failures,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scripted game scenario and print the trace",
		Long: `Run a YAML scenario against a fresh rule engine with deterministic
rule IDs and a fixed clock, printing the step trace, lifecycle history,
and final state. Exits 1 when an expect step fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, args[0], cmd)
		},
	}
}

func runSimulate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	formatter.VerboseLog("loaded scenario %s with %d steps", scenario.Name, len(scenario.Steps))

	result, err := harness.RunWithOptions(scenario, cfg.EngineOptions())
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		payload := SimulateResult{
			Scenario: result.Name,
			Passed:   result.Passed(),
			Trace:    result.Trace,
			Failures: result.Failures,
		}
		if err := formatter.Success(payload); err != nil {
			return err
		}
	} else {
		fmt.Fprint(formatter.Writer, string(harness.Render(result)))
	}

	if !result.Passed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("scenario %s failed %d expectation(s)", result.Name, len(result.Failures)))
	}
	return nil
}
