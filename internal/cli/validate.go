package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftwood-games/houserules/internal/cardspec"
)

// ValidationResult is the JSON payload for a validate run.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Cards     int      `json:"cards"`
	FileCount int      `json:"file_count"`
	Errors    []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <deck-dir>",
		Short: "Compile a CUE card deck and report every error",
		Long: `Compile all .cue card definitions in a directory, validating enum
fields and rule payloads. All errors are collected and reported; a valid
deck is one the engine will accept every card from.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, deckDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	deck, errs := cardspec.LoadDeck(deckDir, cardspec.LoadModeCollectAll)
	if deck == nil {
		msg := "deck load failed"
		if len(errs) > 0 {
			msg = errs[0].Error()
		}
		_ = formatter.Error(msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	formatter.VerboseLog("found %d CUE file(s) in %s", deck.FileCount, deckDir)

	result := ValidationResult{
		Valid:     len(errs) == 0,
		Cards:     len(deck.Cards),
		FileCount: deck.FileCount,
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, err.Error())
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(formatter.Writer, "deck valid: %d card(s) in %d file(s)\n", result.Cards, result.FileCount)
	} else {
		fmt.Fprintf(formatter.Writer, "deck invalid: %d error(s)\n", len(result.Errors))
		for _, msg := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  %s\n", msg)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("deck validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}
