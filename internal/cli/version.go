package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// VersionInfo is the JSON payload for the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			info := VersionInfo{Version: Version, GoVersion: runtime.Version()}
			if formatter.Format == "json" {
				return formatter.Success(info)
			}
			fmt.Fprintf(formatter.Writer, "houserules %s (%s)\n", info.Version, info.GoVersion)
			return nil
		},
	}
}
