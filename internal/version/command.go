package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the `version` subcommand. With --short it prints only the semantic version.
func NewCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the engine version, commit hash, build timestamp and Go runtime. Build metadata is injected through ldflags.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			line := Full()
			if short {
				line = Short()
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the semantic version")

	return cmd
}
