package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion and buildCommit are overridable via -ldflags, the same
// link-time injection the teacher uses for pkg/version.
var (
	buildVersion = "dev"
	buildCommit  = "none"
)

// NewVersionCommand prints scanforge's build version, grounded on the
// teacher's pkg/cli/version.go NewVersionCommand shape.
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", cliExecutable, buildVersion)
			if short {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", buildCommit)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version line, without the commit")
	return cmd
}
