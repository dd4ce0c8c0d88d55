package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfga/scientist/internal/build"
)

// NewVersionCommand returns the command to get the scientist version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the scientist version",
		Long:  "Return the scientist version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s date %s commit id %s\n", build.ProjectName, build.Version, build.Date, build.Commit)
	return err
}
