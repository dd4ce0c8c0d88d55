// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openfga/scientist/internal/build"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with SCIENTIST, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("SCIENTIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/scientist", "$HOME/.scientist", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   build.ProjectName,
		Short: "Run control and candidate code paths side by side and report where they disagree",
		Long: `Run control and candidate code paths side by side and report where they disagree.

Only the control's outcome is ever returned to the caller. Candidates are observed, compared
against the control and the results are handed to publishers for logging and metrics.`,
		SilenceUsage: true,
	}
}
