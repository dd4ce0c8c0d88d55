package run

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// NewConfigCommand returns the command that prints the effective
// configuration after config.yaml, environment variables and flags are merged.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long:  "Print the effective configuration as YAML. It accepts the same flags as 'run'.",
		RunE:  printConfig,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	registerRunFlags(flags)

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}

func printConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}
