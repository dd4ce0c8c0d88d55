package main

import (
	"os"

	"github.com/openfga/scientist/cmd"
	"github.com/openfga/scientist/cmd/run"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	runCmd := run.NewRunCommand()
	rootCmd.AddCommand(runCmd)

	configCmd := run.NewConfigCommand()
	rootCmd.AddCommand(configCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
