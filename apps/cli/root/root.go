package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the fleet migrator CLI. Subcommands
// (bootstrap, migrate) are attached here.
var rootCmd = &cobra.Command{
	Use:           "fleet-migrator",
	Short:         "Tenant fleet migration CLI",
	Long:          "Operator utilities for the tenant fleet: bootstrap the control plane, inspect and apply schema migrations.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
