// Package env provides commands for inspecting environment configuration.
// These commands never touch the platform or the run database, so they work
// even on a box that is not fully set up yet.
package env

import (
	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/services"
)

// NewCmdEnv creates the env command group
func NewCmdEnv() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect environment configuration",
	}

	cmd.AddCommand(NewCmdEnvValidate())
	cmd.AddCommand(NewCmdEnvShow())

	return cmd
}

// configFromFlags builds an unvalidated configuration from the persistent
// CLI flags, so diagnostics can run against incomplete setups.
func configFromFlags(cmd *cobra.Command) (*services.Config, error) {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return nil, err
	}
	environment, err := cmd.Flags().GetString("environment")
	if err != nil {
		return nil, err
	}
	return services.NewConfigForCheck(dataDir, environment), nil
}
