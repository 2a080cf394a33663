package env

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/services"
)

// NewCmdEnvValidate creates the env validate command
func NewCmdEnvValidate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate that the target environment is configured for rollouts",
		Long: `Check the configuration a rollout to the target environment would use and
report each required and optional value. Secrets are masked. The command
exits non-zero when a required value is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	resolver := services.NewEnvironmentResolver(config)
	results := resolver.Check(config.Environment)

	table, err := output.PrintCheckResults(results)
	if err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "%s", table); err != nil {
		return err
	}

	missing := 0
	for _, result := range results {
		if result.Required && !result.OK {
			missing++
		}
	}
	if missing > 0 {
		_ = output.FprintError(cmd, "%d required value(s) missing", missing)
		return fmt.Errorf("environment validation failed: %d required value(s) missing", missing)
	}

	return output.FprintSuccess(cmd, "Environment %s is ready for rollouts.", config.Environment)
}
