package env

import (
	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/utils"
	"github.com/shunt-cd/shunt/services"
)

// NewCmdEnvShow creates the env show command
func NewCmdEnvShow() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved target environment",
		Long: `Resolve the target environment the way a rollout would and show the
derived values: project, known service URLs and allowed browser origins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd)
		},
	}

	return cmd
}

func runShow(cmd *cobra.Command) error {
	config, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	resolver := services.NewEnvironmentResolver(config)
	env, err := resolver.Resolve(config.Environment)
	if err != nil {
		return utils.HandleCommandError(cmd, "resolving environment", err)
	}

	table, err := output.PrintEnvironmentDetails(env)
	if err != nil {
		return err
	}
	return output.FprintPlain(cmd, "%s", table)
}
