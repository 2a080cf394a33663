// Package history provides the history command for listing recorded rollouts.
package history

import (
	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/utils"
	"github.com/shunt-cd/shunt/internal/app"
)

// NewCmdHistory creates the history command
func NewCmdHistory() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded rollouts for the target environment",
		Long: `List rollouts recorded for the target environment, most recent first.
Each entry shows the overall outcome and the commit that was rolled out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Maximum number of rollouts to list")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	config := app.GetConfig()

	env, err := app.GetEnvironmentSource().Resolve(config.Environment)
	if err != nil {
		return utils.HandleCommandError(cmd, "resolving environment", err)
	}

	runs, err := app.GetRunStore().List(env.Name, limit)
	if err != nil {
		return utils.HandleCommandError(cmd, "listing rollouts", err, "environment", env.Name)
	}

	table, err := output.PrintRunList(runs)
	if err != nil {
		return err
	}
	return output.FprintPlain(cmd, "%s", table)
}
