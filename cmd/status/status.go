// Package status provides the status command for inspecting deployed services.
package status

import (
	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/utils"
	"github.com/shunt-cd/shunt/internal/app"
)

// NewCmdStatus creates the status command
func NewCmdStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the platform status of every service",
		Long: `Show the platform's view of each service's latest deployment in the target
environment, alongside the last recorded rollout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}

	return cmd
}

func runStatus(cmd *cobra.Command) error {
	config := app.GetConfig()

	env, err := app.GetEnvironmentSource().Resolve(config.Environment)
	if err != nil {
		return utils.HandleCommandError(cmd, "resolving environment", err)
	}

	report, err := app.GetOrchestrator().Status(cmd.Context(), env)
	if err != nil {
		return utils.HandleCommandError(cmd, "fetching status", err, "environment", env.Name)
	}

	table, err := output.PrintStatusReport(report)
	if err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "%s", table); err != nil {
		return err
	}

	if report.LastRun == nil {
		return output.FprintPlain(cmd, "No recorded rollout for %s yet.", env.Name)
	}

	if err := output.FprintPlain(cmd, "Last rollout:"); err != nil {
		return err
	}
	details, err := output.PrintRunDetails(report.LastRun, false)
	if err != nil {
		return err
	}
	return output.FprintPlain(cmd, "%s", details)
}
