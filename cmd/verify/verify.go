// Package verify implements the environment verification command for Shunt.
package verify

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/utils"
	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/internal/app"
	"github.com/shunt-cd/shunt/services"
)

func NewCmdVerify() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the health of a deployed environment",
		Long: `Probe every public service of the environment once: the backend's health
endpoint must report a connected database, and the frontend must serve the
application. The backend's list and docs endpoints are exercised as well;
missing docs degrade to a warning.

An unhealthy service is reported, not retried; the command exits non-zero
when any required check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd)
		},
	}

	cmd.Flags().Bool("crud", false, "Additionally run a create/read/update/delete round trip against the backend")
	cmd.Flags().Bool("json", false, "Print the verification report as JSON instead of a table")
	cmd.Flags().Int("attempts", 0, "Override the number of health probe attempts per service")
	cmd.Flags().Duration("interval", 0, "Override the wait between health probe attempts")
	return cmd
}

func runVerify(cmd *cobra.Command) error {
	config := app.GetConfig()
	if cmd.Flags().Changed("attempts") {
		if attempts, _ := cmd.Flags().GetInt("attempts"); attempts > 0 {
			config.HealthMaxAttempts = attempts
		}
	}
	if cmd.Flags().Changed("interval") {
		if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
			config.HealthInterval = interval
		}
	}

	env, err := app.GetEnvironmentSource().Resolve(config.Environment)
	if err != nil {
		return utils.HandleCommandError(cmd, "resolving environment", err)
	}

	withCRUD, _ := cmd.Flags().GetBool("crud")

	report, err := app.GetOrchestrator().Verify(cmd.Context(), env, withCRUD)
	if err != nil {
		return utils.HandleCommandError(cmd, "verifying environment", err, "environment", env.Name)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(cmd, report, env.Name)
	}

	table, err := output.PrintVerificationReport(report)
	if err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "%s", table); err != nil {
		return err
	}

	for _, check := range report.Checks {
		if !check.Healthy && check.Optional {
			if err := output.FprintWarning(cmd, "Warning: %s %s: %s", check.ServiceName, check.Check, check.Detail); err != nil {
				return err
			}
		}
	}

	if !report.Healthy() {
		failed := requiredFailures(report)
		if err := output.FprintError(cmd, "%d of %d checks failed", failed, len(report.Checks)); err != nil {
			return err
		}
		return fmt.Errorf("verification of %s failed: %d of %d checks failed", env.Name, failed, len(report.Checks))
	}

	return output.FprintSuccess(cmd, "%s is healthy", env.Name)
}

func printJSON(cmd *cobra.Command, report *services.VerificationReport, envName domain.EnvironmentName) error {
	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(encoded)); err != nil {
		return err
	}
	if !report.Healthy() {
		return fmt.Errorf("verification of %s failed: %d of %d checks failed",
			envName, requiredFailures(report), len(report.Checks))
	}
	return nil
}

func requiredFailures(report *services.VerificationReport) int {
	failed := 0
	for _, check := range report.Checks {
		if !check.Healthy && !check.Optional {
			failed++
		}
	}
	return failed
}
