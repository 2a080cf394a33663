// Package deploy implements the rollout commands for Shunt.
package deploy

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/utils"
	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/internal/app"
	"github.com/shunt-cd/shunt/services"
)

func NewCmdDeploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [database|backend|frontend]",
		Short: "Deploy the application to an environment",
		Long: `Deploy every service in dependency order (database, backend, frontend),
or a single service when its role is given. Each service is created if
missing, configured, deployed, and health-verified before the next one
starts. A failure halts the rollout immediately.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"database", "backend", "frontend"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, args)
		},
	}

	cmd.Flags().Bool("strict-smoke", false, "Treat final smoke test failures as rollout failures")
	cmd.Flags().Bool("skip-smoke", false, "Skip the final smoke test after a full rollout")
	cmd.Flags().String("report-file", "", "Write a rollout report to this file")
	cmd.Flags().String("report-format", "json", "Report format: json or markdown")
	return cmd
}

func runDeploy(cmd *cobra.Command, args []string) error {
	config := app.GetConfig()
	if strict, _ := cmd.Flags().GetBool("strict-smoke"); strict {
		config.StrictSmoke = true
	}
	if skip, _ := cmd.Flags().GetBool("skip-smoke"); skip {
		config.SkipSmoke = true
	}

	reportFile, _ := cmd.Flags().GetString("report-file")
	reportFormat, _ := cmd.Flags().GetString("report-format")
	if reportFile != "" && reportFormat != "json" && reportFormat != "markdown" {
		return utils.HandleCommandError(cmd, "parsing flags",
			fmt.Errorf("unsupported report format %q (want json or markdown)", reportFormat))
	}

	env, err := app.GetEnvironmentSource().Resolve(config.Environment)
	if err != nil {
		return utils.HandleCommandError(cmd, "resolving environment", err)
	}

	orchestrator := app.GetOrchestrator()

	var run *domain.Run
	if len(args) == 1 {
		role, roleErr := domain.ParseServiceRole(args[0])
		if roleErr != nil {
			return utils.HandleCommandError(cmd, "parsing service role", roleErr)
		}
		if err := output.FprintPlain(cmd, "Deploying %s to %s", role, env.Name); err != nil {
			return err
		}
		run, err = orchestrator.DeployOne(cmd.Context(), env, role)
	} else {
		if err := output.FprintPlain(cmd, "Deploying the anime catalog to %s", env.Name); err != nil {
			return err
		}
		run, err = orchestrator.DeployAll(cmd.Context(), env)
	}

	// A halted rollout still carries results for everything before the
	// failure; show them either way.
	if run != nil {
		if printErr := printRun(cmd, run); printErr != nil {
			return printErr
		}
		if reportFile != "" {
			if reportErr := writeReport(run, reportFile, reportFormat); reportErr != nil {
				return utils.HandleCommandError(cmd, "writing report", reportErr, "file", reportFile)
			}
			if err := output.FprintPlain(cmd, "Report written to %s", reportFile); err != nil {
				return err
			}
		}
	}

	if err != nil {
		return utils.HandleCommandError(cmd, "deploying", err, "environment", env.Name)
	}
	return nil
}

func writeReport(run *domain.Run, path, format string) error {
	var buf bytes.Buffer
	var err error
	switch format {
	case "markdown":
		err = services.WriteMarkdown(&buf, run)
	default:
		err = services.WriteJSON(&buf, run)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func printRun(cmd *cobra.Command, run *domain.Run) error {
	if run.CommitHash != "" {
		msg := "Rolled out commit " + run.CommitHash
		if run.Branch != "" {
			msg += " on " + run.Branch
		}
		if err := output.FprintPlain(cmd, "%s", msg); err != nil {
			return err
		}
	}

	table, err := output.PrintRunResults(run)
	if err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "%s", table); err != nil {
		return err
	}

	for _, result := range run.Results {
		if result.Status.Terminal() && result.Detail != "" {
			if err := output.FprintError(cmd, "%s: %s", result.ServiceName, result.Detail); err != nil {
				return err
			}
		}
	}
	for _, warning := range run.Warnings {
		if err := output.FprintWarning(cmd, "Warning: %s", warning); err != nil {
			return err
		}
	}

	switch run.Status {
	case domain.RunStatusSucceeded:
		return output.FprintSuccess(cmd, "Rollout succeeded in %s", run.Duration().Round(time.Second))
	case domain.RunStatusWarning:
		return output.FprintWarning(cmd, "Rollout succeeded with warnings in %s", run.Duration().Round(time.Second))
	default:
		return nil
	}
}
