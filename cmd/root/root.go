// Package root implements the command line interface for Shunt.
package root

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/deploy"
	"github.com/shunt-cd/shunt/cmd/env"
	"github.com/shunt-cd/shunt/cmd/history"
	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/cmd/status"
	"github.com/shunt-cd/shunt/cmd/verify"
	"github.com/shunt-cd/shunt/cmd/version"
	"github.com/shunt-cd/shunt/internal/app"
	"github.com/shunt-cd/shunt/logging"
	"github.com/shunt-cd/shunt/services"
)

var (
	config *services.Config
)

func Execute() {
	err := NewCmdRoot(services.GetDefaultDataDir()).Execute()
	if err != nil {
		os.Exit(1)
	}
}

// skipAppInit reports whether a command runs without the full application.
// The version command and the env subtree only read configuration, so they
// must work even when the database or encryption key is unavailable.
func skipAppInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "env":
			return true
		}
	}
	return false
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var dataDir string
	var environment string

	cmd := &cobra.Command{
		Use:   "shunt",
		Short: "Deployment orchestrator for the anime catalog on Railway",
		Long: `Shunt rolls out the anime catalog application to Railway: the Postgres
database first, then the FastAPI backend, then the Nginx frontend. Each
service is health-verified before the next one starts, and every rollout
is recorded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if skipAppInit(cmd) {
				output.InitColors(output.NoColor.IsSet())
				logging.InitLogging(logging.LogLevel.String())
				return
			}

			// Initialize configuration for CLI with data directory and
			// environment overrides
			var err error
			config, err = services.NewConfigForCLI(dataDir, environment)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !config.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true // --no-color flag overrides config
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := config.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			// Initialize application with config
			if err := app.InitializeWithConfig(config); err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
			}
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for the run history database")
	cmd.PersistentFlags().
		StringVarP(&environment, "environment", "e", "", "Target environment: staging or production (defaults to $ENVIRONMENT)")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(deploy.NewCmdDeploy())
	cmd.AddCommand(verify.NewCmdVerify())
	cmd.AddCommand(status.NewCmdStatus())
	cmd.AddCommand(history.NewCmdHistory())
	cmd.AddCommand(env.NewCmdEnv())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
