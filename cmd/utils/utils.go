// Package utils provides utility functions for CLI commands in Shunt.
package utils

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/services"
)

// HandleCommandError logs the technical error, prints a user-friendly
// message, and hands the original error back so the command exits non-zero.
func HandleCommandError(cmd *cobra.Command, operation string, err error, context ...any) error {
	slog.Error("Command failed", append([]any{"operation", operation, "error", err}, context...)...)
	_ = output.FprintError(cmd, "Error: %s", services.FormatErrorForUser(err))
	return err
}
