// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"strings"

	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/services"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	// Check if colors should be enabled
	if color.NoColor || isColorDisabled {
		// Fallback to plain formatting if colors are not supported
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		// Enable colors
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled) and prints it
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	} else {
		// TODO: Print warnings and errors to stderr?
		return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
	}
}

// The Fprint helpers write formatted messages to a command's output stream,
// which tests can capture.

func Fprint(cmd *cobra.Command, kind color.Attribute, tmpl string, a ...any) error {
	return fprint(cmd, kind, tmpl, a...)
}

func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Plain, tmpl, a...)
}

func FprintSuccess(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Success, tmpl, a...)
}

func FprintWarning(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Warning, tmpl, a...)
}

func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Error, tmpl, a...)
}

func fprint(cmd *cobra.Command, kind color.Attribute, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(kind, tmpl, a...))
	return err
}

// RunStatusColor maps a run outcome to the color its summary line is printed
// with.
func RunStatusColor(status domain.RunStatus) color.Attribute {
	switch status {
	case domain.RunStatusSucceeded:
		return Success
	case domain.RunStatusWarning:
		return Warning
	case domain.RunStatusFailed:
		return Error
	default:
		return Plain
	}
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

func PrintRunDetails(run *domain.Run, short bool) (string, error) {
	data := [][]string{
		{"ID", run.ID.String()},
		{"Environment", run.Environment.String()},
		{"Application", run.AppName},
		{"Status", run.Status.String()},
	}

	if !short {
		data = append(
			data,
			[][]string{
				{"Commit", formatCommitDetails(run.CommitHash)},
				{"Branch", valueOrDash(run.Branch)},
				{"Started At", formatTime(run.CreatedAt)},
				{"Finished At", formatTime(run.FinishedAt)},
				{"Duration", formatDuration(run.Duration())},
				{"Warnings", formatStringList(run.Warnings)},
			}...,
		)
	}

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing run details table: %w", err)
	}
	return table, nil
}

// PrintRunResults renders the per-service outcome table of one run.
func PrintRunResults(run *domain.Run) (string, error) {
	header := []string{
		"Service",
		"Role",
		"Status",
		"Duration",
		"URL",
	}
	var data [][]string
	for _, result := range run.Results {
		data = append(data, []string{
			result.ServiceName,
			result.Role.String(),
			result.Status.String(),
			formatDuration(result.Duration()),
			valueOrDash(result.URL),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing run results table: %w", err)
	}

	return table, nil
}

func PrintRunList(runs []*domain.Run) (string, error) {
	if len(runs) == 0 {
		return PrintMessage(Plain, "No runs recorded."), nil
	}

	header := []string{
		"ID",
		"Environment",
		"Status",
		"Commit",
		"Started At",
		"Duration",
	}
	var data [][]string
	for _, run := range runs {
		data = append(data, []string{
			run.ID.String(),
			run.Environment.String(),
			run.Status.String(),
			formatCommitHash(run.CommitHash),
			formatTime(run.CreatedAt),
			formatDuration(run.Duration()),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing run list table: %w", err)
	}

	return table, nil
}

func PrintVerificationReport(report *services.VerificationReport) (string, error) {
	if len(report.Checks) == 0 {
		return PrintMessage(Plain, "No public services to verify."), nil
	}

	header := []string{
		"Service",
		"Check",
		"Result",
		"Detail",
	}
	var data [][]string
	for _, check := range report.Checks {
		result := "ok"
		switch {
		case !check.Healthy && check.Optional:
			result = "warn"
		case !check.Healthy:
			result = "unhealthy"
		}
		data = append(data, []string{
			check.ServiceName,
			check.Check,
			result,
			valueOrDash(truncateString(check.Detail, 72)),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing verification table: %w", err)
	}

	return table, nil
}

func PrintStatusReport(report *services.StatusReport) (string, error) {
	header := []string{
		"Service",
		"Role",
		"Status",
	}
	var data [][]string
	for _, svc := range report.Services {
		data = append(data, []string{
			svc.ServiceName,
			svc.Role.String(),
			svc.Status,
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing status table: %w", err)
	}

	return table, nil
}

// PrintEnvironmentDetails renders a resolved environment as a key-value
// table. Only derived, non-secret fields are shown.
func PrintEnvironmentDetails(env *domain.Environment) (string, error) {
	data := [][]string{
		{"Environment", env.Name.String()},
		{"Project ID", env.ProjectID},
		{"Backend URL", valueOrDash(env.BackendURL)},
		{"Frontend URL", valueOrDash(env.FrontendURL)},
		{"CORS Origins", formatStringList(env.CORSOrigins)},
		{"CORS Max Age", fmt.Sprintf("%ds", env.CORSMaxAge)},
		{"Variables", fmt.Sprintf("%d resolved", len(env.Values))},
	}

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing environment details table: %w", err)
	}
	return table, nil
}

// PrintCheckResults renders environment configuration checks. Sensitive
// values are masked before they reach the terminal.
func PrintCheckResults(results []services.CheckResult) (string, error) {
	header := []string{
		"Variable",
		"Result",
		"Value",
		"Detail",
	}
	var data [][]string
	for _, check := range results {
		result := "ok"
		if !check.OK {
			if check.Required {
				result = "missing"
			} else {
				result = "unset"
			}
		}
		value := check.Value
		if isSensitiveName(check.Name) {
			value = maskSensitiveValue(value)
		}
		data = append(data, []string{
			check.Name,
			result,
			valueOrDash(truncateString(value, 48)),
			valueOrDash(check.Detail),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing check results table: %w", err)
	}

	return table, nil
}

// CLI flag for disabling color output

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}
