package services

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shunt-cd/shunt/domain"
)

// RunReport is the export shape of a recorded rollout, written for CI
// pipelines and post-mortems. Connection URLs carry database credentials and
// are deliberately absent.
type RunReport struct {
	RunID         string          `json:"run_id"`
	Environment   string          `json:"environment"`
	App           string          `json:"app"`
	CommitSHA     string          `json:"commit_sha,omitempty"`
	Branch        string          `json:"branch,omitempty"`
	OverallStatus string          `json:"overall_status"`
	StartedAt     string          `json:"started_at,omitempty"`
	FinishedAt    string          `json:"finished_at,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	Services      []ServiceReport `json:"services"`
	Warnings      []string        `json:"warnings,omitempty"`
}

// ServiceReport is one service's slice of a RunReport.
type ServiceReport struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// BuildRunReport flattens a run into its export shape.
func BuildRunReport(run *domain.Run) *RunReport {
	report := &RunReport{
		RunID:         run.ID.String(),
		Environment:   run.Environment.String(),
		App:           run.AppName,
		CommitSHA:     run.CommitHash,
		Branch:        run.Branch,
		OverallStatus: run.Status.String(),
		StartedAt:     formatTimestamp(run.CreatedAt),
		FinishedAt:    formatTimestamp(run.FinishedAt),
		DurationMS:    run.Duration().Milliseconds(),
		Services:      []ServiceReport{},
		Warnings:      run.Warnings,
	}

	for _, result := range run.Results {
		svc := ServiceReport{
			Name:       result.ServiceName,
			Role:       result.Role.String(),
			Status:     result.Status.String(),
			URL:        result.URL,
			DurationMS: result.Duration().Milliseconds(),
		}
		if result.Status.Terminal() {
			svc.Error = result.Detail
		}
		report.Services = append(report.Services, svc)
	}
	return report
}

// WriteJSON writes the run's report as indented JSON.
func WriteJSON(w io.Writer, run *domain.Run) error {
	encoded, err := json.MarshalIndent(BuildRunReport(run), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

// WriteMarkdown writes the run's report as a human-readable markdown summary,
// suitable for pasting into a pull request or CI job summary.
func WriteMarkdown(w io.Writer, run *domain.Run) error {
	report := BuildRunReport(run)

	var b strings.Builder
	b.WriteString("# 🚀 Deployment Report\n\n")
	fmt.Fprintf(&b, "## Overall Status: %s %s\n\n", runStatusEmoji(run.Status), strings.ToUpper(report.OverallStatus))

	b.WriteString("### Deployment Information\n")
	fmt.Fprintf(&b, "- **Environment**: %s\n", report.Environment)
	if report.CommitSHA != "" {
		fmt.Fprintf(&b, "- **Commit**: %s\n", shortCommit(report.CommitSHA))
	}
	if report.Branch != "" {
		fmt.Fprintf(&b, "- **Branch**: %s\n", report.Branch)
	}
	fmt.Fprintf(&b, "- **Duration**: %dms\n", report.DurationMS)
	if report.StartedAt != "" {
		fmt.Fprintf(&b, "- **Started**: %s\n", report.StartedAt)
	}

	b.WriteString("\n### Services Deployed\n")
	for _, svc := range report.Services {
		fmt.Fprintf(&b, "- **%s**: %s %s", svc.Name, deployStatusEmoji(svc.Status), svc.Status)
		if svc.URL != "" {
			fmt.Fprintf(&b, " - [%s](%s)", svc.URL, svc.URL)
		}
		if svc.Error != "" {
			fmt.Fprintf(&b, "\n  - Error: %s", svc.Error)
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("\n### Warnings\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(&b, "- ⚠️ %s\n", warning)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func runStatusEmoji(status domain.RunStatus) string {
	switch status {
	case domain.RunStatusSucceeded:
		return "✅"
	case domain.RunStatusWarning:
		return "⚠️"
	case domain.RunStatusFailed:
		return "❌"
	default:
		return "❓"
	}
}

func deployStatusEmoji(status string) string {
	switch status {
	case "deployed":
		return "✅"
	case "failed":
		return "❌"
	case "timed_out":
		return "⚠️"
	case "pending":
		return "ℹ️"
	default:
		return "❓"
	}
}

func shortCommit(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
