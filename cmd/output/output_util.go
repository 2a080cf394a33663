package output

import (
	"fmt"
	"strings"
	"time"
)

// maskSensitiveValue hides the middle of a secret, keeping just enough of the
// ends to recognize which value is set.
func maskSensitiveValue(value string) string {
	switch n := len(value); {
	case n == 0:
		return "(not set)"
	case n <= 2:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:1] + strings.Repeat("*", n-2) + value[n-1:]
	default:
		return value[:3] + strings.Repeat("*", n-6) + value[n-3:]
	}
}

func isSensitiveName(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range []string{"TOKEN", "PASSWORD", "SECRET", "KEY"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// formatCommitDetails shows the abbreviated hash with the full hash in
// parentheses, for detail views.
func formatCommitDetails(commit string) string {
	if commit == "" {
		return "(no commits)"
	}
	if len(commit) <= 8 {
		return commit
	}
	return fmt.Sprintf("%s (%s)", commit[:8], commit)
}

// formatCommitHash abbreviates a commit hash for list views.
func formatCommitHash(commit string) string {
	if commit == "" {
		return "-"
	}
	if len(commit) <= 8 {
		return commit
	}
	return commit[:8]
}

func truncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return "..."
	}
	return s[:maxLength-3] + "..."
}

// formatStringList renders items as a numbered list, one per line.
func formatStringList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	if len(items) == 1 {
		return items[0]
	}
	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
	}
	return strings.Join(lines, "\n")
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}
