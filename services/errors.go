package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shunt-cd/shunt/domain"
)

// ErrMissingProjectID is returned when no platform project ID is configured
// for the resolved environment.
var ErrMissingProjectID = errors.New("missing platform project ID")

// PlatformCommandError is returned when a platform CLI invocation exits
// non-zero. Command never contains the auth token; it is passed through the
// process environment.
type PlatformCommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *PlatformCommandError) Error() string {
	msg := fmt.Sprintf("platform command failed: %s (exit code %d)", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg = fmt.Sprintf("%s: %s", msg, s)
	}
	return msg
}

// UnresolvedVariableError is returned when a late-bound variable reference
// has no producer value, before any platform mutation is attempted.
type UnresolvedVariableError struct {
	Service  string
	Variable string
	Source   string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %q for service %s (source: %s)", e.Variable, e.Service, e.Source)
}

// TimeoutError is returned when polling exhausts its attempt ceiling.
type TimeoutError struct {
	Service  string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %d attempts (%s)", e.Service, e.Attempts, e.Elapsed)
}

// SchemaInitError is returned when database schema initialization fails. It
// is fatal for the rollout.
type SchemaInitError struct {
	Stage string
	Err   error
}

func (e *SchemaInitError) Error() string {
	return fmt.Sprintf("schema initialization failed during %s: %v", e.Stage, e.Err)
}

func (e *SchemaInitError) Unwrap() error {
	return e.Err
}

// UnhealthyError is returned when a health probe stays unhealthy through all
// bounded retries. Callers decide whether it is fatal.
type UnhealthyError struct {
	Name     string
	URL      string
	Attempts int
	LastErr  error
}

func (e *UnhealthyError) Error() string {
	return fmt.Sprintf("%s unhealthy after %d attempts: %v", e.Name, e.Attempts, e.LastErr)
}

func (e *UnhealthyError) Unwrap() error {
	return e.LastErr
}

// FormatErrorForUser converts technical errors to user-friendly messages
// This should only be called at the command level
func FormatErrorForUser(err error) string {
	if err == nil {
		return ""
	}

	var (
		platformErr   *PlatformCommandError
		unresolvedErr *UnresolvedVariableError
		timeoutErr    *TimeoutError
		schemaErr     *SchemaInitError
		unhealthyErr  *UnhealthyError
	)

	switch {
	case errors.Is(err, domain.ErrInvalidEnvironment):
		return "invalid environment - set ENVIRONMENT to \"staging\" or \"production\" (case-sensitive)"
	case errors.Is(err, ErrMissingProjectID):
		return "no platform project ID configured for this environment - set RAILWAY_PROJECT_ID_STAGING or RAILWAY_PROJECT_ID_PROD"
	case errors.As(err, &unresolvedErr):
		return fmt.Sprintf("variable %q for %s could not be resolved - deploy its source service first or configure a value", unresolvedErr.Variable, unresolvedErr.Service)
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("%s did not become ready in time - check the platform dashboard for build logs", timeoutErr.Service)
	case errors.As(err, &schemaErr):
		return "database schema initialization failed - the database is reachable but the bootstrap SQL did not apply"
	case errors.As(err, &unhealthyErr):
		return fmt.Sprintf("%s is deployed but failed its health check", unhealthyErr.Name)
	case errors.As(err, &platformErr):
		return fmt.Sprintf("platform CLI call failed (exit code %d) - run with --log-level debug to see the full command output", platformErr.ExitCode)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unique constraint"):
		return "this entry already exists"
	case strings.Contains(errStr, "record not found"):
		return "no recorded run found"
	case strings.Contains(errStr, "connection"):
		return "connection failed"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "operation timed out"
	default:
		return "an unexpected error occurred"
	}
}
