package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordedVariable is one configuration variable a deployment set on its
// service, kept with the result so a run records the exact configuration
// each service received.
type RecordedVariable struct {
	Name   string
	Value  string
	Secret bool // masked in output, encrypted at rest
}

// DeploymentResult records the outcome of deploying one service. Results for
// services that were never attempted (rollout halted earlier) keep status
// pending.
type DeploymentResult struct {
	ServiceName   string
	Role          ServiceRole
	Status        DeployStatus
	URL           string // public https URL, if the service exposes one
	ConnectionURL string // connection string, database role only
	Variables     []RecordedVariable
	Detail        string // failure detail for failed/timed_out results
	StartedAt     time.Time
	FinishedAt    time.Time
}

func NewDeploymentResult(serviceName string, role ServiceRole) *DeploymentResult {
	return &DeploymentResult{
		ServiceName: serviceName,
		Role:        role,
		Status:      DeployStatusPending,
	}
}

// Field returns the late-bound field value of the result. The empty string
// means the field was not produced by this deployment.
func (r *DeploymentResult) Field(f ResultField) string {
	switch f {
	case FieldURL:
		return r.URL
	case FieldConnectionURL:
		return r.ConnectionURL
	default:
		return ""
	}
}

// Duration is the wall-clock time the deployment took, zero if it never
// started or never finished.
func (r *DeploymentResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run aggregates one orchestrated rollout of an application to an
// environment.
type Run struct {
	ID          uuid.UUID
	Environment EnvironmentName
	AppName     string
	CommitHash  string
	Branch      string
	Status      RunStatus
	Results     []*DeploymentResult
	Warnings    []string
	CreatedAt   time.Time
	FinishedAt  time.Time
}

func NewRun(env EnvironmentName, appName string) *Run {
	return &Run{
		ID:          uuid.New(),
		Environment: env,
		AppName:     appName,
		Status:      RunStatusUnknown,
	}
}

// Result returns the recorded result for a role, or nil if the role was not
// part of the run.
func (r *Run) Result(role ServiceRole) *DeploymentResult {
	for _, res := range r.Results {
		if res.Role == role {
			return res
		}
	}
	return nil
}

func (r *Run) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Duration is the wall-clock time the whole run took, zero while it is still
// in flight.
func (r *Run) Duration() time.Duration {
	if r.CreatedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}
