package domain

import "fmt"

// DeployStatus represents the outcome of deploying a single service
type DeployStatus int

const (
	DeployStatusPending DeployStatus = iota
	DeployStatusDeployed
	DeployStatusFailed
	DeployStatusTimedOut
)

func (s DeployStatus) String() string {
	switch s {
	case DeployStatusPending:
		return "pending"
	case DeployStatusDeployed:
		return "deployed"
	case DeployStatusFailed:
		return "failed"
	case DeployStatusTimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

func ParseDeployStatus(s string) (DeployStatus, error) {
	switch s {
	case "pending":
		return DeployStatusPending, nil
	case "deployed":
		return DeployStatusDeployed, nil
	case "failed":
		return DeployStatusFailed, nil
	case "timed_out":
		return DeployStatusTimedOut, nil
	default:
		return DeployStatusPending, fmt.Errorf("invalid deploy status: %q", s)
	}
}

// Terminal reports whether the status is a terminal failure state that halts
// the rollout.
func (s DeployStatus) Terminal() bool {
	return s == DeployStatusFailed || s == DeployStatusTimedOut
}

// RunStatus represents the overall outcome of a rollout
type RunStatus int

const (
	RunStatusUnknown RunStatus = iota
	RunStatusSucceeded
	RunStatusWarning
	RunStatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusSucceeded:
		return "succeeded"
	case RunStatusWarning:
		return "warning"
	case RunStatusFailed:
		return "failed"
	case RunStatusUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func ParseRunStatus(s string) (RunStatus, error) {
	switch s {
	case "succeeded":
		return RunStatusSucceeded, nil
	case "warning":
		return RunStatusWarning, nil
	case "failed":
		return RunStatusFailed, nil
	case "unknown":
		return RunStatusUnknown, nil
	default:
		return RunStatusUnknown, fmt.Errorf("invalid run status: %q", s)
	}
}

// DeployPhase tracks a service deployment's progress through the rollout
// state machine. Phases are logged, not persisted.
type DeployPhase int

const (
	PhaseConfiguring DeployPhase = iota
	PhaseVariablesSet
	PhaseDeploying
	PhaseAwaitingReady
	PhaseVerified
	PhaseFailed
	PhaseTimedOut
)

func (p DeployPhase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseVariablesSet:
		return "variables_set"
	case PhaseDeploying:
		return "deploying"
	case PhaseAwaitingReady:
		return "awaiting_ready"
	case PhaseVerified:
		return "verified"
	case PhaseFailed:
		return "failed"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return "configuring"
	}
}
