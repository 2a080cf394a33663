package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shunt-cd/shunt/domain"
)

// ServiceDeployer drives one service through its deployment phases:
// configure, set variables, deploy, await readiness, verify. The database
// role additionally initializes the application schema after verification.
type ServiceDeployer struct {
	platform   PlatformClient
	health     HealthChecker
	schema     SchemaApplier
	poller     *Poller
	pollConfig PollConfig
}

func NewServiceDeployer(platform PlatformClient, health HealthChecker, schema SchemaApplier, config *Config) *ServiceDeployer {
	return &ServiceDeployer{
		platform:   platform,
		health:     health,
		schema:     schema,
		poller:     NewPoller(),
		pollConfig: config.PollConfig(),
	}
}

// Deploy rolls out one service. It always returns a result recording what
// happened; a non-nil error means the rollout must halt. Variables are
// resolved against prior results of this run, so services consuming
// another service's outputs must deploy after it.
func (d *ServiceDeployer) Deploy(
	ctx context.Context,
	spec *domain.ServiceSpec,
	serviceName string,
	env *domain.Environment,
	prior map[domain.ServiceRole]*domain.DeploymentResult,
) (*domain.DeploymentResult, error) {
	result := domain.NewDeploymentResult(serviceName, spec.Role)
	result.StartedAt = time.Now()

	d.advance(serviceName, domain.PhaseConfiguring)

	// Resolution is pure; an unresolvable variable aborts before the
	// platform is touched at all.
	vars, err := ResolveVariables(*spec, serviceName, env, prior)
	if err != nil {
		return d.fail(result, err)
	}

	if err := EnsureService(ctx, d.platform, serviceName); err != nil {
		return d.fail(result, err)
	}
	if vars.Len() > 0 {
		if err := d.platform.SetVariables(ctx, serviceName, vars); err != nil {
			return d.fail(result, err)
		}
		result.Variables = vars.Recorded()
	}
	d.advance(serviceName, domain.PhaseVariablesSet)

	d.advance(serviceName, domain.PhaseDeploying)
	if err := d.platform.Deploy(ctx, serviceName, spec.SourceDir); err != nil {
		return d.fail(result, err)
	}

	d.advance(serviceName, domain.PhaseAwaitingReady)
	if err := d.waitReady(ctx, serviceName, result.StartedAt); err != nil {
		return d.fail(result, err)
	}

	if !spec.Internal {
		url, err := d.platform.Domain(ctx, serviceName)
		if err != nil {
			return d.fail(result, err)
		}
		result.URL = url

		if spec.HealthPath != "" {
			probe := ProbeForService(spec, serviceName, url)
			slog.Info("Verifying service health", "service", serviceName, "url", probe.URL)
			if err := d.health.WaitHealthy(ctx, probe); err != nil {
				return d.fail(result, err)
			}
		}
	}

	if spec.Role == domain.RoleDatabase {
		if err := d.initializeSchema(ctx, serviceName, result); err != nil {
			return d.fail(result, err)
		}
	}

	result.Status = domain.DeployStatusDeployed
	result.FinishedAt = time.Now()
	d.advance(serviceName, domain.PhaseVerified)
	slog.Info("Service deployed",
		"service", serviceName,
		"duration", result.Duration().Round(time.Second))
	return result, nil
}

// waitReady polls the platform until the latest deployment reports success.
// A terminal platform status stops polling immediately; exhausting the
// attempt budget becomes a TimeoutError.
func (d *ServiceDeployer) waitReady(ctx context.Context, serviceName string, started time.Time) error {
	err := d.poller.Poll(ctx, d.pollConfig, func(ctx context.Context) (bool, error) {
		state, err := d.platform.Status(ctx, serviceName)
		if err != nil {
			// Transient CLI failures don't consume the deployment;
			// keep polling and remember the error
			return false, err
		}
		slog.Debug("Deployment status", "service", serviceName, "status", state.DeployStatus)
		if state.Ready() {
			return true, nil
		}
		if state.FailedTerminally() {
			return true, fmt.Errorf("deployment entered terminal status %s", state.DeployStatus)
		}
		return false, fmt.Errorf("deployment status %s", state.DeployStatus)
	})
	if err != nil {
		if errors.Is(err, ErrPollExhausted) {
			return &TimeoutError{
				Service:  serviceName,
				Attempts: d.pollConfig.MaxAttempts,
				Elapsed:  time.Since(started).Round(time.Second),
			}
		}
		return err
	}
	return nil
}

// initializeSchema applies and verifies the application schema against the
// freshly deployed database. It connects from outside the platform network,
// so it needs the public connection URL; the private URL is what gets
// recorded for consumption by other services.
func (d *ServiceDeployer) initializeSchema(ctx context.Context, serviceName string, result *domain.DeploymentResult) error {
	vars, err := d.platform.Variables(ctx, serviceName)
	if err != nil {
		return err
	}

	result.ConnectionURL = ConnectionURLFromVariables(vars)

	publicURL := PublicConnectionURLFromVariables(vars)
	if publicURL == "" {
		return &SchemaInitError{
			Stage: "connect",
			Err:   errors.New("service exposes no connection URL"),
		}
	}

	slog.Info("Initializing database schema", "service", serviceName)
	if err := d.schema.Apply(ctx, publicURL); err != nil {
		return err
	}
	if err := d.schema.Verify(ctx, publicURL); err != nil {
		return err
	}
	return nil
}

func (d *ServiceDeployer) advance(serviceName string, phase domain.DeployPhase) {
	slog.Info("Service deployment phase changed", "service", serviceName, "phase", phase.String())
}

// fail finalizes the result for an error. Exhausted waits map to timed_out,
// everything else to failed; the returned error is the one passed in so the
// orchestrator can halt on it.
func (d *ServiceDeployer) fail(result *domain.DeploymentResult, err error) (*domain.DeploymentResult, error) {
	result.FinishedAt = time.Now()
	result.Detail = err.Error()

	var (
		timeoutErr   *TimeoutError
		unhealthyErr *UnhealthyError
	)
	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &unhealthyErr):
		result.Status = domain.DeployStatusTimedOut
		d.advance(result.ServiceName, domain.PhaseTimedOut)
	default:
		result.Status = domain.DeployStatusFailed
		d.advance(result.ServiceName, domain.PhaseFailed)
	}

	slog.Error("Service deployment failed",
		"service", result.ServiceName,
		"status", result.Status.String(),
		"error", err)
	return result, err
}
