package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shunt-cd/shunt/domain"
)

// Orchestrator coordinates full and selective rollouts. Services deploy in
// dependency order, a failure halts the rollout immediately, and every run
// is recorded for history and for late-binding future selective runs.
type Orchestrator struct {
	config   *Config
	manifest *Manifest
	platform PlatformClient
	deployer *ServiceDeployer
	health   HealthChecker
	api      APIVerifier
	store    RunStore
}

func NewOrchestrator(
	config *Config,
	manifest *Manifest,
	platform PlatformClient,
	health HealthChecker,
	schema SchemaApplier,
	api APIVerifier,
	store RunStore,
) *Orchestrator {
	return &Orchestrator{
		config:   config,
		manifest: manifest,
		platform: platform,
		deployer: NewServiceDeployer(platform, health, schema, config),
		health:   health,
		api:      api,
		store:    store,
	}
}

var _ DeploymentOrchestrator = (*Orchestrator)(nil)

// DeployAll rolls out every service in dependency order. The first failure
// halts the rollout; services that never got their turn keep pending
// results. After all services deploy, a final smoke pass re-checks the
// public endpoints; its failures soften to warnings unless strict smoke is
// configured.
func (o *Orchestrator) DeployAll(ctx context.Context, env *domain.Environment) (*domain.Run, error) {
	order, err := o.manifest.DeployOrder()
	if err != nil {
		return nil, err
	}

	run := o.newRun(env)
	for i := range order {
		name := o.manifest.ServiceName(order[i].Role, env.Name)
		run.Results = append(run.Results, domain.NewDeploymentResult(name, order[i].Role))
	}
	o.persistCreate(run)

	slog.Info("Starting rollout",
		"environment", env.Name,
		"app", o.manifest.App,
		"services", len(order),
		"commit", run.CommitHash,
		"branch", run.Branch)

	if err := o.connect(ctx, env); err != nil {
		return o.finish(run, domain.RunStatusFailed, err)
	}

	prior := make(map[domain.ServiceRole]*domain.DeploymentResult, len(order))
	for i := range order {
		svc := order[i]
		serviceName := run.Results[i].ServiceName

		result, err := o.deployer.Deploy(ctx, &svc, serviceName, env, prior)
		run.Results[i] = result
		if err != nil {
			slog.Error("Rollout halted",
				"environment", env.Name,
				"service", serviceName,
				"error", err)
			return o.finish(run, domain.RunStatusFailed, err)
		}
		prior[svc.Role] = result
	}

	status := domain.RunStatusSucceeded
	if o.config.SkipSmoke {
		slog.Info("Final smoke test skipped", "environment", env.Name)
	} else if err := o.smokeTest(ctx, env, order, prior, run); err != nil {
		return o.finish(run, domain.RunStatusFailed, err)
	}
	if len(run.Warnings) > 0 {
		status = domain.RunStatusWarning
	}
	return o.finish(run, status, nil)
}

// DeployOne rolls out a single service. Late-bound variables resolve against
// the newest deployed results recorded for the environment, so a backend can
// be redeployed without touching the database it wires to. Known URLs from
// the environment configuration stand in where no run has been recorded.
func (o *Orchestrator) DeployOne(ctx context.Context, env *domain.Environment, role domain.ServiceRole) (*domain.Run, error) {
	svc, ok := o.manifest.Service(role)
	if !ok {
		return nil, fmt.Errorf("no %s service in the manifest", role)
	}

	run := o.newRun(env)
	serviceName := o.manifest.ServiceName(role, env.Name)
	run.Results = append(run.Results, domain.NewDeploymentResult(serviceName, role))
	o.persistCreate(run)

	slog.Info("Starting single-service rollout",
		"environment", env.Name,
		"service", serviceName,
		"commit", run.CommitHash)

	if err := o.connect(ctx, env); err != nil {
		return o.finish(run, domain.RunStatusFailed, err)
	}

	result, err := o.deployer.Deploy(ctx, svc, serviceName, env, o.storedResults(env, role))
	run.Results[0] = result
	if err != nil {
		return o.finish(run, domain.RunStatusFailed, err)
	}
	return o.finish(run, domain.RunStatusSucceeded, nil)
}

// ServiceCheck is the outcome of one verification probe. Unhealthy services
// are reported as data; the command layer decides the exit code.
type ServiceCheck struct {
	ServiceName string             `json:"service"`
	Role        domain.ServiceRole `json:"role"`
	Check       string             `json:"check"` // health, api, docs or crud
	URL         string             `json:"url,omitempty"`
	Healthy     bool               `json:"healthy"`
	Optional    bool               `json:"optional,omitempty"` // failure degrades to a warning
	Detail      string             `json:"detail,omitempty"`
}

// VerificationReport aggregates point-in-time checks of an environment.
type VerificationReport struct {
	Environment domain.EnvironmentName `json:"environment"`
	Checks      []ServiceCheck         `json:"checks"`
}

// Healthy reports whether every required check passed. Optional checks never
// fail a verification.
func (r *VerificationReport) Healthy() bool {
	for _, c := range r.Checks {
		if !c.Healthy && !c.Optional {
			return false
		}
	}
	return true
}

// Verify probes the environment's public services once each. The backend
// additionally gets its list endpoint exercised, and optionally a full CRUD
// round trip. The database has no endpoint of its own; its connectivity is
// covered by the backend's health payload.
func (o *Orchestrator) Verify(ctx context.Context, env *domain.Environment, withCRUD bool) (*VerificationReport, error) {
	report := &VerificationReport{Environment: env.Name}
	urls := o.serviceURLs(ctx, env)

	for i := range o.manifest.Services {
		svc := o.manifest.Services[i]
		if svc.Internal || svc.HealthPath == "" {
			continue
		}
		serviceName := o.manifest.ServiceName(svc.Role, env.Name)

		url := urls[svc.Role]
		if url == "" {
			report.Checks = append(report.Checks, ServiceCheck{
				ServiceName: serviceName,
				Role:        svc.Role,
				Check:       "health",
				Healthy:     false,
				Detail:      fmt.Sprintf("no known URL; deploy first or set %s_URL_%s", strings.ToUpper(svc.Role.String()), env.Name.Suffix()),
			})
			continue
		}

		probe := ProbeForService(&svc, serviceName, url)
		check := ServiceCheck{ServiceName: serviceName, Role: svc.Role, Check: "health", URL: probe.URL, Healthy: true}
		if err := o.health.CheckOnce(ctx, probe); err != nil {
			check.Healthy = false
			check.Detail = err.Error()
		}
		report.Checks = append(report.Checks, check)

		if svc.Role != domain.RoleBackend || !check.Healthy {
			continue
		}

		apiCheck := ServiceCheck{ServiceName: serviceName, Role: svc.Role, Check: "api", URL: url, Healthy: true}
		if count, err := o.api.ListAnimes(ctx, url); err != nil {
			apiCheck.Healthy = false
			apiCheck.Detail = err.Error()
		} else {
			apiCheck.Detail = fmt.Sprintf("%d animes", count)
		}
		report.Checks = append(report.Checks, apiCheck)

		docsCheck := ServiceCheck{ServiceName: serviceName, Role: svc.Role, Check: "docs", URL: url, Healthy: true, Optional: true}
		if detail, err := o.api.CheckDocs(ctx, url); err != nil {
			docsCheck.Healthy = false
			docsCheck.Detail = err.Error()
		} else {
			docsCheck.Detail = detail
		}
		report.Checks = append(report.Checks, docsCheck)

		if withCRUD {
			crudCheck := ServiceCheck{ServiceName: serviceName, Role: svc.Role, Check: "crud", URL: url, Healthy: true}
			if err := o.api.CRUDRoundTrip(ctx, url); err != nil {
				crudCheck.Healthy = false
				crudCheck.Detail = err.Error()
			}
			report.Checks = append(report.Checks, crudCheck)
		}
	}
	return report, nil
}

// ServicePlatformStatus pairs a service with the platform's view of its
// latest deployment.
type ServicePlatformStatus struct {
	ServiceName string
	Role        domain.ServiceRole
	Status      string
}

// StatusReport combines the platform's live view with the last recorded run.
type StatusReport struct {
	Environment domain.EnvironmentName
	Services    []ServicePlatformStatus
	LastRun     *domain.Run // nil when no run has been recorded
}

// Status reports the platform deployment status of every manifest service.
func (o *Orchestrator) Status(ctx context.Context, env *domain.Environment) (*StatusReport, error) {
	if err := o.connect(ctx, env); err != nil {
		return nil, err
	}

	report := &StatusReport{Environment: env.Name}
	for _, svc := range o.manifest.Services {
		serviceName := o.manifest.ServiceName(svc.Role, env.Name)
		entry := ServicePlatformStatus{ServiceName: serviceName, Role: svc.Role}

		state, err := o.platform.Status(ctx, serviceName)
		switch {
		case err != nil:
			var platformErr *PlatformCommandError
			if errors.As(err, &platformErr) {
				return nil, err
			}
			// Service missing from the project is a state, not a failure.
			entry.Status = "NOT_DEPLOYED"
		case state.DeployStatus == "":
			entry.Status = "NO_DEPLOYMENTS"
		default:
			entry.Status = state.DeployStatus
		}
		report.Services = append(report.Services, entry)
	}

	if run, err := o.store.GetLatest(env.Name); err == nil {
		report.LastRun = run
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Warn("Failed to load last run", "environment", env.Name, "error", err)
	}
	return report, nil
}

func (o *Orchestrator) newRun(env *domain.Environment) *domain.Run {
	run := domain.NewRun(env.Name, o.manifest.App)
	run.CreatedAt = time.Now()

	rev := ResolveRevision(".", o.config.Env())
	run.CommitHash = rev.CommitHash
	run.Branch = rev.Branch
	return run
}

// connect authenticates against the platform and links the project scope all
// service commands operate in.
func (o *Orchestrator) connect(ctx context.Context, env *domain.Environment) error {
	account, err := o.platform.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("platform authentication failed: %w", err)
	}
	slog.Info("Authenticated with platform", "account", account)

	if err := o.platform.LinkProject(ctx, env.ProjectID, env.Name.String()); err != nil {
		return fmt.Errorf("linking project %s: %w", env.ProjectID, err)
	}
	return nil
}

// smokeTest re-checks every public endpoint once after a full rollout and
// exercises the backend's list endpoint. Each service already passed its own
// verification, so failures here degrade to run warnings by default.
func (o *Orchestrator) smokeTest(
	ctx context.Context,
	env *domain.Environment,
	order []domain.ServiceSpec,
	prior map[domain.ServiceRole]*domain.DeploymentResult,
	run *domain.Run,
) error {
	var failures []string
	for i := range order {
		svc := order[i]
		if svc.Internal || svc.HealthPath == "" {
			continue
		}
		result := prior[svc.Role]
		if result == nil || result.URL == "" {
			continue
		}

		probe := ProbeForService(&svc, result.ServiceName, result.URL)
		if svc.Role == domain.RoleFrontend {
			// The frontend must actually serve the app shell, not just
			// answer 200.
			probe.BodyContains = "html"
		}
		if err := o.health.CheckOnce(ctx, probe); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", result.ServiceName, err))
			continue
		}

		if svc.Role == domain.RoleBackend {
			count, err := o.api.ListAnimes(ctx, result.URL)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", result.ServiceName, err))
				continue
			}
			slog.Info("Backend API serving data", "service", result.ServiceName, "animes", count)
		}
	}

	if len(failures) == 0 {
		slog.Info("Final smoke test passed", "environment", env.Name)
		return nil
	}
	if o.config.StrictSmoke {
		return fmt.Errorf("final smoke test failed: %s", strings.Join(failures, "; "))
	}
	for _, f := range failures {
		run.AddWarning("final smoke test: %s", f)
	}
	slog.Warn("Final smoke test reported issues",
		"environment", env.Name,
		"issues", len(failures))
	return nil
}

// serviceURLs determines the best known public URL per role: the latest
// recorded run first, then the environment configuration, then a live
// platform domain lookup as a last resort.
func (o *Orchestrator) serviceURLs(ctx context.Context, env *domain.Environment) map[domain.ServiceRole]string {
	urls := map[domain.ServiceRole]string{}

	if run, err := o.store.GetLatest(env.Name); err == nil {
		for _, r := range run.Results {
			if r.URL != "" {
				urls[r.Role] = r.URL
			}
		}
	} else {
		slog.Debug("No recorded run", "environment", env.Name, "error", err)
	}

	if urls[domain.RoleBackend] == "" && env.BackendURL != "" {
		urls[domain.RoleBackend] = env.BackendURL
	}
	if urls[domain.RoleFrontend] == "" && env.FrontendURL != "" {
		urls[domain.RoleFrontend] = env.FrontendURL
	}

	var missing []domain.ServiceSpec
	for _, svc := range o.manifest.Services {
		if !svc.Internal && svc.HealthPath != "" && urls[svc.Role] == "" {
			missing = append(missing, svc)
		}
	}
	if len(missing) == 0 {
		return urls
	}

	// Platform lookup requires a linked project; failure here just leaves
	// the URLs unknown and the checks report that.
	if err := o.connect(ctx, env); err != nil {
		slog.Warn("Cannot look up service domains", "environment", env.Name, "error", err)
		return urls
	}
	for _, svc := range missing {
		serviceName := o.manifest.ServiceName(svc.Role, env.Name)
		url, err := o.platform.Domain(ctx, serviceName)
		if err != nil {
			slog.Debug("No platform domain", "service", serviceName, "error", err)
			continue
		}
		urls[svc.Role] = url
	}
	return urls
}

// storedResults loads the newest deployed result for every role except the
// one being deployed. Configured environment URLs fill the gaps so selective
// runs work before any run has been recorded.
func (o *Orchestrator) storedResults(env *domain.Environment, exclude domain.ServiceRole) map[domain.ServiceRole]*domain.DeploymentResult {
	prior := map[domain.ServiceRole]*domain.DeploymentResult{}
	for _, svc := range o.manifest.Services {
		if svc.Role == exclude {
			continue
		}
		result, err := o.store.LatestResult(env.Name, svc.Role)
		if err != nil {
			slog.Debug("No recorded result",
				"environment", env.Name,
				"role", svc.Role,
				"error", err)
			continue
		}
		prior[svc.Role] = result
	}

	fallback := func(role domain.ServiceRole, url string) {
		if prior[role] != nil || url == "" {
			return
		}
		prior[role] = &domain.DeploymentResult{
			ServiceName: o.manifest.ServiceName(role, env.Name),
			Role:        role,
			Status:      domain.DeployStatusDeployed,
			URL:         url,
		}
	}
	fallback(domain.RoleBackend, env.BackendURL)
	fallback(domain.RoleFrontend, env.FrontendURL)
	return prior
}

func (o *Orchestrator) finish(run *domain.Run, status domain.RunStatus, err error) (*domain.Run, error) {
	run.Status = status
	run.FinishedAt = time.Now()
	o.persistUpdate(run)
	return run, err
}

// Run history is bookkeeping; its persistence failures never fail a rollout.
func (o *Orchestrator) persistCreate(run *domain.Run) {
	if err := o.store.Create(run); err != nil {
		slog.Error("Failed to record run", "run_id", run.ID, "error", err)
	}
}

func (o *Orchestrator) persistUpdate(run *domain.Run) {
	if err := o.store.Update(run); err != nil {
		slog.Error("Failed to update recorded run", "run_id", run.ID, "error", err)
	}
}
