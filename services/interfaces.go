package services

import (
	"context"

	"github.com/shunt-cd/shunt/domain"
)

// PlatformClient defines the contract for Railway CLI operations
type PlatformClient interface {
	Authenticate(ctx context.Context) (string, error)
	LinkProject(ctx context.Context, projectID string, environment string) error
	ServiceExists(ctx context.Context, serviceName string) (bool, error)
	CreateService(ctx context.Context, serviceName string) error
	SetVariables(ctx context.Context, serviceName string, vars *VariableSet) error
	Variables(ctx context.Context, serviceName string) (map[string]string, error)
	Deploy(ctx context.Context, serviceName, sourceDir string) error
	Status(ctx context.Context, serviceName string) (*ServiceState, error)
	Domain(ctx context.Context, serviceName string) (string, error)
}

// HealthChecker defines the contract for service health verification
type HealthChecker interface {
	CheckOnce(ctx context.Context, probe HealthProbe) error
	WaitHealthy(ctx context.Context, probe HealthProbe) error
}

// SchemaApplier defines the contract for database schema initialization
type SchemaApplier interface {
	Apply(ctx context.Context, connectionURL string) error
	Verify(ctx context.Context, connectionURL string) error
}

// APIVerifier defines the contract for exercising the deployed backend API
type APIVerifier interface {
	ListAnimes(ctx context.Context, baseURL string) (int, error)
	CheckDocs(ctx context.Context, baseURL string) (string, error)
	CRUDRoundTrip(ctx context.Context, baseURL string) error
}

// RunStore defines the contract for persisting deployment runs
type RunStore interface {
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	GetLatest(environment domain.EnvironmentName) (*domain.Run, error)
	List(environment domain.EnvironmentName, limit int) ([]*domain.Run, error)
	LatestResult(environment domain.EnvironmentName, role domain.ServiceRole) (*domain.DeploymentResult, error)
}

// EnvironmentSource resolves raw environment names into validated deployment
// targets
type EnvironmentSource interface {
	Resolve(raw string) (*domain.Environment, error)
	Check(raw string) []CheckResult
}

// DeploymentOrchestrator defines the contract for rollouts and environment
// inspection
type DeploymentOrchestrator interface {
	DeployAll(ctx context.Context, env *domain.Environment) (*domain.Run, error)
	DeployOne(ctx context.Context, env *domain.Environment, role domain.ServiceRole) (*domain.Run, error)
	Verify(ctx context.Context, env *domain.Environment, withCRUD bool) (*VerificationReport, error)
	Status(ctx context.Context, env *domain.Environment) (*StatusReport, error)
}
