package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shunt-cd/shunt/domain"
)

// MockPlatformClient for testing. Calls records every invocation in order
// so tests can assert on command sequencing.
type MockPlatformClient struct {
	AuthenticateFunc  func(ctx context.Context) (string, error)
	LinkProjectFunc   func(ctx context.Context, projectID string, environment string) error
	ServiceExistsFunc func(ctx context.Context, serviceName string) (bool, error)
	CreateServiceFunc func(ctx context.Context, serviceName string) error
	SetVariablesFunc  func(ctx context.Context, serviceName string, vars *VariableSet) error
	VariablesFunc     func(ctx context.Context, serviceName string) (map[string]string, error)
	DeployFunc        func(ctx context.Context, serviceName, sourceDir string) error
	StatusFunc        func(ctx context.Context, serviceName string) (*ServiceState, error)
	DomainFunc        func(ctx context.Context, serviceName string) (string, error)

	Calls []string
}

func (m *MockPlatformClient) record(format string, args ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *MockPlatformClient) Authenticate(ctx context.Context) (string, error) {
	m.record("Authenticate")
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx)
	}
	return "Logged in as test@example.com", nil
}

func (m *MockPlatformClient) LinkProject(ctx context.Context, projectID string, environment string) error {
	m.record("LinkProject(%s, %s)", projectID, environment)
	if m.LinkProjectFunc != nil {
		return m.LinkProjectFunc(ctx, projectID, environment)
	}
	return nil
}

func (m *MockPlatformClient) ServiceExists(ctx context.Context, serviceName string) (bool, error) {
	m.record("ServiceExists(%s)", serviceName)
	if m.ServiceExistsFunc != nil {
		return m.ServiceExistsFunc(ctx, serviceName)
	}
	return true, nil
}

func (m *MockPlatformClient) CreateService(ctx context.Context, serviceName string) error {
	m.record("CreateService(%s)", serviceName)
	if m.CreateServiceFunc != nil {
		return m.CreateServiceFunc(ctx, serviceName)
	}
	return nil
}

func (m *MockPlatformClient) SetVariables(ctx context.Context, serviceName string, vars *VariableSet) error {
	m.record("SetVariables(%s)", serviceName)
	if m.SetVariablesFunc != nil {
		return m.SetVariablesFunc(ctx, serviceName, vars)
	}
	return nil
}

func (m *MockPlatformClient) Variables(ctx context.Context, serviceName string) (map[string]string, error) {
	m.record("Variables(%s)", serviceName)
	if m.VariablesFunc != nil {
		return m.VariablesFunc(ctx, serviceName)
	}
	return map[string]string{}, nil
}

func (m *MockPlatformClient) Deploy(ctx context.Context, serviceName, sourceDir string) error {
	m.record("Deploy(%s)", serviceName)
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, serviceName, sourceDir)
	}
	return nil
}

func (m *MockPlatformClient) Status(ctx context.Context, serviceName string) (*ServiceState, error) {
	m.record("Status(%s)", serviceName)
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, serviceName)
	}
	return &ServiceState{Name: serviceName, DeployStatus: platformStatusSuccess}, nil
}

func (m *MockPlatformClient) Domain(ctx context.Context, serviceName string) (string, error) {
	m.record("Domain(%s)", serviceName)
	if m.DomainFunc != nil {
		return m.DomainFunc(ctx, serviceName)
	}
	return "https://" + serviceName + ".up.railway.app", nil
}

// MockHealthChecker for testing
type MockHealthChecker struct {
	CheckOnceFunc   func(ctx context.Context, probe HealthProbe) error
	WaitHealthyFunc func(ctx context.Context, probe HealthProbe) error

	Calls []string
}

func (m *MockHealthChecker) CheckOnce(ctx context.Context, probe HealthProbe) error {
	m.Calls = append(m.Calls, fmt.Sprintf("CheckOnce(%s)", probe.Name))
	if m.CheckOnceFunc != nil {
		return m.CheckOnceFunc(ctx, probe)
	}
	return nil
}

func (m *MockHealthChecker) WaitHealthy(ctx context.Context, probe HealthProbe) error {
	m.Calls = append(m.Calls, fmt.Sprintf("WaitHealthy(%s)", probe.Name))
	if m.WaitHealthyFunc != nil {
		return m.WaitHealthyFunc(ctx, probe)
	}
	return nil
}

// MockSchemaApplier for testing
type MockSchemaApplier struct {
	ApplyFunc  func(ctx context.Context, connectionURL string) error
	VerifyFunc func(ctx context.Context, connectionURL string) error

	Calls []string
}

func (m *MockSchemaApplier) Apply(ctx context.Context, connectionURL string) error {
	m.Calls = append(m.Calls, "Apply")
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, connectionURL)
	}
	return nil
}

func (m *MockSchemaApplier) Verify(ctx context.Context, connectionURL string) error {
	m.Calls = append(m.Calls, "Verify")
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, connectionURL)
	}
	return nil
}

// MockAPIVerifier for testing
type MockAPIVerifier struct {
	ListAnimesFunc    func(ctx context.Context, baseURL string) (int, error)
	CheckDocsFunc     func(ctx context.Context, baseURL string) (string, error)
	CRUDRoundTripFunc func(ctx context.Context, baseURL string) error

	Calls []string
}

func (m *MockAPIVerifier) ListAnimes(ctx context.Context, baseURL string) (int, error) {
	m.Calls = append(m.Calls, "ListAnimes")
	if m.ListAnimesFunc != nil {
		return m.ListAnimesFunc(ctx, baseURL)
	}
	return 3, nil
}

func (m *MockAPIVerifier) CheckDocs(ctx context.Context, baseURL string) (string, error) {
	m.Calls = append(m.Calls, "CheckDocs")
	if m.CheckDocsFunc != nil {
		return m.CheckDocsFunc(ctx, baseURL)
	}
	return "/docs available, /openapi.json available", nil
}

func (m *MockAPIVerifier) CRUDRoundTrip(ctx context.Context, baseURL string) error {
	m.Calls = append(m.Calls, "CRUDRoundTrip")
	if m.CRUDRoundTripFunc != nil {
		return m.CRUDRoundTripFunc(ctx, baseURL)
	}
	return nil
}

// MockRunStore is a simple in-memory run store for testing
type MockRunStore struct {
	runs  map[uuid.UUID]*domain.Run
	order []uuid.UUID

	CreateErr error
	UpdateErr error
}

func NewMockRunStore() *MockRunStore {
	return &MockRunStore{
		runs: make(map[uuid.UUID]*domain.Run),
	}
}

func (m *MockRunStore) Create(run *domain.Run) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *MockRunStore) Update(run *domain.Run) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, exists := m.runs[run.ID]; !exists {
		return gorm.ErrRecordNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MockRunStore) GetLatest(environment domain.EnvironmentName) (*domain.Run, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if run.Environment == environment {
			return run, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockRunStore) List(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
	var runs []*domain.Run
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if environment != "" && run.Environment != environment {
			continue
		}
		runs = append(runs, run)
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	return runs, nil
}

func (m *MockRunStore) LatestResult(environment domain.EnvironmentName, role domain.ServiceRole) (*domain.DeploymentResult, error) {
	for i := len(m.order) - 1; i >= 0; i-- {
		run := m.runs[m.order[i]]
		if run.Environment != environment {
			continue
		}
		if result := run.Result(role); result != nil && result.Status == domain.DeployStatusDeployed {
			return result, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
