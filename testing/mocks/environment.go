package mocks

import (
	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/services"
)

// MockEnvironmentSource implements the EnvironmentSource interface for testing
type MockEnvironmentSource struct {
	ResolveFunc func(raw string) (*domain.Environment, error)
	CheckFunc   func(raw string) []services.CheckResult
}

func (m *MockEnvironmentSource) Resolve(raw string) (*domain.Environment, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(raw)
	}
	name, err := domain.ParseEnvironmentName(raw)
	if err != nil {
		return nil, err
	}
	return &domain.Environment{
		Name:      name,
		ProjectID: "mock-project-id",
		Values:    map[string]string{},
	}, nil
}

func (m *MockEnvironmentSource) Check(raw string) []services.CheckResult {
	if m.CheckFunc != nil {
		return m.CheckFunc(raw)
	}
	return []services.CheckResult{
		{Name: "ENVIRONMENT", Value: raw, Required: true, OK: true},
	}
}
