package mocks

import (
	"gorm.io/gorm"

	"github.com/shunt-cd/shunt/domain"
)

// MockRunStore implements the RunStore interface for testing
type MockRunStore struct {
	CreateFunc       func(run *domain.Run) error
	UpdateFunc       func(run *domain.Run) error
	GetLatestFunc    func(environment domain.EnvironmentName) (*domain.Run, error)
	ListFunc         func(environment domain.EnvironmentName, limit int) ([]*domain.Run, error)
	LatestResultFunc func(environment domain.EnvironmentName, role domain.ServiceRole) (*domain.DeploymentResult, error)
}

func (m *MockRunStore) Create(run *domain.Run) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(run)
	}
	return nil
}

func (m *MockRunStore) Update(run *domain.Run) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(run)
	}
	return nil
}

func (m *MockRunStore) GetLatest(environment domain.EnvironmentName) (*domain.Run, error) {
	if m.GetLatestFunc != nil {
		return m.GetLatestFunc(environment)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockRunStore) List(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
	if m.ListFunc != nil {
		return m.ListFunc(environment, limit)
	}
	return []*domain.Run{}, nil
}

func (m *MockRunStore) LatestResult(
	environment domain.EnvironmentName,
	role domain.ServiceRole,
) (*domain.DeploymentResult, error) {
	if m.LatestResultFunc != nil {
		return m.LatestResultFunc(environment, role)
	}
	return nil, gorm.ErrRecordNotFound
}
