// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/services"
)

// MockOrchestrator implements the DeploymentOrchestrator interface for testing
type MockOrchestrator struct {
	DeployAllFunc func(ctx context.Context, env *domain.Environment) (*domain.Run, error)
	DeployOneFunc func(ctx context.Context, env *domain.Environment, role domain.ServiceRole) (*domain.Run, error)
	VerifyFunc    func(ctx context.Context, env *domain.Environment, withCRUD bool) (*services.VerificationReport, error)
	StatusFunc    func(ctx context.Context, env *domain.Environment) (*services.StatusReport, error)
}

func (m *MockOrchestrator) DeployAll(ctx context.Context, env *domain.Environment) (*domain.Run, error) {
	if m.DeployAllFunc != nil {
		return m.DeployAllFunc(ctx, env)
	}
	run := domain.NewRun(env.Name, "anime")
	run.Status = domain.RunStatusSucceeded
	return run, nil
}

func (m *MockOrchestrator) DeployOne(
	ctx context.Context,
	env *domain.Environment,
	role domain.ServiceRole,
) (*domain.Run, error) {
	if m.DeployOneFunc != nil {
		return m.DeployOneFunc(ctx, env, role)
	}
	run := domain.NewRun(env.Name, "anime")
	run.Status = domain.RunStatusSucceeded
	return run, nil
}

func (m *MockOrchestrator) Verify(
	ctx context.Context,
	env *domain.Environment,
	withCRUD bool,
) (*services.VerificationReport, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, env, withCRUD)
	}
	return &services.VerificationReport{Environment: env.Name}, nil
}

func (m *MockOrchestrator) Status(ctx context.Context, env *domain.Environment) (*services.StatusReport, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, env)
	}
	return &services.StatusReport{Environment: env.Name}, nil
}
