package status

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shunt-cd/shunt/cmd/output"
	"github.com/shunt-cd/shunt/domain"
	"github.com/shunt-cd/shunt/internal/app"
	"github.com/shunt-cd/shunt/services"
	"github.com/shunt-cd/shunt/testing/mocks"
)

func setupStatusTest(t *testing.T, orch *mocks.MockOrchestrator) {
	t.Helper()

	output.InitColors(true)
	app.SetConfigForTesting(&services.Config{Environment: "staging"})
	app.SetEnvironmentSourceForTesting(&mocks.MockEnvironmentSource{})
	app.SetOrchestratorForTesting(orch)
}

func platformReport(env *domain.Environment) *services.StatusReport {
	return &services.StatusReport{
		Environment: env.Name,
		Services: []services.ServicePlatformStatus{
			{ServiceName: "anime-db-staging", Role: domain.RoleDatabase, Status: "SUCCESS"},
			{ServiceName: "anime-backend-staging", Role: domain.RoleBackend, Status: "BUILDING"},
			{ServiceName: "anime-frontend-staging", Role: domain.RoleFrontend, Status: "NOT_DEPLOYED"},
		},
	}
}

func TestStatusCommand(t *testing.T) {
	run := domain.NewRun("staging", "anime")
	run.Status = domain.RunStatusSucceeded
	run.CommitHash = "1234567890abcdef1234567890abcdef12345678"
	run.Branch = "main"
	run.CreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	run.FinishedAt = run.CreatedAt.Add(3 * time.Minute)

	orch := &mocks.MockOrchestrator{
		StatusFunc: func(ctx context.Context, env *domain.Environment) (*services.StatusReport, error) {
			report := platformReport(env)
			report.LastRun = run
			return report, nil
		},
	}
	setupStatusTest(t, orch)

	cmd := NewCmdStatus()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "anime-db-staging")
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "BUILDING")
	assert.Contains(t, out, "NOT_DEPLOYED")
	assert.Contains(t, out, "Last rollout:")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "12345678 (1234567890abcdef1234567890abcdef12345678)")
}

func TestStatusCommandNoRecordedRun(t *testing.T) {
	orch := &mocks.MockOrchestrator{
		StatusFunc: func(ctx context.Context, env *domain.Environment) (*services.StatusReport, error) {
			return platformReport(env), nil
		},
	}
	setupStatusTest(t, orch)

	cmd := NewCmdStatus()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "No recorded rollout for staging yet.")
	assert.NotContains(t, out, "Last rollout:")
}

func TestStatusCommandPlatformError(t *testing.T) {
	platformErr := &services.PlatformCommandError{
		Command:  "railway status",
		ExitCode: 1,
		Stderr:   "project not linked",
	}
	orch := &mocks.MockOrchestrator{
		StatusFunc: func(ctx context.Context, env *domain.Environment) (*services.StatusReport, error) {
			return nil, platformErr
		},
	}
	setupStatusTest(t, orch)

	cmd := NewCmdStatus()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "platform CLI call failed (exit code 1)")
}

func TestStatusCommandInvalidEnvironment(t *testing.T) {
	setupStatusTest(t, &mocks.MockOrchestrator{})
	app.SetConfigForTesting(&services.Config{Environment: "qa"})

	cmd := NewCmdStatus()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "invalid environment")
}

func TestStatusCommandMetadata(t *testing.T) {
	cmd := NewCmdStatus()
	assert.Equal(t, "status", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
}
