package history

import (
	"bytes"
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

func setupHistoryTest(t *testing.T, store *mocks.MockRunStore) {
	t.Helper()

	output.InitColors(true)
	app.SetConfigForTesting(&services.Config{Environment: "staging"})
	app.SetEnvironmentSourceForTesting(&mocks.MockEnvironmentSource{})
	app.SetRunStoreForTesting(store)
}

func recordedRun(status domain.RunStatus, commit string, started time.Time) *domain.Run {
	run := domain.NewRun("staging", "anime")
	run.Status = status
	run.CommitHash = commit
	run.CreatedAt = started
	run.FinishedAt = started.Add(4 * time.Minute)
	return run
}

func TestHistoryCommand(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var gotEnv domain.EnvironmentName
	var gotLimit int
	store := &mocks.MockRunStore{
		ListFunc: func(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
			gotEnv = environment
			gotLimit = limit
			return []*domain.Run{
				recordedRun(domain.RunStatusSucceeded, "1234567890abcdef1234567890abcdef12345678", base.Add(time.Hour)),
				recordedRun(domain.RunStatusFailed, "fedcba0987654321fedcba0987654321fedcba09", base),
			}, nil
		},
	}
	setupHistoryTest(t, store)

	cmd := NewCmdHistory()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Equal(t, domain.EnvStaging, gotEnv)
	assert.Equal(t, 10, gotLimit)

	out := buf.String()
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "12345678")
	assert.Contains(t, out, "fedcba09")
	assert.NotContains(t, out, "1234567890abcdef1234567890abcdef12345678")
}

func TestHistoryCommandLimitFlag(t *testing.T) {
	var gotLimit int
	store := &mocks.MockRunStore{
		ListFunc: func(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
			gotLimit = limit
			return []*domain.Run{}, nil
		},
	}
	setupHistoryTest(t, store)

	cmd := NewCmdHistory()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--limit", "3"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Equal(t, 3, gotLimit)
}

func TestHistoryCommandEmpty(t *testing.T) {
	setupHistoryTest(t, &mocks.MockRunStore{})

	cmd := NewCmdHistory()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs recorded.")
}

func TestHistoryCommandStoreError(t *testing.T) {
	store := &mocks.MockRunStore{
		ListFunc: func(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
			return nil, assert.AnError
		},
	}
	setupHistoryTest(t, store)

	cmd := NewCmdHistory()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Error:")
}

func TestHistoryCommandMetadata(t *testing.T) {
	cmd := NewCmdHistory()
	assert.Equal(t, "history", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
}
