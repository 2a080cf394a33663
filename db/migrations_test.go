package db

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDatabase(DBConfig{
		Path:     ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	return db
}

func TestAutoMigrateAll(t *testing.T) {
	db := newMemoryDB(t)

	err := AutoMigrateAll(db)
	require.NoError(t, err)

	for _, table := range []string{"migrations", "runs", "deployment_results", "run_variables"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s should exist", table)
	}

	// Rerunning is a no-op
	assert.NoError(t, AutoMigrateAll(db))
}

func TestRunMigrations_AppliesAndRecords(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&MigrationModel{}))

	var applied []string
	migrations := []Migration{
		{
			ID:   1,
			Name: "0001_create_widgets",
			Up: func(db *gorm.DB) error {
				applied = append(applied, "0001_create_widgets")
				return db.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY)").Error
			},
		},
		{
			ID:   2,
			Name: "0002_add_widget_name",
			Up: func(db *gorm.DB) error {
				applied = append(applied, "0002_add_widget_name")
				return db.Exec("ALTER TABLE widgets ADD COLUMN name TEXT").Error
			},
		},
	}

	require.NoError(t, runMigrations(db, migrations))
	assert.Equal(t, []string{"0001_create_widgets", "0002_add_widget_name"}, applied)

	var count int64
	require.NoError(t, db.Model(&MigrationModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Second run applies nothing
	applied = nil
	require.NoError(t, runMigrations(db, migrations))
	assert.Empty(t, applied)
}

func TestRunMigrations_FailureStopsAndDoesNotRecord(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&MigrationModel{}))

	migrations := []Migration{
		{
			ID:   1,
			Name: "0001_broken",
			Up: func(db *gorm.DB) error {
				return errors.New("boom")
			},
		},
		{
			ID:   2,
			Name: "0002_never_reached",
			Up: func(db *gorm.DB) error {
				t.Fatal("migration after a failure must not run")
				return nil
			},
		},
	}

	err := runMigrations(db, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_broken")

	applied, err := migrationApplied(db, "0001_broken")
	require.NoError(t, err)
	assert.False(t, applied, "failed migration must not be recorded")
}

func TestModels_RoundTripWithCascade(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, AutoMigrateAll(db))

	finished := time.Now()
	connURL := "encrypted-token"
	run := RunModel{
		BaseModel:   BaseModel{ID: uuid.New()},
		Environment: "staging",
		AppName:     "anime",
		CommitHash:  "abc123",
		Branch:      "main",
		Status:      "succeeded",
		FinishedAt:  &finished,
		Results: []DeploymentResultModel{
			{
				BaseModel:     BaseModel{ID: uuid.New()},
				ServiceName:   "anime-database-staging",
				Role:          "database",
				Status:        "deployed",
				ConnectionURL: &connURL,
				StartedAt:     time.Now(),
				FinishedAt:    time.Now(),
			},
			{
				BaseModel:   BaseModel{ID: uuid.New()},
				ServiceName: "anime-backend-staging",
				Role:        "backend",
				Status:      "deployed",
				URL:         "https://anime-backend-staging.up.railway.app",
				StartedAt:   time.Now(),
				FinishedAt:  time.Now(),
				Variables: []RunVariableModel{
					{
						BaseModel: BaseModel{ID: uuid.New()},
						Name:      "DATABASE_URL",
						Value:     "encrypted-token",
						Secret:    true,
					},
				},
			},
		},
	}
	require.NoError(t, db.Create(&run).Error)

	var loaded RunModel
	require.NoError(t, db.Preload("Results.Variables").First(&loaded, "id = ?", run.ID).Error)
	assert.Equal(t, "staging", loaded.Environment)
	require.Len(t, loaded.Results, 2)
	assert.Equal(t, "anime-database-staging", loaded.Results[0].ServiceName)
	require.Len(t, loaded.Results[1].Variables, 1)
	assert.Equal(t, "DATABASE_URL", loaded.Results[1].Variables[0].Name)

	// Deleting the run cascades to its results and their variables
	require.NoError(t, db.Delete(&RunModel{}, "id = ?", run.ID).Error)

	var resultCount int64
	require.NoError(t, db.Model(&DeploymentResultModel{}).Count(&resultCount).Error)
	assert.Equal(t, int64(0), resultCount)

	var variableCount int64
	require.NoError(t, db.Model(&RunVariableModel{}).Count(&variableCount).Error)
	assert.Equal(t, int64(0), variableCount)
}

func TestModels_ChecksRejectEmptyRequiredFields(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, AutoMigrateAll(db))

	run := RunModel{
		BaseModel:   BaseModel{ID: uuid.New()},
		Environment: "",
		AppName:     "anime",
		Status:      "succeeded",
	}
	assert.Error(t, db.Create(&run).Error, "empty environment violates check constraint")
}
