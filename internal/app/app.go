// Package app provides the main application context for Shunt, managing the database and services.
package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/shunt-cd/shunt/db"
	"github.com/shunt-cd/shunt/services"
)

var (
	database     *gorm.DB
	config       *services.Config
	resolver     services.EnvironmentSource
	orchestrator services.DeploymentOrchestrator
	runStore     services.RunStore
)

// InitializeWithConfig wires the application services together from an
// already validated configuration.
func InitializeWithConfig(cfg *services.Config) error {
	var err error

	config = cfg

	// Initialize database
	database, err = db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAll(database); err != nil {
		return err
	}

	encryption, err := services.NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("initializing encryption: %w", err)
	}

	manifest, err := services.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}

	schemaSQL, err := services.LoadSchemaSQL(cfg.SchemaPath)
	if err != nil {
		return err
	}

	// Initialize services with dependency injection
	runStore = services.NewRunRepository(database, encryption)
	platform := services.NewRailwayClient(cfg)
	health := services.NewHealthChecker(cfg)
	api := services.NewAPIVerifier(cfg)
	schema := services.NewSchemaApplier(schemaSQL)

	resolver = services.NewEnvironmentResolver(cfg)
	orchestrator = services.NewOrchestrator(cfg, manifest, platform, health, schema, api, runStore)
	return nil
}

func GetConfig() *services.Config {
	return config
}

func GetOrchestrator() services.DeploymentOrchestrator {
	return orchestrator
}

func GetEnvironmentSource() services.EnvironmentSource {
	return resolver
}

func GetRunStore() services.RunStore {
	return runStore
}

// SetOrchestratorForTesting replaces the orchestrator with a mock in tests
func SetOrchestratorForTesting(o services.DeploymentOrchestrator) {
	orchestrator = o
}

// SetEnvironmentSourceForTesting replaces the resolver with a mock in tests
func SetEnvironmentSourceForTesting(s services.EnvironmentSource) {
	resolver = s
}

// SetRunStoreForTesting replaces the run store with a mock in tests
func SetRunStoreForTesting(s services.RunStore) {
	runStore = s
}

// SetConfigForTesting replaces the configuration in tests
func SetConfigForTesting(c *services.Config) {
	config = c
}
