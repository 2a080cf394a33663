package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single database migration
type Migration struct {
	ID   int
	Name string
	Up   func(*gorm.DB) error
}

// allMigrations is the ordered list of manual migrations, applied in order
// before AutoMigrate. Schema changes so far are expressible through
// AutoMigrate alone, so the list is empty.
var allMigrations []Migration

// AllModels returns all the models that need to be migrated
// This is the single source of truth for database migrations
func AllModels() []any {
	return []any{
		&MigrationModel{},
		&RunModel{},
		&DeploymentResultModel{},
		&RunVariableModel{},
	}
}

// AutoMigrateAll runs auto-migration for all application models
func AutoMigrateAll(db *gorm.DB) error {
	// First, ensure migrations table exists
	if err := db.AutoMigrate(&MigrationModel{}); err != nil {
		return err
	}

	// Run all manual migrations in order
	if err := runMigrations(db, allMigrations); err != nil {
		return err
	}

	// Now run AutoMigrate for all models
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}

	return nil
}

// runMigrations applies each not-yet-applied migration in order and records
// it, so reruns are no-ops.
func runMigrations(db *gorm.DB, migrations []Migration) error {
	for _, migration := range migrations {
		applied, err := migrationApplied(db, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", migration.Name, err)
		}
		if applied {
			continue
		}

		if err := migration.Up(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}

		if err := recordMigration(db, migration.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

// migrationApplied checks if a migration has already been applied
func migrationApplied(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Model(&MigrationModel{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordMigration records that a migration has been applied
func recordMigration(db *gorm.DB, name string) error {
	migration := MigrationModel{
		Name:      name,
		AppliedAt: time.Now(),
	}
	return db.Create(&migration).Error
}
