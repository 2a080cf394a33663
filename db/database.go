// Package db provides functions to initialize and manage the SQLite database for Shunt.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds configuration options for database initialization
type DBConfig struct {
	// Path specifies the database file path. Use ":memory:" for in-memory database
	Path string
	// LogLevel specifies the GORM logging level
	LogLevel logger.LogLevel
}

// InitDB opens the run history database at path and applies pragmas. The
// caller runs migrations afterwards.
func InitDB(path string) (*gorm.DB, error) {
	slog.Debug("Initializing database", "path", path)

	db, err := InitDatabase(DBConfig{
		Path:     path,
		LogLevel: getGormLogLevel(),
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Database initialized successfully", "path", path)
	return db, nil
}

// InitDatabase creates and configures a SQLite database with the given configuration
// The caller is responsible for running migrations after getting the DB instance
func InitDatabase(config DBConfig) (*gorm.DB, error) {
	var dsn string

	if config.Path == ":memory:" {
		dsn = ":memory:"
		slog.Debug("Initializing in-memory database")
	} else {
		// Ensure data directory exists if requested
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("Failed to create data directory", "dir", dir, "error", err)
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		dsn = config.Path
		slog.Debug("Initializing file-based database", "path", config.Path)
	}

	// Open database with specified configuration
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(config.LogLevel),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "dsn", dsn, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure SQLite pragmas
	pragmas := "PRAGMA foreign_keys = ON;"

	// Add performance optimizations for file-based databases
	if config.Path != ":memory:" {
		pragmas += `
		PRAGMA legacy_alter_table = OFF;
		PRAGMA journal_mode       = WAL;
		PRAGMA synchronous        = NORMAL;
		PRAGMA mmap_size          = 134217728;
		PRAGMA journal_size_limit = 27103364;
		PRAGMA cache_size         = 2000;`
	}

	if err := db.Exec(pragmas).Error; err != nil {
		slog.Error("Failed to configure database", "error", err)
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// getGormLogLevel maps application log level to corresponding GORM log level
func getGormLogLevel() logger.LogLevel {
	// Check the current slog level to determine appropriate GORM level
	ctx := slog.Default()

	if ctx.Enabled(context.TODO(), slog.LevelDebug) {
		return logger.Info // Show SQL queries only when debug logging is enabled
	} else if ctx.Enabled(context.TODO(), slog.LevelInfo) {
		return logger.Warn // Show warnings but not SQL queries
	} else if ctx.Enabled(context.TODO(), slog.LevelWarn) {
		return logger.Warn // Show warnings
	} else if ctx.Enabled(context.TODO(), slog.LevelError) {
		return logger.Error // Show only errors for error-level
	} else {
		return logger.Silent // Silent level - disable all GORM logging
	}
}
