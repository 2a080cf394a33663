package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/compose-spec/compose-go/v2/dotenv"
)

const (
	// ConfigDirName is the directory holding per-environment variable files
	// (staging.env, production.env), relative to the working directory.
	ConfigDirName = "config"
)

// EnvProvider abstracts environment variable access for testing
type EnvProvider interface {
	Getenv(key string) string
	UserHomeDir() (string, error)
}

// DefaultEnvProvider implements EnvProvider using real OS functions
type DefaultEnvProvider struct{}

func (p *DefaultEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (p *DefaultEnvProvider) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// GetDefaultDataDir returns the default Shunt data directory following XDG Base Directory specification
func GetDefaultDataDir() string {
	return getDefaultDataDirWithEnv(&DefaultEnvProvider{})
}

// getDefaultDataDirWithEnv allows dependency injection for testing
func getDefaultDataDirWithEnv(env EnvProvider) string {
	// Use XDG_DATA_HOME if set, otherwise fallback to ~/.local/share
	xdgDataHome := env.Getenv("XDG_DATA_HOME")
	if xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "shunt")
	}

	homeDir, _ := env.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "shunt")
}

// Config holds configuration for all services
type Config struct {
	// Core paths
	DataDir      string
	DatabasePath string
	ConfigDir    string
	ManifestPath string // empty means the embedded default manifest
	SchemaPath   string // empty means the embedded bootstrap SQL

	// Logging
	LogLevel     string
	ColorEnabled bool

	// Platform CLI
	RailwayCommand string
	RailwayToken   string
	CommandTimeout time.Duration

	// Target environment (raw name, resolved later)
	Environment string

	// Deployment status polling
	PollInterval    time.Duration
	PollMaxAttempts int

	// Health verification
	HealthInterval    time.Duration
	HealthMaxAttempts int
	HealthTimeout     time.Duration

	// Final smoke test severity and opt-out
	StrictSmoke bool
	SkipSmoke   bool

	// Encryption
	EncryptionKey string

	// Environment provider for testing
	env EnvProvider
}

// NewConfigForCLI creates a new configuration for CLI usage with optional
// data directory and environment overrides
func NewConfigForCLI(cliDataDir, cliEnvironment string) (*Config, error) {
	return newConfigWithEnv(&DefaultEnvProvider{}, cliDataDir, cliEnvironment)
}

// NewConfigForCLIWithEnv creates a new configuration with custom environment provider (for testing)
func NewConfigForCLIWithEnv(env EnvProvider, cliDataDir, cliEnvironment string) (*Config, error) {
	return newConfigWithEnv(env, cliDataDir, cliEnvironment)
}

// NewConfigForCheck builds a configuration without validating it, so
// diagnostics can report what is missing instead of refusing to start.
func NewConfigForCheck(cliDataDir, cliEnvironment string) *Config {
	c := &Config{env: &DefaultEnvProvider{}}
	c.setDefaults()
	c.loadFromEnv()
	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}
	if cliEnvironment != "" {
		c.Environment = cliEnvironment
	}
	c.derivePaths()
	if c.EncryptionKey == "" {
		if key := c.readEncryptionKeyFromEnvFile(); key != "" {
			c.EncryptionKey = key
		}
	}
	return c
}

func newConfigWithEnv(env EnvProvider, cliDataDir, cliEnvironment string) (*Config, error) {
	c := &Config{env: env}

	// Set defaults first
	c.setDefaults()

	// Override with environment variables
	c.loadFromEnv()

	// Override with CLI flags (if provided)
	if cliDataDir != "" {
		c.DataDir = cliDataDir
	}
	if cliEnvironment != "" {
		c.Environment = cliEnvironment
	}

	// Derive dependent paths
	c.derivePaths()

	// Try to read encryption key from .env file as fallback (after data dir is finalized)
	if c.EncryptionKey == "" {
		if key := c.readEncryptionKeyFromEnvFile(); key != "" {
			c.EncryptionKey = key
		}
	}

	// Validate
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults sets sensible default values
func (c *Config) setDefaults() {
	c.DataDir = getDefaultDataDirWithEnv(c.env)
	c.ConfigDir = ConfigDirName
	c.LogLevel = "info"
	c.ColorEnabled = true
	c.RailwayCommand = "railway"
	c.CommandTimeout = 10 * time.Minute
	c.PollInterval = 10 * time.Second
	c.PollMaxAttempts = 30
	c.HealthInterval = 5 * time.Second
	c.HealthMaxAttempts = 12
	c.HealthTimeout = 10 * time.Second
	// Don't set default encryption key - it must be provided explicitly
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := c.env.Getenv("SHUNT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := c.env.Getenv("SHUNT_DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := c.env.Getenv("SHUNT_CONFIG_DIR"); v != "" {
		c.ConfigDir = v
	}
	if v := c.env.Getenv("SHUNT_MANIFEST"); v != "" {
		c.ManifestPath = v
	}
	if v := c.env.Getenv("SHUNT_SCHEMA"); v != "" {
		c.SchemaPath = v
	}
	if v := c.env.Getenv("SHUNT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := c.env.Getenv("SHUNT_COLOR_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.ColorEnabled = enabled
		}
	}
	if v := c.env.Getenv("SHUNT_RAILWAY_COMMAND"); v != "" {
		c.RailwayCommand = v
	}
	if v := c.env.Getenv("RAILWAY_TOKEN"); v != "" {
		c.RailwayToken = v
	}
	if v := c.env.Getenv("SHUNT_COMMAND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CommandTimeout = d
		}
	}
	if v := c.env.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := c.env.Getenv("SHUNT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := c.env.Getenv("SHUNT_POLL_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollMaxAttempts = n
		}
	}
	if v := c.env.Getenv("SHUNT_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HealthInterval = d
		}
	}
	if v := c.env.Getenv("SHUNT_HEALTH_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HealthMaxAttempts = n
		}
	}
	if v := c.env.Getenv("SHUNT_HEALTH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HealthTimeout = d
		}
	}
	if v := c.env.Getenv("SHUNT_STRICT_SMOKE"); v != "" {
		if strict, err := strconv.ParseBool(v); err == nil {
			c.StrictSmoke = strict
		}
	}
	if v := c.env.Getenv("SHUNT_SKIP_SMOKE"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.SkipSmoke = skip
		}
	}
	if v := c.env.Getenv("SHUNT_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
}

// readEncryptionKeyFromEnvFile attempts to read SHUNT_ENCRYPTION_KEY from .env file in data directory
func (c *Config) readEncryptionKeyFromEnvFile() string {
	envFile := filepath.Join(c.DataDir, ".env")

	envVars, err := dotenv.Read(envFile)
	if err != nil {
		// .env file doesn't exist or can't be read, that's okay
		return ""
	}

	return envVars["SHUNT_ENCRYPTION_KEY"]
}

// EnvFilePath returns the per-environment variable file for an environment
// name, e.g. config/staging.env.
func (c *Config) EnvFilePath(name string) string {
	return filepath.Join(c.ConfigDir, name+".env")
}

// derivePaths calculates dependent paths from the base DataDir
func (c *Config) derivePaths() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "shunt.db")
	}
}

// validate ensures configuration values are valid
func (c *Config) validate() error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warning": true, "error": true, "silent": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warning, error, or silent)", c.LogLevel)
	}

	// Validate platform command is not empty
	if c.RailwayCommand == "" {
		return fmt.Errorf("railway command cannot be empty")
	}

	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got: %v", c.CommandTimeout)
	}

	// Validate polling bounds
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.PollInterval)
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("poll max attempts must be at least 1, got: %d", c.PollMaxAttempts)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("health interval must be positive, got: %v", c.HealthInterval)
	}
	if c.HealthMaxAttempts < 1 {
		return fmt.Errorf("health max attempts must be at least 1, got: %d", c.HealthMaxAttempts)
	}
	if c.HealthTimeout <= 0 {
		return fmt.Errorf("health timeout must be positive, got: %v", c.HealthTimeout)
	}

	// Require encryption key to be provided via environment variable or .env file
	if c.EncryptionKey == "" {
		return fmt.Errorf(
			"encryption key is required - set SHUNT_ENCRYPTION_KEY environment variable or ensure .env file exists in data directory (%s)",
			c.DataDir,
		)
	}

	return nil
}

// Env returns the provider backing environment variable lookups, defaulting
// to the real OS environment.
func (c *Config) Env() EnvProvider {
	if c.env == nil {
		return &DefaultEnvProvider{}
	}
	return c.env
}

// PollConfig returns the bounded polling configuration for deployment status.
func (c *Config) PollConfig() PollConfig {
	return PollConfig{Interval: c.PollInterval, MaxAttempts: c.PollMaxAttempts}
}

// HealthPollConfig returns the bounded polling configuration for health probes.
func (c *Config) HealthPollConfig() PollConfig {
	return PollConfig{Interval: c.HealthInterval, MaxAttempts: c.HealthMaxAttempts}
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
