// Package domain provides core domain types and entities for Shunt.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEnvironment is returned when an environment name is not exactly
// one of the supported names.
var ErrInvalidEnvironment = errors.New("invalid environment")

// EnvironmentName identifies a deployment target environment.
type EnvironmentName string

const (
	EnvStaging    EnvironmentName = "staging"
	EnvProduction EnvironmentName = "production"
)

// String implements the Stringer interface
func (e EnvironmentName) String() string {
	return string(e)
}

// IsValid checks if the EnvironmentName is valid
func (e EnvironmentName) IsValid() bool {
	switch e {
	case EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// Suffix returns the variable name suffix for this environment, following the
// {NAME}_{SUFFIX} convention: BACKEND_URL_STAGING, RAILWAY_PROJECT_ID_PROD.
func (e EnvironmentName) Suffix() string {
	if e == EnvProduction {
		return "PROD"
	}
	return strings.ToUpper(string(e))
}

// ParseEnvironmentName parses a string into an EnvironmentName. Matching is
// exact and case-sensitive: "Staging" and "PRODUCTION" are rejected.
func ParseEnvironmentName(s string) (EnvironmentName, error) {
	name := EnvironmentName(s)
	if !name.IsValid() {
		return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidEnvironment, s, EnvStaging, EnvProduction)
	}
	return name, nil
}

// Environment is a fully resolved deployment target. It is constructed once by
// the environment resolver and passed to collaborators as-is; nothing
// downstream performs its own environment variable lookups.
type Environment struct {
	Name        EnvironmentName
	ProjectID   string
	CORSOrigins []string
	CORSMaxAge  int    // seconds, passed to the backend's CORS middleware
	BackendURL  string // known public backend URL, if configured
	FrontendURL string // known public frontend URL, if configured

	// Values holds the merged per-environment configuration: the
	// environment's dotenv file overlaid with process variables, suffixed
	// keys (NAME_STAGING / NAME_PROD) normalized to their base names, and
	// derived keys (CORS_ORIGINS, CORS_MAX_AGE) included.
	Values map[string]string
}

// Value returns the configuration value for key, or the empty string.
func (e *Environment) Value(key string) string {
	return e.Values[key]
}
