package domain

import (
	"fmt"

	"github.com/gosimple/slug"
)

// ServiceRole identifies a service's tier in the application.
type ServiceRole string

const (
	RoleDatabase ServiceRole = "database"
	RoleBackend  ServiceRole = "backend"
	RoleFrontend ServiceRole = "frontend"
)

// String implements the Stringer interface
func (r ServiceRole) String() string {
	return string(r)
}

// IsValid checks if the ServiceRole is valid
func (r ServiceRole) IsValid() bool {
	switch r {
	case RoleDatabase, RoleBackend, RoleFrontend:
		return true
	default:
		return false
	}
}

// ParseServiceRole parses a string into a ServiceRole
func ParseServiceRole(s string) (ServiceRole, error) {
	role := ServiceRole(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid service role: %q", s)
	}
	return role, nil
}

// ResultField selects a field of a DeploymentResult for late-bound variable
// references.
type ResultField string

const (
	// FieldURL is the public https URL of a deployed service.
	FieldURL ResultField = "url"
	// FieldConnectionURL is the connection string of a deployed database.
	FieldConnectionURL ResultField = "connection_url"
)

// IsValid checks if the ResultField is valid
func (f ResultField) IsValid() bool {
	switch f {
	case FieldURL, FieldConnectionURL:
		return true
	default:
		return false
	}
}

// ServiceRef is a late-bound reference to a field of another service's
// deployment result, resolved only once that service has deployed.
type ServiceRef struct {
	Role  ServiceRole `yaml:"role"`
	Field ResultField `yaml:"field"`
}

// VariableSpec declares one configuration variable for a service. Exactly one
// of Value, FromEnv or FromService must be set.
type VariableSpec struct {
	Name        string      `yaml:"name"`
	Value       string      `yaml:"value,omitempty"`
	FromEnv     string      `yaml:"from_env,omitempty"`
	FromService *ServiceRef `yaml:"from_service,omitempty"`
	Secret      bool        `yaml:"secret,omitempty"`
}

// ServiceSpec describes one deployable service of the application. The
// platform service name is not stored here; it is derived per environment
// with ServiceName.
type ServiceSpec struct {
	Role       ServiceRole    `yaml:"role"`
	SourceDir  string         `yaml:"source_dir"`
	Internal   bool           `yaml:"internal,omitempty"`
	HealthPath string         `yaml:"health_path,omitempty"`
	DependsOn  []ServiceRole  `yaml:"depends_on,omitempty"`
	Variables  []VariableSpec `yaml:"variables,omitempty"`
}

// ServiceName derives the platform service name for a role in an environment:
// {app}-{role}-{environment}, slugified.
func ServiceName(app string, role ServiceRole, env EnvironmentName) string {
	return slug.Make(fmt.Sprintf("%s-%s-%s", app, role, env))
}
