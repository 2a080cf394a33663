package services

import (
	_ "embed" // Required for go:embed
	"fmt"
	"os"

	"github.com/shunt-cd/shunt/domain"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Manifest declares the application's services and their dependency graph.
// The graph is data, not code: deployment order is computed from the declared
// depends_on edges.
type Manifest struct {
	App      string               `yaml:"app"`
	Services []domain.ServiceSpec `yaml:"services"`
}

// LoadManifest reads and validates the manifest at path, or the embedded
// default manifest when path is empty.
func LoadManifest(path string) (*Manifest, error) {
	data := defaultManifest
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading manifest: %w", err)
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Service returns the spec for a role.
func (m *Manifest) Service(role domain.ServiceRole) (*domain.ServiceSpec, bool) {
	for i := range m.Services {
		if m.Services[i].Role == role {
			return &m.Services[i], true
		}
	}
	return nil, false
}

// ServiceName derives the platform service name for a role in an environment.
func (m *Manifest) ServiceName(role domain.ServiceRole, env domain.EnvironmentName) string {
	return domain.ServiceName(m.App, role, env)
}

// DeployOrder returns the services in dependency order: every service comes
// after all services it depends on. Declared order breaks ties, so the
// default manifest always yields database, backend, frontend.
func (m *Manifest) DeployOrder() ([]domain.ServiceSpec, error) {
	emitted := make(map[domain.ServiceRole]bool, len(m.Services))
	order := make([]domain.ServiceSpec, 0, len(m.Services))

	for len(order) < len(m.Services) {
		progressed := false
		for _, svc := range m.Services {
			if emitted[svc.Role] {
				continue
			}
			ready := true
			for _, dep := range svc.DependsOn {
				if !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				emitted[svc.Role] = true
				order = append(order, svc)
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among services")
		}
	}
	return order, nil
}

func (m *Manifest) validate() error {
	if m.App == "" {
		return fmt.Errorf("app name is required")
	}
	if len(m.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}

	roles := make(map[domain.ServiceRole]bool, len(m.Services))
	for _, svc := range m.Services {
		if !svc.Role.IsValid() {
			return fmt.Errorf("invalid service role: %q", svc.Role)
		}
		if roles[svc.Role] {
			return fmt.Errorf("duplicate service role: %s", svc.Role)
		}
		roles[svc.Role] = true

		if svc.SourceDir == "" {
			return fmt.Errorf("service %s: source_dir is required", svc.Role)
		}

		names := make(map[string]bool, len(svc.Variables))
		for _, v := range svc.Variables {
			if v.Name == "" {
				return fmt.Errorf("service %s: variable with empty name", svc.Role)
			}
			if names[v.Name] {
				return fmt.Errorf("service %s: duplicate variable %s", svc.Role, v.Name)
			}
			names[v.Name] = true

			sources := 0
			if v.Value != "" {
				sources++
			}
			if v.FromEnv != "" {
				sources++
			}
			if v.FromService != nil {
				sources++
				if !v.FromService.Role.IsValid() {
					return fmt.Errorf("service %s: variable %s references invalid role %q", svc.Role, v.Name, v.FromService.Role)
				}
				if !v.FromService.Field.IsValid() {
					return fmt.Errorf("service %s: variable %s references invalid field %q", svc.Role, v.Name, v.FromService.Field)
				}
			}
			if sources != 1 {
				return fmt.Errorf("service %s: variable %s must have exactly one of value, from_env, from_service", svc.Role, v.Name)
			}
		}
	}

	for _, svc := range m.Services {
		for _, dep := range svc.DependsOn {
			if !roles[dep] {
				return fmt.Errorf("service %s depends on undeclared service %s", svc.Role, dep)
			}
			if dep == svc.Role {
				return fmt.Errorf("service %s depends on itself", svc.Role)
			}
		}
		for _, v := range svc.Variables {
			if v.FromService != nil && !roles[v.FromService.Role] {
				return fmt.Errorf("service %s: variable %s references undeclared service %s", svc.Role, v.Name, v.FromService.Role)
			}
		}
	}

	// Surfaces cycles at load time rather than mid-rollout.
	if _, err := m.DeployOrder(); err != nil {
		return err
	}
	return nil
}
