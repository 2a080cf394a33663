package services

import (
	"fmt"

	"github.com/shunt-cd/shunt/domain"
)

// Variable is one resolved configuration variable for a service.
type Variable struct {
	Name   string
	Value  string
	Secret bool
}

// VariableSet is an ordered, validated collection of service configuration
// variables. Construction rejects empty names, duplicate names, and empty
// values, so an instance always represents a deployable set.
type VariableSet struct {
	vars  []Variable
	index map[string]int
}

func NewVariableSet(vars []Variable) (*VariableSet, error) {
	s := &VariableSet{
		vars:  make([]Variable, 0, len(vars)),
		index: make(map[string]int, len(vars)),
	}
	for _, v := range vars {
		if v.Name == "" {
			return nil, fmt.Errorf("variable with empty name")
		}
		if _, exists := s.index[v.Name]; exists {
			return nil, fmt.Errorf("duplicate variable %s", v.Name)
		}
		if v.Value == "" {
			return nil, fmt.Errorf("variable %s has an empty value", v.Name)
		}
		s.index[v.Name] = len(s.vars)
		s.vars = append(s.vars, v)
	}
	return s, nil
}

func (s *VariableSet) Len() int {
	return len(s.vars)
}

// Get returns the value for name.
func (s *VariableSet) Get(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.vars[i].Value, true
}

// All returns the variables in declaration order.
func (s *VariableSet) All() []Variable {
	out := make([]Variable, len(s.vars))
	copy(out, s.vars)
	return out
}

// Recorded returns the variables as deployment-result records, so the run
// persists the configuration each service was given.
func (s *VariableSet) Recorded() []domain.RecordedVariable {
	out := make([]domain.RecordedVariable, len(s.vars))
	for i, v := range s.vars {
		out[i] = domain.RecordedVariable{Name: v.Name, Value: v.Value, Secret: v.Secret}
	}
	return out
}

// Args renders the variables as NAME=value pairs in declaration order, the
// form the platform CLI expects for --set flags.
func (s *VariableSet) Args() []string {
	args := make([]string, len(s.vars))
	for i, v := range s.vars {
		args[i] = fmt.Sprintf("%s=%s", v.Name, v.Value)
	}
	return args
}

// ResolveVariables builds the VariableSet for a service from its declared
// variable specs. Literals pass through, from_env values come from the
// resolved environment, and from_service references are late-bound against
// the deployment results of services that deployed earlier in the rollout.
// Any unresolvable variable fails here, before the platform is touched.
func ResolveVariables(
	spec domain.ServiceSpec,
	serviceName string,
	env *domain.Environment,
	prior map[domain.ServiceRole]*domain.DeploymentResult,
) (*VariableSet, error) {
	vars := make([]Variable, 0, len(spec.Variables))

	for _, vs := range spec.Variables {
		var value, source string
		switch {
		case vs.Value != "":
			value = vs.Value
			source = "literal"
		case vs.FromEnv != "":
			value = env.Value(vs.FromEnv)
			source = fmt.Sprintf("environment value %s", vs.FromEnv)
		case vs.FromService != nil:
			source = fmt.Sprintf("%s.%s", vs.FromService.Role, vs.FromService.Field)
			result := prior[vs.FromService.Role]
			if result == nil || result.Status != domain.DeployStatusDeployed {
				return nil, &UnresolvedVariableError{Service: serviceName, Variable: vs.Name, Source: source}
			}
			value = result.Field(vs.FromService.Field)
		default:
			// Unreachable for manifests that passed validation.
			return nil, fmt.Errorf("variable %s for %s has no source", vs.Name, serviceName)
		}

		if value == "" {
			return nil, &UnresolvedVariableError{Service: serviceName, Variable: vs.Name, Source: source}
		}
		vars = append(vars, Variable{Name: vs.Name, Value: value, Secret: vs.Secret})
	}

	set, err := NewVariableSet(vars)
	if err != nil {
		return nil, fmt.Errorf("building variable set for %s: %w", serviceName, err)
	}
	return set, nil
}
