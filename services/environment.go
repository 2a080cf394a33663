package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/shunt-cd/shunt/domain"
)

const (
	// placeholderPrefix marks template values that were never filled in,
	// e.g. RAILWAY_PROJECT_ID_STAGING=your_staging_project_id.
	placeholderPrefix = "your_"

	corsMaxAgeStaging    = 3600
	corsMaxAgeProduction = 86400
)

// localhostOrigins are appended to staging CORS origins so local frontends
// can talk to the deployed staging backend.
var localhostOrigins = []string{"http://localhost:3000", "http://localhost:8000"}

// suffixedKeys are the per-environment configuration keys the resolver looks
// up even when they are absent from the environment's dotenv file.
var suffixedKeys = []string{
	"RAILWAY_PROJECT_ID",
	"BACKEND_URL",
	"FRONTEND_URL",
	"CORS_ORIGINS",
}

// EnvironmentResolver resolves a raw environment name into a fully populated
// immutable Environment. Resolution is deterministic: the same inputs always
// produce the same Environment, and the failure paths never touch the
// platform.
type EnvironmentResolver struct {
	config *Config
}

func NewEnvironmentResolver(config *Config) *EnvironmentResolver {
	return &EnvironmentResolver{config: config}
}

var _ EnvironmentSource = (*EnvironmentResolver)(nil)

// Resolve parses and resolves the raw environment name. Name matching is
// exact and case-sensitive; an unconfigured project ID is an error because
// nothing can be deployed without one.
func (r *EnvironmentResolver) Resolve(raw string) (*domain.Environment, error) {
	name, err := domain.ParseEnvironmentName(raw)
	if err != nil {
		return nil, err
	}

	values := r.loadValues(name)

	projectID := values["RAILWAY_PROJECT_ID"]
	if projectID == "" {
		return nil, fmt.Errorf("%w for environment %s: set RAILWAY_PROJECT_ID_%s", ErrMissingProjectID, name, name.Suffix())
	}

	env := &domain.Environment{
		Name:        name,
		ProjectID:   projectID,
		BackendURL:  values["BACKEND_URL"],
		FrontendURL: values["FRONTEND_URL"],
		Values:      values,
	}

	env.CORSOrigins = corsOrigins(name, values["CORS_ORIGINS"], env.FrontendURL)
	if name == domain.EnvProduction {
		env.CORSMaxAge = corsMaxAgeProduction
	} else {
		env.CORSMaxAge = corsMaxAgeStaging
	}

	// Derived keys join the value set so late-bound variable specs can
	// reference them by their base names.
	values["ENVIRONMENT"] = string(name)
	values["CORS_ORIGINS"] = strings.Join(env.CORSOrigins, ",")
	values["CORS_MAX_AGE"] = fmt.Sprintf("%d", env.CORSMaxAge)

	slog.Debug("Resolved environment",
		"environment", name,
		"project_id", projectID,
		"cors_origins", len(env.CORSOrigins))
	return env, nil
}

// loadValues merges the environment's dotenv file with process variables.
// Process variables win. Keys suffixed for this environment (NAME_STAGING /
// NAME_PROD) are normalized to their base names; keys suffixed for the other
// environment are dropped. Placeholder values are treated as unset.
func (r *EnvironmentResolver) loadValues(name domain.EnvironmentName) map[string]string {
	merged := map[string]string{}

	fileVars, err := dotenv.Read(r.config.EnvFilePath(name.String()))
	if err != nil {
		// Variable file is optional; process environment may carry everything.
		slog.Debug("No environment variable file", "environment", name, "path", r.config.EnvFilePath(name.String()))
		fileVars = map[string]string{}
	}

	keys := make([]string, 0, len(fileVars))
	for k := range fileVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	thisSuffix := "_" + name.Suffix()
	otherSuffix := "_" + otherEnvironment(name).Suffix()

	for _, k := range keys {
		v := fileVars[k]
		if pv := r.config.Env().Getenv(k); pv != "" {
			v = pv
		}
		if isPlaceholder(v) {
			continue
		}
		switch {
		case strings.HasSuffix(k, thisSuffix):
			merged[strings.TrimSuffix(k, thisSuffix)] = v
		case strings.HasSuffix(k, otherSuffix):
			// Belongs to the other environment.
		default:
			merged[k] = v
		}
	}

	// Contract keys are honored from the process environment even when the
	// variable file does not mention them.
	for _, base := range suffixedKeys {
		if merged[base] != "" {
			continue
		}
		if v := r.config.Env().Getenv(base + thisSuffix); v != "" && !isPlaceholder(v) {
			merged[base] = v
		}
	}

	return merged
}

// Check reports the readiness of an environment's configuration without
// resolving it. Failed required checks mean a rollout cannot start.
type CheckResult struct {
	Name     string
	Value    string
	Required bool
	OK       bool
	Detail   string
}

func (r *EnvironmentResolver) Check(raw string) []CheckResult {
	var results []CheckResult

	name, err := domain.ParseEnvironmentName(raw)
	if err != nil {
		return []CheckResult{{
			Name:     "ENVIRONMENT",
			Value:    raw,
			Required: true,
			OK:       false,
			Detail:   fmt.Sprintf("must be %q or %q (case-sensitive)", domain.EnvStaging, domain.EnvProduction),
		}}
	}
	results = append(results, CheckResult{Name: "ENVIRONMENT", Value: raw, Required: true, OK: true})

	if r.config.RailwayToken == "" {
		results = append(results, CheckResult{
			Name: "RAILWAY_TOKEN", Required: true, OK: false,
			Detail: "platform authentication token is not set",
		})
	} else {
		results = append(results, CheckResult{Name: "RAILWAY_TOKEN", Value: r.config.RailwayToken, Required: true, OK: true})
	}

	values := r.loadValues(name)
	suffix := name.Suffix()

	check := func(base string, required bool, detail string) {
		v := values[base]
		results = append(results, CheckResult{
			Name:     base + "_" + suffix,
			Value:    v,
			Required: required,
			OK:       v != "",
			Detail:   detail,
		})
	}

	check("RAILWAY_PROJECT_ID", true, "platform project to deploy into")
	check("CORS_ORIGINS", false, "extra allowed browser origins for the backend")
	check("BACKEND_URL", false, "known backend URL, used before the first deployment")
	check("FRONTEND_URL", false, "known frontend URL, used for CORS and smoke tests")

	return results
}

func otherEnvironment(name domain.EnvironmentName) domain.EnvironmentName {
	if name == domain.EnvProduction {
		return domain.EnvStaging
	}
	return domain.EnvProduction
}

func isPlaceholder(v string) bool {
	return strings.HasPrefix(strings.ToLower(v), placeholderPrefix)
}

// corsOrigins derives the allowed browser origins for an environment:
// configured origins first, then the frontend URL, then (staging only) the
// localhost development origins. Duplicates are removed preserving order.
func corsOrigins(name domain.EnvironmentName, configured, frontendURL string) []string {
	var origins []string
	for _, o := range strings.Split(configured, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	if name == domain.EnvStaging {
		origins = append(origins, localhostOrigins...)
	}

	seen := make(map[string]bool, len(origins))
	deduped := origins[:0]
	for _, o := range origins {
		o = strings.TrimRight(o, "/")
		if seen[o] {
			continue
		}
		seen[o] = true
		deduped = append(deduped, o)
	}
	return deduped
}
