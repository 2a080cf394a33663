package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shunt-cd/shunt/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest_EmbeddedDefault(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)

	assert.Equal(t, "anime", m.App)
	require.Len(t, m.Services, 3)

	database, ok := m.Service(domain.RoleDatabase)
	require.True(t, ok)
	assert.True(t, database.Internal)
	assert.Empty(t, database.DependsOn)

	backend, ok := m.Service(domain.RoleBackend)
	require.True(t, ok)
	assert.Equal(t, "/health", backend.HealthPath)
	assert.Equal(t, []domain.ServiceRole{domain.RoleDatabase}, backend.DependsOn)

	frontend, ok := m.Service(domain.RoleFrontend)
	require.True(t, ok)
	assert.Equal(t, "/", frontend.HealthPath)
	assert.Equal(t, []domain.ServiceRole{domain.RoleBackend}, frontend.DependsOn)
}

func TestLoadManifest_DefaultLateBoundVariables(t *testing.T) {
	m, err := LoadManifest("")
	require.NoError(t, err)

	backend, ok := m.Service(domain.RoleBackend)
	require.True(t, ok)

	var dbURL *domain.VariableSpec
	for i := range backend.Variables {
		if backend.Variables[i].Name == "DATABASE_URL" {
			dbURL = &backend.Variables[i]
		}
	}
	require.NotNil(t, dbURL)
	require.NotNil(t, dbURL.FromService)
	assert.Equal(t, domain.RoleDatabase, dbURL.FromService.Role)
	assert.Equal(t, domain.FieldConnectionURL, dbURL.FromService.Field)
	assert.True(t, dbURL.Secret)
}

func TestLoadManifest_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	content := `
app: demo
services:
  - role: database
    source_dir: db
    internal: true
  - role: backend
    source_dir: api
    health_path: /health
    depends_on: [database]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.App)
	assert.Len(t, m.Services, 2)
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading manifest")
}

func TestLoadManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing app name",
			content: "services:\n  - role: backend\n    source_dir: api\n",
			wantErr: "app name is required",
		},
		{
			name:    "no services",
			content: "app: demo\n",
			wantErr: "at least one service",
		},
		{
			name:    "invalid role",
			content: "app: demo\nservices:\n  - role: cache\n    source_dir: cache\n",
			wantErr: "invalid service role",
		},
		{
			name: "duplicate role",
			content: `app: demo
services:
  - role: backend
    source_dir: a
  - role: backend
    source_dir: b
`,
			wantErr: "duplicate service role",
		},
		{
			name:    "missing source dir",
			content: "app: demo\nservices:\n  - role: backend\n",
			wantErr: "source_dir is required",
		},
		{
			name: "undeclared dependency",
			content: `app: demo
services:
  - role: backend
    source_dir: api
    depends_on: [database]
`,
			wantErr: "depends on undeclared service",
		},
		{
			name: "dependency cycle",
			content: `app: demo
services:
  - role: backend
    source_dir: api
    depends_on: [frontend]
  - role: frontend
    source_dir: web
    depends_on: [backend]
`,
			wantErr: "dependency cycle",
		},
		{
			name: "variable with two sources",
			content: `app: demo
services:
  - role: backend
    source_dir: api
    variables:
      - name: X
        value: a
        from_env: B
`,
			wantErr: "exactly one of",
		},
		{
			name: "variable with no source",
			content: `app: demo
services:
  - role: backend
    source_dir: api
    variables:
      - name: X
`,
			wantErr: "exactly one of",
		},
		{
			name: "variable referencing invalid field",
			content: `app: demo
services:
  - role: database
    source_dir: db
  - role: backend
    source_dir: api
    variables:
      - name: X
        from_service: {role: database, field: hostname}
`,
			wantErr: "invalid field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "app.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := LoadManifest(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifest_DeployOrder(t *testing.T) {
	t.Run("default manifest order", func(t *testing.T) {
		m, err := LoadManifest("")
		require.NoError(t, err)

		order, err := m.DeployOrder()
		require.NoError(t, err)
		roles := make([]domain.ServiceRole, len(order))
		for i, svc := range order {
			roles[i] = svc.Role
		}
		assert.Equal(t, []domain.ServiceRole{domain.RoleDatabase, domain.RoleBackend, domain.RoleFrontend}, roles)
	})

	t.Run("declaration order does not matter", func(t *testing.T) {
		m := &Manifest{
			App: "demo",
			Services: []domain.ServiceSpec{
				{Role: domain.RoleFrontend, SourceDir: "web", DependsOn: []domain.ServiceRole{domain.RoleBackend}},
				{Role: domain.RoleBackend, SourceDir: "api", DependsOn: []domain.ServiceRole{domain.RoleDatabase}},
				{Role: domain.RoleDatabase, SourceDir: "db"},
			},
		}

		order, err := m.DeployOrder()
		require.NoError(t, err)
		roles := make([]domain.ServiceRole, len(order))
		for i, svc := range order {
			roles[i] = svc.Role
		}
		assert.Equal(t, []domain.ServiceRole{domain.RoleDatabase, domain.RoleBackend, domain.RoleFrontend}, roles)
	})
}

func TestManifest_ServiceName(t *testing.T) {
	m := &Manifest{App: "anime"}
	assert.Equal(t, "anime-backend-staging", m.ServiceName(domain.RoleBackend, domain.EnvStaging))
	assert.Equal(t, "anime-database-production", m.ServiceName(domain.RoleDatabase, domain.EnvProduction))
}
