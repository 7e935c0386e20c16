package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T, files map[string]string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	prev := AppFs
	AppFs = fs
	t.Cleanup(func() { AppFs = prev })
}

// unsetAfter removes variables a .env file may have set.
func unsetAfter(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		t.Setenv(n, "")
		require.NoError(t, os.Unsetenv(n))
	}
}

func TestLoadExplicitFile(t *testing.T) {
	unsetAfter(t, "AQL_DATABASE_URL", "DATABASE_URL", "AQL_PROVIDER")
	memFs(t, map[string]string{
		"/project/.aql.yaml": `
provider: postgresql
database_url: postgres://localhost/clinic
catalog_path: model/catalog.yaml
plan_cache_size: 32
fetch_size: 100
constants_path: /project/constants.yaml
substitutions:
  female: "'F'"
`,
		"/project/constants.yaml": `
Status:
  ACTIVE: 1
  CLOSED: 2
Limit: 10
`,
	})

	cfg, err := Load("/project/.aql.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgresql", cfg.Provider)
	assert.Equal(t, "postgres://localhost/clinic", cfg.DatabaseURL)
	assert.Equal(t, "model/catalog.yaml", cfg.CatalogPath)
	assert.Equal(t, 32, cfg.PlanCacheSize)
	assert.Equal(t, 128, cfg.QueryCacheSize)
	assert.Equal(t, 100, cfg.FetchSize)
	assert.Equal(t, map[string]string{"female": "'F'"}, cfg.Substitutions)
	assert.Equal(t, map[string]any{"Status.ACTIVE": 1, "Status.CLOSED": 2, "Limit": 10}, cfg.Constants)
	assert.Equal(t, "/project/.aql.yaml", cfg.File)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	memFs(t, nil)
	_, err := Load("/nowhere/.aql.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	unsetAfter(t, "AQL_DATABASE_URL", "DATABASE_URL")
	t.Setenv("AQL_PROVIDER", "mysql")
	memFs(t, map[string]string{"/p/.aql.yaml": "provider: sqlite\n"})

	cfg, err := Load("/p/.aql.yaml")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Provider)
}

func TestDotEnvFiles(t *testing.T) {
	unsetAfter(t, "AQL_DATABASE_URL", "DATABASE_URL", "AQL_PROVIDER", "AQL_DEBUG")
	t.Setenv("AQL_DEBUG", "true")
	memFs(t, map[string]string{
		"/p/.aql.yaml": "catalog_path: c.yaml\n",
		".env":         "DATABASE_URL=file:base.db\nAQL_DEBUG=false\n",
		".env.local":   "DATABASE_URL=file:local.db\n",
	})

	cfg, err := Load("/p/.aql.yaml")
	require.NoError(t, err)
	assert.Equal(t, "file:local.db", cfg.DatabaseURL, ".env.local wins over .env")
	assert.True(t, cfg.Debug, "the process environment wins over .env")
	assert.Equal(t, "c.yaml", cfg.CatalogPath)
}

func TestSave(t *testing.T) {
	unsetAfter(t, "AQL_DATABASE_URL", "DATABASE_URL", "AQL_PROVIDER")
	memFs(t, nil)

	path, err := Save(&Config{Provider: "sqlite", CatalogPath: "catalog.yaml"}, "/proj")
	require.NoError(t, err)
	assert.Equal(t, "/proj/.aql.yaml", path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Provider)
	assert.Equal(t, "catalog.yaml", cfg.CatalogPath)
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"A": map[string]any{"B": map[string]any{"C": "x"}},
		"D": 1,
	})
	assert.Equal(t, map[string]any{"A.B.C": "x", "D": 1}, got)
}
