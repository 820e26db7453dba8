package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

func TestLoader_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := NewLoader().WithSearchPaths(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: sqlite
  path: .bitsmith/store.db
tag:
  require_message: true
  ignore_issues: UntrackedFiles
pipeline:
  concurrency: 2
  timeout: 30s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".bitsmith.yaml"), []byte(content), 0o644))

	loader := NewLoader().WithSearchPaths(dir)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, ".bitsmith/store.db", cfg.Store.Path)
	assert.True(t, cfg.Tag.RequireMessage)
	assert.Equal(t, "UntrackedFiles", cfg.Tag.IgnoreIssues)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Timeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, "hash", cfg.Workspace.ChangeDetection)
	assert.Equal(t, filepath.Join(dir, ".bitsmith.yaml"), loader.GetConfigPath())
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("BITSMITH_STORE_DRIVER", "sqlite")
	t.Setenv("BITSMITH_PIPELINE_CONCURRENCY", "8")

	cfg, err := NewLoader().WithSearchPaths(t.TempDir()).Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoader_ExplicitPathMissing(t *testing.T) {
	_, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.Error(t, err)
	assert.True(t, bserrors.IsKind(err, bserrors.KindConfig))
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("BITSMITH_TEST_DIR", "/var/cache")

	assert.Equal(t, "/var/cache/store", expandEnvVar("${BITSMITH_TEST_DIR}/store"))
	assert.Equal(t, "fallback/store", expandEnvVar("${BITSMITH_UNSET_VAR:-fallback}/store"))
	assert.Equal(t, "plain", expandEnvVar("plain"))
	assert.Equal(t, "", expandEnvVar(""))
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()

	_, err := FindConfigFile(dir)
	assert.True(t, bserrors.IsKind(err, bserrors.KindNotFound))

	path := filepath.Join(dir, "bitsmith.config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\ndriver = \"file\"\n"), 0o644))

	got, err := FindConfigFile(dir)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
