package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/config"
	"github.com/relicta-tech/bitsmith/internal/observability"
)

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "bitsmith 1.2.3\n", out.String())
}

func TestLoadAndValidateConfig_Workspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bitsmith.config.yaml"),
		[]byte("tag:\n  default_release_type: minor\n"), 0o644))

	origDir, origCfg, origFile := workspaceDir, cfg, cfgFile
	t.Cleanup(func() { workspaceDir, cfg, cfgFile = origDir, origCfg, origFile })
	workspaceDir, cfgFile = dir, ""

	require.NoError(t, loadAndValidateConfig())
	assert.Equal(t, dir, cfg.Workspace.Root)
	assert.Equal(t, "minor", cfg.Tag.DefaultReleaseType)
}

func TestLoadAndValidateConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  concurrency: -1\n"), 0o644))

	origDir, origCfg, origFile := workspaceDir, cfg, cfgFile
	t.Cleanup(func() { workspaceDir, cfg, cfgFile = origDir, origCfg, origFile })
	workspaceDir, cfgFile = "", path

	err := loadAndValidateConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFlushMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitsmith.prom")

	origCfg, origMetrics := cfg, metrics
	t.Cleanup(func() { cfg, metrics = origCfg, origMetrics })
	cfg = config.DefaultConfig()
	cfg.Metrics.Textfile = path
	metrics = observability.NewMetrics("test")

	require.NoError(t, flushMetrics("status"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bitsmith_command_duration_seconds_count{command="status"} 1`)
}

func TestFlushMetrics_Disabled(t *testing.T) {
	origMetrics := metrics
	t.Cleanup(func() { metrics = origMetrics })
	metrics = nil

	assert.NoError(t, flushMetrics("status"))
}
