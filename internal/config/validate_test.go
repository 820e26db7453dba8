package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

func TestValidate_Default(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"change detection", func(c *Config) { c.Workspace.ChangeDetection = "svn" }, "workspace.change_detection"},
		{"manifest extension", func(c *Config) { c.Workspace.Manifest = "bitsmith.json" }, "workspace.manifest"},
		{"store driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"release type", func(c *Config) { c.Tag.DefaultReleaseType = "huge" }, "tag.default_release_type"},
		{"ignore issues", func(c *Config) { c.Tag.IgnoreIssues = "Nope" }, "tag.ignore_issues"},
		{"concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"retry attempts", func(c *Config) { c.Pipeline.RetryAttempts = 0 }, "pipeline.retry_attempts"},
		{"timeout", func(c *Config) { c.Pipeline.Timeout = -time.Second }, "pipeline.timeout"},
		{"shell", func(c *Config) { c.Pipeline.Shell = "" }, "pipeline.shell"},
		{"artifacts dir", func(c *Config) { c.Artifacts.Dir = "" }, "artifacts.dir"},
		{"output format", func(c *Config) { c.Output.Format = "yaml" }, "output.format"},
		{"log level", func(c *Config) { c.Output.LogLevel = "trace" }, "output.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, bserrors.IsKind(err, bserrors.KindValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_WildcardIgnoreWarns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tag.IgnoreIssues = "*"

	v := NewValidator()
	require.NoError(t, v.Validate(cfg))
	require.Len(t, v.Warnings(), 1)
	assert.Contains(t, v.Warnings()[0], "tag.ignore_issues")
}
