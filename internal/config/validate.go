package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// ValidationError contains all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Errors:\n  - %s", strings.Join(e.Errors, "\n  - ")))
	}
	if len(e.Warnings) > 0 {
		parts = append(parts, fmt.Sprintf("Warnings:\n  - %s", strings.Join(e.Warnings, "\n  - ")))
	}
	return fmt.Sprintf("configuration validation failed:\n%s", strings.Join(parts, "\n"))
}

// HasErrors returns true if there are validation errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Addf adds a formatted error.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Warnf adds a formatted warning.
func (e *ValidationError) Warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Validator validates configuration.
type Validator struct {
	errors *ValidationError
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: &ValidationError{}}
}

// Warnings returns the warnings collected by the last Validate call.
func (v *Validator) Warnings() []string {
	return v.errors.Warnings
}

// Validate validates the configuration. Warnings never fail validation; the
// caller decides how to surface them.
func (v *Validator) Validate(cfg *Config) error {
	v.validateWorkspace(cfg.Workspace)
	v.validateStore(cfg.Store)
	v.validateTag(cfg.Tag)
	v.validatePipeline(cfg.Pipeline)
	v.validateOutput(cfg.Output)

	if cfg.Artifacts.Dir == "" {
		v.errors.Addf("artifacts.dir: must not be empty")
	}

	if v.errors.HasErrors() {
		return bserrors.Validation("config.Validate", v.errors.Error())
	}
	return nil
}

func (v *Validator) validateWorkspace(cfg WorkspaceConfig) {
	valid := []string{"hash", "git"}
	if !slices.Contains(valid, cfg.ChangeDetection) {
		v.errors.Addf("workspace.change_detection: must be one of %v, got %q", valid, cfg.ChangeDetection)
	}
	if cfg.Manifest != "" && !hasAnySuffix(cfg.Manifest, ".yaml", ".yml", ".toml") {
		v.errors.Addf("workspace.manifest: must be a .yaml, .yml or .toml file, got %q", cfg.Manifest)
	}
}

func (v *Validator) validateStore(cfg StoreConfig) {
	valid := []string{"file", "sqlite"}
	if !slices.Contains(valid, cfg.Driver) {
		v.errors.Addf("store.driver: must be one of %v, got %q", valid, cfg.Driver)
	}
	if cfg.Path == "" {
		v.errors.Addf("store.path: must not be empty")
	}
}

func (v *Validator) validateTag(cfg TagConfig) {
	if _, err := version.ParseBumpType(cfg.DefaultReleaseType); err != nil {
		v.errors.Addf("tag.default_release_type: %v", err)
	}
	if _, err := component.ParseIgnoreSet(cfg.IgnoreIssues); err != nil {
		v.errors.Addf("tag.ignore_issues: %v", err)
	}
	if cfg.IgnoreIssues == "*" {
		v.errors.Warnf("tag.ignore_issues: '*' disables issue gating for every tag")
	}
}

func (v *Validator) validatePipeline(cfg PipelineConfig) {
	if cfg.Concurrency < 1 {
		v.errors.Addf("pipeline.concurrency: must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.RetryAttempts < 1 {
		v.errors.Addf("pipeline.retry_attempts: must be at least 1, got %d", cfg.RetryAttempts)
	}
	if cfg.Timeout <= 0 {
		v.errors.Addf("pipeline.timeout: must be positive, got %s", cfg.Timeout)
	}
	if cfg.Shell == "" {
		v.errors.Addf("pipeline.shell: must not be empty")
	}
}

func (v *Validator) validateOutput(cfg OutputConfig) {
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, cfg.Format) {
		v.errors.Addf("output.format: must be one of %v, got %q", validFormats, cfg.Format)
	}
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.LogLevel) {
		v.errors.Addf("output.log_level: must be one of %v, got %q", validLevels, cfg.LogLevel)
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// Validate validates cfg with a fresh validator.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
