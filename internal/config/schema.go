// Package config provides configuration management for bitsmith.
package config

import (
	"time"
)

// Config is the root configuration for bitsmith.
type Config struct {
	// Workspace configures where components are declared and how changes are detected.
	Workspace WorkspaceConfig `mapstructure:"workspace" json:"workspace"`
	// Store configures the version and soft-tag store.
	Store StoreConfig `mapstructure:"store" json:"store"`
	// Tag configures tagging defaults.
	Tag TagConfig `mapstructure:"tag" json:"tag"`
	// Pipeline configures build and test task execution.
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`
	// Artifacts configures artifact storage.
	Artifacts ArtifactsConfig `mapstructure:"artifacts" json:"artifacts"`
	// Output configures output settings.
	Output OutputConfig `mapstructure:"output" json:"output"`
	// Metrics configures metrics export.
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// WorkspaceConfig configures the workspace.
type WorkspaceConfig struct {
	// Root is the workspace root directory.
	Root string `mapstructure:"root" json:"root"`
	// Manifest is the component manifest, relative to Root. Empty means
	// bitsmith.yaml, bitsmith.yml or bitsmith.toml, whichever exists.
	Manifest string `mapstructure:"manifest" json:"manifest,omitempty"`
	// ChangeDetection selects the modification detector (hash, git).
	ChangeDetection string `mapstructure:"change_detection" json:"change_detection"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	// Driver is the store implementation (file, sqlite).
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the store location relative to the workspace root: a directory
	// for the file driver, a database file for sqlite.
	Path string `mapstructure:"path" json:"path"`
}

// TagConfig configures tagging.
type TagConfig struct {
	// RequireMessage turns the missing-message warning into an error.
	RequireMessage bool `mapstructure:"require_message" json:"require_message"`
	// DefaultReleaseType is used when no release type flag is given.
	DefaultReleaseType string `mapstructure:"default_release_type" json:"default_release_type"`
	// SkipAutoTag disables auto-tagging of dependents by default.
	SkipAutoTag bool `mapstructure:"skip_auto_tag" json:"skip_auto_tag"`
	// IgnoreIssues is the default ignore set ("*" or a comma-separated list).
	IgnoreIssues string `mapstructure:"ignore_issues" json:"ignore_issues,omitempty"`
}

// PipelineConfig configures task execution.
type PipelineConfig struct {
	// Concurrency bounds how many components run their pipelines at once.
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
	// RetryAttempts is the number of attempts per task.
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`
	// RetryInitialWait is the delay before the first retry.
	RetryInitialWait time.Duration `mapstructure:"retry_initial_wait" json:"retry_initial_wait"`
	// Timeout bounds a single task attempt.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// Shell runs task commands.
	Shell string `mapstructure:"shell" json:"shell"`
}

// ArtifactsConfig configures artifact storage.
type ArtifactsConfig struct {
	// Dir is where task outputs are stored, relative to the workspace root.
	Dir string `mapstructure:"dir" json:"dir"`
}

// OutputConfig configures output settings.
type OutputConfig struct {
	// Format is the output format (text, json).
	Format string `mapstructure:"format" json:"format"`
	// Color enables colored output.
	Color bool `mapstructure:"color" json:"color"`
	// Verbose enables verbose output.
	Verbose bool `mapstructure:"verbose" json:"verbose"`
	// LogFile is the path to a log file.
	LogFile string `mapstructure:"log_file" json:"log_file,omitempty"`
	// LogLevel is the log level (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in the Prometheus text
	// format after each command.
	Textfile string `mapstructure:"textfile" json:"textfile,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:            ".",
			ChangeDetection: "hash",
		},
		Store: StoreConfig{
			Driver: "file",
			Path:   ".bitsmith/store",
		},
		Tag: TagConfig{
			DefaultReleaseType: "patch",
		},
		Pipeline: PipelineConfig{
			Concurrency:      4,
			RetryAttempts:    1,
			RetryInitialWait: time.Second,
			Timeout:          10 * time.Minute,
			Shell:            "sh",
		},
		Artifacts: ArtifactsConfig{
			Dir: ".bitsmith/artifacts",
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			LogLevel: "info",
		},
	}
}

// ConfigFileNames to search for.
var ConfigFileNames = []string{
	"bitsmith.config",
	".bitsmith",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"json",
	"toml",
}
