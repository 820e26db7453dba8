package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// EnvPrefix prefixes environment overrides, e.g. BITSMITH_STORE_DRIVER.
const EnvPrefix = "BITSMITH"

// Loader handles configuration loading and merging.
type Loader struct {
	v           *viper.Viper
	configPath  string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{
		v:           v,
		searchPaths: []string{"."},
	}
}

// WithConfigPath sets an explicit config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithSearchPaths adds directories to search for config files.
func (l *Loader) WithSearchPaths(paths ...string) *Loader {
	l.searchPaths = append(l.searchPaths, paths...)
	return l
}

// Load loads the configuration.
func (l *Loader) Load() (*Config, error) {
	const op = "config.Load"

	l.setDefaults()

	if err := l.loadConfigFile(); err != nil {
		return nil, bserrors.ConfigWrap(err, op, "failed to load config file")
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, bserrors.ConfigWrap(err, op, "failed to unmarshal config")
	}

	cfg.Store.Path = expandEnvVar(cfg.Store.Path)
	cfg.Artifacts.Dir = expandEnvVar(cfg.Artifacts.Dir)
	cfg.Output.LogFile = expandEnvVar(cfg.Output.LogFile)
	cfg.Metrics.Textfile = expandEnvVar(cfg.Metrics.Textfile)

	return cfg, nil
}

// setDefaults registers every key so that env overrides apply to keys that
// are absent from the config file.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("workspace.root", d.Workspace.Root)
	l.v.SetDefault("workspace.manifest", d.Workspace.Manifest)
	l.v.SetDefault("workspace.change_detection", d.Workspace.ChangeDetection)

	l.v.SetDefault("store.driver", d.Store.Driver)
	l.v.SetDefault("store.path", d.Store.Path)

	l.v.SetDefault("tag.require_message", d.Tag.RequireMessage)
	l.v.SetDefault("tag.default_release_type", d.Tag.DefaultReleaseType)
	l.v.SetDefault("tag.skip_auto_tag", d.Tag.SkipAutoTag)
	l.v.SetDefault("tag.ignore_issues", d.Tag.IgnoreIssues)

	l.v.SetDefault("pipeline.concurrency", d.Pipeline.Concurrency)
	l.v.SetDefault("pipeline.retry_attempts", d.Pipeline.RetryAttempts)
	l.v.SetDefault("pipeline.retry_initial_wait", d.Pipeline.RetryInitialWait)
	l.v.SetDefault("pipeline.timeout", d.Pipeline.Timeout)
	l.v.SetDefault("pipeline.shell", d.Pipeline.Shell)

	l.v.SetDefault("artifacts.dir", d.Artifacts.Dir)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.color", d.Output.Color)
	l.v.SetDefault("output.verbose", d.Output.Verbose)
	l.v.SetDefault("output.log_file", d.Output.LogFile)
	l.v.SetDefault("output.log_level", d.Output.LogLevel)

	l.v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// loadConfigFile loads the explicit config file, or the first one found in
// the search paths. No config file is fine.
func (l *Loader) loadConfigFile() error {
	path := l.configPath
	if path == "" {
		found, ok := findConfigFile(l.searchPaths)
		if !ok {
			return nil
		}
		path = found
	}

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func findConfigFile(searchPaths []string) (string, bool) {
	for _, searchPath := range searchPaths {
		for _, name := range ConfigFileNames {
			for _, ext := range ConfigFileExtensions {
				configFile := filepath.Join(searchPath, name+"."+ext)
				if _, err := os.Stat(configFile); err == nil {
					return configFile, true
				}
			}
		}
	}
	return "", false
}

// expandEnvVar expands ${VAR} and ${VAR:-default}.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		if value := os.Getenv(sub[1]); value != "" {
			return value
		}
		return sub[2]
	})
}

// GetConfigPath returns the path to the loaded config file, if any.
func (l *Loader) GetConfigPath() string {
	return l.v.ConfigFileUsed()
}

// FindConfigFile searches for a config file and returns its path.
func FindConfigFile(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	if path, ok := findConfigFile(searchPaths); ok {
		return path, nil
	}
	return "", bserrors.NotFound("config.FindConfigFile", "no config file found")
}

// LoadFromDirectory loads configuration from a directory.
func LoadFromDirectory(dir string) (*Config, error) {
	return NewLoader().WithSearchPaths(dir).Load()
}
