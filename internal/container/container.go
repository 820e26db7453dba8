// Package container provides dependency injection for bitsmith services.
package container

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/relicta-tech/bitsmith/internal/application/artifacts"
	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/config"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	gitadapter "github.com/relicta-tech/bitsmith/internal/infrastructure/git"
	"github.com/relicta-tech/bitsmith/internal/infrastructure/persistence"
	"github.com/relicta-tech/bitsmith/internal/infrastructure/pipeline"
	"github.com/relicta-tech/bitsmith/internal/infrastructure/workspace"
	"github.com/relicta-tech/bitsmith/internal/observability"
)

// defaultShutdownTimeout is the default timeout for graceful shutdown of components.
const defaultShutdownTimeout = 10 * time.Second

// Closeable represents a component that can be closed/shutdown.
type Closeable interface {
	Close() error
}

// Option configures an App.
type Option func(*App)

// WithTaskLogger sets the logger that receives pipeline task output.
func WithTaskLogger(logger *charmlog.Logger) Option {
	return func(a *App) {
		a.taskLogger = logger
	}
}

// WithMetrics sets the metrics sink. Without it metrics are not recorded.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithEditor overrides the message editor used by --editor.
func WithEditor(e tagging.MessageEditor) Option {
	return func(a *App) {
		a.editor = e
	}
}

// App wires configuration, infrastructure and use cases.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	taskLogger *charmlog.Logger
	metrics    *observability.Metrics
	editor     tagging.MessageEditor
	mu         sync.RWMutex
	closed     bool

	// Infrastructure layer
	workspace *workspace.Workspace
	store     persistence.Store
	detector  tag.ModificationDetector
	issues    tag.IssueDetector
	printer   tag.Fingerprinter
	runner    *pipeline.ShellRunner
	repo      *gitadapter.Repository

	// Application layer
	engine    *tagging.Engine
	status    *tagging.StatusUseCase
	untagSoft *tagging.UntagSoftUseCase
	extractor *artifacts.Extractor

	// Cleanup tracking
	closeables []Closeable
}

// New creates an uninitialized App for cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, bserrors.Config("container.New", "configuration is required")
	}
	a := &App{
		config:     cfg,
		logger:     slog.Default(),
		closeables: make([]Closeable, 0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// registerCloseable registers a component for cleanup during shutdown.
func (a *App) registerCloseable(closeable Closeable) {
	if closeable != nil {
		a.closeables = append(a.closeables, closeable)
	}
}

// RegisterCloseable allows external components to register for cleanup during shutdown.
// Components are closed in reverse order of registration (LIFO).
func (a *App) RegisterCloseable(closeable Closeable) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registerCloseable(closeable)
}

// Initialize loads the workspace and wires every use case.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return bserrors.State("container.Initialize", "container is closed")
	}
	if err := a.initInfrastructure(ctx); err != nil {
		return err
	}
	a.initApplicationLayer()
	return nil
}

// initInfrastructure loads the workspace and opens the stores and detectors.
func (a *App) initInfrastructure(_ context.Context) error {
	const op = "container.initInfrastructure"
	cfg := a.config

	root := cfg.Workspace.Root
	if root == "" {
		root = "."
	}
	ws, err := workspace.Load(root, cfg.Workspace.Manifest)
	if err != nil {
		return err
	}
	a.workspace = ws

	store, err := persistence.Open(orDefault(cfg.Store.Driver, persistence.DriverFile),
		absUnder(ws.Root(), orDefault(cfg.Store.Path, ".bitsmith/store")))
	if err != nil {
		return bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to open the store")
	}
	a.store = store
	a.registerCloseable(store)

	hash := workspace.NewHashDetector(ws)
	a.detector = hash
	a.printer = hash
	issues := MultiIssueDetector{ws}

	repo, err := gitadapter.Open(ws.Root(), ws)
	switch {
	case err == nil:
		a.repo = repo
		a.printer = gitadapter.NewFingerprinter(hash, repo)
		issues = append(issues, repo)
		if cfg.Workspace.ChangeDetection == "git" {
			a.detector = repo
		}
	case cfg.Workspace.ChangeDetection == "git":
		return bserrors.ConfigWrap(err, op, "workspace.change_detection is git but the workspace is not a git repository")
	default:
		a.logger.Debug("workspace is not a git repository, untracked files are not checked", "root", ws.Root())
	}
	a.issues = issues

	pcfg := pipeline.DefaultConfig()
	if cfg.Pipeline.Shell != "" {
		pcfg.Shell = cfg.Pipeline.Shell
	}
	if cfg.Pipeline.Timeout > 0 {
		pcfg.Timeout = cfg.Pipeline.Timeout
	}
	if cfg.Pipeline.RetryAttempts > 0 {
		pcfg.RetryAttempts = cfg.Pipeline.RetryAttempts
	}
	if cfg.Pipeline.RetryInitialWait > 0 {
		pcfg.RetryInitialWait = cfg.Pipeline.RetryInitialWait
	}
	pcfg.ArtifactsDir = absUnder(ws.Root(), orDefault(cfg.Artifacts.Dir, pcfg.ArtifactsDir))
	a.runner = pipeline.NewShellRunner(pcfg, ws, a.taskLogger)

	return nil
}

// initApplicationLayer creates the use cases.
func (a *App) initApplicationLayer() {
	a.engine = tagging.NewEngine(tagging.EngineDeps{
		Workspace:     a.workspace,
		Versions:      a.store,
		SoftTags:      a.store,
		Artifacts:     a.store,
		Detector:      a.detector,
		Fingerprinter: a.printer,
		Issues:        a.issues,
		Runner:        a.runner,
		Editor:        a.editor,
		Metrics:       a.metrics,
		Logger:        a.logger,
		Concurrency:   a.config.Pipeline.Concurrency,
	})
	a.status = tagging.NewStatusUseCase(a.workspace, a.store, a.store, a.detector, a.issues)
	a.untagSoft = tagging.NewUntagSoftUseCase(a.store)
	a.extractor = artifacts.NewExtractor(artifacts.ExtractorDeps{
		Workspace:   a.workspace,
		Versions:    a.store,
		Artifacts:   a.store,
		Catalog:     a.workspace.Catalog(),
		Metrics:     a.metrics,
		Logger:      a.logger,
		Concurrency: a.config.Pipeline.Concurrency,
	})
}

// TagEngine returns the tag engine.
func (a *App) TagEngine() *tagging.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// Status returns the status use case.
func (a *App) Status() *tagging.StatusUseCase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// UntagSoft returns the untag use case.
func (a *App) UntagSoft() *tagging.UntagSoftUseCase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.untagSoft
}

// Artifacts returns the artifact extractor.
func (a *App) Artifacts() *artifacts.Extractor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.extractor
}

// Workspace returns the loaded workspace.
func (a *App) Workspace() *workspace.Workspace {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.workspace
}

// HasGit reports whether the workspace is inside a git repository.
func (a *App) HasGit() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.repo != nil
}

// Config returns the configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// TagDefaults returns the tag flag defaults from the configuration.
func (a *App) TagDefaults() (tagging.Defaults, error) {
	return TagDefaults(a.config)
}

// TagDefaults reads the tag flag defaults from cfg. It needs no initialized
// App so flags can be checked before the workspace is touched.
func TagDefaults(cfg *config.Config) (tagging.Defaults, error) {
	const op = "container.TagDefaults"
	tc := cfg.Tag

	d := tagging.Defaults{RequireMessage: tc.RequireMessage, SkipAutoTag: tc.SkipAutoTag}
	if tc.DefaultReleaseType != "" {
		bt, err := version.ParseBumpType(tc.DefaultReleaseType)
		if err != nil {
			return tagging.Defaults{}, bserrors.ConfigWrap(err, op, "invalid tag.default_release_type")
		}
		d.ReleaseType = bt
	}
	set, err := component.ParseIgnoreSet(tc.IgnoreIssues)
	if err != nil {
		return tagging.Defaults{}, bserrors.ConfigWrap(err, op, "invalid tag.ignore_issues")
	}
	d.IgnoreIssues = set
	return d, nil
}

// Close gracefully shuts down the container.
func (a *App) Close() error {
	return a.CloseWithTimeout(defaultShutdownTimeout)
}

// CloseWithTimeout gracefully shuts down the container with a custom timeout.
func (a *App) CloseWithTimeout(timeout time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true
	a.logger.Debug("initiating container shutdown", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Close all registered closeables in reverse order (LIFO)
	var errs []error
	for i := len(a.closeables) - 1; i >= 0; i-- {
		if err := a.closeWithContext(ctx, a.closeables[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		a.logger.Warn("some components failed to close cleanly", "error_count", len(errs))
		return errs[0]
	}
	return nil
}

// closeWithContext closes a component with context cancellation support.
func (a *App) closeWithContext(ctx context.Context, closeable Closeable) error {
	done := make(chan error, 1)
	go func() {
		done <- closeable.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		a.logger.Warn("component close timed out", "error", ctx.Err())
		return ctx.Err()
	}
}

// NewInitialized creates and initializes an App.
func NewInitialized(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Initialize(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func absUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
