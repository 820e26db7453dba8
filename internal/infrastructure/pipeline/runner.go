// Package pipeline runs component build and test tasks as shell commands and
// collects the files they produce as artifacts.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/fileutil"
	"github.com/relicta-tech/bitsmith/internal/security"
)

const (
	// maxOutputTail bounds the command output quoted in a failure.
	maxOutputTail = 2048
	// waitDelay bounds how long a killed task may keep its output pipes open.
	waitDelay = 2 * time.Second
)

// DirResolver maps a component to its absolute source directory.
type DirResolver interface {
	Dir(c component.Component) string
}

// Config configures the shell runner.
type Config struct {
	// Shell runs each task command as `<shell> -c <run>`.
	Shell string
	// Timeout bounds a single task attempt.
	Timeout time.Duration
	// RetryAttempts is the total number of attempts per task (>= 1).
	RetryAttempts    int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration
	// ArtifactsDir is where task outputs are copied.
	ArtifactsDir string
}

// DefaultConfig returns the defaults used when the configuration is silent.
func DefaultConfig() Config {
	return Config{
		Shell:            "sh",
		Timeout:          10 * time.Minute,
		RetryAttempts:    1,
		RetryInitialWait: time.Second,
		RetryMaxWait:     30 * time.Second,
		ArtifactsDir:     ".bitsmith/artifacts",
	}
}

// TaskError reports a failed task.
type TaskError struct {
	Task   string
	Output string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// ShellRunner implements tag.PipelineRunner with shell commands.
type ShellRunner struct {
	cfg      Config
	dirs     DirResolver
	logger   *log.Logger
	retrier  retry.Retry[string]
	redactor *security.Redactor
}

var _ tag.PipelineRunner = (*ShellRunner)(nil)

// NewShellRunner creates a runner. A nil logger uses the default logger.
// Task output is logged and reported with the values of credential-like
// environment variables redacted.
func NewShellRunner(cfg Config, dirs DirResolver, logger *log.Logger) *ShellRunner {
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &ShellRunner{
		cfg:      cfg,
		dirs:     dirs,
		logger:   logger,
		redactor: security.FromEnviron(os.Environ()),
	}

	if cfg.RetryAttempts > 1 {
		maxWait := cfg.RetryMaxWait
		if maxWait <= 0 {
			maxWait = 30 * time.Second
		}
		r.retrier = retry.New[string](retry.Config{
			MaxAttempts:   cfg.RetryAttempts,
			InitialDelay:  cfg.RetryInitialWait,
			MaxDelay:      maxWait,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			Jitter:        true,
			IsRetryable:   isRetryableError,
		})
	}
	return r
}

// Run executes the tasks in order and returns the artifacts of the tasks
// that declare outputs. It stops at the first failing task.
func (r *ShellRunner) Run(ctx context.Context, run tag.PipelineRun) ([]artifact.Artifact, error) {
	const op = "pipeline.ShellRunner.Run"
	dir := r.dirs.Dir(run.Component)
	id := run.Component.ID.WithVersion(run.Version)

	var artifacts []artifact.Artifact
	for _, task := range run.Tasks {
		logger := r.logger.With("component", id.String(), "aspect", task.Aspect, "task", task.Name)

		if strings.TrimSpace(task.Run) != "" {
			start := time.Now()
			output, err := r.execute(ctx, dir, task.Run)
			output = r.redactor.Redact(output)
			logOutput(logger, output)
			if err != nil {
				logger.Debug("task failed", "duration", time.Since(start), "error", err)
				return artifacts, bserrors.PipelineWrap(&TaskError{Task: task.Name, Output: tail(output), Err: err}, op,
					fmt.Sprintf("%s of %s failed", task.Name, id)).
					WithDetail("aspect", task.Aspect).
					WithDetail("dir", dir)
			}
			logger.Debug("task finished", "duration", time.Since(start))
		}

		if len(task.Outputs) == 0 {
			continue
		}
		a, err := r.collect(dir, id, task)
		if err != nil {
			return artifacts, bserrors.PipelineWrap(err, op, fmt.Sprintf("failed to collect outputs of %s", task.Name))
		}
		logger.Debug("collected artifacts", "files", len(a.Files))
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (r *ShellRunner) execute(ctx context.Context, dir, command string) (string, error) {
	attempt := func(ctx context.Context) (string, error) {
		return r.runOnce(ctx, dir, command)
	}
	if r.retrier != nil {
		return r.retrier.Do(ctx, attempt)
	}
	return attempt(ctx)
}

func (r *ShellRunner) runOnce(ctx context.Context, dir, command string) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.cfg.Shell, "-c", command) // #nosec G204 -- commands come from the workspace manifest
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctx.Err() != nil {
		return out.String(), ctx.Err()
	}
	return out.String(), err
}

// collect copies the files matching the task outputs into the artifact
// directory of the component version. The directory is replaced as a whole.
func (r *ShellRunner) collect(dir string, id component.ID, task component.TaskSpec) (artifact.Artifact, error) {
	files, err := matchOutputs(dir, task.Outputs)
	if err != nil {
		return artifact.Artifact{}, err
	}

	dst := ArtifactDir(r.cfg.ArtifactsDir, id, task.Aspect, task.Name)
	staging, err := fileutil.StageDir(dst)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if err := fileutil.CopyFiles(dir, staging, files); err != nil {
		_ = os.RemoveAll(staging)
		return artifact.Artifact{}, err
	}
	if err := fileutil.CommitDir(staging, dst); err != nil {
		return artifact.Artifact{}, err
	}

	return artifact.Artifact{
		Component: id,
		Aspect:    task.Aspect,
		Task:      task.Name,
		Root:      dst,
		Files:     files,
	}, nil
}

// ArtifactDir returns the directory holding one task's artifacts of a
// component version.
func ArtifactDir(base string, id component.ID, aspect, task string) string {
	scope := id.Scope
	if scope == "" {
		scope = "_"
	}
	return filepath.Join(base, scope, id.Name, id.Version, filepath.FromSlash(aspect), task)
}

func matchOutputs(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid output pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func logOutput(logger *log.Logger, output string) {
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line != "" {
			logger.Debug(line)
		}
	}
}

func tail(s string) string {
	if len(s) <= maxOutputTail {
		return s
	}
	cut := len(s) - maxOutputTail
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
