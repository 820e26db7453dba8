package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

type staticDir string

func (d staticDir) Dir(component.Component) string { return string(d) }

func newRunner(t *testing.T, cfg Config) (*ShellRunner, string) {
	t.Helper()
	src := t.TempDir()
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = t.TempDir()
	}
	return NewShellRunner(cfg, staticDir(src), log.New(io.Discard)), src
}

func TestShellRunner_CollectsOutputs(t *testing.T) {
	r, src := newRunner(t, Config{Timeout: time.Minute, RetryAttempts: 1})
	comp := component.Component{ID: component.MustParseID("acme/compiler")}

	arts, err := r.Run(context.Background(), tag.PipelineRun{
		Component: comp,
		Version:   "1.0.0",
		Tasks: []component.TaskSpec{
			{Aspect: "compiler", Name: "build", Kind: component.TaskBuild,
				Run: "mkdir -p dist && echo js > dist/index.js && echo dts > dist/index.d.ts", Outputs: []string{"dist/**"}},
			{Aspect: "linter", Name: "lint", Kind: component.TaskTest, Run: "true"},
		},
	})
	require.NoError(t, err)
	require.Len(t, arts, 1)

	a := arts[0]
	assert.Equal(t, "acme/compiler@1.0.0", a.Component.String())
	assert.Equal(t, "compiler", a.Aspect)
	assert.Equal(t, "build", a.Task)
	assert.Equal(t, []string{"dist/index.d.ts", "dist/index.js"}, a.Files)

	data, err := os.ReadFile(filepath.Join(a.Root, "dist", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "js\n", string(data))
	// The source tree is left untouched.
	assert.FileExists(t, filepath.Join(src, "dist", "index.js"))
}

func TestShellRunner_StopsAtFirstFailure(t *testing.T) {
	r, src := newRunner(t, Config{Timeout: time.Minute, RetryAttempts: 1})
	comp := component.Component{ID: component.MustParseID("foo")}

	_, err := r.Run(context.Background(), tag.PipelineRun{
		Component: comp,
		Version:   "0.0.1",
		Tasks: []component.TaskSpec{
			{Aspect: "tester", Name: "test", Run: "echo boom; exit 3"},
			{Aspect: "tester", Name: "after", Run: "touch after"},
		},
	})
	require.Error(t, err)
	assert.True(t, bserrors.IsKind(err, bserrors.KindPipeline))

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Equal(t, "test", taskErr.Task)
	assert.Contains(t, taskErr.Output, "boom")
	assert.NoFileExists(t, filepath.Join(src, "after"))

	var be *bserrors.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "tester", be.Details["aspect"])
	assert.Equal(t, src, be.Details["dir"])
}

func TestShellRunner_RedactsSecretOutput(t *testing.T) {
	t.Setenv("BITSMITH_TEST_TOKEN", "s3cr3t-value-123")
	r, _ := newRunner(t, Config{Timeout: time.Minute, RetryAttempts: 1})
	comp := component.Component{ID: component.MustParseID("foo")}

	_, err := r.Run(context.Background(), tag.PipelineRun{
		Component: comp,
		Version:   "0.0.1",
		Tasks: []component.TaskSpec{
			{Aspect: "pkg", Name: "publish", Run: "echo using $BITSMITH_TEST_TOKEN; exit 1"},
		},
	})
	require.Error(t, err)

	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr))
	assert.Contains(t, taskErr.Output, "using [REDACTED]")
	assert.NotContains(t, taskErr.Output, "s3cr3t-value-123")
}

func TestShellRunner_Retries(t *testing.T) {
	r, src := newRunner(t, Config{
		Timeout:          time.Minute,
		RetryAttempts:    3,
		RetryInitialWait: time.Millisecond,
		RetryMaxWait:     5 * time.Millisecond,
	})
	comp := component.Component{ID: component.MustParseID("foo")}

	_, err := r.Run(context.Background(), tag.PipelineRun{
		Component: comp,
		Version:   "0.0.1",
		Tasks: []component.TaskSpec{
			{Aspect: "tester", Name: "flaky", Run: "if [ -f marker ]; then exit 0; fi; touch marker; exit 1"},
		},
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(src, "marker"))
}

func TestShellRunner_Timeout(t *testing.T) {
	r, _ := newRunner(t, Config{Timeout: 50 * time.Millisecond, RetryAttempts: 1})
	comp := component.Component{ID: component.MustParseID("foo")}

	_, err := r.Run(context.Background(), tag.PipelineRun{
		Component: comp,
		Version:   "0.0.1",
		Tasks:     []component.TaskSpec{{Aspect: "tester", Name: "slow", Run: "exec sleep 5"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestArtifactDir(t *testing.T) {
	assert.Equal(t,
		filepath.Join("base", "acme", "foo", "1.0.0", "teambit.compilation", "compiler", "build"),
		ArtifactDir("base", component.MustParseID("acme/foo@1.0.0"), "teambit.compilation/compiler", "build"))
	assert.Equal(t,
		filepath.Join("base", "_", "foo", "1.0.0", "pkg", "pack"),
		ArtifactDir("base", component.MustParseID("foo@1.0.0"), "pkg", "pack"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short"))

	long := "é" + strings.Repeat("a", maxOutputTail-1)
	got := tail(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxOutputTail-1), got)

	exact := strings.Repeat("b", 10) + strings.Repeat("ü", maxOutputTail/2)
	got = tail(exact)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, maxOutputTail)
}
