package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/config"
	"github.com/relicta-tech/bitsmith/internal/container"
	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

type tagEngine interface {
	Tag(context.Context, tag.Request) (*tag.Results, error)
}

type statusUseCase interface {
	Execute(context.Context) (*tagging.StatusOutput, error)
}

type untagSoftUseCase interface {
	Execute(context.Context, tagging.UntagSoftInput) (*tagging.UntagSoftOutput, error)
}

type artifactExtractor interface {
	List(context.Context, artifact.Query) ([]artifact.Grouped, []string, error)
	Export(ctx context.Context, grouped []artifact.Grouped, outDir string) error
}

// cliApp is the part of the container the commands use.
type cliApp interface {
	Close() error
	TagEngine() tagEngine
	Status() statusUseCase
	UntagSoft() untagSoftUseCase
	Artifacts() artifactExtractor
}

var newContainerApp = func(ctx context.Context, cfg *config.Config) (cliApp, error) {
	app, err := container.NewInitialized(ctx, cfg,
		container.WithTaskLogger(logger),
		container.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	return &containerAppWrapper{App: app}, nil
}

type containerAppWrapper struct {
	*container.App
}

func (w *containerAppWrapper) TagEngine() tagEngine {
	return w.App.TagEngine()
}

func (w *containerAppWrapper) Status() statusUseCase {
	return w.App.Status()
}

func (w *containerAppWrapper) UntagSoft() untagSoftUseCase {
	return w.App.UntagSoft()
}

func (w *containerAppWrapper) Artifacts() artifactExtractor {
	return w.App.Artifacts()
}

func closeApp(w io.Writer, app cliApp) {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		printWarning(w, fmt.Sprintf("Failed to close app: %v", err))
	}
}
