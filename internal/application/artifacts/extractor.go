// Package artifacts provides the use cases for listing and exporting the
// artifacts recorded with component versions.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/relicta-tech/bitsmith/internal/application/tagging"
	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/fileutil"
	"github.com/relicta-tech/bitsmith/internal/observability"
)

// NoArtifactsFound is the warning returned when a query matches nothing.
const NoArtifactsFound = "no artifacts found for the given pattern and filters"

// DefaultConcurrency bounds parallel component exports.
const DefaultConcurrency = 4

// Catalog reports the aspects and tasks declared in the workspace.
type Catalog interface {
	HasAspect(aspect string) bool
	HasTask(task string) bool
	AspectNames() []string
	TaskNames() []string
}

// ExtractorDeps holds the collaborators of the extractor.
type ExtractorDeps struct {
	Workspace   tag.Workspace
	Versions    tag.VersionStore
	Artifacts   artifact.Store
	Catalog     Catalog
	Metrics     *observability.Metrics
	Logger      *slog.Logger
	Concurrency int
}

// Extractor lists and exports artifacts.
type Extractor struct {
	deps   ExtractorDeps
	logger *slog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(deps ExtractorDeps) *Extractor {
	if deps.Concurrency < 1 {
		deps.Concurrency = DefaultConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{deps: deps, logger: logger.With("usecase", "artifacts")}
}

// List returns the artifacts matching q, grouped by component and aspect.
// Components are matched against q.Patterns; the latest tagged version is
// used unless a pattern carries "@version". A query that matches nothing
// yields the NoArtifactsFound warning and an empty list.
func (e *Extractor) List(ctx context.Context, q artifact.Query) ([]artifact.Grouped, []string, error) {
	const op = "artifacts.Extractor.List"

	if err := e.validateFilters(q); err != nil {
		return nil, nil, err
	}

	comps, err := e.deps.Workspace.Components(ctx)
	if err != nil {
		return nil, nil, bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to load workspace components")
	}

	ids, err := e.resolve(ctx, q.Patterns, comps)
	if err != nil {
		return nil, nil, err
	}

	var raw []artifact.Grouped
	for _, id := range ids {
		arts, err := e.deps.Artifacts.ListArtifacts(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range arts {
			res, ok := filterArtifact(a, q)
			if !ok {
				continue
			}
			raw = append(raw, artifact.Grouped{
				Component: id,
				Aspects:   []artifact.AspectArtifacts{{AspectID: a.Aspect, Tasks: []artifact.Result{res}}},
			})
		}
	}

	grouped := GroupResultsByAspect(raw)
	if len(grouped) == 0 {
		return []artifact.Grouped{}, []string{NoArtifactsFound}, nil
	}
	e.logger.Debug("artifacts listed", "components", len(grouped))
	return grouped, nil, nil
}

func (e *Extractor) validateFilters(q artifact.Query) error {
	const op = "artifacts.Extractor.validateFilters"

	if len(q.Patterns) == 0 {
		return bserrors.Validation(op, "at least one component pattern is required")
	}
	if q.Aspect != "" && e.deps.Catalog != nil && !e.deps.Catalog.HasAspect(q.Aspect) {
		return bserrors.InvalidFilter(op, fmt.Sprintf("aspect %q is not used by any component, expected one of [%s]",
			q.Aspect, strings.Join(e.deps.Catalog.AspectNames(), ", ")))
	}
	if q.Task != "" && e.deps.Catalog != nil && !e.deps.Catalog.HasTask(q.Task) {
		return bserrors.InvalidFilter(op, fmt.Sprintf("task %q is not used by any component, expected one of [%s]",
			q.Task, strings.Join(e.deps.Catalog.TaskNames(), ", ")))
	}
	if q.Files != "" && !doublestar.ValidatePattern(q.Files) {
		return bserrors.InvalidFilter(op, fmt.Sprintf("invalid files pattern %q", q.Files))
	}
	return nil
}

// resolve expands the patterns into versioned ids, in workspace order.
// Components that were never tagged have no artifacts and are skipped.
func (e *Extractor) resolve(ctx context.Context, patterns []string, comps []component.Component) ([]component.ID, error) {
	const op = "artifacts.Extractor.resolve"

	versions := make(map[string]string)
	selected := make(map[string]bool)
	for _, raw := range patterns {
		pattern, ver := tagging.SplitIDPattern(raw)
		matches, err := tagging.MatchComponents(pattern, comps)
		if err != nil {
			return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("invalid component pattern %q", raw))
		}
		for _, c := range matches {
			key := c.ID.FullName()
			selected[key] = true
			if ver != "" {
				versions[key] = ver
			}
		}
	}

	var ids []component.ID
	for _, c := range comps {
		key := c.ID.FullName()
		if !selected[key] {
			continue
		}
		v, ok := versions[key]
		if !ok {
			last, err := e.deps.Versions.LatestRecord(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			if last == nil {
				continue
			}
			v = last.Version
		}
		ids = append(ids, c.ID.WithoutVersion().WithVersion(v))
	}
	return ids, nil
}

// filterArtifact applies the aspect, task and files filters. An artifact
// left without files by the files filter is dropped.
func filterArtifact(a artifact.Artifact, q artifact.Query) (artifact.Result, bool) {
	if q.Aspect != "" && a.Aspect != q.Aspect {
		return artifact.Result{}, false
	}
	if q.Task != "" && a.Task != q.Task {
		return artifact.Result{}, false
	}
	res := artifact.Result{AspectID: a.Aspect, TaskName: a.Task, Root: a.Root, Files: a.Files}
	if q.Files == "" {
		return res, true
	}

	var files []string
	for _, f := range a.Files {
		if ok, _ := doublestar.Match(q.Files, f); ok {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return artifact.Result{}, false
	}
	res.Files = files
	return res, true
}

// GroupResultsByAspect merges entries of the same component and, within
// each component, results of the same aspect. First-seen order is kept and
// grouping an already grouped list returns it unchanged.
func GroupResultsByAspect(list []artifact.Grouped) []artifact.Grouped {
	var out []artifact.Grouped
	index := make(map[string]int)
	for _, g := range list {
		key := g.Component.String()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, artifact.Grouped{Component: g.Component})
		}
		for _, a := range g.Aspects {
			dst, ok := out[i].Aspect(a.AspectID)
			if !ok {
				out[i].Aspects = append(out[i].Aspects, artifact.AspectArtifacts{AspectID: a.AspectID})
				dst = &out[i].Aspects[len(out[i].Aspects)-1]
			}
			dst.Tasks = mergeTasks(dst.Tasks, a.Tasks)
		}
	}
	return out
}

func mergeTasks(dst, src []artifact.Result) []artifact.Result {
	for _, t := range src {
		merged := false
		for i := range dst {
			if dst[i].TaskName == t.TaskName && dst[i].Root == t.Root {
				dst[i].Files = appendMissing(dst[i].Files, t.Files)
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, artifact.Result{
				AspectID: t.AspectID,
				TaskName: t.TaskName,
				Root:     t.Root,
				Files:    append([]string(nil), t.Files...),
			})
		}
	}
	return dst
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, f := range dst {
		seen[f] = true
	}
	for _, f := range src {
		if !seen[f] {
			seen[f] = true
			dst = append(dst, f)
		}
	}
	return dst
}

// Export copies the grouped files into outDir, under
// <scope>/<name>/<aspect>/<task> (see ExportDir). Components are exported
// concurrently; each one is staged and moved into place so a failed copy
// never leaves a partial component directory behind.
func (e *Extractor) Export(ctx context.Context, grouped []artifact.Grouped, outDir string) error {
	const op = "artifacts.Extractor.Export"

	if outDir == "" {
		return bserrors.Validation(op, "an output directory is required")
	}
	start := time.Now()

	sem := semaphore.NewWeighted(int64(e.deps.Concurrency))
	g, gCtx := errgroup.WithContext(ctx)
	files := make([]int, len(grouped))

	for i, entry := range grouped {
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			n, err := exportComponent(gCtx, entry, outDir)
			if err != nil {
				return bserrors.IOWrap(err, op, fmt.Sprintf("failed to export %s", entry.Component))
			}
			files[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for _, n := range files {
		total += n
	}
	e.deps.Metrics.RecordExport(total, time.Since(start))
	e.logger.Info("artifacts exported", "components", len(grouped), "files", total, "out_dir", outDir)
	return nil
}

func exportComponent(ctx context.Context, entry artifact.Grouped, outDir string) (int, error) {
	dst := ExportDir(outDir, entry.Component)
	staging, err := fileutil.StageDir(dst)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, a := range entry.Aspects {
		for _, t := range a.Tasks {
			if err := ctx.Err(); err != nil {
				_ = os.RemoveAll(staging)
				return 0, err
			}
			taskDir := filepath.Join(staging, filepath.FromSlash(a.AspectID), t.TaskName)
			if err := fileutil.CopyFiles(t.Root, taskDir, t.Files); err != nil {
				_ = os.RemoveAll(staging)
				return 0, err
			}
			n += len(t.Files)
		}
	}
	if err := fileutil.CommitDir(staging, dst); err != nil {
		return 0, err
	}
	return n, nil
}

// ExportDir returns the directory id is exported to under outDir. Scope and
// name each map to exactly one escaped path segment, so no two components
// share a directory or nest inside one another. Unscoped components go
// under "_".
func ExportDir(outDir string, id component.ID) string {
	scope := "_"
	if id.Scope != "" {
		scope = pathSegment(id.Scope)
	}
	return filepath.Join(outDir, scope, pathSegment(id.Name))
}

// pathSegment escapes s into a single path segment. A literal "_" and any
// leading dot are escaped too, keeping the segment apart from the unscoped
// directory and from staging directories.
func pathSegment(s string) string {
	if s == "_" {
		return "%5F"
	}
	if strings.HasPrefix(s, ".") {
		return "%2E" + url.PathEscape(s[1:])
	}
	return url.PathEscape(s)
}
