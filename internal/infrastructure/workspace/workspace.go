package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
	"github.com/relicta-tech/bitsmith/internal/graph"
)

// Workspace is a loaded, immutable snapshot of the component manifest.
type Workspace struct {
	root       string
	manifest   string
	components []component.Component
	graph      *graph.Graph
}

// Load reads the manifest under root. manifest may be empty to search for
// one of ManifestNames.
func Load(root, manifest string) (*Workspace, error) {
	const op = "workspace.Load"

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, bserrors.IOWrap(err, op, "failed to resolve workspace root")
	}
	path, err := FindManifest(absRoot, manifest)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(path)
	if err != nil {
		return nil, err
	}
	comps, err := m.ToComponents()
	if err != nil {
		return nil, err
	}
	return New(absRoot, path, comps), nil
}

// New builds a workspace from already-parsed components.
func New(root, manifest string, comps []component.Component) *Workspace {
	return &Workspace{
		root:       root,
		manifest:   manifest,
		components: comps,
		graph:      graph.New(comps),
	}
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// ManifestPath returns the manifest the workspace was loaded from.
func (w *Workspace) ManifestPath() string {
	return w.manifest
}

// Components returns every component in manifest order.
func (w *Workspace) Components(_ context.Context) ([]component.Component, error) {
	out := make([]component.Component, len(w.components))
	copy(out, w.components)
	return out, nil
}

// Graph returns the dependency graph snapshot.
func (w *Workspace) Graph() *graph.Graph {
	return w.graph
}

// Component returns the component with id, ignoring version.
func (w *Workspace) Component(id component.ID) (component.Component, bool) {
	for _, c := range w.components {
		if c.ID.EqualWithoutVersion(id) {
			return c, true
		}
	}
	return component.Component{}, false
}

// Dir returns the absolute directory of c.
func (w *Workspace) Dir(c component.Component) string {
	if filepath.IsAbs(c.Dir) {
		return c.Dir
	}
	return filepath.Join(w.root, c.Dir)
}

// TaskCatalog lists the aspects and tasks the workspace declares.
type TaskCatalog struct {
	Aspects map[string]bool
	Tasks   map[string]bool
}

// HasAspect reports whether any component declares aspect.
func (c TaskCatalog) HasAspect(aspect string) bool {
	return c.Aspects[aspect]
}

// HasTask reports whether any component declares task.
func (c TaskCatalog) HasTask(task string) bool {
	return c.Tasks[task]
}

// AspectNames returns the declared aspects, sorted.
func (c TaskCatalog) AspectNames() []string {
	return sortedKeys(c.Aspects)
}

// TaskNames returns the declared tasks, sorted.
func (c TaskCatalog) TaskNames() []string {
	return sortedKeys(c.Tasks)
}

// Catalog returns the task catalog.
func (w *Workspace) Catalog() TaskCatalog {
	cat := TaskCatalog{Aspects: map[string]bool{}, Tasks: map[string]bool{}}
	for _, c := range w.components {
		for _, t := range c.Tasks {
			cat.Aspects[t.Aspect] = true
			cat.Tasks[t.Name] = true
		}
	}
	return cat
}

// Issues reports missing dependencies, missing files and dependency cycles.
func (w *Workspace) Issues(ctx context.Context, c component.Component) ([]component.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []component.Issue
	if missing := w.graph.Missing(c.ID); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m.String())
		}
		issues = append(issues, component.Issue{
			Kind:      component.IssueMissingDependencies,
			Component: c.ID,
			Detail:    strings.Join(names, ", "),
		})
	}

	if empty, err := dirEmpty(w.Dir(c)); err != nil || empty {
		detail := fmt.Sprintf("%s has no files", c.Dir)
		if err != nil {
			detail = fmt.Sprintf("%s: %v", c.Dir, err)
		}
		issues = append(issues, component.Issue{
			Kind:      component.IssueMissingFiles,
			Component: c.ID,
			Detail:    detail,
		})
	}

	if w.graph.InCycle(c.ID) {
		for _, cycle := range w.graph.Cycles() {
			if cycle.HasWithoutVersion(c.ID) {
				issues = append(issues, component.Issue{
					Kind:      component.IssueCircularDependencies,
					Component: c.ID,
					Detail:    strings.Join(cycle.Strings(), " -> "),
				})
				break
			}
		}
	}
	return issues, nil
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true, err
	}
	return len(entries) == 0, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
