// Package artifact provides domain types for build artifacts produced by
// component pipelines.
package artifact

import (
	"context"
	"errors"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// ErrNotFound indicates that no artifacts are recorded for a component version.
var ErrNotFound = errors.New("artifacts not found")

// Artifact is the set of files one task of one aspect produced for a
// component version.
type Artifact struct {
	// Component is the tagged component, including its version.
	Component component.ID `json:"component"`
	// Aspect is the extension that owns the producing task.
	Aspect string `json:"aspect"`
	// Task is the producing task.
	Task string `json:"task"`
	// Root is the directory the files are stored under.
	Root string `json:"root"`
	// Files are paths relative to Root, in production order.
	Files []string `json:"files"`
}

// Store persists and queries artifacts per component version.
type Store interface {
	// SaveArtifacts records artifacts for a component version, replacing any
	// previously recorded for the same version.
	SaveArtifacts(ctx context.Context, id component.ID, artifacts []Artifact) error

	// ListArtifacts returns the artifacts of a component version in the order
	// they were recorded. An empty slice means none are recorded.
	ListArtifacts(ctx context.Context, id component.ID) ([]Artifact, error)
}

// Query selects artifacts for listing or export. All filters are conjunctive.
type Query struct {
	// Patterns are component id globs, optionally suffixed with "@version".
	Patterns []string
	// Aspect filters by aspect id.
	Aspect string
	// Task filters by task name.
	Task string
	// Files filters by a glob over file paths relative to the artifact root.
	Files string
	// OutDir, when set, materializes matched files there.
	OutDir string
}

// Result is the set of files matched for one aspect task.
type Result struct {
	AspectID string   `json:"aspectId"`
	TaskName string   `json:"taskName"`
	Root     string   `json:"-"`
	Files    []string `json:"files"`
}

// AspectArtifacts groups the task results of one aspect.
type AspectArtifacts struct {
	AspectID string   `json:"aspectId"`
	Tasks    []Result `json:"tasks"`
}

// Grouped is the extractor output for one component. Aspects keep the order
// in which they were first seen in the store.
type Grouped struct {
	Component component.ID      `json:"id"`
	Aspects   []AspectArtifacts `json:"artifacts"`
}

// Aspect returns the entry for an aspect id.
func (g *Grouped) Aspect(aspectID string) (*AspectArtifacts, bool) {
	for i := range g.Aspects {
		if g.Aspects[i].AspectID == aspectID {
			return &g.Aspects[i], true
		}
	}
	return nil, false
}

// FileCount returns the number of files across all aspects.
func (g *Grouped) FileCount() int {
	n := 0
	for _, a := range g.Aspects {
		for _, t := range a.Tasks {
			n += len(t.Files)
		}
	}
	return n
}
