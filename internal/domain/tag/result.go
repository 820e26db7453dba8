package tag

import (
	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// TaggedComponent is a component with its newly assigned version. It is
// immutable once the engine returns it.
type TaggedComponent struct {
	// ID carries the assigned version.
	ID              component.ID `json:"id"`
	PreviousVersion string       `json:"previousVersion,omitempty"`
	IsNew           bool         `json:"isNew"`
	Message         string       `json:"message,omitempty"`
	AutoTagged      bool         `json:"autoTagged,omitempty"`
}

// AutoTagResult records that tagging TriggeredBy forced a bump of Component.
type AutoTagResult struct {
	// TriggeredBy is the directly tagged component, without a version.
	TriggeredBy component.ID    `json:"triggeredBy"`
	Component   TaggedComponent `json:"component"`
}

// FailureKind classifies why a component was dropped from a tag run.
type FailureKind string

const (
	// FailureIssues means blocking issues were found.
	FailureIssues FailureKind = "issues"
	// FailureVersion means the next version could not be computed.
	FailureVersion FailureKind = "version"
	// FailurePipeline means a build or test task failed.
	FailurePipeline FailureKind = "pipeline"
)

// Failure is a per-component diagnostic. It never aborts the rest of the batch.
type Failure struct {
	Component component.ID      `json:"id"`
	Kind      FailureKind       `json:"kind"`
	Reason    string            `json:"reason"`
	Issues    []component.Issue `json:"issues,omitempty"`
}

// Results is the full outcome of a tag invocation.
type Results struct {
	RunID             string            `json:"runId"`
	TaggedComponents  []TaggedComponent `json:"taggedComponents"`
	AutoTaggedResults []AutoTagResult   `json:"autoTaggedResults"`
	Warnings          []string          `json:"warnings,omitempty"`
	NewComponents     component.IDList  `json:"newComponents,omitempty"`
	PublishedPackages []string          `json:"publishedPackages,omitempty"`
	IsSoftTag         bool              `json:"isSoftTag"`
	Failures          []Failure         `json:"failures,omitempty"`
}

// Count is the number of tagged plus auto-tagged components.
func (r *Results) Count() int {
	return len(r.TaggedComponents) + len(r.AutoTaggedResults)
}

// Versions maps "scope/name" to the assigned version for every tagged and
// auto-tagged component.
func (r *Results) Versions() map[string]string {
	out := make(map[string]string, r.Count())
	for _, c := range r.TaggedComponents {
		out[c.ID.FullName()] = c.ID.Version
	}
	for _, a := range r.AutoTaggedResults {
		out[a.Component.ID.FullName()] = a.Component.ID.Version
	}
	return out
}
