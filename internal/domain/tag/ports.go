package tag

import (
	"context"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// VersionStore persists tag records. Writes are blocking: once SaveRecords
// returns, the records are visible to subsequent reads.
type VersionStore interface {
	// LatestRecord returns the newest record of a component, or nil.
	LatestRecord(ctx context.Context, id component.ID) (*Record, error)

	// Versions returns every recorded version of a component.
	Versions(ctx context.Context, id component.ID) ([]string, error)

	// SaveRecords appends records.
	SaveRecords(ctx context.Context, records []Record) error
}

// SoftTagStore persists pending soft tags.
type SoftTagStore interface {
	// SaveSoftTags records soft tags, replacing pending ones for the same components.
	SaveSoftTags(ctx context.Context, records []SoftTagRecord) error

	// ListSoftTags returns all pending soft tags in the order they were recorded.
	ListSoftTags(ctx context.Context) ([]SoftTagRecord, error)

	// DeleteSoftTags removes the pending soft tags of the given components.
	DeleteSoftTags(ctx context.Context, ids []component.ID) error
}

// Workspace is the catalogue of components.
type Workspace interface {
	// Components returns every component in declaration order.
	Components(ctx context.Context) ([]component.Component, error)
}

// ModificationDetector decides whether a component changed since its last tag.
type ModificationDetector interface {
	// Modified reports whether c changed since last. last is nil for new components.
	Modified(ctx context.Context, c component.Component, last *Record) (bool, error)
}

// Fingerprinter computes the state recorded with a tag.
type Fingerprinter interface {
	// Fingerprint returns a content hash and, when available, the commit the
	// component was tagged at.
	Fingerprint(ctx context.Context, c component.Component) (hash, commit string, err error)
}

// IssueDetector finds issues on a component.
type IssueDetector interface {
	Issues(ctx context.Context, c component.Component) ([]component.Issue, error)
}

// PipelineRun describes one component's pipeline invocation.
type PipelineRun struct {
	Component component.Component
	// Version is the version being tagged; artifacts are stored under it.
	Version string
	Tasks   []component.TaskSpec
}

// PipelineRunner executes build and test tasks.
type PipelineRunner interface {
	// Run executes the tasks in order and returns the artifacts they produced.
	// It stops at the first failing task.
	Run(ctx context.Context, run PipelineRun) ([]artifact.Artifact, error)
}
