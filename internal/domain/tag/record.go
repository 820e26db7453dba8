package tag

import (
	"time"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
)

// Record is a persisted tag of a component version.
type Record struct {
	// Component is the component id without a version.
	Component   component.ID
	Version     string
	Message     string
	ContentHash string
	Commit      string
	RunID       string
	AutoTagged  bool
	CreatedAt   time.Time
}

// ID returns the component id carrying the record's version.
func (r *Record) ID() component.ID {
	return r.Component.WithVersion(r.Version)
}

// SoftTagRecord is a recorded intent to tag a component, finalized later by a
// persist run.
type SoftTagRecord struct {
	Component       component.ID
	Version         string
	PreviousVersion string
	Message         string
	IsNew           bool
	// AutoTaggedBy lists the direct tags that triggered this one. Empty for
	// direct tags.
	AutoTaggedBy []component.ID
	RunID        string
	CreatedAt    time.Time
}

// IsAutoTag reports whether the soft tag was created by propagation.
func (r *SoftTagRecord) IsAutoTag() bool {
	return len(r.AutoTaggedBy) > 0
}

// Tagged converts the record into the component it would tag.
func (r *SoftTagRecord) Tagged() TaggedComponent {
	return TaggedComponent{
		ID:              r.Component.WithVersion(r.Version),
		PreviousVersion: r.PreviousVersion,
		IsNew:           r.IsNew,
		Message:         r.Message,
		AutoTagged:      r.IsAutoTag(),
	}
}
