// Package tag provides the domain model for tagging components: requests,
// results, persisted records and the ports the tagging use cases depend on.
package tag

import (
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
)

// Request is the canonical, normalized form of a tag invocation. Legacy flags
// have already been folded in; the engine never sees them.
type Request struct {
	// IDs are the raw requested ids, each optionally suffixed with
	// "@version" or "@<release type>".
	IDs []string
	// Message is the tag message applied to every directly tagged component.
	Message string
	// Unmodified includes components without changes.
	Unmodified bool
	// Editor opens an editor to write per-component messages. EditorCommand
	// overrides $EDITOR when set.
	Editor        bool
	EditorCommand string
	// Snapped re-tags components whose latest record is a pending soft tag.
	Snapped bool
	// Version is an explicit version applied to every resolved component.
	Version string
	// ReleaseType is the bump applied when no explicit version is given.
	ReleaseType version.BumpType
	// PreReleaseID is the prerelease identifier for prerelease bumps.
	PreReleaseID string
	// IncrementBy is the bump amount for major, minor and patch.
	IncrementBy uint64

	SkipTests                  bool
	SkipAutoTag                bool
	Soft                       bool
	Persist                    bool
	Build                      bool
	DisableTagAndSnapPipelines bool
	ForceDeploy                bool
	IgnoreIssues               component.IgnoreSet
	IgnoreNewestVersion        bool
}

// Directive returns the request-level version directive, used for every
// component whose id does not carry its own.
func (r *Request) Directive() version.Directive {
	if r.Version != "" {
		return version.NewExplicitDirective(r.Version)
	}
	switch r.ReleaseType {
	case version.BumpPrerelease:
		return version.NewPrereleaseDirective(r.PreReleaseID)
	case version.BumpMajor, version.BumpMinor, version.BumpPatch:
		return version.NewBumpDirective(r.ReleaseType, r.IncrementBy)
	default:
		return version.NewBumpDirective(version.BumpPatch, r.IncrementBy)
	}
}

// RunsPipelines reports whether build/test pipelines run for this request.
func (r *Request) RunsPipelines() bool {
	if r.Soft || r.DisableTagAndSnapPipelines {
		return false
	}
	return !r.SkipTests || r.Build
}

// RunsTests reports whether test tasks run.
func (r *Request) RunsTests() bool {
	return r.RunsPipelines() && !r.SkipTests
}
