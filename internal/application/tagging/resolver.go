package tagging

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// Resolution is a component selected for tagging with the directive that
// computes its next version.
type Resolution struct {
	Component component.Component
	Directive version.Directive
	// IsNew is true when the component has never been tagged.
	IsNew bool
	// Last is the latest tag record, nil for new components.
	Last *tag.Record
}

// LastVersion returns the version of the latest record, or "".
func (r *Resolution) LastVersion() string {
	if r.Last == nil {
		return ""
	}
	return r.Last.Version
}

// Resolver turns the ids of a request into resolutions.
type Resolver struct {
	versions tag.VersionStore
	softTags tag.SoftTagStore
	detector tag.ModificationDetector
}

// NewResolver creates a new Resolver.
func NewResolver(versions tag.VersionStore, softTags tag.SoftTagStore, detector tag.ModificationDetector) *Resolver {
	return &Resolver{versions: versions, softTags: softTags, detector: detector}
}

// Resolve selects the components of a request, in workspace order.
//
// Ids may carry "@<version>" or "@<release type>" and may be globs over
// "scope/name". Without ids, new and modified components are selected, all
// components with Unmodified, and components with pending soft tags with
// Snapped. Explicitly named components that did not change are skipped with
// a warning unless Unmodified is set.
func (r *Resolver) Resolve(ctx context.Context, req tag.Request, comps []component.Component, acc *Accumulator) ([]Resolution, error) {
	const op = "tagging.Resolver.Resolve"

	type selection struct {
		comp      component.Component
		directive *version.Directive
		explicit  bool
	}
	var selected []selection

	switch {
	case len(req.IDs) > 0:
		index := make(map[string]int)
		for _, raw := range req.IDs {
			pattern, suffix := SplitIDPattern(raw)
			var directive *version.Directive
			if suffix != "" {
				d, err := version.ParseDirective(suffix, req.IncrementBy)
				if err != nil {
					return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("invalid version in %q", raw))
				}
				if d.Type == version.BumpPrerelease {
					d.PreID = req.PreReleaseID
				}
				directive = &d
			}

			matches, err := MatchComponents(pattern, comps)
			if err != nil {
				return nil, bserrors.ValidationWrap(err, op, fmt.Sprintf("invalid id pattern %q", raw))
			}
			if len(matches) == 0 {
				return nil, bserrors.NotFound(op, fmt.Sprintf("component %q was not found in the workspace", pattern))
			}
			for _, c := range matches {
				key := c.ID.FullName()
				if i, ok := index[key]; ok {
					if directive != nil {
						selected[i].directive = directive
					}
					continue
				}
				index[key] = len(selected)
				selected = append(selected, selection{comp: c, directive: directive, explicit: !IsGlob(pattern)})
			}
		}

	case req.Snapped:
		pending, err := r.softTags.ListSoftTags(ctx)
		if err != nil {
			return nil, err
		}
		soft := make(component.IDList, 0, len(pending))
		for _, p := range pending {
			soft = append(soft, p.Component)
		}
		for _, c := range comps {
			if soft.HasWithoutVersion(c.ID) {
				selected = append(selected, selection{comp: c})
			}
		}

	default:
		for _, c := range comps {
			selected = append(selected, selection{comp: c})
		}
	}

	out := make([]Resolution, 0, len(selected))
	for _, s := range selected {
		last, err := r.versions.LatestRecord(ctx, s.comp.ID)
		if err != nil {
			return nil, err
		}
		res := Resolution{Component: s.comp, IsNew: last == nil, Last: last, Directive: req.Directive()}
		if s.directive != nil {
			res.Directive = *s.directive
		}

		if !req.Unmodified && !req.Snapped && !res.IsNew {
			modified, err := r.detector.Modified(ctx, s.comp, last)
			if err != nil {
				return nil, err
			}
			if !modified {
				if s.explicit {
					acc.Warn("%s has not changed since %s, use --unmodified to tag it anyway", s.comp.ID, last.Version)
				}
				continue
			}
		}
		out = append(out, res)
	}
	return out, nil
}

// SplitIDPattern splits a raw id into its pattern and the text after the
// last "@", which is a version or a release type.
func SplitIDPattern(raw string) (pattern, suffix string) {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "@"); i > 0 {
		return raw[:i], raw[i+1:]
	}
	return raw, ""
}

// IsGlob reports whether a pattern contains glob metacharacters.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// MatchComponents returns the components whose "scope/name" matches pattern,
// in workspace order. A pattern without a scope also matches bare names.
func MatchComponents(pattern string, comps []component.Component) ([]component.Component, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}
	unscoped := !strings.Contains(pattern, "/")

	var out []component.Component
	for _, c := range comps {
		ok, err := doublestar.Match(pattern, c.ID.FullName())
		if err != nil {
			return nil, err
		}
		if !ok && unscoped {
			ok, err = doublestar.Match(pattern, c.ID.Name)
			if err != nil {
				return nil, err
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}
