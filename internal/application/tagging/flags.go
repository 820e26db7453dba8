// Package tagging provides the application use cases for tagging components:
// flag normalization, id resolution, the tag policy engine and its report.
package tagging

import (
	"fmt"
	"strings"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	"github.com/relicta-tech/bitsmith/internal/domain/version"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// OptionalValue is a flag that may be given with or without a value, such as
// `--pre-release` versus `--pre-release dev`.
type OptionalValue struct {
	Set   bool
	Value string
}

// Given returns an OptionalValue that was set to v.
func Given(v string) OptionalValue {
	return OptionalValue{Set: true, Value: v}
}

// RawTagFlags mirrors the tag command line as typed, legacy flags included.
type RawTagFlags struct {
	IDs        []string
	Message    string
	Unmodified bool
	Editor     OptionalValue
	Ver        string
	Patch      bool
	Minor      bool
	Major      bool
	Snapped    bool
	PreRelease OptionalValue

	SkipTests           bool
	SkipAutoTag         bool
	Soft                bool
	Persist             bool
	DisableTagPipeline  bool
	ForceDeploy         bool
	// IncrementBy is nil when --increment-by was not given.
	IncrementBy         *int
	IgnoreIssues        OptionalValue
	IgnoreNewestVersion bool
	Build               bool

	// IgnoreUnresolvedDependencies was removed; setting it is an error.
	IgnoreUnresolvedDependencies bool

	// Deprecated flags.
	All                   OptionalValue
	Scope                 OptionalValue
	Force                 bool
	DisableDeployPipeline bool
}

// Defaults carries configuration that fills in what the flags leave open.
type Defaults struct {
	RequireMessage bool
	ReleaseType    version.BumpType
	SkipAutoTag    bool
	IgnoreIssues   component.IgnoreSet
}

// Warning messages emitted during normalization.
const (
	WarnMessageMandatory = "--message will be mandatory in the next few releases. make sure to add a message with your tag"
	WarnAllDeprecated    = `--all is deprecated, please omit it. "bitsmith tag" by default will tag all new and modified components. to specify a version, use --ver flag`
	WarnScopeDeprecated  = "--scope is deprecated, use --unmodified instead"
	WarnForceDeprecated  = "--force is deprecated, use either --skip-tests or --unmodified depending on the use case"
	WarnDeployDeprecated = "--disable-deploy-pipeline is deprecated, please use --disable-tag-pipeline instead"
)

// NormalizeFlags folds legacy flags into the canonical request and checks
// flag combinations. It runs before anything is resolved or written, so every
// error it returns is a KindFlags error and the invocation has no effect.
func NormalizeFlags(raw RawTagFlags, defaults Defaults) (tag.Request, []string, error) {
	const op = "tagging.NormalizeFlags"
	var warnings []string

	if raw.IgnoreUnresolvedDependencies {
		return tag.Request{}, nil, bserrors.InvalidFlags(op,
			"--ignore-unresolved-dependencies has been removed, please use --ignore-issues instead")
	}
	if raw.IgnoreIssues.Set && strings.TrimSpace(raw.IgnoreIssues.Value) == "" {
		return tag.Request{}, nil, bserrors.InvalidFlags(op,
			fmt.Sprintf("--ignore-issues expects issues to be ignored (%s) or \"*\"", component.IssueKindNames()))
	}
	if raw.Soft && raw.Persist {
		return tag.Request{}, nil, bserrors.InvalidFlags(op,
			"--soft and --persist cannot be used together: --persist finalizes the tags recorded by a previous --soft")
	}
	if raw.IncrementBy != nil && *raw.IncrementBy < 1 {
		return tag.Request{}, nil, bserrors.InvalidFlags(op, "--increment-by must be a positive number")
	}

	req := tag.Request{
		IDs:                        raw.IDs,
		Message:                    raw.Message,
		Unmodified:                 raw.Unmodified,
		Editor:                     raw.Editor.Set,
		EditorCommand:              raw.Editor.Value,
		Snapped:                    raw.Snapped,
		Version:                    raw.Ver,
		SkipTests:                  raw.SkipTests,
		SkipAutoTag:                raw.SkipAutoTag || defaults.SkipAutoTag,
		Soft:                       raw.Soft,
		Persist:                    raw.Persist,
		Build:                      raw.Build,
		DisableTagAndSnapPipelines: raw.DisableTagPipeline,
		ForceDeploy:                raw.ForceDeploy,
		IgnoreIssues:               defaults.IgnoreIssues,
		IgnoreNewestVersion:        raw.IgnoreNewestVersion,
		IncrementBy:                1,
	}
	if raw.IncrementBy != nil {
		req.IncrementBy = uint64(*raw.IncrementBy) // #nosec G115 -- checked positive above
	}

	if strings.TrimSpace(raw.Message) == "" && !raw.Persist {
		if defaults.RequireMessage {
			return tag.Request{}, nil, bserrors.InvalidFlags(op, "--message is required by the tag.require_message setting")
		}
		warnings = append(warnings, WarnMessageMandatory)
	}

	// Legacy flags carrying a version fold into --ver.
	legacyVersion := ""
	if raw.All.Set {
		warnings = append(warnings, WarnAllDeprecated)
		legacyVersion = raw.All.Value
	}
	if raw.Scope.Set {
		warnings = append(warnings, WarnScopeDeprecated)
		req.Unmodified = true
		if raw.Scope.Value != "" {
			legacyVersion = raw.Scope.Value
		}
	}
	if raw.Force {
		warnings = append(warnings, WarnForceDeprecated)
		if len(raw.IDs) > 0 {
			req.Unmodified = true
		}
	}
	if raw.DisableDeployPipeline {
		warnings = append(warnings, WarnDeployDeprecated)
		req.DisableTagAndSnapPipelines = true
	}
	if legacyVersion != "" {
		if req.Version != "" && req.Version != legacyVersion {
			return tag.Request{}, nil, bserrors.InvalidFlags(op,
				fmt.Sprintf("conflicting versions: --ver %s and a deprecated flag set to %s", req.Version, legacyVersion))
		}
		req.Version = legacyVersion
	}

	releaseFlags := 0
	if req.Version != "" {
		releaseFlags++
	}
	if raw.Patch {
		releaseFlags++
		req.ReleaseType = version.BumpPatch
	}
	if raw.Minor {
		releaseFlags++
		req.ReleaseType = version.BumpMinor
	}
	if raw.Major {
		releaseFlags++
		req.ReleaseType = version.BumpMajor
	}
	if raw.PreRelease.Set {
		releaseFlags++
		req.ReleaseType = version.BumpPrerelease
		req.PreReleaseID = raw.PreRelease.Value
	}
	if releaseFlags > 1 {
		return tag.Request{}, nil, bserrors.InvalidFlags(op,
			"only one of --ver, --patch, --minor, --major and --pre-release can be used")
	}
	if req.Version != "" {
		if _, err := version.Parse(req.Version); err != nil {
			return tag.Request{}, nil, bserrors.InvalidFlags(op, fmt.Sprintf("invalid version %q: %v", req.Version, err))
		}
	}
	if releaseFlags == 0 && defaults.ReleaseType != "" {
		req.ReleaseType = defaults.ReleaseType
	}

	if raw.Persist && (releaseFlags > 0 || raw.Snapped || raw.Unmodified) {
		return tag.Request{}, nil, bserrors.InvalidFlags(op,
			"--persist finalizes previously recorded soft tags and cannot be combined with version or selection flags")
	}
	if raw.Snapped && (req.Unmodified || len(raw.IDs) > 0) {
		return tag.Request{}, nil, bserrors.InvalidFlags(op, "--snapped cannot be combined with ids or --unmodified")
	}

	if raw.IgnoreIssues.Set {
		set, err := component.ParseIgnoreSet(raw.IgnoreIssues.Value)
		if err != nil {
			return tag.Request{}, nil, bserrors.InvalidFlags(op, err.Error())
		}
		req.IgnoreIssues = set
	}

	return req, warnings, nil
}
