// Package version provides domain types for semantic versioning.
package version

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	mm "github.com/Masterminds/semver/v3"
)

// SemanticVersion is a value object representing a semantic version.
// All operations return new instances.
type SemanticVersion struct {
	major      uint64
	minor      uint64
	patch      uint64
	prerelease Prerelease
	metadata   BuildMetadata
}

// Prerelease represents the prerelease portion of a semantic version.
type Prerelease string

// BuildMetadata represents the build metadata portion of a semantic version.
type BuildMetadata string

var (
	semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

	// Zero is the zero version (0.0.0). Bumps of a component that was never
	// tagged start from here.
	Zero = SemanticVersion{}
)

// Parse parses a semantic version string into a SemanticVersion value object.
func Parse(s string) (SemanticVersion, error) {
	matches := semverRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	major, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid major version: %w", err)
	}
	minor, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid minor version: %w", err)
	}
	patch, err := strconv.ParseUint(matches[3], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid patch version: %w", err)
	}

	return SemanticVersion{
		major:      major,
		minor:      minor,
		patch:      patch,
		prerelease: Prerelease(matches[4]),
		metadata:   BuildMetadata(matches[5]),
	}, nil
}

// MustParse parses a semantic version string and panics if invalid.
// Use only for known-good version strings.
func MustParse(s string) SemanticVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the major version component.
func (v SemanticVersion) Major() uint64 { return v.major }

// Minor returns the minor version component.
func (v SemanticVersion) Minor() uint64 { return v.minor }

// Patch returns the patch version component.
func (v SemanticVersion) Patch() uint64 { return v.patch }

// Prerelease returns the prerelease identifier.
func (v SemanticVersion) Prerelease() Prerelease { return v.prerelease }

// Metadata returns the build metadata.
func (v SemanticVersion) Metadata() BuildMetadata { return v.metadata }

// IsPrerelease returns true if this is a prerelease version.
func (v SemanticVersion) IsPrerelease() bool {
	return v.prerelease != ""
}

// IsZero returns true if this is the zero version.
func (v SemanticVersion) IsZero() bool {
	return v.major == 0 && v.minor == 0 && v.patch == 0 && v.prerelease == "" && v.metadata == ""
}

// String returns the string representation of the version (without 'v' prefix).
func (v SemanticVersion) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.major, v.minor, v.patch)

	if v.prerelease != "" {
		sb.WriteString("-")
		sb.WriteString(string(v.prerelease))
	}
	if v.metadata != "" {
		sb.WriteString("+")
		sb.WriteString(string(v.metadata))
	}
	return sb.String()
}

// WithPrerelease returns a new version with the specified prerelease identifier.
func (v SemanticVersion) WithPrerelease(pre Prerelease) SemanticVersion {
	v.prerelease = pre
	return v
}

// WithoutPrerelease returns a new version without the prerelease identifier.
func (v SemanticVersion) WithoutPrerelease() SemanticVersion {
	v.prerelease = ""
	return v
}

func (v SemanticVersion) semver() *mm.Version {
	return mm.New(v.major, v.minor, v.patch, string(v.prerelease), string(v.metadata))
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
// Build metadata is ignored and prerelease identifiers follow semver precedence.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	return v.semver().Compare(other.semver())
}

// GreaterThan returns true if v > other.
func (v SemanticVersion) GreaterThan(other SemanticVersion) bool {
	return v.Compare(other) > 0
}

// Equal returns true if two versions are equal (ignoring metadata).
func (v SemanticVersion) Equal(other SemanticVersion) bool {
	return v.Compare(other) == 0
}

// Newest returns the highest version in raw, skipping strings that are not
// valid semantic versions. ok is false when nothing valid was found.
func Newest(raw []string) (newest SemanticVersion, ok bool) {
	coll := make(mm.Collection, 0, len(raw))
	for _, r := range raw {
		sv, err := mm.StrictNewVersion(strings.TrimPrefix(r, "v"))
		if err != nil {
			continue
		}
		coll = append(coll, sv)
	}
	if len(coll) == 0 {
		return Zero, false
	}
	sort.Sort(coll)
	return fromSemver(coll[len(coll)-1]), true
}

func fromSemver(sv *mm.Version) SemanticVersion {
	return SemanticVersion{
		major:      sv.Major(),
		minor:      sv.Minor(),
		patch:      sv.Patch(),
		prerelease: Prerelease(sv.Prerelease()),
		metadata:   BuildMetadata(sv.Metadata()),
	}
}
