// Package version provides domain types for semantic versioning.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// BumpType represents the kind of version change a directive applies.
type BumpType string

const (
	// BumpMajor increments the major field.
	BumpMajor BumpType = "major"
	// BumpMinor increments the minor field.
	BumpMinor BumpType = "minor"
	// BumpPatch increments the patch field.
	BumpPatch BumpType = "patch"
	// BumpPrerelease increments or starts a prerelease.
	BumpPrerelease BumpType = "prerelease"
	// BumpExplicit sets an exact version.
	BumpExplicit BumpType = "explicit"
)

// IsValid returns true if the bump type is valid.
func (b BumpType) IsValid() bool {
	switch b {
	case BumpMajor, BumpMinor, BumpPatch, BumpPrerelease, BumpExplicit:
		return true
	default:
		return false
	}
}

// String returns the string representation of the bump type.
func (b BumpType) String() string {
	return string(b)
}

// ParseBumpType parses a release-type keyword. "pre-release" is accepted as an
// alias of "prerelease"; "explicit" is not a keyword.
func ParseBumpType(s string) (BumpType, error) {
	if s == "pre-release" {
		return BumpPrerelease, nil
	}
	bt := BumpType(s)
	if !bt.IsValid() || bt == BumpExplicit {
		return "", fmt.Errorf("%w: %q (must be major, minor, patch, or prerelease)", ErrInvalidBumpType, s)
	}
	return bt, nil
}

// Directive describes how a single component's next version is derived.
// Exactly one directive applies per component per tag invocation.
type Directive struct {
	Type        BumpType
	Explicit    string
	PreID       string
	IncrementBy uint64
}

// DefaultDirective is a patch bump by one.
func DefaultDirective() Directive {
	return Directive{Type: BumpPatch, IncrementBy: 1}
}

// NewBumpDirective creates a major/minor/patch directive incremented by n.
func NewBumpDirective(bt BumpType, n uint64) Directive {
	if n == 0 {
		n = 1
	}
	return Directive{Type: bt, IncrementBy: n}
}

// NewPrereleaseDirective creates a prerelease directive for the given identifier.
func NewPrereleaseDirective(id string) Directive {
	return Directive{Type: BumpPrerelease, PreID: id, IncrementBy: 1}
}

// NewExplicitDirective creates a directive that sets v exactly.
func NewExplicitDirective(v string) Directive {
	return Directive{Type: BumpExplicit, Explicit: v}
}

// ParseDirective interprets the part after "@" in an id: a keyword or an
// explicit version.
func ParseDirective(s string, incrementBy uint64) (Directive, error) {
	if bt, err := ParseBumpType(s); err == nil {
		if bt == BumpPrerelease {
			return NewPrereleaseDirective(""), nil
		}
		return NewBumpDirective(bt, incrementBy), nil
	}
	if _, err := Parse(s); err != nil {
		return Directive{}, err
	}
	return NewExplicitDirective(s), nil
}

// String renders the directive for logs.
func (d Directive) String() string {
	switch d.Type {
	case BumpExplicit:
		return "explicit(" + d.Explicit + ")"
	case BumpPrerelease:
		return "prerelease(" + d.PreID + ")"
	default:
		return fmt.Sprintf("%s+%d", d.Type, d.IncrementBy)
	}
}

// Apply computes the next version from last. A nil last means the component
// has never been tagged, in which case bumps start from Zero.
// Explicit versions must be newer than last unless allowOlder is set.
func (d Directive) Apply(last *SemanticVersion, allowOlder bool) (SemanticVersion, error) {
	base := Zero
	if last != nil {
		base = *last
	}
	n := d.IncrementBy
	if n == 0 {
		n = 1
	}

	switch d.Type {
	case BumpMajor, BumpMinor, BumpPatch, "":
		return bumpRelease(base, d.Type, n), nil
	case BumpPrerelease:
		return bumpPrerelease(base, d.PreID), nil
	case BumpExplicit:
		v, err := Parse(d.Explicit)
		if err != nil {
			return Zero, err
		}
		if last != nil && !allowOlder && !v.GreaterThan(*last) {
			return Zero, fmt.Errorf("%w: %s is not newer than %s", ErrCannotDowngrade, v, last)
		}
		return v, nil
	default:
		return Zero, fmt.Errorf("%w: %q", ErrInvalidBumpType, d.Type)
	}
}

// bumpRelease increments the field named by bt n times. Stepping out of a
// prerelease counts as the first increment, so 1.0.1-dev.0 patches to 1.0.1
// and 2.0.0-rc.1 majors to 2.0.0.
func bumpRelease(base SemanticVersion, bt BumpType, n uint64) SemanticVersion {
	sv := *base.semver()
	switch bt {
	case BumpMajor:
		sv = sv.IncMajor()
	case BumpMinor:
		sv = sv.IncMinor()
	default:
		sv = sv.IncPatch()
	}
	next := fromSemver(&sv)

	switch bt {
	case BumpMajor:
		next.major += n - 1
	case BumpMinor:
		next.minor += n - 1
	default:
		next.patch += n - 1
	}
	return next
}

// bumpPrerelease increments the trailing numeric identifier when base is
// already a prerelease of the same id, otherwise bumps patch and starts a
// new prerelease at .0 (e.g. 1.0.0 -> 1.0.1-dev.0 -> 1.0.1-dev.1).
func bumpPrerelease(base SemanticVersion, id string) SemanticVersion {
	if base.IsPrerelease() {
		pre := string(base.prerelease)
		head, num, hasNum := splitPrerelease(pre)
		if id == "" || id == head {
			next := uint64(0)
			if hasNum {
				next = num + 1
			}
			if head == "" {
				return base.WithoutPrerelease().WithPrerelease(Prerelease(strconv.FormatUint(next, 10)))
			}
			return base.WithoutPrerelease().WithPrerelease(Prerelease(head + "." + strconv.FormatUint(next, 10)))
		}
		return SemanticVersion{major: base.major, minor: base.minor, patch: base.patch, prerelease: Prerelease(id + ".0")}
	}

	next := SemanticVersion{major: base.major, minor: base.minor, patch: base.patch + 1}
	if id == "" {
		return next.WithPrerelease("0")
	}
	return next.WithPrerelease(Prerelease(id + ".0"))
}

// splitPrerelease splits "dev.3" into ("dev", 3, true) and "3" into ("", 3, true).
func splitPrerelease(pre string) (head string, num uint64, ok bool) {
	idx := strings.LastIndex(pre, ".")
	tail := pre
	if idx >= 0 {
		head, tail = pre[:idx], pre[idx+1:]
	}
	n, err := strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return pre, 0, false
	}
	return head, n, true
}
