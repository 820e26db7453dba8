// Package component provides the domain model for workspace components and
// their identifiers.
package component

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidID indicates a malformed component identifier.
var ErrInvalidID = errors.New("invalid component id")

// ID identifies a component: an optional scope, a name and an optional version.
// Its string form is "scope/name@version"; scope and version may be omitted.
type ID struct {
	Scope   string
	Name    string
	Version string
}

// NewID creates an ID without a version.
func NewID(scope, name string) ID {
	return ID{Scope: scope, Name: name}
}

// ParseID parses "scope/name@version". The scope is everything before the
// first "/" and the version everything after the last "@".
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	var id ID
	if at := strings.LastIndex(s, "@"); at >= 0 {
		id.Version = s[at+1:]
		s = s[:at]
		if id.Version == "" {
			return ID{}, fmt.Errorf("%w: %q has an empty version", ErrInvalidID, s)
		}
	}
	if slash := strings.Index(s, "/"); slash >= 0 {
		id.Scope, id.Name = s[:slash], s[slash+1:]
		if id.Scope == "" {
			return ID{}, fmt.Errorf("%w: %q has an empty scope", ErrInvalidID, s)
		}
	} else {
		id.Name = s
	}
	if id.Name == "" {
		return ID{}, fmt.Errorf("%w: %q has an empty name", ErrInvalidID, s)
	}
	return id, nil
}

// MustParseID parses s and panics on error. Use only for literals.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns "scope/name@version" with empty parts omitted.
func (id ID) String() string {
	s := id.FullName()
	if id.Version != "" {
		s += "@" + id.Version
	}
	return s
}

// FullName returns "scope/name" (or "name" without a scope).
func (id ID) FullName() string {
	if id.Scope == "" {
		return id.Name
	}
	return id.Scope + "/" + id.Name
}

// MarshalText encodes the id in its string form.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes an id from its string form.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// HasVersion reports whether the id carries a version.
func (id ID) HasVersion() bool {
	return id.Version != ""
}

// WithVersion returns a copy of id carrying v.
func (id ID) WithVersion(v string) ID {
	id.Version = v
	return id
}

// WithoutVersion returns a copy of id with the version cleared.
func (id ID) WithoutVersion() ID {
	id.Version = ""
	return id
}

// Equal reports an exact match.
func (id ID) Equal(other ID) bool {
	return id == other
}

// EqualWithoutVersion compares scope and name.
func (id ID) EqualWithoutVersion(other ID) bool {
	return id.Scope == other.Scope && id.Name == other.Name
}

// EqualWithoutScopeAndVersion compares names only. Used to attribute auto-tags
// to components that may be referenced from a different scope.
func (id ID) EqualWithoutScopeAndVersion(other ID) bool {
	return id.Name == other.Name
}

// IDList is an ordered list of component ids.
type IDList []ID

// Search returns the exact match, if any.
func (l IDList) Search(id ID) (ID, bool) {
	for _, c := range l {
		if c.Equal(id) {
			return c, true
		}
	}
	return ID{}, false
}

// SearchWithoutVersion returns the first entry with the same scope and name.
func (l IDList) SearchWithoutVersion(id ID) (ID, bool) {
	for _, c := range l {
		if c.EqualWithoutVersion(id) {
			return c, true
		}
	}
	return ID{}, false
}

// SearchWithoutScopeAndVersion returns the first entry with the same name.
func (l IDList) SearchWithoutScopeAndVersion(id ID) (ID, bool) {
	for _, c := range l {
		if c.EqualWithoutScopeAndVersion(id) {
			return c, true
		}
	}
	return ID{}, false
}

// HasWithoutVersion reports whether an entry with the same scope and name exists.
func (l IDList) HasWithoutVersion(id ID) bool {
	_, ok := l.SearchWithoutVersion(id)
	return ok
}

// Add appends id unless an exact match is already present.
func (l IDList) Add(id ID) IDList {
	if _, ok := l.Search(id); ok {
		return l
	}
	return append(l, id)
}

// Strings returns the sorted string forms of the list.
func (l IDList) Strings() []string {
	out := make([]string, 0, len(l))
	for _, id := range l {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}
