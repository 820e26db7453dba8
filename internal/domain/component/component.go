package component

import (
	"fmt"
	"sort"
	"strings"
)

// TaskKind distinguishes build tasks from test tasks.
type TaskKind string

const (
	// TaskBuild produces artifacts.
	TaskBuild TaskKind = "build"
	// TaskTest verifies the component; skipped by --skip-tests.
	TaskTest TaskKind = "test"
)

// TaskSpec declares a pipeline task contributed by an aspect.
type TaskSpec struct {
	// Aspect is the extension that owns the task (e.g. "compiler").
	Aspect string
	// Name is the task id within the aspect (e.g. "build").
	Name string
	// Kind is build or test.
	Kind TaskKind
	// Run is the shell command executed in the component directory.
	Run string
	// Outputs are glob patterns, relative to the component directory, of the
	// files the task produces. Matching files are stored as artifacts.
	Outputs []string
}

// Component is a versioned unit of the workspace.
type Component struct {
	ID           ID
	Dir          string
	Dependencies []ID
	Tasks        []TaskSpec
}

// TasksOfKind returns the tasks of the given kind in declaration order.
func (c *Component) TasksOfKind(kind TaskKind) []TaskSpec {
	var out []TaskSpec
	for _, t := range c.Tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// IssueKind names a class of component problems that block tagging.
type IssueKind string

const (
	// IssueMissingDependencies is reported when a dependency is not part of the workspace.
	IssueMissingDependencies IssueKind = "MissingDependencies"
	// IssueMissingFiles is reported when the component directory is missing or empty.
	IssueMissingFiles IssueKind = "MissingFiles"
	// IssueCircularDependencies is reported for components on a dependency cycle.
	IssueCircularDependencies IssueKind = "CircularDependencies"
	// IssueUntrackedFiles is reported when the component has files unknown to git.
	IssueUntrackedFiles IssueKind = "UntrackedFiles"
)

// AllIssueKinds lists the known issue kinds, used for help output and validation.
var AllIssueKinds = []IssueKind{
	IssueMissingDependencies,
	IssueMissingFiles,
	IssueCircularDependencies,
	IssueUntrackedFiles,
}

// ParseIssueKind validates an issue kind name.
func ParseIssueKind(s string) (IssueKind, error) {
	for _, k := range AllIssueKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown issue %q, expected one of [%s]", s, IssueKindNames())
}

// IssueKindNames returns the known kinds joined by ", ".
func IssueKindNames() string {
	names := make([]string, 0, len(AllIssueKinds))
	for _, k := range AllIssueKinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// Issue is a single problem found on a component.
type Issue struct {
	Kind      IssueKind
	Component ID
	Detail    string
}

// String renders the issue for reports.
func (i Issue) String() string {
	if i.Detail == "" {
		return string(i.Kind)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// IgnoreSet is the set of issue kinds that do not block tagging. The wildcard
// set ignores every kind.
type IgnoreSet struct {
	all   bool
	kinds map[IssueKind]struct{}
}

// IgnoreAll returns the wildcard set.
func IgnoreAll() IgnoreSet {
	return IgnoreSet{all: true}
}

// ParseIgnoreSet parses "*" or a comma-separated list of issue kinds.
func ParseIgnoreSet(s string) (IgnoreSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return IgnoreSet{}, nil
	}
	if s == "*" {
		return IgnoreAll(), nil
	}
	set := IgnoreSet{kinds: make(map[IssueKind]struct{})}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := ParseIssueKind(part)
		if err != nil {
			return IgnoreSet{}, err
		}
		set.kinds[k] = struct{}{}
	}
	return set, nil
}

// IsWildcard reports whether every kind is ignored.
func (s IgnoreSet) IsWildcard() bool {
	return s.all
}

// Ignores reports whether issues of kind k are ignored.
func (s IgnoreSet) Ignores(k IssueKind) bool {
	if s.all {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Blocking filters issues down to those not in the set.
func (s IgnoreSet) Blocking(issues []Issue) []Issue {
	if s.all {
		return nil
	}
	var out []Issue
	for _, i := range issues {
		if !s.Ignores(i.Kind) {
			out = append(out, i)
		}
	}
	return out
}

// String renders the set as it would be written on the command line.
func (s IgnoreSet) String() string {
	if s.all {
		return "*"
	}
	names := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
