package tagging

import (
	"fmt"

	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

// Messages shared by the report and its renderers.
const (
	NothingToTagMsg = "nothing to tag"
	AutoTaggedMsg   = "auto-tagged dependents"

	SoftTagClarification = "keep in mind that this is a soft-tag (changes recorded to be tagged), to persist the changes use --persist flag"
)

// ReportComponent is one line of a report section with the auto-tags it
// triggered.
type ReportComponent struct {
	ID         string   `json:"id"`
	AutoTagged []string `json:"autoTagged,omitempty"`
}

// Section is a titled list of tagged components.
type Section struct {
	Title       string            `json:"title"`
	Explanation string            `json:"explanation"`
	Components  []ReportComponent `json:"components"`
}

// Report is the structured outcome of a tag run, ready to be rendered.
// Sections only exist when they have components.
type Report struct {
	Warnings      []string          `json:"warnings,omitempty"`
	Headline      string            `json:"headline"`
	Explanation   []string          `json:"explanation"`
	Sections      []Section         `json:"sections,omitempty"`
	Published     []string          `json:"published,omitempty"`
	Clarification string            `json:"clarification,omitempty"`
	Failures      []tag.Failure     `json:"failures,omitempty"`
	Versions      map[string]string `json:"versions"`
	IsSoftTag     bool              `json:"isSoftTag"`
}

// PublishedTitle is the heading of the published packages list.
func (r *Report) PublishedTitle() string {
	return fmt.Sprintf("published the following %d component(s) successfully", len(r.Published))
}

// Partition splits the direct tags into new components (added) and the rest
// (changed). Membership ignores versions.
func Partition(results *tag.Results) (added, changed []tag.TaggedComponent) {
	for _, c := range results.TaggedComponents {
		if results.NewComponents.HasWithoutVersion(c.ID) {
			added = append(added, c)
		} else {
			changed = append(changed, c)
		}
	}
	return added, changed
}

// Aggregate builds the report of a tag run.
func Aggregate(results *tag.Results) Report {
	soft := results.IsSoftTag
	prefix := ""
	if soft {
		prefix = "soft-"
	}

	report := Report{
		Warnings:  results.Warnings,
		Headline:  fmt.Sprintf("%d component(s) %stagged", results.Count(), prefix),
		Published: results.PublishedPackages,
		Failures:  results.Failures,
		Versions:  results.Versions(),
		IsSoftTag: soft,
	}
	if soft {
		report.Explanation = []string{
			`(use "bitsmith tag --persist" to persist the changes)`,
			`(use "bitsmith untag --soft" to remove the soft-tags)`,
		}
		report.Clarification = SoftTagClarification
	} else {
		report.Explanation = []string{
			`(use "bitsmith artifacts <pattern>" to list the build artifacts)`,
			`(use "bitsmith status" to review the workspace)`,
		}
	}

	titlePrefix := ""
	if soft {
		titlePrefix = "soft-tagged "
	}
	added, changed := Partition(results)
	newDesc, changedDesc := "first version for components", "components that got a version bump"
	if soft {
		newDesc, changedDesc = "set to be tagged first version for components", "components that set to get a version bump"
	}
	if len(added) > 0 {
		report.Sections = append(report.Sections, section(results, titlePrefix+"new components", newDesc, added))
	}
	if len(changed) > 0 {
		report.Sections = append(report.Sections, section(results, titlePrefix+"changed components", changedDesc, changed))
	}
	return report
}

func section(results *tag.Results, title, explanation string, comps []tag.TaggedComponent) Section {
	s := Section{Title: title, Explanation: explanation}
	for _, c := range comps {
		rc := ReportComponent{ID: c.ID.String()}
		for _, a := range results.AutoTaggedResults {
			if a.TriggeredBy.EqualWithoutScopeAndVersion(c.ID) {
				rc.AutoTagged = append(rc.AutoTagged, a.Component.ID.String())
			}
		}
		s.Components = append(s.Components, rc)
	}
	return s
}
