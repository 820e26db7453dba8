package container

import (
	"context"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

// MultiIssueDetector adapts several issue detectors to tag.IssueDetector.
// Issues are reported in detector order.
type MultiIssueDetector []tag.IssueDetector

var _ tag.IssueDetector = MultiIssueDetector(nil)

// Issues implements tag.IssueDetector.
func (m MultiIssueDetector) Issues(ctx context.Context, c component.Component) ([]component.Issue, error) {
	var out []component.Issue
	for _, d := range m {
		issues, err := d.Issues(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, issues...)
	}
	return out, nil
}
