package tagging

import (
	"context"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// ChangeState classifies a component against its latest tag.
type ChangeState string

const (
	ChangeNew        ChangeState = "new"
	ChangeModified   ChangeState = "modified"
	ChangeUnmodified ChangeState = "unmodified"
)

// ComponentStatus is the state of one workspace component.
type ComponentStatus struct {
	ID          component.ID      `json:"id"`
	State       ChangeState       `json:"state"`
	LastVersion string            `json:"lastVersion,omitempty"`
	SoftTag     string            `json:"softTag,omitempty"`
	Issues      []component.Issue `json:"issues,omitempty"`
}

// StatusOutput represents output of the Status use case.
type StatusOutput struct {
	Components []ComponentStatus `json:"components"`
}

// Count returns the number of components in a state.
func (o *StatusOutput) Count(state ChangeState) int {
	n := 0
	for _, c := range o.Components {
		if c.State == state {
			n++
		}
	}
	return n
}

// StatusUseCase reports new, modified, soft-tagged and issue-bearing components.
type StatusUseCase struct {
	workspace tag.Workspace
	versions  tag.VersionStore
	softTags  tag.SoftTagStore
	detector  tag.ModificationDetector
	issues    tag.IssueDetector
}

// NewStatusUseCase creates a new StatusUseCase.
func NewStatusUseCase(
	workspace tag.Workspace,
	versions tag.VersionStore,
	softTags tag.SoftTagStore,
	detector tag.ModificationDetector,
	issues tag.IssueDetector,
) *StatusUseCase {
	return &StatusUseCase{
		workspace: workspace,
		versions:  versions,
		softTags:  softTags,
		detector:  detector,
		issues:    issues,
	}
}

// Execute executes the status use case.
func (uc *StatusUseCase) Execute(ctx context.Context) (*StatusOutput, error) {
	const op = "tagging.StatusUseCase.Execute"

	comps, err := uc.workspace.Components(ctx)
	if err != nil {
		return nil, bserrors.Wrap(err, bserrors.GetKind(err), op, "failed to load workspace components")
	}
	pending, err := uc.softTags.ListSoftTags(ctx)
	if err != nil {
		return nil, err
	}
	soft := make(map[string]string, len(pending))
	for _, p := range pending {
		soft[p.Component.FullName()] = p.Version
	}

	out := &StatusOutput{Components: make([]ComponentStatus, 0, len(comps))}
	for _, c := range comps {
		last, err := uc.versions.LatestRecord(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		st := ComponentStatus{ID: c.ID, State: ChangeNew, SoftTag: soft[c.ID.FullName()]}
		if last != nil {
			st.LastVersion = last.Version
			modified, err := uc.detector.Modified(ctx, c, last)
			if err != nil {
				return nil, err
			}
			st.State = ChangeUnmodified
			if modified {
				st.State = ChangeModified
			}
		}
		if st.Issues, err = uc.issues.Issues(ctx, c); err != nil {
			return nil, err
		}
		out.Components = append(out.Components, st)
	}
	return out, nil
}
