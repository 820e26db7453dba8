package tagging

import (
	"context"
	"strings"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// UntagSoftInput represents input for the UntagSoft use case.
type UntagSoftInput struct {
	// IDs are id patterns; empty removes every pending soft tag.
	IDs []string
}

// UntagSoftOutput represents output of the UntagSoft use case.
type UntagSoftOutput struct {
	Removed []tag.SoftTagRecord `json:"removed"`
}

// UntagSoftUseCase removes pending soft tags.
type UntagSoftUseCase struct {
	softTags tag.SoftTagStore
}

// NewUntagSoftUseCase creates a new UntagSoftUseCase.
func NewUntagSoftUseCase(softTags tag.SoftTagStore) *UntagSoftUseCase {
	return &UntagSoftUseCase{softTags: softTags}
}

// Execute executes the untag use case.
func (uc *UntagSoftUseCase) Execute(ctx context.Context, input UntagSoftInput) (*UntagSoftOutput, error) {
	const op = "tagging.UntagSoftUseCase.Execute"

	pending, err := uc.softTags.ListSoftTags(ctx)
	if err != nil {
		return nil, err
	}

	out := &UntagSoftOutput{}
	var ids []component.ID
	for _, p := range pending {
		if len(input.IDs) > 0 && !matchesAnyPattern(input.IDs, p.Component) {
			continue
		}
		out.Removed = append(out.Removed, p)
		ids = append(ids, p.Component)
	}
	if len(ids) == 0 {
		if len(input.IDs) > 0 {
			return nil, bserrors.NotFound(op, "no soft-tagged components match "+strings.Join(input.IDs, ", "))
		}
		return out, nil
	}

	if err := uc.softTags.DeleteSoftTags(ctx, ids); err != nil {
		return nil, err
	}
	return out, nil
}
