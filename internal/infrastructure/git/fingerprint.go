package git

import (
	"context"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

// Fingerprinter records the HEAD commit alongside a content hash from base.
type Fingerprinter struct {
	base tag.Fingerprinter
	repo *Repository
}

// NewFingerprinter wraps base with the repository's HEAD commit.
func NewFingerprinter(base tag.Fingerprinter, repo *Repository) *Fingerprinter {
	return &Fingerprinter{base: base, repo: repo}
}

// Fingerprint implements tag.Fingerprinter.
func (f *Fingerprinter) Fingerprint(ctx context.Context, c component.Component) (string, string, error) {
	hash, _, err := f.base.Fingerprint(ctx, c)
	if err != nil {
		return "", "", err
	}
	commit, err := f.repo.HeadCommit(ctx)
	if err != nil {
		return "", "", err
	}
	return hash, commit, nil
}
