package tagging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

func seedSoftTags(t *testing.T, store *memStore, ids ...string) {
	t.Helper()
	var records []tag.SoftTagRecord
	for _, id := range ids {
		records = append(records, tag.SoftTagRecord{Component: component.MustParseID(id), Version: "0.0.2"})
	}
	require.NoError(t, store.SaveSoftTags(context.Background(), records))
}

func TestUntagSoft_All(t *testing.T) {
	store := newMemStore()
	seedSoftTags(t, store, "acme/foo", "acme/bar")

	out, err := NewUntagSoftUseCase(store).Execute(context.Background(), UntagSoftInput{})
	require.NoError(t, err)
	assert.Len(t, out.Removed, 2)

	left, err := store.ListSoftTags(context.Background())
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUntagSoft_Patterns(t *testing.T) {
	store := newMemStore()
	seedSoftTags(t, store, "acme/foo", "acme/bar", "tools/lint")

	out, err := NewUntagSoftUseCase(store).Execute(context.Background(), UntagSoftInput{IDs: []string{"acme/*", "lint"}})
	require.NoError(t, err)

	var removed []string
	for _, r := range out.Removed {
		removed = append(removed, r.Component.FullName())
	}
	assert.Equal(t, []string{"acme/foo", "acme/bar", "tools/lint"}, removed)
}

func TestUntagSoft_KeepsUnmatched(t *testing.T) {
	store := newMemStore()
	seedSoftTags(t, store, "acme/foo", "acme/bar")

	_, err := NewUntagSoftUseCase(store).Execute(context.Background(), UntagSoftInput{IDs: []string{"acme/foo"}})
	require.NoError(t, err)

	left, err := store.ListSoftTags(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "acme/bar", left[0].Component.FullName())
}

func TestUntagSoft_NoMatch(t *testing.T) {
	store := newMemStore()
	seedSoftTags(t, store, "acme/foo")

	_, err := NewUntagSoftUseCase(store).Execute(context.Background(), UntagSoftInput{IDs: []string{"other/*"}})
	require.Error(t, err)
	assert.True(t, bserrors.IsKind(err, bserrors.KindNotFound))
}

func TestUntagSoft_NothingPending(t *testing.T) {
	out, err := NewUntagSoftUseCase(newMemStore()).Execute(context.Background(), UntagSoftInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Removed)
}
