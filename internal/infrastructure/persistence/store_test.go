package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/domain/artifact"
	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

func forEachDriver(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	for _, driver := range []string{DriverFile, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			s, err := Open(driver, t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	require.Error(t, err)
	assert.True(t, bserrors.IsKind(err, bserrors.KindConfig))
}

func TestStore_Records(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		foo := component.MustParseID("acme/foo")
		bar := component.MustParseID("acme/bar")

		latest, err := s.LatestRecord(ctx, foo)
		require.NoError(t, err)
		assert.Nil(t, latest)

		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.SaveRecords(ctx, []tag.Record{
			{Component: foo, Version: "0.0.1", ContentHash: "h1", CreatedAt: created},
			{Component: bar, Version: "0.0.1", AutoTagged: true},
		}))
		require.NoError(t, s.SaveRecords(ctx, []tag.Record{
			{Component: foo, Version: "0.0.2", ContentHash: "h2", Commit: "abc", Message: "fix", RunID: "run-2"},
		}))

		versions, err := s.Versions(ctx, foo)
		require.NoError(t, err)
		assert.Equal(t, []string{"0.0.1", "0.0.2"}, versions)

		latest, err = s.LatestRecord(ctx, foo.WithVersion("0.0.1"))
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "0.0.2", latest.Version)
		assert.Equal(t, "h2", latest.ContentHash)
		assert.Equal(t, "abc", latest.Commit)
		assert.Equal(t, "fix", latest.Message)
		assert.Equal(t, "run-2", latest.RunID)
		assert.Equal(t, "acme/foo@0.0.2", latest.ID().String())

		barLatest, err := s.LatestRecord(ctx, bar)
		require.NoError(t, err)
		require.NotNil(t, barLatest)
		assert.True(t, barLatest.AutoTagged)
	})
}

func TestStore_RecordWithoutVersion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		err := s.SaveRecords(context.Background(), []tag.Record{{Component: component.MustParseID("foo")}})
		require.Error(t, err)
		assert.True(t, bserrors.IsKind(err, bserrors.KindValidation))
	})
}

func TestStore_SoftTags(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		foo := component.MustParseID("acme/foo")
		bar := component.MustParseID("acme/bar")

		list, err := s.ListSoftTags(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, s.SaveSoftTags(ctx, []tag.SoftTagRecord{
			{Component: foo, Version: "0.0.2", PreviousVersion: "0.0.1"},
			{Component: bar, Version: "0.0.2", AutoTaggedBy: []component.ID{foo}},
		}))
		// Re-soft-tagging foo replaces its pending tag.
		require.NoError(t, s.SaveSoftTags(ctx, []tag.SoftTagRecord{
			{Component: foo, Version: "1.0.0", PreviousVersion: "0.0.1", Message: "major"},
		}))

		list, err = s.ListSoftTags(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "acme/bar", list[0].Component.String())
		assert.True(t, list[0].IsAutoTag())
		assert.Equal(t, "acme/foo", list[0].AutoTaggedBy[0].String())
		assert.Equal(t, "acme/foo", list[1].Component.String())
		assert.Equal(t, "1.0.0", list[1].Version)
		assert.Equal(t, "major", list[1].Message)

		require.NoError(t, s.DeleteSoftTags(ctx, []component.ID{foo, bar}))
		list, err = s.ListSoftTags(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestStore_Artifacts(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		compiler := component.MustParseID("acme/compiler@1.0.0")

		got, err := s.ListArtifacts(ctx, compiler)
		require.NoError(t, err)
		assert.Empty(t, got)

		arts := []artifact.Artifact{
			{Component: compiler, Aspect: "teambit.compilation/compiler", Task: "TSCompiler", Root: "/a", Files: []string{"dist/index.js", "dist/index.d.ts"}},
			{Component: compiler, Aspect: "teambit.pkg/pkg", Task: "PackComponents", Root: "/b", Files: []string{"package.tgz"}},
		}
		require.NoError(t, s.SaveArtifacts(ctx, compiler, arts))

		got, err = s.ListArtifacts(ctx, compiler)
		require.NoError(t, err)
		assert.Equal(t, arts, got)

		// Saving again replaces the previous set.
		require.NoError(t, s.SaveArtifacts(ctx, compiler, arts[:1]))
		got, err = s.ListArtifacts(ctx, compiler)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		other, err := s.ListArtifacts(ctx, compiler.WithVersion("2.0.0"))
		require.NoError(t, err)
		assert.Empty(t, other)

		_, err = s.ListArtifacts(ctx, compiler.WithoutVersion())
		assert.True(t, bserrors.IsKind(err, bserrors.KindValidation))
	})
}

func TestStore_CanceledContext(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s Store) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.LatestRecord(ctx, component.MustParseID("foo"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, s.SaveSoftTags(ctx, nil), context.Canceled)
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	foo := component.MustParseID("foo")

	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveRecords(ctx, []tag.Record{{Component: foo, Version: "0.0.1"}}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dir)
	require.NoError(t, err)
	defer s.Close()
	versions, err := s.Versions(ctx, foo)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.0.1"}, versions)
}
