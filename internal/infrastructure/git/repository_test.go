package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

type rootDirs string

func (r rootDirs) Dir(c component.Component) string {
	return filepath.Join(string(r), c.Dir)
}

type fixture struct {
	root string
	repo *git.Repository
	wt   *git.Worktree
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return &fixture{root: root, repo: repo, wt: wt}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) commit(t *testing.T, msg string, paths ...string) string {
	t.Helper()
	for _, p := range paths {
		_, err := f.wt.Add(p)
		require.NoError(t, err)
	}
	hash, err := f.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestTimeoutHelper(t *testing.T) {
	ctx, cancel := withLocalTimeout(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.LessOrEqual(t, time.Until(dl), DefaultLocalTimeout)

	short, shortCancel := context.WithTimeout(context.Background(), time.Second)
	defer shortCancel()
	kept, keptCancel := withLocalTimeout(short)
	defer keptCancel()
	assert.Equal(t, short, kept)
}

func TestRepository_Modified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foo := component.Component{ID: component.MustParseID("foo"), Dir: "foo"}
	bar := component.Component{ID: component.MustParseID("bar"), Dir: "bar"}

	f.write(t, "foo/a.txt", "a")
	f.write(t, "bar/b.txt", "b")
	first := f.commit(t, "initial", "foo/a.txt", "bar/b.txt")

	r, err := Open(f.root, rootDirs(f.root))
	require.NoError(t, err)

	head, err := r.HeadCommit(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	modified, err := r.Modified(ctx, foo, nil)
	require.NoError(t, err)
	assert.True(t, modified, "never-tagged component is modified")

	fooTag := &tag.Record{Component: foo.ID, Version: "0.0.1", Commit: first}
	barTag := &tag.Record{Component: bar.ID, Version: "0.0.1", Commit: first}

	modified, err = r.Modified(ctx, foo, fooTag)
	require.NoError(t, err)
	assert.False(t, modified)

	// Committed change under foo only.
	f.write(t, "foo/a.txt", "a2")
	f.commit(t, "change foo", "foo/a.txt")

	modified, err = r.Modified(ctx, foo, fooTag)
	require.NoError(t, err)
	assert.True(t, modified)
	modified, err = r.Modified(ctx, bar, barTag)
	require.NoError(t, err)
	assert.False(t, modified)

	// Uncommitted change under bar.
	f.write(t, "bar/b.txt", "b2")
	modified, err = r.Modified(ctx, bar, barTag)
	require.NoError(t, err)
	assert.True(t, modified)
}

func TestRepository_Issues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foo := component.Component{ID: component.MustParseID("foo"), Dir: "foo"}

	f.write(t, "foo/a.txt", "a")
	f.commit(t, "initial", "foo/a.txt")

	r, err := Open(f.root, rootDirs(f.root))
	require.NoError(t, err)

	issues, err := r.Issues(ctx, foo)
	require.NoError(t, err)
	assert.Empty(t, issues)

	f.write(t, "foo/z.txt", "z")
	f.write(t, "foo/new/y.txt", "y")
	f.write(t, "other/x.txt", "x")

	issues, err = r.Issues(ctx, foo)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, component.IssueUntrackedFiles, issues[0].Kind)
	assert.Equal(t, "new/y.txt, z.txt", issues[0].Detail)
}

type staticFingerprint string

func (s staticFingerprint) Fingerprint(context.Context, component.Component) (string, string, error) {
	return string(s), "", nil
}

func TestFingerprinter(t *testing.T) {
	f := newFixture(t)
	f.write(t, "foo/a.txt", "a")
	head := f.commit(t, "initial", "foo/a.txt")

	r, err := Open(f.root, rootDirs(f.root))
	require.NoError(t, err)

	hash, commit, err := NewFingerprinter(staticFingerprint("abc"), r).
		Fingerprint(context.Background(), component.Component{ID: component.MustParseID("foo"), Dir: "foo"})
	require.NoError(t, err)
	assert.Equal(t, "abc", hash)
	assert.Equal(t, head, commit)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir(), rootDirs(""))
	assert.Error(t, err)
}
