// Package git provides go-git backed change detection for workspace components.
package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// DefaultLocalTimeout bounds local git operations.
const DefaultLocalTimeout = 30 * time.Second

// withLocalTimeout applies a timeout unless ctx already has a shorter deadline.
func withLocalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < DefaultLocalTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultLocalTimeout)
}

// DirResolver maps a component to its absolute directory.
type DirResolver interface {
	Dir(c component.Component) string
}

// Repository detects component changes from git state.
type Repository struct {
	repo     *git.Repository
	worktree *git.Worktree
	root     string
	dirs     DirResolver
}

// Open opens the repository containing path.
func Open(path string, dirs DirResolver) (*Repository, error) {
	const op = "git.Open"

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, bserrors.GitWrap(err, op, "failed to get absolute path")
	}
	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, bserrors.GitWrap(err, op, "failed to open repository")
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, bserrors.GitWrap(err, op, "failed to get worktree")
	}
	return &Repository{
		repo:     repo,
		worktree: worktree,
		root:     worktree.Filesystem.Root(),
		dirs:     dirs,
	}, nil
}

// Root returns the worktree root.
func (r *Repository) Root() string {
	return r.root
}

// HeadCommit returns the HEAD commit hash, or "" for a repository without commits.
func (r *Repository) HeadCommit(_ context.Context) (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", bserrors.GitWrap(err, "git.HeadCommit", "failed to resolve HEAD")
	}
	return ref.Hash().String(), nil
}

// prefix returns the component directory relative to the worktree root,
// slash-separated and ending in "/".
func (r *Repository) prefix(c component.Component) (string, error) {
	rel, err := filepath.Rel(r.root, r.dirs.Dir(c))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	if strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the repository", c.Dir)
	}
	return rel + "/", nil
}

// Modified reports whether the component has uncommitted changes or whether
// commits since the one recorded with last touched its directory. Components
// never tagged are modified; so are those whose last tag has no commit.
func (r *Repository) Modified(ctx context.Context, c component.Component, last *tag.Record) (bool, error) {
	const op = "git.Modified"

	if last == nil || last.Commit == "" {
		return true, nil
	}
	ctx, cancel := withLocalTimeout(ctx)
	defer cancel()

	prefix, err := r.prefix(c)
	if err != nil {
		return false, bserrors.GitWrap(err, op, "failed to locate component")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return false, bserrors.GitWrap(err, op, "failed to get worktree status")
	}
	for path, st := range status {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			return true, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	changed, err := r.changedSince(last.Commit)
	if err != nil {
		return false, bserrors.GitWrap(err, op, "failed to diff "+c.ID.String())
	}
	for _, path := range changed {
		if strings.HasPrefix(path, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// changedSince lists the paths that differ between commit and HEAD.
func (r *Repository) changedSince(commit string) ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, err
	}
	if head.Hash().String() == commit {
		return nil, nil
	}

	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", commit, err)
	}
	toCommit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, change := range changes {
		if change.From.Name != "" {
			paths = append(paths, change.From.Name)
		}
		if change.To.Name != "" && change.To.Name != change.From.Name {
			paths = append(paths, change.To.Name)
		}
	}
	return paths, nil
}

// Issues reports files under the component directory that git does not track.
func (r *Repository) Issues(ctx context.Context, c component.Component) ([]component.Issue, error) {
	const op = "git.Issues"

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, err := r.prefix(c)
	if err != nil {
		return nil, bserrors.GitWrap(err, op, "failed to locate component")
	}
	status, err := r.worktree.Status()
	if err != nil {
		return nil, bserrors.GitWrap(err, op, "failed to get worktree status")
	}

	var untracked []string
	for path, st := range status {
		if strings.HasPrefix(path, prefix) && st.Worktree == git.Untracked {
			untracked = append(untracked, strings.TrimPrefix(path, prefix))
		}
	}
	if len(untracked) == 0 {
		return nil, nil
	}
	sort.Strings(untracked)
	return []component.Issue{{
		Kind:      component.IssueUntrackedFiles,
		Component: c.ID,
		Detail:    strings.Join(untracked, ", "),
	}}, nil
}
