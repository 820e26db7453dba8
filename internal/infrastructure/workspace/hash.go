package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/relicta-tech/bitsmith/internal/domain/component"
	"github.com/relicta-tech/bitsmith/internal/domain/tag"
	bserrors "github.com/relicta-tech/bitsmith/internal/errors"
)

// HashDetector detects modifications by hashing component sources. Task
// outputs and dot-directories are excluded so that building does not count
// as a change.
type HashDetector struct {
	ws *Workspace
}

// NewHashDetector creates a content-hash detector over ws.
func NewHashDetector(ws *Workspace) *HashDetector {
	return &HashDetector{ws: ws}
}

// Modified reports whether the content hash differs from the last tag.
// Components never tagged are always modified.
func (d *HashDetector) Modified(ctx context.Context, c component.Component, last *tag.Record) (bool, error) {
	if last == nil {
		return true, nil
	}
	hash, err := d.Hash(ctx, c)
	if err != nil {
		return false, err
	}
	return hash != last.ContentHash, nil
}

// Fingerprint returns the content hash. The hash detector has no commit.
func (d *HashDetector) Fingerprint(ctx context.Context, c component.Component) (string, string, error) {
	hash, err := d.Hash(ctx, c)
	return hash, "", err
}

// Hash computes a sha256 over the sorted relative paths and contents of the
// component's source files.
func (d *HashDetector) Hash(ctx context.Context, c component.Component) (string, error) {
	const op = "workspace.Hash"

	dir := d.ws.Dir(c)
	files, err := SourceFiles(dir, c)
	if err != nil {
		return "", bserrors.IOWrap(err, op, "failed to list "+c.ID.String())
	}

	h := sha256.New()
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, rel)
		_, _ = h.Write([]byte{0})
		if err := hashFile(h, filepath.Join(dir, rel)); err != nil {
			return "", bserrors.IOWrap(err, op, "failed to hash "+rel)
		}
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path) // #nosec G304 -- path is inside the component directory
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// SourceFiles lists regular files under dir, relative and slash-separated,
// skipping dot-directories and files matching any task output glob. A
// missing directory yields no files.
func SourceFiles(dir string, c component.Component) ([]string, error) {
	var outputs []string
	for _, t := range c.Tasks {
		outputs = append(outputs, t.Outputs...)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if rel != "." && entry.Name()[0] == '.' {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || matchesAny(outputs, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
