package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst, creating dst's parent directories. The file
// mode of src is preserved.
func CopyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- paths come from the artifact store
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// CopyFiles copies each relative path from srcRoot to dstRoot, keeping the
// relative layout.
func CopyFiles(srcRoot, dstRoot string, rel []string) error {
	for _, r := range rel {
		if err := CopyFile(filepath.Join(srcRoot, r), filepath.Join(dstRoot, r)); err != nil {
			return err
		}
	}
	return nil
}

// StageDir creates an empty staging directory next to dst. Files written
// there become visible at dst only through CommitDir.
func StageDir(dst string) (string, error) {
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(parent, "."+filepath.Base(dst)+".staging-")
}

// CommitDir replaces dst with the staged directory. On failure the staging
// directory is removed and dst is left untouched. The previous dst is moved
// aside under the staging name, never under a name derived from dst alone.
func CommitDir(staging, dst string) error {
	backup := ""
	if _, err := os.Stat(dst); err == nil {
		backup = staging + ".old"
		if err := os.Rename(dst, backup); err != nil {
			_ = os.RemoveAll(staging)
			return fmt.Errorf("failed to move aside %s: %w", dst, err)
		}
	}
	if err := os.Rename(staging, dst); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dst)
		}
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to commit %s: %w", dst, err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
