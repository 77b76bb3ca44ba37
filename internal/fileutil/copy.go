package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrEmptySrc is returned when a source path is empty.
const ErrEmptySrc = sentinel.Error("source path must not be empty")

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// WriteFile streams r into dst with the given permissions. Data is written to
// a temporary file in dst's directory, synced, and renamed over dst, creating
// parent directories as needed. On failure the temporary file is removed and
// dst is left as it was.
func WriteFile(dst string, r io.Reader, mode fs.FileMode) (retErr error) {
	if dst == "" {
		return ErrEmptyDst
	}
	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	// fsync before rename so a crash cannot leave a renamed but empty file.
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}

// CopyFile copies src to dst atomically, keeping src's permission bits.
func CopyFile(src, dst string) (retErr error) {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	f, err := os.Open(src) //nolint:gosec // G304: paths are from controlled sources
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close source: %w", closeErr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("copy %s: source is a directory", src)
	}
	return WriteFile(dst, f, info.Mode().Perm())
}

// CopyTree copies the directory src into dst, which is created if missing.
// Regular files keep their permission bits and symlinks are recreated
// verbatim. Other file types are skipped.
func CopyTree(src, dst string) error {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("rel path: %w", err)
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return EnsureDir(target)
		case d.Type().IsRegular():
			return CopyFile(path, target)
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(path, target)
		default:
			return nil
		}
	})
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("read symlink %s: %w", src, err)
	}
	if err := EnsureDirForFile(dst); err != nil {
		return err
	}
	_ = os.Remove(dst)
	if err := os.Symlink(link, dst); err != nil {
		return fmt.Errorf("create symlink %s: %w", dst, err)
	}
	return nil
}

// CopyFS copies every regular file of fsys into dir, except those for which
// skip reports true. Files are written with mode 0644, or 0755 when the
// source file info carries an executable bit.
func CopyFS(fsys fs.FS, dir string, skip func(name string) bool) error {
	if dir == "" {
		return ErrEmptyDst
	}
	return fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return EnsureDir(dir)
		}
		if skip != nil && skip(name) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if d.IsDir() {
			return EnsureDir(target)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFSFile(fsys, name, target)
	})
}

func copyFSFile(fsys fs.FS, name, target string) (retErr error) {
	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		retErr = errors.Join(retErr, f.Close())
	}()

	mode := fs.FileMode(0o644)
	if info, statErr := f.Stat(); statErr == nil && info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}
	return WriteFile(target, f, mode)
}
