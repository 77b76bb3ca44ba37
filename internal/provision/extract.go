package provision

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/giantswarm/pglitenv/internal/fileutil"
	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrUnsafeArchiveEntry is returned when an archive entry would be written
// outside the extraction directory.
const ErrUnsafeArchiveEntry = sentinel.Error("archive entry outside target dir")

// maxSymlinkTargetLen bounds the size of a symlink entry's body.
const maxSymlinkTargetLen = 4096

// DefaultExecPatterns are the doublestar patterns, matched against
// lower-cased entry names, of archive entries that are extracted executable.
var DefaultExecPatterns = []string{"**/*.sh", "**/*.cmd", "**/*.bat"}

// extractFile extracts the zip archive at path into dest.
func extractFile(path, dest string, execPatterns []string) error {
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close() //nolint:errcheck // read-only

	if err := extract(&zr.Reader, dest, execPatterns); err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return nil
}

// extractFS extracts the zip archive name of fsys into dest.
func extractFS(fsys fs.FS, name, dest string, execPatterns []string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read embedded archive %s: %w", name, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open embedded archive %s: %w", name, err)
	}
	if err := extract(zr, dest, execPatterns); err != nil {
		return fmt.Errorf("extract embedded archive %s: %w", name, err)
	}
	return nil
}

// extract writes every entry of zr below dest. Every entry path is checked
// before anything is written for it; an entry escaping dest aborts the
// extraction with ErrUnsafeArchiveEntry. Writes go through an os.Root, so
// the kernel also refuses any path that resolves outside dest.
func extract(zr *zip.Reader, dest string, execPatterns []string) error {
	rootDir, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dest, err)
	}
	if err := fileutil.EnsureDir(rootDir); err != nil {
		return err
	}
	root, err := os.OpenRoot(rootDir)
	if err != nil {
		return fmt.Errorf("open %s: %w", rootDir, err)
	}
	defer root.Close() //nolint:errcheck // nothing buffered

	// links holds the slash-separated names of symlinks written so far.
	links := make(map[string]bool)
	for _, f := range zr.File {
		name, err := entryName(rootDir, f.Name)
		if err != nil {
			return err
		}
		if traversesLink(links, name) {
			return fmt.Errorf("%w: %s passes through a symlink", ErrUnsafeArchiveEntry, f.Name)
		}
		rel := filepath.FromSlash(name)

		mode := f.Mode()
		switch {
		case strings.HasSuffix(f.Name, "/") || mode.IsDir():
			if err := root.MkdirAll(rel, 0o755); err != nil {
				return entryErr(f.Name, err)
			}
		case mode&fs.ModeSymlink != 0:
			if err := writeSymlink(root, rootDir, name, links, f); err != nil {
				return err
			}
			links[name] = true
		default:
			if err := writeEntry(root, rel, f, entryMode(f.Name, mode, execPatterns)); err != nil {
				return err
			}
			delete(links, name)
		}
	}
	return nil
}

// entryName validates an archive entry name and returns it cleaned,
// slash-separated and relative to root.
func entryName(root, name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")
	if native := filepath.FromSlash(clean); filepath.IsAbs(native) || filepath.VolumeName(native) != "" || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchiveEntry, name)
	}
	target := filepath.Join(root, filepath.FromSlash(clean))
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchiveEntry, name)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchiveEntry, name)
	}
	return filepath.ToSlash(rel), nil
}

// traversesLink reports whether walking the slash-separated path p,
// without cleaning it first, descends through one of links before its last
// element. A ".." after a symlink is resolved by the kernel against the
// link's target, not lexically, so any such walk is refused.
func traversesLink(links map[string]bool, p string) bool {
	var stack []string
	parts := strings.Split(p, "/")
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		stack = append(stack, part)
		if i < len(parts)-1 && links[strings.Join(stack, "/")] {
			return true
		}
	}
	return false
}

// entryErr wraps a write failure, mapping a path refused by the os.Root to
// ErrUnsafeArchiveEntry.
func entryErr(name string, err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && strings.Contains(pathErr.Err.Error(), "escapes") {
		return fmt.Errorf("%w: %s: %w", ErrUnsafeArchiveEntry, name, err)
	}
	return fmt.Errorf("write entry %s: %w", name, err)
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// entryMode returns the permissions for a regular file entry: executable
// when the archive recorded an exec bit or the name matches execPatterns.
func entryMode(name string, mode fs.FileMode, execPatterns []string) fs.FileMode {
	if mode.Perm()&0o111 != 0 {
		return 0o755
	}
	lower := strings.ToLower(name)
	for _, pattern := range execPatterns {
		if ok, _ := doublestar.Match(pattern, lower); ok {
			return 0o755
		}
	}
	return 0o644
}

// writeEntry writes a regular file entry to rel below root, replacing any
// file or link already there.
func writeEntry(root *os.Root, rel string, f *zip.File, mode fs.FileMode) (retErr error) {
	if dir := filepath.Dir(rel); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return entryErr(f.Name, err)
		}
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() {
		retErr = errors.Join(retErr, rc.Close())
	}()

	_ = root.Remove(rel)
	out, err := root.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return entryErr(f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("write entry %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write entry %s: %w", f.Name, err)
	}
	// OpenFile's mode is subject to the umask.
	if err := root.Chmod(rel, mode); err != nil {
		return entryErr(f.Name, err)
	}
	return nil
}

// writeSymlink recreates the symlink entry name. The link must point inside
// rootDir without passing through another symlink.
func writeSymlink(root *os.Root, rootDir, name string, links map[string]bool, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	link, err := io.ReadAll(io.LimitReader(rc, maxSymlinkTargetLen))
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read entry %s: %w", f.Name, err)
	}

	linkTarget := strings.ReplaceAll(string(link), `\`, "/")
	if strings.HasPrefix(linkTarget, "/") || filepath.IsAbs(filepath.FromSlash(linkTarget)) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafeArchiveEntry, f.Name, string(link))
	}
	walk := path.Dir(name) + "/" + linkTarget
	resolved := filepath.Join(rootDir, filepath.FromSlash(walk))
	if !within(rootDir, resolved) || traversesLink(links, walk) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafeArchiveEntry, f.Name, string(link))
	}

	rel := filepath.FromSlash(name)
	if dir := filepath.Dir(rel); dir != "." {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return entryErr(f.Name, err)
		}
	}
	_ = root.Remove(rel)
	if err := root.Symlink(filepath.FromSlash(linkTarget), rel); err != nil {
		return entryErr(f.Name, err)
	}
	return nil
}
