package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// EnsureDir creates a directory and all parent directories if they don't exist.
// Uses mode 0755. Returns nil if directory already exists.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath if it does not
// already exist.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}

// RemoveTree deletes root and everything below it, deepest entries first.
// A failure to delete one entry is logged at debug level and does not stop
// the others from being removed. It returns the number of entries that could
// not be deleted; a missing root counts as success.
func RemoveTree(logger *slog.Logger, root string) int {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return 0
	}

	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			logger.Debug("failed to walk directory during cleanup", "path", path, "err", err)
			if path == root {
				return nil
			}
			return fs.SkipDir
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		logger.Debug("failed to walk directory during cleanup", "path", root, "err", walkErr)
	}

	// WalkDir visits parents before children; reverse to delete leaves first.
	slices.Reverse(paths)

	failed := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("failed to delete path", "path", p, "err", err)
			failed++
		}
	}
	return failed
}
