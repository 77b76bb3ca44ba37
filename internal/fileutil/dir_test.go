package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	tests := map[string]func(base string) string{
		"creates new directory":            func(base string) string { return filepath.Join(base, "newdir") },
		"creates nested directories":       func(base string) string { return filepath.Join(base, "a", "b", "c") },
		"idempotent on existing directory": func(base string) string { return base },
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := path(t.TempDir())

			if err := EnsureDir(dir); err != nil {
				t.Fatalf("EnsureDir() error: %v", err)
			}
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("stat after EnsureDir: %v", err)
			}
			if !info.IsDir() {
				t.Error("expected directory, got file")
			}
		})
	}
}

func TestEnsureDirForFile(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "subdir", "file.txt")
	if err := EnsureDirForFile(filePath); err != nil {
		t.Fatalf("EnsureDirForFile() error: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(filePath)); err != nil || !info.IsDir() {
		t.Fatalf("parent dir missing: %v", err)
	}
	if _, err := os.Stat(filePath); !errors.Is(err, os.ErrNotExist) {
		t.Error("EnsureDirForFile must not create the file itself")
	}
}

func TestRemoveTree(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "work")
	createTestFile(t, root, "node-linux-x64/bin/node", "engine", 0o755)
	createTestFile(t, root, "start.mjs", "js", 0o644)

	if failed := RemoveTree(nil, root); failed != 0 {
		t.Fatalf("RemoveTree() failed entries = %d, want 0", failed)
	}
	if _, err := os.Stat(root); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("root still exists: %v", err)
	}
}

func TestRemoveTree_MissingAndEmpty(t *testing.T) {
	t.Parallel()

	if failed := RemoveTree(nil, filepath.Join(t.TempDir(), "never-created")); failed != 0 {
		t.Errorf("missing root: failed = %d, want 0", failed)
	}
	if failed := RemoveTree(nil, ""); failed != 0 {
		t.Errorf("empty root: failed = %d, want 0", failed)
	}
}

func TestRemoveTree_ToleratesUndeletableEntries(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions behave differently on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	root := filepath.Join(t.TempDir(), "work")
	locked := filepath.Join(root, "locked")
	createTestFile(t, locked, "pinned.txt", "x", 0o644)
	createTestFile(t, root, "free.txt", "y", 0o644)
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	if failed := RemoveTree(nil, root); failed == 0 {
		t.Fatal("expected at least one entry to fail deletion")
	}
	if _, err := os.Stat(filepath.Join(root, "free.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("deletable sibling should still have been removed")
	}
}
