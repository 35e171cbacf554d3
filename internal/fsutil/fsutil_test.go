// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")
	data := []byte("hello, nyarch!")

	if err := AtomicWriteFile(path, data, 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "subdir", "deep", "test.txt")

	if err := AtomicWriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "updated" {
		t.Errorf("Content not updated: got %q", string(content))
	}
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "tool")

	if err := AtomicWriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("Permissions = %o, want 0755", info.Mode().Perm())
	}
}

// =============================================================================
// COPY TESTS
// =============================================================================

func TestCopyFile(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.conf")
	dst := filepath.Join(tempDir, "nested", "dst.conf")

	if err := os.WriteFile(src, []byte("font_size 12"), 0600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read destination: %v", err)
	}
	if string(content) != "font_size 12" {
		t.Errorf("Content mismatch: got %q", string(content))
	}

	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0600 {
		t.Errorf("Mode not preserved: got %o", info.Mode().Perm())
	}
}

func TestCopyFile_RejectsDirectory(t *testing.T) {
	tempDir := t.TempDir()
	if err := CopyFile(tempDir, filepath.Join(tempDir, "out")); err == nil {
		t.Fatal("Expected error copying a directory as a file")
	}
}

func TestCopyTree(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "themes")
	dst := filepath.Join(tempDir, "out", "themes")

	files := map[string]string{
		"Nyarch-Dark/gtk-3.0/gtk.css":  "window {}",
		"Nyarch-Dark/index.theme":      "[Desktop Entry]",
		"Nyarch-Light/gtk-4.0/gtk.css": "headerbar {}",
	}
	for rel, body := range files {
		path := filepath.Join(src, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("setup: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}

	for rel, body := range files {
		content, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Fatalf("Missing copied file %s: %v", rel, err)
		}
		if string(content) != body {
			t.Errorf("Content mismatch for %s: got %q, want %q", rel, string(content), body)
		}
	}
}

func TestCopyTree_OverwritesExisting(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src")
	dst := filepath.Join(tempDir, "dst")

	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("new"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}

	content, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	if string(content) != "new" {
		t.Errorf("Existing file not overwritten: got %q", string(content))
	}
}

func TestCopyTree_SkipsDanglingSymlink(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src")
	dst := filepath.Join(tempDir, "dst")

	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "keep.txt"), []byte("ok"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := os.Symlink(filepath.Join(tempDir, "missing"), filepath.Join(src, "broken")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed on dangling symlink: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "keep.txt")); err != nil {
		t.Errorf("Regular file not copied: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(dst, "broken")); !os.IsNotExist(err) {
		t.Errorf("Dangling symlink should be skipped, got err=%v", err)
	}
}

// =============================================================================
// SNIPPET APPEND TESTS
// =============================================================================

const (
	pywalMarker  = "# Nyarch installer: pywal color sequences"
	pywalSnippet = `if [[ -f "$HOME/.cache/wal/sequences" ]]; then
    (cat "$HOME/.cache/wal/sequences")
fi`
)

func TestAppendSnippet_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")

	res, err := AppendSnippet(path, pywalMarker, pywalSnippet, "wal/sequences")
	if err != nil {
		t.Fatalf("AppendSnippet failed: %v", err)
	}
	if res != SnippetAppended {
		t.Fatalf("Result = %v, want SnippetAppended", res)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), pywalMarker) {
		t.Error("Marker not written")
	}
	if !strings.Contains(string(content), "wal/sequences") {
		t.Error("Snippet body not written")
	}
}

func TestAppendSnippet_SecondCallIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")

	if _, err := AppendSnippet(path, pywalMarker, pywalSnippet, ""); err != nil {
		t.Fatalf("first append: %v", err)
	}
	first, _ := os.ReadFile(path)

	res, err := AppendSnippet(path, pywalMarker, pywalSnippet, "")
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if res != SnippetAlreadyPresent {
		t.Fatalf("Result = %v, want SnippetAlreadyPresent", res)
	}

	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("Second append modified the file")
	}
}

func TestAppendSnippet_ConflictHint(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(path, []byte("cat ~/.cache/wal/sequences\n"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	res, err := AppendSnippet(path, pywalMarker, pywalSnippet, "wal/sequences")
	if err != nil {
		t.Fatalf("AppendSnippet failed: %v", err)
	}
	if res != SnippetConflict {
		t.Fatalf("Result = %v, want SnippetConflict", res)
	}

	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), pywalMarker) {
		t.Error("File was modified despite conflict")
	}
}

func TestAppendSnippet_AddsNewlineBeforeMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".profile")
	if err := os.WriteFile(path, []byte("export EDITOR=vi"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := AppendSnippet(path, "# marker", "export PATH=$HOME/.local/bin:$PATH", ""); err != nil {
		t.Fatalf("AppendSnippet failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "export EDITOR=vi\n# marker\n") {
		t.Errorf("Marker not separated from existing content:\n%s", string(content))
	}
}
