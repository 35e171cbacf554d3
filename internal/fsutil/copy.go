// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies a single file from src to dst, preserving the source file
// mode. Parent directories of dst are created as needed.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory, not a file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}
	return nil
}

// CopyTree recursively copies srcDir into dstDir, creating directories as
// needed and overwriting existing files. Files that vanish between the
// directory listing and the copy are skipped rather than failing the whole
// tree; partially-themed asset bundles ship the occasional dangling symlink.
func CopyTree(srcDir, dstDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("failed to stat source tree: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", srcDir)
	}

	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		// Skip entries that vanished or are not regular files (sockets,
		// dangling symlinks) instead of aborting the copy.
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			return nil
		}

		return CopyFile(path, target)
	})
}
