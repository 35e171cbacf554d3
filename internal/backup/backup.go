// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backup relocates pre-existing user content before the installer
// overwrites it. Two strategies exist: a plain rename to a "-backup" sibling
// (themes, gtk configs) and a compressed timestamped archive for directories
// that accumulate across runs (fastfetch config).
//
// Backups are never pruned automatically. Their existence is inferred from
// the path convention, not tracked in a manifest.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Suffix is appended to a path to derive its rename-style backup sibling.
const Suffix = "-backup"

// maxNumberedBackups bounds the search for a free numbered backup slot.
const maxNumberedBackups = 100

// BackupPath returns the backup destination for original. Pure function so
// naming can be asserted without touching the filesystem.
//
//	~/.config/gtk-3.0 -> ~/.config/gtk-3.0-backup
func BackupPath(original string) string {
	return filepath.Clean(original) + Suffix
}

// ArchivePath returns the timestamped archive destination for original.
//
//	~/.config/fastfetch -> ~/.config/fastfetch-backup/fastfetch-20250114-153000.tar.gz
func ArchivePath(original string, now time.Time) string {
	original = filepath.Clean(original)
	base := filepath.Base(original)
	return filepath.Join(
		original+Suffix,
		fmt.Sprintf("%s-%s.tar.gz", base, now.Format("20060102-150405")),
	)
}

// Backup renames target out of the way and returns the backup path.
//
// If target does not exist this is a no-op and returns ("", nil) - reruns hit
// this case once the original has already been moved. If the conventional
// backup path is occupied by an earlier backup, a numbered sibling is chosen
// so that no previous backup is ever destroyed.
//
// The rename completes (or fails loudly) before returning; the caller may
// only write new content at target afterwards.
func Backup(target string) (string, error) {
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", target, err)
	}

	dest := BackupPath(target)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			break
		}
		if n > maxNumberedBackups {
			return "", fmt.Errorf("no free backup slot for %s", target)
		}
		dest = fmt.Sprintf("%s.%d", BackupPath(target), n)
	}

	if err := os.Rename(target, dest); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", target, err)
	}
	return dest, nil
}

// Archive compresses the directory at target into a timestamped tar.gz under
// the "-backup" sibling directory, then removes the original. The original is
// only removed after the archive has been fully written and closed, so a
// failure mid-archive leaves the target untouched.
//
// Missing target is a no-op, mirroring Backup.
func Archive(target string) (string, error) {
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if !info.IsDir() {
		// Plain files do not accumulate; fall back to the rename strategy.
		return Backup(target)
	}

	archivePath := ArchivePath(target, time.Now())
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if err := writeTarGz(archivePath, target); err != nil {
		os.Remove(archivePath)
		return "", err
	}

	if err := os.RemoveAll(target); err != nil {
		return "", fmt.Errorf("failed to remove %s after archiving: %w", target, err)
	}
	return archivePath, nil
}

// writeTarGz archives the directory rooted at dir into a gzip-compressed
// tarball at path. Entries are stored relative to the directory's base name
// so extraction recreates a single top-level folder.
func writeTarGz(path, dir string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	base := filepath.Base(dir)
	err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		// Archive regular files and directories; skip sockets and symlinks,
		// which have no business in a config backup.
		if !fi.Mode().IsRegular() && !fi.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}

		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive: %w", err)
	}
	return nil
}
