// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractTarGz unpacks a gzip-compressed tarball into dest. Entry names are
// cleaned and confined to dest; an entry that would escape (absolute path or
// "..") fails the extraction.
func extractTarGz(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("not a gzip archive: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target, err := securePath(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			mode := os.FileMode(header.Mode).Perm()
			if mode == 0 {
				mode = 0644
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

		case tar.TypeSymlink:
			// Theme bundles use relative symlinks (index.theme variants).
			// Reject targets that point outside the extraction root.
			if filepath.IsAbs(header.Linkname) || strings.HasPrefix(header.Linkname, "..") {
				return fmt.Errorf("symlink %s escapes archive root", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}

		default:
			// Hard links, devices and the like have no place in an asset
			// bundle; skip them.
		}
	}
	return nil
}

// securePath joins name under dest, rejecting entries that escape it.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(filepath.FromSlash(name)))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) && target != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry %s escapes extraction root", name)
	}
	return target, nil
}
