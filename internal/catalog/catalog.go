// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package catalog declares the fixed set of theming mutations the installer
// can apply. Mutations are static descriptors - they carry no runtime state -
// grouped into the bundles the menu offers. The pipeline executes them; this
// package only describes them.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind is the mechanism a mutation uses to change the target system.
type Kind string

const (
	// KindCopyTree recursively copies a directory from the extracted bundle
	// over the target path.
	KindCopyTree Kind = "copy_tree"

	// KindWriteFile writes a single file (from the bundle) to the target.
	KindWriteFile Kind = "write_file"

	// KindAppendSnippet appends a marker-delimited snippet to the target.
	KindAppendSnippet Kind = "append_snippet"

	// KindRunInstaller invokes an external package-manager tool.
	KindRunInstaller Kind = "run_installer"

	// KindRunCapture invokes an external tool and writes its standard output
	// to the target file.
	KindRunCapture Kind = "run_capture"

	// KindRunFeed invokes an external tool with a bundle file on its standard
	// input.
	KindRunFeed Kind = "run_feed"
)

// BackupStyle selects how pre-existing content at the target is preserved.
type BackupStyle string

const (
	// BackupNone applies to mutations that never destroy existing content
	// (appends, tool invocations).
	BackupNone BackupStyle = "none"

	// BackupRename moves the target to a "-backup" sibling.
	BackupRename BackupStyle = "rename"

	// BackupArchive compresses the target into a timestamped tar.gz.
	BackupArchive BackupStyle = "archive"
)

// MissingAssetError indicates a mutation's source path is absent from the
// extracted bundle - the catalog and the archive layout disagree.
type MissingAssetError struct {
	MutationID string
	Source     string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("mutation %s: asset %s not found in extracted bundle", e.MutationID, e.Source)
}

// Mutation is one declared, re-run-safe unit of filesystem or config change.
type Mutation struct {
	// ID is the stable idempotency key, unique across the whole catalog.
	ID string

	// Title is the human-readable description shown while running.
	Title string

	Kind   Kind
	Backup BackupStyle

	// Target is the absolute path the mutation writes (unused for
	// KindRunInstaller).
	Target string

	// Source is a path into the extracted bundle, relative to the variant
	// root (e.g. "Gnome/etc/skel/.config/kitty/kitty.conf"). Set for
	// copy/write kinds and for KindRunFeed.
	Source string

	// Content is literal file content for KindWriteFile mutations that do
	// not read from the bundle. Mutually exclusive with Source.
	Content string

	// Mode is the file mode for KindWriteFile targets.
	Mode os.FileMode

	// Marker, Snippet and ConflictHint drive KindAppendSnippet.
	Marker       string
	Snippet      string
	ConflictHint string

	// Tool and Args drive KindRunInstaller.
	Tool string
	Args []string

	// Applied, when set, reports whether the mutation's effect is already
	// present so the pipeline can record it as skipped instead of redoing
	// work with side effects. Copy/write kinds leave this nil - re-copying
	// identical content is harmless and keeps the target fresh.
	Applied func() (bool, error)
}

// Group is a named bundle of mutations selected together from the menu.
// Mutations within a group run strictly in declared order; groups are
// independent of each other.
type Group struct {
	// ID is the stable selector key.
	ID string

	// Title is the menu entry text.
	Title string

	// System marks groups that write outside the user's home and therefore
	// need elevated privileges.
	System bool

	Mutations []Mutation
}

// Catalog is the ordered, statically declared group list.
type Catalog struct {
	Groups []Group
}

// Group returns the group with the given ID, or false.
func (c Catalog) Group(id string) (Group, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// IDs returns the group IDs in declared order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// Validate checks that every cache-relative source in the catalog exists
// under cacheDir, so a bundle-layout mismatch surfaces before any mutation
// runs instead of mid-group. When group IDs are given, only those groups are
// checked. Returns the first *MissingAssetError found.
func (c Catalog) Validate(cacheDir string, groups ...string) error {
	only := make(map[string]bool, len(groups))
	for _, id := range groups {
		only[id] = true
	}

	for _, g := range c.Groups {
		if len(only) > 0 && !only[g.ID] {
			continue
		}
		for _, m := range g.Mutations {
			if m.Source == "" {
				continue
			}
			if _, err := ResolveSource(cacheDir, m.ID, m.Source); err != nil {
				return err
			}
		}
	}
	return nil
}

// variantDirs are the top-level directory names the upstream tarball has
// shipped under, newest convention first.
var variantDirs = []string{"NyarchLinuxComp", "NyarchLinux"}

// ResolveSource locates a catalog source path under the extracted bundle,
// trying each known variant root. Returns *MissingAssetError when the asset
// is absent from the layout.
func ResolveSource(cacheDir, mutationID, source string) (string, error) {
	for _, variant := range variantDirs {
		candidate := filepath.Join(cacheDir, variant, filepath.FromSlash(source))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	// Some bundles skip the variant wrapper entirely.
	candidate := filepath.Join(cacheDir, filepath.FromSlash(source))
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", &MissingAssetError{MutationID: mutationID, Source: source}
}
