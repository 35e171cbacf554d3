// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyarchlinux/nyarcher/internal/backup"
	"github.com/nyarchlinux/nyarcher/internal/catalog"
	"github.com/nyarchlinux/nyarcher/internal/extern"
)

// seedBundle writes a minimal extracted bundle under a temp cache dir.
func seedBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	cacheDir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(cacheDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return cacheDir
}

func TestRun_GroupIsolationOnFailure(t *testing.T) {
	home := t.TempDir()
	cacheDir := seedBundle(t, map[string]string{
		"theme/style.css": "body {}",
	})

	// Five-step group where step 2 fails, plus an independent second group.
	c := catalog.Catalog{Groups: []catalog.Group{
		{
			ID: "theming",
			Mutations: []catalog.Mutation{
				{ID: "step-1", Kind: catalog.KindCopyTree, Backup: catalog.BackupRename,
					Source: "theme", Target: filepath.Join(home, ".themes")},
				{ID: "step-2", Kind: catalog.KindRunInstaller, Tool: "pipx",
					Args: []string{"install", "kde-material-you-colors"}},
				{ID: "step-3", Kind: catalog.KindRunInstaller, Tool: "pipx",
					Args: []string{"inject", "kde-material-you-colors", "pywal16"}},
				{ID: "step-4", Kind: catalog.KindCopyTree, Backup: catalog.BackupRename,
					Source: "theme", Target: filepath.Join(home, ".config", "gtk-4.0")},
				{ID: "step-5", Kind: catalog.KindAppendSnippet,
					Target: filepath.Join(home, ".bashrc"), Marker: "# m", Snippet: "x=1"},
			},
		},
		{
			ID: "flatpaks",
			Mutations: []catalog.Mutation{
				{ID: "flathub", Kind: catalog.KindRunInstaller, Tool: "flatpak",
					Args: []string{"remote-add", "--if-not-exists", "flathub", "https://flathub.org/repo/flathub.flatpakrepo"}},
			},
		},
	}}

	runner := &extern.RecordingRunner{FailOn: map[string]int{"pipx": 1}}
	p := &Pipeline{Catalog: c, Runner: runner}

	rep, err := p.Run(context.Background(), []string{"theming", "flatpaks"}, cacheDir, "v2.0")
	require.NoError(t, err)
	require.Len(t, rep.Results, 6)

	byID := make(map[string]MutationResult)
	for _, r := range rep.Results {
		byID[r.MutationID] = r
	}

	assert.Equal(t, StatusSuccess, byID["step-1"].Status)
	assert.Equal(t, StatusFailed, byID["step-2"].Status)
	assert.Equal(t, StatusSkipped, byID["step-3"].Status)
	assert.Equal(t, StatusSkipped, byID["step-4"].Status)
	assert.Equal(t, StatusSkipped, byID["step-5"].Status)
	assert.Contains(t, byID["step-3"].Detail, "step-2")

	// The independent group still ran to completion.
	assert.Equal(t, StatusSuccess, byID["flathub"].Status)

	// Steps after the failure never touched the runner or the disk.
	assert.Equal(t, []string{
		"pipx install kde-material-you-colors",
		"flatpak remote-add --if-not-exists flathub https://flathub.org/repo/flathub.flatpakrepo",
	}, runner.Calls)
	_, statErr := os.Stat(filepath.Join(home, ".config", "gtk-4.0"))
	assert.True(t, os.IsNotExist(statErr), "skipped copy_tree must not write")

	succeeded, skipped, failed := rep.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, 1, failed)
	assert.True(t, rep.Failed())
}

func TestRun_BackupBeforeOverwrite(t *testing.T) {
	home := t.TempDir()
	cacheDir := seedBundle(t, map[string]string{
		"gtk-3.0/settings.ini": "[Settings]\nnew=1\n",
	})

	target := filepath.Join(home, ".config", "gtk-3.0")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "settings.ini"), []byte("old"), 0644))

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "gtk",
		Mutations: []catalog.Mutation{{
			ID: "gtk3-config", Kind: catalog.KindCopyTree, Backup: catalog.BackupRename,
			Source: "gtk-3.0", Target: target,
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: &extern.RecordingRunner{}}
	rep, err := p.Run(context.Background(), []string{"gtk"}, cacheDir, "v2.0")
	require.NoError(t, err)

	res := rep.Results[0]
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, backup.BackupPath(target), res.BackupPath)

	// The original content survives at the backup path; the target holds the
	// bundle's version.
	old, err := os.ReadFile(filepath.Join(res.BackupPath, "settings.ini"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	fresh, err := os.ReadFile(filepath.Join(target, "settings.ini"))
	require.NoError(t, err)
	assert.Contains(t, string(fresh), "new=1")
}

func TestRun_NoBackupWhenTargetMissing(t *testing.T) {
	home := t.TempDir()
	cacheDir := seedBundle(t, map[string]string{"icons/a.svg": "<svg/>"})

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "icons",
		Mutations: []catalog.Mutation{{
			ID: "icons", Kind: catalog.KindCopyTree, Backup: catalog.BackupRename,
			Source: "icons", Target: filepath.Join(home, ".local", "share", "icons"),
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: &extern.RecordingRunner{}}
	rep, err := p.Run(context.Background(), []string{"icons"}, cacheDir, "v2.0")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, rep.Results[0].Status)
	assert.Empty(t, rep.Results[0].BackupPath)
}

func TestRun_WriteFileSetsMode(t *testing.T) {
	home := t.TempDir()
	cacheDir := seedBundle(t, map[string]string{
		"Gnome/usr/local/bin/nekofetch": "#!/bin/sh\necho nya\n",
	})

	target := filepath.Join(home, "bin", "nekofetch")
	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "fetch",
		Mutations: []catalog.Mutation{{
			ID: "nekofetch", Kind: catalog.KindWriteFile, Backup: catalog.BackupRename,
			Source: "Gnome/usr/local/bin/nekofetch", Target: target, Mode: 0755,
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: &extern.RecordingRunner{}}
	rep, err := p.Run(context.Background(), []string{"fetch"}, cacheDir, "v2.0")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, rep.Results[0].Status)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestRun_WriteFileLiteralContent(t *testing.T) {
	home := t.TempDir()
	cacheDir := t.TempDir() // empty bundle; literal writes need nothing from it

	target := filepath.Join(home, "version")
	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "updater",
		Mutations: []catalog.Mutation{{
			ID: "version-stamp", Kind: catalog.KindWriteFile,
			Target: target, Content: "241104\n", Mode: 0644,
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: &extern.RecordingRunner{}}
	rep, err := p.Run(context.Background(), []string{"updater"}, cacheDir, "v2.0")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, rep.Results[0].Status)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "241104\n", string(raw))
}

func TestRun_CaptureWritesToolOutput(t *testing.T) {
	home := t.TempDir()
	cacheDir := t.TempDir()

	target := filepath.Join(home, "dconf-backup.txt")
	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "settings",
		Mutations: []catalog.Mutation{{
			ID: "dconf-backup", Kind: catalog.KindRunCapture,
			Target: target, Mode: 0644, Tool: "dconf", Args: []string{"dump", "/"},
		}},
	}}}

	runner := &extern.RecordingRunner{Output: map[string][]byte{"dconf": []byte("[org/gnome]\nfavorites=[]\n")}}
	p := &Pipeline{Catalog: c, Runner: runner}
	rep, err := p.Run(context.Background(), []string{"settings"}, cacheDir, "v2.0")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, rep.Results[0].Status)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "[org/gnome]\nfavorites=[]\n", string(raw))
	assert.Equal(t, []string{"dconf dump /"}, runner.Calls)
}

func TestRun_FeedResolvesBundleSource(t *testing.T) {
	cacheDir := seedBundle(t, map[string]string{
		"NyarchLinuxComp/Gnome/etc/dconf/db/local.d/06-extensions": "[org/gnome/shell]\n",
	})

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "settings",
		Mutations: []catalog.Mutation{{
			ID: "dconf-extensions", Kind: catalog.KindRunFeed,
			Source: "Gnome/etc/dconf/db/local.d/06-extensions",
			Tool:   "dconf", Args: []string{"load", "/"},
		}},
	}}}

	runner := &extern.RecordingRunner{}
	p := &Pipeline{Catalog: c, Runner: runner}
	rep, err := p.Run(context.Background(), []string{"settings"}, cacheDir, "v2.0")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, rep.Results[0].Status)

	want := "dconf load / < " + filepath.Join(cacheDir, "NyarchLinuxComp", "Gnome/etc/dconf/db/local.d/06-extensions")
	assert.Equal(t, []string{want}, runner.Calls)
}

func TestRun_FeedMissingKeyfileFails(t *testing.T) {
	cacheDir := t.TempDir()

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "settings",
		Mutations: []catalog.Mutation{{
			ID: "dconf-extensions", Kind: catalog.KindRunFeed,
			Source: "Gnome/etc/dconf/db/local.d/06-extensions",
			Tool:   "dconf", Args: []string{"load", "/"},
		}},
	}}}

	runner := &extern.RecordingRunner{}
	p := &Pipeline{Catalog: c, Runner: runner}
	rep, err := p.Run(context.Background(), []string{"settings"}, cacheDir, "v2.0")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, rep.Results[0].Status)
	assert.Empty(t, runner.Calls, "a missing keyfile must not reach the tool")
}

func TestRun_MissingAssetFailsMutation(t *testing.T) {
	home := t.TempDir()
	cacheDir := t.TempDir() // empty bundle

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "theming",
		Mutations: []catalog.Mutation{
			{ID: "wallpapers", Kind: catalog.KindCopyTree, Backup: catalog.BackupRename,
				Source: "backgrounds", Target: filepath.Join(home, "wallpapers")},
			{ID: "after", Kind: catalog.KindRunInstaller, Tool: "flatpak", Args: []string{"install"}},
		},
	}}}

	runner := &extern.RecordingRunner{}
	p := &Pipeline{Catalog: c, Runner: runner}
	rep, err := p.Run(context.Background(), []string{"theming"}, cacheDir, "v2.0")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, rep.Results[0].Status)
	assert.Contains(t, rep.Results[0].Detail, "not found in extracted bundle")
	assert.Equal(t, StatusSkipped, rep.Results[1].Status)
	assert.Empty(t, runner.Calls)
}

func TestRun_AppendIsIdempotent(t *testing.T) {
	home := t.TempDir()
	cacheDir := t.TempDir()
	bashrc := filepath.Join(home, ".bashrc")

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "pywal",
		Mutations: []catalog.Mutation{{
			ID: "pywal-bashrc", Kind: catalog.KindAppendSnippet,
			Target: bashrc, Marker: catalog.PywalMarker, Snippet: "cat sequences",
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: &extern.RecordingRunner{}}

	rep, err := p.Run(context.Background(), []string{"pywal"}, cacheDir, "v2.0")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rep.Results[0].Status)

	// Second run sees the marker and skips.
	rep, err = p.Run(context.Background(), []string{"pywal"}, cacheDir, "v2.0")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, rep.Results[0].Status)
	assert.Equal(t, "already applied", rep.Results[0].Detail)

	raw, err := os.ReadFile(bashrc)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), catalog.PywalMarker))
}

func TestRun_AppliedProbeSkips(t *testing.T) {
	cacheDir := t.TempDir()

	runner := &extern.RecordingRunner{}
	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "material-you",
		Mutations: []catalog.Mutation{{
			ID: "material-you-backend", Kind: catalog.KindRunInstaller,
			Tool: "pipx", Args: []string{"install", "kde-material-you-colors"},
			Applied: func() (bool, error) { return true, nil },
		}},
	}}}

	p := &Pipeline{Catalog: c, Runner: runner}
	rep, err := p.Run(context.Background(), []string{"material-you"}, cacheDir, "v2.0")
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, rep.Results[0].Status)
	assert.Empty(t, runner.Calls, "already-applied mutation must not invoke the tool")
}

func TestRun_CatalogOrderWins(t *testing.T) {
	cacheDir := t.TempDir()
	runner := &extern.RecordingRunner{}

	c := catalog.Catalog{Groups: []catalog.Group{
		{ID: "first", Mutations: []catalog.Mutation{
			{ID: "a", Kind: catalog.KindRunInstaller, Tool: "flatpak", Args: []string{"a"}}}},
		{ID: "second", Mutations: []catalog.Mutation{
			{ID: "b", Kind: catalog.KindRunInstaller, Tool: "flatpak", Args: []string{"b"}}}},
	}}

	p := &Pipeline{Catalog: c, Runner: runner}
	// Selection order reversed; execution must follow catalog order.
	_, err := p.Run(context.Background(), []string{"second", "first"}, cacheDir, "v2.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"flatpak a", "flatpak b"}, runner.Calls)
}

func TestRun_UnknownGroup(t *testing.T) {
	p := &Pipeline{Catalog: catalog.Catalog{}, Runner: &extern.RecordingRunner{}}
	_, err := p.Run(context.Background(), []string{"nope"}, t.TempDir(), "v2.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRun_ObserverSeesEveryOutcome(t *testing.T) {
	cacheDir := t.TempDir()

	c := catalog.Catalog{Groups: []catalog.Group{{
		ID: "flatpaks",
		Mutations: []catalog.Mutation{
			{ID: "a", Title: "Install A", Kind: catalog.KindRunInstaller, Tool: "flatpak", Args: []string{"a"}},
			{ID: "b", Title: "Install B", Kind: catalog.KindRunInstaller, Tool: "flatpak", Args: []string{"b"}},
		},
	}}}

	var starts, results []string
	p := &Pipeline{
		Catalog: c,
		Runner:  &extern.RecordingRunner{},
		Observer: func(e Event) {
			if e.Starting != nil {
				starts = append(starts, e.Starting.ID)
			}
			if e.Result != nil {
				results = append(results, e.Result.MutationID)
			}
		},
	}

	_, err := p.Run(context.Background(), []string{"flatpaks"}, cacheDir, "v2.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, starts)
	assert.Equal(t, []string{"a", "b"}, results)
}

func TestReport_Render(t *testing.T) {
	rep := Report{
		RunID: "1234",
		Tag:   "v2.0",
		Results: []MutationResult{
			{MutationID: "gnome-extensions", GroupID: "user-bundle", Title: "Install Gnome shell extensions", Status: StatusSuccess},
			{MutationID: "wallpapers", GroupID: "user-bundle", Title: "Install Nyarch wallpapers", Status: StatusFailed, Detail: "disk full"},
			{MutationID: "pywal-bashrc", GroupID: "pywal", Title: "Append the pywal hook", Status: StatusSkipped, Detail: "already applied"},
		},
	}

	out := rep.Render()
	assert.Contains(t, out, "[user-bundle]")
	assert.Contains(t, out, "[pywal]")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "1 applied, 1 skipped, 1 failed")
}
