// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// nyarcher is the Nyarch Linux customization installer.
//
// It resolves the latest theming release from GitHub, downloads and caches
// the bundle, then applies the customizations the user selects: GNOME shell
// extensions, wallpapers, icon and GTK themes, kitty and fastfetch
// configuration, pywal hooks, the Material You color backend, and the Nyarch
// exclusive Flatpak applications.
//
// Two front ends drive the same pipeline: an interactive bubbletea TUI (the
// default) and a plain text mode (--text) for SSH sessions and scripts.
// Pre-existing configuration is always backed up before being replaced, and
// every run is journaled for `nyarcher --history`.
package main
