// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"os"
	"path/filepath"
)

// Env carries the environment-dependent roots the catalog is built against.
type Env struct {
	// Home is the real user's home directory (the sudo caller's home when
	// running under sudo).
	Home string

	// SystemBin is where system-wide fetch tools are installed.
	SystemBin string
}

// DefaultSystemBin is the install location for nekofetch/nyaofetch.
const DefaultSystemBin = "/usr/local/bin"

// Group IDs, part of the selection contract with the menu.
const (
	GroupUserBundle      = "user-bundle"
	GroupDesktopSettings = "desktop-settings"
	GroupMaterialYou     = "material-you"
	GroupKitty           = "kitty"
	GroupPywal           = "pywal"
	GroupFetchTools      = "fetch-tools"
	GroupFlatpakThemes   = "flatpak-overrides"
	GroupFlatpakApps     = "flatpaks"
	GroupNyarchApps      = "nyarch-apps"
	GroupUpdater         = "updater"
)

// PywalMarker delimits the snippet appended to ~/.bashrc. Its presence is
// the idempotency check for the pywal group.
const PywalMarker = "# Nyarch installer: pywal color sequences"

// LocalBinMarker delimits the PATH snippet appended to ~/.profile.
const LocalBinMarker = "# Nyarch installer: ensure ~/.local/bin is on PATH"

const pywalSnippet = `if [[ -f "$HOME/.cache/wal/sequences" ]]; then
    (cat "$HOME/.cache/wal/sequences")
fi`

const localBinSnippet = `export PATH="$HOME/.local/bin:$PATH"`

// skel is the path inside the bundle holding the home-directory payload.
const skel = "Gnome/etc/skel"

// dconfDir is the path inside the bundle holding the dconf keyfiles.
const dconfDir = "Gnome/etc/dconf/db/local.d"

// Default returns the Nyarch theming catalog for env. Targets are part of
// the external contract; changing them requires versioning the catalog.
func Default(env Env) Catalog {
	home := env.Home
	systemBin := env.SystemBin
	if systemBin == "" {
		systemBin = DefaultSystemBin
	}

	local := func(parts ...string) string {
		return filepath.Join(append([]string{home, ".local", "share"}, parts...)...)
	}
	config := func(parts ...string) string {
		return filepath.Join(append([]string{home, ".config"}, parts...)...)
	}

	return Catalog{Groups: []Group{
		{
			ID:    GroupUserBundle,
			Title: "Install the full Nyarch desktop theming (extensions, wallpapers, icons, GTK themes)",
			Mutations: []Mutation{
				{
					ID:     "gnome-extensions",
					Title:  "Install Gnome shell extensions",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: local("gnome-shell", "extensions"),
					Source: skel + "/.local/share/gnome-shell/extensions",
				},
				{
					ID:     "wallpapers",
					Title:  "Install Nyarch wallpapers",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: local("wallpapers", "nyarch"),
					Source: skel + "/.local/share/backgrounds",
				},
				{
					ID:     "icons",
					Title:  "Install the Tela-circle-MaterialYou icon theme",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: local("icons", "Tela-circle-MaterialYou"),
					Source: skel + "/.local/share/icons/Tela-circle-MaterialYou",
				},
				{
					ID:     "themes",
					Title:  "Install Nyarch GTK themes",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: local("themes"),
					Source: skel + "/.local/share/themes",
				},
				{
					ID:     "gtk3-config",
					Title:  "Apply the gtk-3.0 configuration",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: config("gtk-3.0"),
					Source: skel + "/.config/gtk-3.0",
				},
				{
					ID:     "gtk4-config",
					Title:  "Apply the gtk-4.0 configuration",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: config("gtk-4.0"),
					Source: skel + "/.config/gtk-4.0",
				},
			},
		},
		{
			ID:    GroupDesktopSettings,
			Title: "Apply the Nyarch Gnome settings (extensions, interface, window manager, background)",
			Mutations: []Mutation{
				{
					// The user can restore their previous settings with
					// "dconf load / < ~/dconf-backup.txt".
					ID:     "dconf-backup",
					Title:  "Save the current Gnome settings to ~/dconf-backup.txt",
					Kind:   KindRunCapture,
					Backup: BackupNone,
					Target: filepath.Join(home, "dconf-backup.txt"),
					Mode:   0644,
					Tool:   "dconf",
					Args:   []string{"dump", "/"},
				},
				dconfLoad("dconf-extensions", "Enable the Nyarch extension settings", "06-extensions"),
				dconfLoad("dconf-interface", "Apply the Nyarch interface settings", "02-interface"),
				dconfLoad("dconf-wmpreferences", "Apply the Nyarch window manager settings", "04-wmpreferences"),
				dconfLoad("dconf-background", "Set the Nyarch wallpaper", "03-background"),
			},
		},
		{
			ID:    GroupMaterialYou,
			Title: "Install the Material You color backend (pipx)",
			Mutations: []Mutation{
				{
					ID:     "nyarch-config",
					Title:  "Install the nyarch configuration directory",
					Kind:   KindCopyTree,
					Backup: BackupRename,
					Target: config("nyarch"),
					Source: skel + "/.config/nyarch",
				},
				{
					// Must run before the pipx steps: pipx installs into
					// ~/.local/bin, which has to be on PATH for new shells.
					ID:           "local-bin-path",
					Title:        "Ensure ~/.local/bin is on PATH",
					Kind:         KindAppendSnippet,
					Backup:       BackupNone,
					Target:       filepath.Join(home, ".profile"),
					Marker:       LocalBinMarker,
					Snippet:      localBinSnippet,
					ConflictHint: ".local/bin",
				},
				{
					ID:     "material-you-backend",
					Title:  "Install kde-material-you-colors via pipx",
					Kind:   KindRunInstaller,
					Backup: BackupNone,
					Tool:   "pipx",
					Args:   []string{"install", "kde-material-you-colors"},
					Applied: func() (bool, error) {
						_, err := os.Stat(filepath.Join(home, ".local", "bin", "kde-material-you-colors"))
						if err == nil {
							return true, nil
						}
						if os.IsNotExist(err) {
							return false, nil
						}
						return false, err
					},
				},
				{
					ID:     "material-you-pywal",
					Title:  "Inject pywal16 into the backend",
					Kind:   KindRunInstaller,
					Backup: BackupNone,
					Tool:   "pipx",
					Args:   []string{"inject", "kde-material-you-colors", "pywal16"},
				},
			},
		},
		{
			ID:    GroupKitty,
			Title: "Apply Nyarch customizations to the kitty terminal",
			Mutations: []Mutation{
				{
					ID:     "kitty-conf",
					Title:  "Install the Nyarch kitty.conf",
					Kind:   KindWriteFile,
					Backup: BackupRename,
					Target: config("kitty", "kitty.conf"),
					Source: skel + "/.config/kitty/kitty.conf",
					Mode:   0644,
				},
			},
		},
		{
			ID:    GroupPywal,
			Title: "Add pywal theming to ~/.bashrc (other shells need manual setup)",
			Mutations: []Mutation{
				{
					ID:           "pywal-bashrc",
					Title:        "Append the pywal hook to ~/.bashrc",
					Kind:         KindAppendSnippet,
					Backup:       BackupNone,
					Target:       filepath.Join(home, ".bashrc"),
					Marker:       PywalMarker,
					Snippet:      pywalSnippet,
					ConflictHint: "wal/sequences",
				},
			},
		},
		{
			ID:     GroupFetchTools,
			Title:  "Install Nekofetch and Nyaofetch, and configure fastfetch",
			System: true,
			Mutations: []Mutation{
				{
					ID:     "nekofetch",
					Title:  "Install nekofetch",
					Kind:   KindWriteFile,
					Backup: BackupRename,
					Target: filepath.Join(systemBin, "nekofetch"),
					Source: "Gnome/usr/local/bin/nekofetch",
					Mode:   0755,
				},
				{
					ID:     "nyaofetch",
					Title:  "Install nyaofetch",
					Kind:   KindWriteFile,
					Backup: BackupRename,
					Target: filepath.Join(systemBin, "nyaofetch"),
					Source: "Gnome/usr/local/bin/nyaofetch",
					Mode:   0755,
				},
				{
					// fastfetch configs accumulate user edits; archive rather
					// than clobber the single rename slot on every run.
					ID:     "fastfetch-config",
					Title:  "Install the Nyarch fastfetch configuration",
					Kind:   KindCopyTree,
					Backup: BackupArchive,
					Target: config("fastfetch"),
					Source: skel + "/.config/fastfetch",
				},
			},
		},
		{
			ID:     GroupFlatpakThemes,
			Title:  "Apply your GTK themes to Flatpak apps",
			System: true,
			Mutations: []Mutation{
				{
					ID:   "flatpak-gtk3-override",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Grant Flatpak access to gtk-3.0 config",
					Tool:  "flatpak",
					Args:  []string{"override", "--filesystem=xdg-config/gtk-3.0"},
				},
				{
					ID:   "flatpak-gtk4-override",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Grant Flatpak access to gtk-4.0 config",
					Tool:  "flatpak",
					Args:  []string{"override", "--filesystem=xdg-config/gtk-4.0"},
				},
			},
		},
		{
			ID:    GroupFlatpakApps,
			Title: "Install suggested Flatpak apps",
			Mutations: []Mutation{
				{
					ID:   "flathub-remote",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Add the Flathub remote",
					Tool:  "flatpak",
					Args: []string{"remote-add", "--if-not-exists", "flathub",
						"https://flathub.org/repo/flathub.flatpakrepo"},
				},
				{
					ID:   "suggested-flatpaks",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Install the suggested app set",
					Tool:  "flatpak",
					Args: []string{"install", "flathub",
						"org.gtk.Gtk3theme.adw-gtk3",
						"org.gtk.Gtk3theme.adw-gtk3-dark",
						"info.febvre.Komikku",
						"com.github.tchx84.Flatseal",
						"de.haeckerfelix.Shortwave",
						"org.gnome.Lollypop",
						"de.haeckerfelix.Fragments",
						"com.mattjakeman.ExtensionManager",
						"it.mijorus.gearlever"},
				},
			},
		},
		{
			ID:     GroupNyarchApps,
			Title:  "Install Nyarch exclusive applications (Catgirl / Waifu / Assistant)",
			System: true,
			Mutations: []Mutation{
				{
					ID:   "catgirldownloader",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Install CatgirlDownloader",
					Tool:  "flatpak",
					Args: []string{"install", "--from",
						"https://github.com/nyarchlinux/catgirldownloader/releases/latest/download/catgirldownloader.flatpak"},
				},
				{
					ID:   "waifudownloader",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Install WaifuDownloader",
					Tool:  "flatpak",
					Args: []string{"install", "--from",
						"https://github.com/nyarchlinux/waifudownloader/releases/latest/download/waifudownloader.flatpak"},
				},
				{
					ID:   "nyarchassistant",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Install Nyarch Assistant",
					Tool:  "flatpak",
					Args: []string{"install", "--from",
						"https://github.com/nyarchlinux/nyarchassistant/releases/latest/download/nyarchassistant.flatpak"},
				},
			},
		},
		{
			ID:     GroupUpdater,
			Title:  "Install the Nyarch Updater",
			System: true,
			Mutations: []Mutation{
				{
					ID:   "nyarch-updater",
					Kind: KindRunInstaller, Backup: BackupNone,
					Title: "Install the Nyarch Updater app",
					Tool:  "flatpak",
					Args: []string{"install", "--from",
						"https://github.com/nyarchlinux/nyarchupdater/releases/latest/download/nyarchupdater.flatpak"},
				},
				{
					// The updater reads this stamp to decide which release the
					// system is on.
					ID:      "version-stamp",
					Title:   "Record the installed release in /version",
					Kind:    KindWriteFile,
					Backup:  BackupNone,
					Target:  "/version",
					Content: "241104\n",
					Mode:    0644,
				},
			},
		},
	}}
}

// dconfLoad builds a mutation that feeds a bundle keyfile to "dconf load /".
func dconfLoad(id, title, keyfile string) Mutation {
	return Mutation{
		ID:     id,
		Title:  title,
		Kind:   KindRunFeed,
		Backup: BackupNone,
		Source: dconfDir + "/" + keyfile,
		Tool:   "dconf",
		Args:   []string{"load", "/"},
	}
}
