// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package detect probes the host system before the installer runs: desktop
// environment and version, distribution identity, the real (non-sudo) user's
// home, and available disk space. Probes degrade to "unknown" rather than
// failing; the menu uses the answers to pre-select sensible defaults and to
// warn, not to refuse.
package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// probeTimeout bounds each external probe command.
const probeTimeout = 5 * time.Second

// =============================================================================
// DESKTOP ENVIRONMENT
// =============================================================================

// Desktop identifies the running desktop environment.
type Desktop int

const (
	// DesktopUnknown means no supported desktop was identified.
	DesktopUnknown Desktop = iota
	// DesktopGnome is the primary Nyarch target.
	DesktopGnome
	// DesktopPlasma is supported for the KDE theming variant.
	DesktopPlasma
)

func (d Desktop) String() string {
	switch d {
	case DesktopGnome:
		return "GNOME"
	case DesktopPlasma:
		return "KDE Plasma"
	default:
		return "Unknown"
	}
}

// DesktopInfo is the detected desktop environment plus its version, when the
// version probe succeeded.
type DesktopInfo struct {
	Desktop Desktop

	// Version is the major.minor shell version ("47.2"), empty if the probe
	// failed.
	Version string
}

func (d DesktopInfo) String() string {
	if d.Version == "" {
		return d.Desktop.String()
	}
	return fmt.Sprintf("%s %s", d.Desktop, d.Version)
}

var versionRe = regexp.MustCompile(`(\d+(?:\.\d+)*)`)

// DetectDesktop identifies the desktop environment, preferring
// XDG_CURRENT_DESKTOP and falling back to probing the shell binaries.
func DetectDesktop(ctx context.Context) DesktopInfo {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	xdg := strings.ToUpper(os.Getenv("XDG_CURRENT_DESKTOP"))
	switch {
	case strings.Contains(xdg, "GNOME"):
		return DesktopInfo{Desktop: DesktopGnome, Version: gnomeShellVersion(ctx)}
	case strings.Contains(xdg, "KDE"):
		return DesktopInfo{Desktop: DesktopPlasma, Version: plasmaVersion(ctx)}
	}

	// No XDG hint (running under sudo strips the session environment); probe
	// the shells directly.
	if v := gnomeShellVersion(ctx); v != "" {
		return DesktopInfo{Desktop: DesktopGnome, Version: v}
	}
	if v := plasmaVersion(ctx); v != "" {
		return DesktopInfo{Desktop: DesktopPlasma, Version: v}
	}
	return DesktopInfo{Desktop: DesktopUnknown}
}

// gnomeShellVersion parses "GNOME Shell 47.2" from gnome-shell --version.
func gnomeShellVersion(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "gnome-shell", "--version").Output()
	if err != nil {
		return ""
	}
	return versionRe.FindString(string(out))
}

// plasmaVersion parses "plasmashell 6.2.4" from plasmashell --version.
func plasmaVersion(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "plasmashell", "--version").Output()
	if err != nil {
		return ""
	}
	return versionRe.FindString(string(out))
}

// GnomeMajor returns the major version number from a DesktopInfo, or 0.
func (d DesktopInfo) GnomeMajor() int {
	if d.Desktop != DesktopGnome || d.Version == "" {
		return 0
	}
	major := d.Version
	if i := strings.IndexByte(major, '.'); i >= 0 {
		major = major[:i]
	}
	n, _ := strconv.Atoi(major)
	return n
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// OSRelease holds the fields read from /etc/os-release.
type OSRelease struct {
	// ID is the machine-readable distro name ("arch", "debian", "fedora").
	ID string

	// PrettyName is the human-readable description shown in system checks.
	PrettyName string
}

// osReleasePath is a var so tests can point it at a fixture.
var osReleasePath = "/etc/os-release"

// ReadOSRelease parses /etc/os-release. Missing file yields a zero value and
// no error - containers and unusual distros simply report as unknown.
func ReadOSRelease() (OSRelease, error) {
	raw, err := os.ReadFile(osReleasePath)
	if os.IsNotExist(err) {
		return OSRelease{}, nil
	} else if err != nil {
		return OSRelease{}, fmt.Errorf("failed to read %s: %w", osReleasePath, err)
	}
	return parseOSRelease(string(raw)), nil
}

func parseOSRelease(raw string) OSRelease {
	var rel OSRelease
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "ID":
			rel.ID = val
		case "PRETTY_NAME":
			rel.PrettyName = val
		}
	}
	return rel
}
