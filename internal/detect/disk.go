// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package detect

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MinFreeBytes is the disk space the full theming bundle needs with headroom:
// the extracted archive plus a rename backup of everything it replaces.
const MinFreeBytes = 2 << 30 // 2 GiB

// DiskFree returns the bytes available to an unprivileged user on the
// filesystem holding path.
func DiskFree(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("failed to statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// =============================================================================
// SYSTEM CHECK
// =============================================================================

// SystemCheck aggregates the pre-install probes for the welcome screen.
type SystemCheck struct {
	Desktop   DesktopInfo
	OS        OSRelease
	User      RealUser
	FreeBytes uint64

	// Warnings are advisory: the installer proceeds, the user decides.
	Warnings []string
}

// minGnomeMajor is the oldest shell version the bundled extensions support.
const minGnomeMajor = 43

// Evaluate fills Warnings from the probe results.
func (s *SystemCheck) Evaluate() {
	s.Warnings = s.Warnings[:0]

	switch s.Desktop.Desktop {
	case DesktopUnknown:
		s.Warnings = append(s.Warnings,
			"could not identify the desktop environment; GNOME theming may not apply cleanly")
	case DesktopGnome:
		if major := s.Desktop.GnomeMajor(); major > 0 && major < minGnomeMajor {
			s.Warnings = append(s.Warnings,
				fmt.Sprintf("GNOME %s is older than the supported %d; some extensions may not load", s.Desktop.Version, minGnomeMajor))
		}
	case DesktopPlasma:
		s.Warnings = append(s.Warnings,
			"KDE Plasma detected; only the shared theming groups will apply")
	}

	if s.FreeBytes > 0 && s.FreeBytes < MinFreeBytes {
		s.Warnings = append(s.Warnings,
			fmt.Sprintf("only %d MiB free; the theming bundle needs about %d MiB", s.FreeBytes>>20, uint64(MinFreeBytes)>>20))
	}
}
