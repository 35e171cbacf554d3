// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package detect

import (
	"fmt"
	"os"
	"os/user"
)

// RealUser is the account the installer should theme: when running under
// sudo, the invoking user, not root.
type RealUser struct {
	Username string
	Home     string

	// Sudo is true when the installer was elevated and user-scoped paths had
	// to be resolved through SUDO_USER.
	Sudo bool
}

// ResolveRealUser returns the user whose home directory should receive the
// theming. Under sudo, HOME points at /root, which must never be themed;
// SUDO_USER names the account that actually invoked the installer.
func ResolveRealUser() (RealUser, error) {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser == "" || sudoUser == "root" {
		home, err := os.UserHomeDir()
		if err != nil {
			return RealUser{}, fmt.Errorf("could not determine home directory: %w", err)
		}
		u, _ := user.Current()
		name := ""
		if u != nil {
			name = u.Username
		}
		return RealUser{Username: name, Home: home}, nil
	}

	u, err := user.Lookup(sudoUser)
	if err != nil {
		return RealUser{}, fmt.Errorf("could not resolve sudo caller %q: %w", sudoUser, err)
	}
	return RealUser{Username: u.Username, Home: u.HomeDir, Sudo: true}, nil
}
