// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the installer configuration from
// ~/.config/nyarcher/config.toml, with built-in defaults and NYARCHER_*
// environment variable overrides applied on top.
//
// # Configuration Precedence
//
// Configuration is resolved from (in order of precedence):
//   - Environment variables (NYARCHER_*)
//   - ~/.config/nyarcher/config.toml
//   - Built-in defaults
//
// Most installs never write a config file; the defaults point at the
// official NyarchLinux release repository.
package config
