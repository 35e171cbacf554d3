// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the installer configuration, loaded from TOML with environment
// overrides applied on top.
type Config struct {
	// Release selects where the theming bundle is fetched from.
	Release ReleaseConfig `toml:"release"`

	// Cache controls where downloaded bundles are kept.
	Cache CacheConfig `toml:"cache"`

	// Install controls where mutations write.
	Install InstallConfig `toml:"install"`

	// UI controls terminal output.
	UI UIConfig `toml:"ui"`
}

// ReleaseConfig identifies the GitHub repository serving theming bundles.
type ReleaseConfig struct {
	// Owner and Repo form the GitHub repository slug.
	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`

	// Asset is the release asset name to download.
	Asset string `toml:"asset"`

	// HTTPTimeoutSecs bounds each GitHub API request. Bundle downloads are
	// not subject to it; they can be large and run without a deadline.
	HTTPTimeoutSecs int `toml:"http_timeout_secs"`
}

// CacheConfig controls the bundle cache.
type CacheConfig struct {
	// Root is the cache directory; empty means ~/.cache/nyarcher.
	Root string `toml:"root"`
}

// InstallConfig controls mutation targets.
type InstallConfig struct {
	// SystemBin is where the fetch tools are installed.
	SystemBin string `toml:"system_bin"`
}

// Color toggle values.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// UIConfig controls how terminal output is rendered.
type UIConfig struct {
	// Color selects colored output: "auto" follows terminal detection,
	// "always" forces ANSI colors, "never" strips them.
	Color string `toml:"color"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Release: ReleaseConfig{
			Owner:           "NyarchLinux",
			Repo:            "NyarchLinux",
			Asset:           "NyarchLinux.tar.gz",
			HTTPTimeoutSecs: 60,
		},
		Install: InstallConfig{
			SystemBin: "/usr/local/bin",
		},
		UI: UIConfig{
			Color: ColorAuto,
		},
	}
}

// HTTPTimeout returns the release HTTP timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Release.HTTPTimeoutSecs) * time.Second
}

// CacheRoot resolves the cache directory against home. The theming is always
// cached under the real user's home, never root's, so reruns without sudo
// still hit the cache.
func (c *Config) CacheRoot(home string) string {
	if c.Cache.Root != "" {
		return c.Cache.Root
	}
	return filepath.Join(home, ".cache", "nyarcher")
}

// Path returns the config file location under the given home directory.
func Path(home string) string {
	return filepath.Join(home, ".config", "nyarcher", "config.toml")
}

// Load reads the config for home, fills defaults for missing fields and
// applies NYARCHER_* environment overrides. A missing file is not an error.
func Load(home string) (*Config, error) {
	cfg := Default()

	path := Path(home)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		cfg.fillDefaults()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills zero fields left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Release.Owner == "" {
		c.Release.Owner = def.Release.Owner
	}
	if c.Release.Repo == "" {
		c.Release.Repo = def.Release.Repo
	}
	if c.Release.Asset == "" {
		c.Release.Asset = def.Release.Asset
	}
	if c.Release.HTTPTimeoutSecs == 0 {
		c.Release.HTTPTimeoutSecs = def.Release.HTTPTimeoutSecs
	}
	if c.Install.SystemBin == "" {
		c.Install.SystemBin = def.Install.SystemBin
	}
	if c.UI.Color == "" {
		c.UI.Color = def.UI.Color
	}
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - NYARCHER_REPO: "owner/repo" slug override
//   - NYARCHER_ASSET: release asset name
//   - NYARCHER_CACHE: cache root directory
//   - NYARCHER_SYSTEM_BIN: fetch tool install directory
//   - NYARCHER_HTTP_TIMEOUT_SECS: HTTP timeout in seconds
//   - NYARCHER_COLOR: color output toggle (auto, always, never)
func (c *Config) ApplyEnvOverrides() {
	if slug := os.Getenv("NYARCHER_REPO"); slug != "" {
		if owner, repo, ok := strings.Cut(slug, "/"); ok {
			c.Release.Owner = owner
			c.Release.Repo = repo
		}
	}
	if asset := os.Getenv("NYARCHER_ASSET"); asset != "" {
		c.Release.Asset = asset
	}
	if root := os.Getenv("NYARCHER_CACHE"); root != "" {
		c.Cache.Root = root
	}
	if bin := os.Getenv("NYARCHER_SYSTEM_BIN"); bin != "" {
		c.Install.SystemBin = bin
	}
	if secs := os.Getenv("NYARCHER_HTTP_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			c.Release.HTTPTimeoutSecs = n
		}
	}
	if color := os.Getenv("NYARCHER_COLOR"); color != "" {
		c.UI.Color = color
	}
}

// Validate rejects configurations the installer cannot act on.
func (c *Config) Validate() error {
	if c.Release.Owner == "" || c.Release.Repo == "" {
		return fmt.Errorf("release owner and repo must be set")
	}
	if strings.ContainsAny(c.Release.Owner+c.Release.Repo, "/ ") {
		return fmt.Errorf("release owner/repo %q/%q contain invalid characters", c.Release.Owner, c.Release.Repo)
	}
	if c.Release.Asset == "" {
		return fmt.Errorf("release asset must be set")
	}
	if c.Release.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("http_timeout_secs must be positive, got %d", c.Release.HTTPTimeoutSecs)
	}
	switch c.UI.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("ui color must be auto, always or never, got %q", c.UI.Color)
	}
	return nil
}

// Save writes the config to its conventional path under home.
func Save(cfg *Config, home string) error {
	path := Path(home)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "# nyarcher configuration")
	fmt.Fprintln(f, "")

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
