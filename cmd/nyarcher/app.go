// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/nyarchlinux/nyarcher/internal/cache"
	"github.com/nyarchlinux/nyarcher/internal/catalog"
	"github.com/nyarchlinux/nyarcher/internal/config"
	"github.com/nyarchlinux/nyarcher/internal/detect"
	"github.com/nyarchlinux/nyarcher/internal/extern"
	"github.com/nyarchlinux/nyarcher/internal/history"
	"github.com/nyarchlinux/nyarcher/internal/pipeline"
	"github.com/nyarchlinux/nyarcher/internal/release"
)

// app wires the installer components for both the TUI and text front ends.
type app struct {
	cfg     *config.Config
	user    detect.RealUser
	catalog catalog.Catalog

	resolver *release.Resolver
	cache    *cache.Cache
}

// newApp resolves the real user, loads the config, and builds the shared
// component graph.
func newApp() (*app, error) {
	user, err := detect.ResolveRealUser()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(user.Home)
	if err != nil {
		return nil, err
	}

	resolver := release.NewResolver(cfg.Release.Asset)
	resolver.Client = &http.Client{Timeout: cfg.HTTPTimeout()}

	return &app{
		cfg:      cfg,
		user:     user,
		catalog:  catalog.Default(catalog.Env{Home: user.Home, SystemBin: cfg.Install.SystemBin}),
		resolver: resolver,
		cache:    cache.New(cfg.CacheRoot(user.Home)),
	}, nil
}

// systemCheck runs the pre-install probes.
func (a *app) systemCheck(ctx context.Context) detect.SystemCheck {
	check := detect.SystemCheck{
		Desktop: detect.DetectDesktop(ctx),
		User:    a.user,
	}
	check.OS, _ = detect.ReadOSRelease()
	if free, err := detect.DiskFree(a.user.Home); err == nil {
		check.FreeBytes = free
	}
	check.Evaluate()
	return check
}

// resolveRelease queries GitHub for the latest theming release.
func (a *app) resolveRelease(ctx context.Context) (release.Release, error) {
	return a.resolver.Latest(ctx, a.cfg.Release.Owner, a.cfg.Release.Repo)
}

// ensureBundle downloads and extracts the release bundle unless already
// cached, reporting download progress to progress when non-nil.
func (a *app) ensureBundle(ctx context.Context, rel release.Release, progress cache.ProgressFunc) (string, error) {
	a.cache.Progress = progress
	return a.cache.Ensure(ctx, rel)
}

// runPipeline executes the selected groups and journals the outcome. Journal
// failures are reported on stderr but never fail the run.
func (a *app) runPipeline(ctx context.Context, selected []string, bundleDir, tag string, observer func(pipeline.Event)) (pipeline.Report, error) {
	// Catch a bundle-layout mismatch before anything is mutated, not
	// mid-group.
	if err := a.catalog.Validate(bundleDir, selected...); err != nil {
		return pipeline.Report{}, err
	}

	p := pipeline.New(a.catalog)
	p.Observer = observer
	// Under sudo, package managers must still act on the invoking user's
	// home, not root's.
	p.Runner = &extern.ExecRunner{Env: []string{"HOME=" + a.user.Home}}

	rep, err := p.Run(ctx, selected, bundleDir, tag)
	if err != nil {
		return rep, err
	}

	if jErr := a.journal(ctx, rep); jErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not record run history: %v\n", jErr)
	}
	return rep, nil
}

func (a *app) journal(ctx context.Context, rep pipeline.Report) error {
	j, err := history.Open(history.DefaultPath(a.cfg.CacheRoot(a.user.Home)))
	if err != nil {
		return err
	}
	defer j.Close()
	return j.Record(ctx, rep)
}

// needsRoot reports whether any selected group writes outside the home.
func (a *app) needsRoot(selected []string) bool {
	for _, id := range selected {
		if g, ok := a.catalog.Group(id); ok && g.System {
			return true
		}
	}
	return false
}
