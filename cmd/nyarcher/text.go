// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/nyarchlinux/nyarcher/internal/config"
	"github.com/nyarchlinux/nyarcher/internal/pipeline"
)

// runText drives the whole install as plain prompted text, for SSH sessions,
// scripts and terminals where the TUI misbehaves.
func runText(ctx context.Context, a *app, assumeYes bool) error {
	out := termenv.NewOutput(os.Stdout, termenv.WithProfile(colorProfile(a.cfg.UI.Color)))
	ok := out.String("[OK]").Foreground(out.Color("2")).String()
	warn := out.String("[!!]").Foreground(out.Color("3")).String()
	fail := out.String("[!!]").Foreground(out.Color("1")).String()

	fmt.Println()
	fmt.Println("================================================================================")
	fmt.Println("                            NYARCHER INSTALLER")
	fmt.Println("                      Make your Linux desktop kawaii")
	fmt.Println("================================================================================")
	fmt.Println()

	// Release lookup.
	rel, err := a.resolveRelease(ctx)
	if err != nil {
		return fmt.Errorf("could not resolve the latest release: %w", err)
	}
	fmt.Printf("  %s Latest release: %s\n", ok, rel.Tag)

	// System check.
	check := a.systemCheck(ctx)
	fmt.Printf("  %s Desktop: %s\n", ok, check.Desktop)
	if check.OS.PrettyName != "" {
		fmt.Printf("  %s Distribution: %s\n", ok, check.OS.PrettyName)
	}
	fmt.Printf("  %s Theming for: %s (%s)\n", ok, check.User.Username, check.User.Home)
	for _, w := range check.Warnings {
		fmt.Printf("  %s %s\n", warn, w)
	}
	fmt.Println()

	// The theming assumes the dependencies from the Nyarch GitHub page are
	// already present; refuse to continue without an explicit yes.
	if !assumeYes {
		confirmed, err := confirmDependencies()
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Install the dependencies listed on the Nyarch GitHub page first, then rerun the installer.")
			return nil
		}
	}

	// Selection.
	selected, err := selectGroups(a)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		fmt.Println("Nothing selected; exiting.")
		return nil
	}
	if a.needsRoot(selected) && !a.user.Sudo {
		fmt.Printf("  %s Some selected groups install system-wide tools; rerun with sudo for those.\n\n", warn)
	}

	// Download.
	fmt.Printf("Downloading %s...\n", rel.Tag)
	lastPct := int64(-1)
	dir, err := a.ensureBundle(ctx, rel, func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		pct := downloaded * 100 / total
		if pct != lastPct {
			fmt.Printf("\r  %d%% (%d / %d MiB)   ", pct, downloaded>>20, total>>20)
			lastPct = pct
		}
	})
	fmt.Println()
	if err != nil {
		return err
	}

	// Run.
	fmt.Println()
	rep, err := a.runPipeline(ctx, selected, dir, rel.Tag, func(e pipeline.Event) {
		if e.Result == nil {
			return
		}
		icon := ok
		switch e.Result.Status {
		case pipeline.StatusSkipped:
			icon = warn
		case pipeline.StatusFailed:
			icon = fail
		}
		line := fmt.Sprintf("  %s %s", icon, e.Result.Title)
		if e.Result.Detail != "" {
			line += " - " + e.Result.Detail
		}
		fmt.Println(line)
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(rep.Summary())
	if !rep.Failed() {
		fmt.Println("Log out and back in for all theming to take effect.")
	}
	return nil
}

// colorProfile maps the config color toggle to a termenv profile.
func colorProfile(color string) termenv.Profile {
	switch color {
	case config.ColorNever:
		return termenv.Ascii
	case config.ColorAlways:
		return termenv.ANSI256
	}
	return termenv.EnvColorProfile()
}

// confirmDependencies asks whether the GitHub-listed dependencies are
// installed. Only an explicit yes counts; an empty answer or Ctrl-C declines.
func confirmDependencies() (bool, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt("Have you installed all the dependencies listed on the Nyarch GitHub page? (y/N): ")
	if err != nil {
		if err == liner.ErrPromptAborted {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return dependenciesConfirmed(input), nil
}

// dependenciesConfirmed treats only an explicit yes as consent.
func dependenciesConfirmed(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

// selectGroups prompts for a comma-separated group selection.
func selectGroups(a *app) ([]string, error) {
	fmt.Println("Available customizations:")
	for i, g := range a.catalog.Groups {
		suffix := ""
		if g.System {
			suffix = " (needs sudo)"
		}
		fmt.Printf("  [%d] %s%s\n", i+1, g.Title, suffix)
	}
	fmt.Println()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt("Select groups (e.g. 1,3,5 or 'all', empty to cancel): ")
	if err != nil {
		if err == liner.ErrPromptAborted {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if strings.EqualFold(input, "all") {
		return a.catalog.IDs(), nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, tok := range strings.Split(input, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > len(a.catalog.Groups) {
			return nil, fmt.Errorf("invalid selection %q", tok)
		}
		id := a.catalog.Groups[n-1].ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
