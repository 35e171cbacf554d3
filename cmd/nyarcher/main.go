// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main provides nyarcher, the Nyarch Linux customization installer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nyarchlinux/nyarcher/internal/config"
	"github.com/nyarchlinux/nyarcher/internal/history"
)

const version = "2.0.0"

func main() {
	textMode := false
	assumeYes := false
	showHistory := false

	for _, arg := range os.Args[1:] {
		switch arg {
		case "--text", "-t", "--simple":
			textMode = true
		case "--yes", "-y":
			assumeYes = true
		case "--history":
			showHistory = true
		case "--help", "-h":
			printHelp()
			return
		case "--version", "-v":
			fmt.Printf("nyarcher v%s\n", version)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown option: %s\n\n", arg)
			printHelp()
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if showHistory {
		if err := printHistory(ctx, a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if textMode || !isTerminal() {
		if !textMode && !isTerminal() {
			fmt.Println("No interactive terminal detected; running in text mode.")
		}
		if err := runText(ctx, a, assumeYes); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if a.cfg.UI.Color != config.ColorAuto {
		lipgloss.SetColorProfile(colorProfile(a.cfg.UI.Color))
	}

	p := tea.NewProgram(
		newInstaller(a),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running installer: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`nyarcher v` + version + `

Usage: nyarcher [OPTIONS]

Options:
  --text, -t     Run in text mode (copy/paste friendly)
  --yes, -y      Text mode: skip the dependency confirmation
  --history      Show previous installer runs
  --help, -h     Show this help
  --version, -v  Show version

The default mode is an interactive TUI. Groups that install system-wide
tools need the installer to run under sudo.`)
}

// isTerminal reports whether stdin is attached to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// printHistory lists journaled runs, newest first.
func printHistory(ctx context.Context, a *app) error {
	j, err := history.Open(history.DefaultPath(a.cfg.CacheRoot(a.user.Home)))
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Runs(ctx, 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No installer runs recorded yet.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-10s  %d applied, %d skipped, %d failed  (%s)\n",
			r.Started.Format("2006-01-02 15:04"), r.Tag,
			r.Succeeded, r.Skipped, r.Failed, r.ID)
	}
	return nil
}
