// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// Status is the outcome of one mutation.
type Status string

const (
	// StatusSuccess means the mutation applied cleanly.
	StatusSuccess Status = "success"

	// StatusSkipped means the mutation did not run: either its effect was
	// already present, or an earlier step in its group failed.
	StatusSkipped Status = "skipped"

	// StatusFailed means the mutation errored; later steps in the group
	// were skipped.
	StatusFailed Status = "failed"
)

// MutationResult is the per-mutation outcome collected by the pipeline.
type MutationResult struct {
	MutationID string
	GroupID    string
	Title      string
	Status     Status

	// Detail explains skips and failures ("already applied", "earlier step
	// gnome-extensions failed", error text).
	Detail string

	// BackupPath is where pre-existing content was moved, when a backup
	// happened.
	BackupPath string
}

// Report aggregates one pipeline run.
type Report struct {
	// RunID uniquely identifies this run (recorded in the history journal).
	RunID string

	// Tag is the release tag the mutations were applied from.
	Tag string

	Started  time.Time
	Finished time.Time

	Results []MutationResult
}

// Counts returns the number of succeeded, skipped and failed mutations.
func (r Report) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusSuccess:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Failed reports whether any mutation failed.
func (r Report) Failed() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// GroupResults returns the results belonging to one group, in run order.
func (r Report) GroupResults(groupID string) []MutationResult {
	var out []MutationResult
	for _, res := range r.Results {
		if res.GroupID == groupID {
			out = append(out, res)
		}
	}
	return out
}

// Summary returns a one-line rollup, e.g. "6 applied, 1 skipped, 0 failed".
func (r Report) Summary() string {
	succeeded, skipped, failed := r.Counts()
	return fmt.Sprintf("%d applied, %d skipped, %d failed", succeeded, skipped, failed)
}

// Render returns the final report as an aligned text table grouped by
// mutation group. Column widths are display widths, so CJK titles in
// localized catalogs stay aligned.
func (r Report) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s (release %s)\n", r.RunID, r.Tag)

	titleWidth := 0
	for _, res := range r.Results {
		if w := runewidth.StringWidth(res.Title); w > titleWidth {
			titleWidth = w
		}
	}

	lastGroup := ""
	for _, res := range r.Results {
		if res.GroupID != lastGroup {
			fmt.Fprintf(&b, "\n[%s]\n", res.GroupID)
			lastGroup = res.GroupID
		}

		icon := "OK"
		switch res.Status {
		case StatusSkipped:
			icon = "--"
		case StatusFailed:
			icon = "!!"
		}

		line := fmt.Sprintf("  %s  %s", icon, runewidth.FillRight(res.Title, titleWidth))
		if res.Detail != "" {
			line += "  " + res.Detail
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}

	fmt.Fprintf(&b, "\n%s\n", r.Summary())
	return b.String()
}
