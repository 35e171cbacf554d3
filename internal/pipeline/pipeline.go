// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipeline executes selected mutation groups against the extracted
// release bundle. Groups run in catalog order; mutations within a group run
// strictly in declared order, and a failure aborts the remainder of its group
// without affecting other groups. Every outcome - success, skip, failure - is
// collected into a Report so the user sees a complete accounting, never a
// partial one.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nyarchlinux/nyarcher/internal/backup"
	"github.com/nyarchlinux/nyarcher/internal/catalog"
	"github.com/nyarchlinux/nyarcher/internal/extern"
	"github.com/nyarchlinux/nyarcher/internal/fsutil"
)

// FilesystemError wraps a copy, write or backup failure with the path that
// triggered it, so the report can show where disk state went wrong.
type FilesystemError struct {
	Path string
	Op   string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Event notifies an observer of pipeline progress. The TUI renders these
// live; text mode prints them as lines.
type Event struct {
	// Result is set when a mutation finished (any status). When nil, the
	// event announces that Starting is about to run.
	Result *MutationResult

	// Starting is the mutation about to execute.
	Starting *catalog.Mutation
}

// Pipeline applies catalog mutations from an extracted bundle.
type Pipeline struct {
	Catalog catalog.Catalog

	// Runner executes run_installer mutations. Swapped for a recorder in
	// tests.
	Runner extern.Runner

	// Observer, when set, receives an Event before and after each mutation.
	Observer func(Event)

	// Now is stubbed in tests; defaults to time.Now.
	Now func() time.Time
}

// New returns a Pipeline over the given catalog using a real ExecRunner.
func New(c catalog.Catalog) *Pipeline {
	return &Pipeline{Catalog: c, Runner: &extern.ExecRunner{}}
}

// Run executes the selected groups, in catalog order, against the bundle
// extracted at cacheDir. The returned Report always covers every mutation of
// every selected group; Run itself returns an error only for invalid input
// or context cancellation, never for mutation failures.
func (p *Pipeline) Run(ctx context.Context, selected []string, cacheDir, tag string) (Report, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}

	rep := Report{
		RunID:   uuid.New().String(),
		Tag:     tag,
		Started: now(),
	}

	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		if _, ok := p.Catalog.Group(id); !ok {
			return Report{}, fmt.Errorf("unknown mutation group %q", id)
		}
		want[id] = true
	}

	// Catalog order, not selection order, decides execution order: the
	// user-bundle must land before groups that theme on top of it.
	for _, g := range p.Catalog.Groups {
		if !want[g.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		p.runGroup(ctx, g, cacheDir, &rep)
	}

	rep.Finished = now()
	return rep, nil
}

// runGroup executes one group's mutations in declared order. The first
// failure marks all remaining mutations of the group as skipped; the group's
// results are appended to rep either way.
func (p *Pipeline) runGroup(ctx context.Context, g catalog.Group, cacheDir string, rep *Report) {
	failedAt := ""

	for i := range g.Mutations {
		m := &g.Mutations[i]

		res := MutationResult{
			MutationID: m.ID,
			GroupID:    g.ID,
			Title:      m.Title,
		}

		if failedAt != "" {
			res.Status = StatusSkipped
			res.Detail = fmt.Sprintf("earlier step %s failed", failedAt)
			rep.Results = append(rep.Results, res)
			p.observe(Event{Result: &res})
			continue
		}

		p.observe(Event{Starting: m})

		status, detail, backupPath, err := p.apply(ctx, m, cacheDir)
		res.Status = status
		res.Detail = detail
		res.BackupPath = backupPath
		if err != nil {
			res.Status = StatusFailed
			res.Detail = err.Error()
			failedAt = m.ID
		}

		rep.Results = append(rep.Results, res)
		p.observe(Event{Result: &res})
	}
}

// apply runs a single mutation and returns its outcome. A returned error
// means the mutation failed; skip outcomes are reported via status.
func (p *Pipeline) apply(ctx context.Context, m *catalog.Mutation, cacheDir string) (status Status, detail, backupPath string, err error) {
	if err := ctx.Err(); err != nil {
		return StatusFailed, "", "", err
	}

	if m.Applied != nil {
		done, err := m.Applied()
		if err != nil {
			return StatusFailed, "", "", fmt.Errorf("failed to probe %s: %w", m.ID, err)
		}
		if done {
			return StatusSkipped, "already applied", "", nil
		}
	}

	switch m.Kind {
	case catalog.KindCopyTree, catalog.KindWriteFile:
		src := ""
		if m.Source != "" {
			src, err = catalog.ResolveSource(cacheDir, m.ID, m.Source)
			if err != nil {
				return StatusFailed, "", "", err
			}
		}

		// The backup happens unconditionally before any write, even when
		// the incoming content is identical to what is there.
		backupPath, err = p.backup(m)
		if err != nil {
			return StatusFailed, "", "", err
		}

		if m.Kind == catalog.KindCopyTree {
			if err := fsutil.CopyTree(src, m.Target); err != nil {
				return StatusFailed, "", backupPath, &FilesystemError{Path: m.Target, Op: "copy tree to", Err: err}
			}
		} else {
			data := []byte(m.Content)
			if src != "" {
				data, err = os.ReadFile(src)
				if err != nil {
					return StatusFailed, "", backupPath, &FilesystemError{Path: src, Op: "read", Err: err}
				}
			}
			if err := fsutil.AtomicWriteFile(m.Target, data, m.Mode); err != nil {
				return StatusFailed, "", backupPath, &FilesystemError{Path: m.Target, Op: "write", Err: err}
			}
		}
		return StatusSuccess, "", backupPath, nil

	case catalog.KindAppendSnippet:
		result, err := fsutil.AppendSnippet(m.Target, m.Marker, m.Snippet, m.ConflictHint)
		if err != nil {
			return StatusFailed, "", "", &FilesystemError{Path: m.Target, Op: "append to", Err: err}
		}
		switch result {
		case fsutil.SnippetAlreadyPresent:
			return StatusSkipped, "already applied", "", nil
		case fsutil.SnippetConflict:
			return StatusSkipped, "conflicting user content, left untouched", "", nil
		}
		return StatusSuccess, "", "", nil

	case catalog.KindRunInstaller:
		if err := p.Runner.Run(ctx, m.Tool, m.Args...); err != nil {
			return StatusFailed, "", "", err
		}
		return StatusSuccess, "", "", nil

	case catalog.KindRunFeed:
		src, err := catalog.ResolveSource(cacheDir, m.ID, m.Source)
		if err != nil {
			return StatusFailed, "", "", err
		}
		if err := p.Runner.RunFeed(ctx, src, m.Tool, m.Args...); err != nil {
			return StatusFailed, "", "", err
		}
		return StatusSuccess, "", "", nil

	case catalog.KindRunCapture:
		out, err := p.Runner.RunCapture(ctx, m.Tool, m.Args...)
		if err != nil {
			return StatusFailed, "", "", err
		}
		if err := fsutil.AtomicWriteFile(m.Target, out, m.Mode); err != nil {
			return StatusFailed, "", "", &FilesystemError{Path: m.Target, Op: "write", Err: err}
		}
		return StatusSuccess, "", "", nil
	}

	return StatusFailed, "", "", fmt.Errorf("unknown mutation kind %q", m.Kind)
}

// backup relocates pre-existing content at the mutation target according to
// its declared style.
func (p *Pipeline) backup(m *catalog.Mutation) (string, error) {
	switch m.Backup {
	case catalog.BackupRename:
		path, err := backup.Backup(m.Target)
		if err != nil {
			return "", &FilesystemError{Path: m.Target, Op: "back up", Err: err}
		}
		return path, nil
	case catalog.BackupArchive:
		path, err := backup.Archive(m.Target)
		if err != nil {
			return "", &FilesystemError{Path: m.Target, Op: "archive", Err: err}
		}
		return path, nil
	}
	return "", nil
}

func (p *Pipeline) observe(e Event) {
	if p.Observer != nil {
		p.Observer(e)
	}
}
