// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package history journals completed installer runs to a SQLite database
// under the cache root. The journal is advisory: it powers `nyarcher
// --history` and nothing in the install path depends on it, so a corrupt or
// missing journal never blocks theming.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nyarchlinux/nyarcher/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	tag         TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	mutation_id TEXT NOT NULL,
	group_id    TEXT NOT NULL,
	title       TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	backup_path TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Run is one journaled installer run.
type Run struct {
	ID        string
	Tag       string
	Started   time.Time
	Finished  time.Time
	Succeeded int
	Skipped   int
	Failed    int
}

// Journal records installer runs to SQLite.
type Journal struct {
	db *sql.DB
}

// DefaultPath returns the journal location under the cache root.
func DefaultPath(cacheRoot string) string {
	return filepath.Join(cacheRoot, "history.db")
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// SQLite allows one writer; the installer is the only one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record persists a completed pipeline run and all its results in one
// transaction.
func (j *Journal) Record(ctx context.Context, rep pipeline.Report) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	succeeded, skipped, failed := rep.Counts()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, tag, started_at, finished_at, succeeded, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Tag, rep.Started.Unix(), rep.Finished.Unix(),
		succeeded, skipped, failed,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, seq, mutation_id, group_id, title, status, detail, backup_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range rep.Results {
		if _, err := stmt.ExecContext(ctx,
			rep.RunID, i, res.MutationID, res.GroupID, res.Title,
			string(res.Status), res.Detail, res.BackupPath,
		); err != nil {
			return fmt.Errorf("failed to insert result %s: %w", res.MutationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, tag, started_at, finished_at, succeeded, skipped, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Tag, &started, &finished,
			&r.Succeeded, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Started = time.Unix(started, 0)
		r.Finished = time.Unix(finished, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns the per-mutation results of one run, in execution order.
func (j *Journal) Results(ctx context.Context, runID string) ([]pipeline.MutationResult, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT mutation_id, group_id, title, status, detail, backup_path
		 FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []pipeline.MutationResult
	for rows.Next() {
		var r pipeline.MutationResult
		var status string
		if err := rows.Scan(&r.MutationID, &r.GroupID, &r.Title,
			&status, &r.Detail, &r.BackupPath); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Status = pipeline.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}
