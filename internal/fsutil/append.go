// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppendResult describes the outcome of an AppendSnippet call.
type AppendResult int

const (
	// SnippetAppended means the snippet was written to the file.
	SnippetAppended AppendResult = iota

	// SnippetAlreadyPresent means the marker (or the snippet body itself)
	// was already in the file; nothing was modified.
	SnippetAlreadyPresent

	// SnippetConflict means the conflict hint matched existing content that
	// is not ours; the file was left untouched.
	SnippetConflict
)

// AppendSnippet idempotently appends a marker-delimited snippet to path.
//
// Presence of marker (or of the snippet body itself) in the file makes the
// call a no-op. If conflictHint is non-empty and found in the file while the
// marker is not, the user is assumed to have their own version of the logic
// and the file is left alone. The marker string, not a content hash, is the
// idempotency check.
func AppendSnippet(path, marker, body, conflictHint string) (AppendResult, error) {
	var content string
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		content = string(raw)
	case os.IsNotExist(err):
		content = ""
	default:
		return SnippetConflict, fmt.Errorf("failed to read %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(body)
	if strings.Contains(content, marker) || strings.Contains(content, trimmed) {
		return SnippetAlreadyPresent, nil
	}

	if conflictHint != "" && strings.Contains(content, conflictHint) {
		return SnippetConflict, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return SnippetConflict, fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return SnippetConflict, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimRight(marker, "\n") + "\n")
	b.WriteString(strings.TrimRight(body, "\n") + "\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return SnippetConflict, fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return SnippetAppended, nil
}
