// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache keeps one extracted copy of each release's asset bundle
// under a per-user cache root, so reruns never re-download a tag they have
// already seen. Old tags are never pruned; cache growth is unbounded by
// design.
package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/nyarchlinux/nyarcher/internal/release"
)

// DownloadError indicates the archive could not be fetched or the fetched
// file was unusable (zero bytes).
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractError indicates a corrupt or truncated archive. The canonical cache
// path is guaranteed not to exist when this is returned.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ProgressFunc receives download progress. total is -1 when the server did
// not send a Content-Length.
type ProgressFunc func(downloaded, total int64)

// Cache manages extracted release bundles under Root.
type Cache struct {
	// Root is the cache directory, e.g. ~/.cache/nyarcher.
	Root string

	// Client is used for archive downloads. Defaults to http.DefaultClient:
	// downloads can be large, so no overall timeout is imposed.
	Client *http.Client

	// Progress, when set, is called with download progress. Calls are
	// throttled so a fast download does not flood the UI event loop.
	Progress ProgressFunc
}

// New returns a cache rooted at root.
func New(root string) *Cache {
	return &Cache{Root: root, Client: http.DefaultClient}
}

// EntryPath returns the canonical extracted path for a tag. Pure function.
func (c *Cache) EntryPath(tag string) string {
	return filepath.Join(c.Root, tag)
}

// Ensure returns the extracted directory for rel, downloading and extracting
// it only when missing. A non-empty directory at the canonical path is a hit
// and involves no network traffic.
//
// Extraction is atomic with respect to interruption: the archive is unpacked
// into a temporary sibling directory and renamed into place, so a crash
// mid-extract never leaves a partial entry a later run would treat as a hit.
func (c *Cache) Ensure(ctx context.Context, rel release.Release) (string, error) {
	dest := c.EntryPath(rel.Tag)
	if dirNonEmpty(dest) {
		return dest, nil
	}

	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return "", &DownloadError{URL: rel.ArchiveURL, Err: err}
	}

	archive, err := c.download(ctx, rel.ArchiveURL)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	// Unpack next to the final destination and rename into place on success.
	staging, err := os.MkdirTemp(c.Root, ".extract-")
	if err != nil {
		return "", &ExtractError{Archive: archive, Err: err}
	}
	defer os.RemoveAll(staging)

	if err := extractTarGz(archive, staging); err != nil {
		return "", &ExtractError{Archive: archive, Err: err}
	}

	if err := os.Rename(staging, dest); err != nil {
		// A concurrent run may have won the rename; a populated destination
		// is still a valid outcome.
		if dirNonEmpty(dest) {
			return dest, nil
		}
		return "", &ExtractError{Archive: archive, Err: err}
	}
	return dest, nil
}

// download fetches url into a temp file under the cache root and returns its
// path. The caller removes the file when done.
func (c *Cache) download(ctx context.Context, url string) (string, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp(c.Root, ".download-*.tar.gz")
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, c.progressReader(resp.Body, resp.ContentLength))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", &DownloadError{URL: url, Err: err}
	}
	if written == 0 {
		os.Remove(tmpPath)
		return "", &DownloadError{URL: url, Err: fmt.Errorf("empty download")}
	}
	return tmpPath, nil
}

// progressReader wraps body so Progress sees byte counts at most a few times
// per second, with a final call guaranteed at EOF.
func (c *Cache) progressReader(body io.Reader, total int64) io.Reader {
	if c.Progress == nil {
		return body
	}
	return &countingReader{
		r:       body,
		total:   total,
		report:  c.Progress,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

type countingReader struct {
	r       io.Reader
	total   int64
	read    int64
	report  ProgressFunc
	limiter *rate.Limiter
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.read += int64(n)
	if err == io.EOF || cr.limiter.Allow() {
		cr.report(cr.read, cr.total)
	}
	return n, err
}

// dirNonEmpty reports whether path is a directory with at least one entry.
func dirNonEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
