// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package release resolves the latest published NyarchLinux release from the
// GitHub releases API. The API's own "latest" designation is trusted as-is;
// no semantic version comparison happens here.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultAPIBase is the GitHub REST API root used when none is configured.
const DefaultAPIBase = "https://api.github.com"

// Release is one published snapshot of the upstream asset repository.
// Immutable once resolved.
type Release struct {
	// Tag is the release tag, e.g. "v3.2.0".
	Tag string

	// ArchiveURL is the direct download URL for the theming asset bundle.
	ArchiveURL string

	// Notes is the release body markdown, shown on the welcome screen.
	Notes string

	// PublishedAt is the upstream publication time.
	PublishedAt time.Time
}

// NotFoundError indicates the repository has no published release (or does
// not exist). Rerunning will not help until upstream publishes one.
type NotFoundError struct {
	Owner string
	Repo  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no release found for %s/%s", e.Owner, e.Repo)
}

// NetworkError indicates a transport failure or unexpected HTTP status while
// talking to the release API. These are not retried automatically; the user
// may rerun the installer.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("release API request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// apiRelease mirrors the subset of the GitHub release payload we consume.
type apiRelease struct {
	TagName     string     `json:"tag_name"`
	Body        string     `json:"body"`
	PublishedAt time.Time  `json:"published_at"`
	Assets      []apiAsset `json:"assets"`
}

type apiAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Resolver queries the release-listing endpoint of a fixed repository.
type Resolver struct {
	// APIBase overrides DefaultAPIBase (tests point this at a local server).
	APIBase string

	// AssetName is the archive asset to select, e.g. "NyarchLinux.tar.gz".
	AssetName string

	// Client is the HTTP client to use. A nil Client gets a 30s-timeout
	// default; beyond that no timeout is imposed on downloads.
	Client *http.Client
}

// NewResolver returns a resolver for the given archive asset name.
func NewResolver(assetName string) *Resolver {
	return &Resolver{
		APIBase:   DefaultAPIBase,
		AssetName: assetName,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Latest resolves the release the API marks "latest" for owner/repo.
//
// Returns *NotFoundError when no release exists and *NetworkError on
// transport or status failures.
func (r *Resolver) Latest(ctx context.Context, owner, repo string) (Release, error) {
	base := r.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", base, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return Release{}, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Release{}, &NotFoundError{Owner: owner, Repo: repo}
	case resp.StatusCode != http.StatusOK:
		return Release{}, &NetworkError{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var payload apiRelease
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Release{}, &NetworkError{URL: url, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if payload.TagName == "" {
		return Release{}, &NotFoundError{Owner: owner, Repo: repo}
	}

	return Release{
		Tag:         payload.TagName,
		ArchiveURL:  r.archiveURL(owner, repo, payload),
		Notes:       payload.Body,
		PublishedAt: payload.PublishedAt,
	}, nil
}

// archiveURL picks the download URL for the configured asset name. Older
// releases did not always list the bundle in the assets array, so fall back
// to the conventional download path under the tag.
func (r *Resolver) archiveURL(owner, repo string, payload apiRelease) string {
	for _, asset := range payload.Assets {
		if asset.Name == r.AssetName {
			return asset.BrowserDownloadURL
		}
	}
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/%s/%s",
		owner, repo, payload.TagName, r.AssetName)
}
