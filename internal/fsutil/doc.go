// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fsutil provides the filesystem primitives the installer is built
// on: atomic file writes, tree copies, and marker-based snippet appends.
//
// Every mutation the pipeline applies bottoms out in one of these helpers,
// so their guarantees (atomicity, idempotence) are what the pipeline's
// re-run safety rests on.
package fsutil
