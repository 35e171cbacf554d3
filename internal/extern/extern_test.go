// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

package extern

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExecRunner_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX 'true' binary")
	}

	r := &ExecRunner{}
	if err := r.Run(context.Background(), "true"); err != nil {
		t.Fatalf("Run(true) failed: %v", err)
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX 'false' binary")
	}

	r := &ExecRunner{}
	err := r.Run(context.Background(), "false")

	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *ExternalToolError, got %v", err)
	}
	if te.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", te.ExitCode)
	}
	if te.Tool != "false" {
		t.Errorf("Tool = %q, want %q", te.Tool, "false")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &ExecRunner{}
	err := r.Run(context.Background(), "nyarcher-no-such-tool-xyz")

	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *ExternalToolError, got %v", err)
	}
}

func TestExecRunner_RunCapture(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX 'echo' binary")
	}

	r := &ExecRunner{}
	out, err := r.RunCapture(context.Background(), "echo", "nyaa")
	if err != nil {
		t.Fatalf("RunCapture(echo) failed: %v", err)
	}
	if string(out) != "nyaa\n" {
		t.Errorf("Captured output = %q, want %q", string(out), "nyaa\n")
	}
}

func TestExecRunner_RunFeed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX 'cat' binary")
	}

	input := filepath.Join(t.TempDir(), "keyfile")
	if err := os.WriteFile(input, []byte("[org/gnome]\n"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	r := &ExecRunner{}
	if err := r.RunFeed(context.Background(), input, "cat"); err != nil {
		t.Fatalf("RunFeed(cat) failed: %v", err)
	}
}

func TestExecRunner_RunFeedMissingInput(t *testing.T) {
	r := &ExecRunner{}
	err := r.RunFeed(context.Background(), filepath.Join(t.TempDir(), "absent"), "cat")

	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *ExternalToolError, got %v", err)
	}
}

func TestRecordingRunner(t *testing.T) {
	r := &RecordingRunner{FailOn: map[string]int{"pipx": 1}}

	if err := r.Run(context.Background(), "flatpak", "install", "flathub", "org.gnome.Lollypop"); err != nil {
		t.Fatalf("flatpak call failed: %v", err)
	}
	err := r.Run(context.Background(), "pipx", "install", "kde-material-you-colors")
	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *ExternalToolError from FailOn, got %v", err)
	}

	want := []string{
		"flatpak install flathub org.gnome.Lollypop",
		"pipx install kde-material-you-colors",
	}
	if len(r.Calls) != len(want) {
		t.Fatalf("Calls = %v", r.Calls)
	}
	for i := range want {
		if r.Calls[i] != want[i] {
			t.Errorf("Calls[%d] = %q, want %q", i, r.Calls[i], want[i])
		}
	}
}

func TestRecordingRunner_FeedAndCapture(t *testing.T) {
	r := &RecordingRunner{Output: map[string][]byte{"dconf": []byte("[org/gnome]\n")}}

	out, err := r.RunCapture(context.Background(), "dconf", "dump", "/")
	if err != nil {
		t.Fatalf("RunCapture failed: %v", err)
	}
	if string(out) != "[org/gnome]\n" {
		t.Errorf("RunCapture output = %q", string(out))
	}

	if err := r.RunFeed(context.Background(), "/bundle/06-extensions", "dconf", "load", "/"); err != nil {
		t.Fatalf("RunFeed failed: %v", err)
	}

	want := []string{
		"dconf dump /",
		"dconf load / < /bundle/06-extensions",
	}
	for i := range want {
		if r.Calls[i] != want[i] {
			t.Errorf("Calls[%d] = %q, want %q", i, r.Calls[i], want[i])
		}
	}
}
