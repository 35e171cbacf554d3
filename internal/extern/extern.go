// Copyright (c) 2024-2025 Nyarch Linux contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package extern invokes external tools (flatpak, pipx, dconf) as black-box
// collaborators. Only the process exit status is interpreted; output streams
// pass straight through to the user's terminal unless a caller captures or
// feeds them explicitly.
package extern

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExternalToolError reports a non-zero exit (or failure to start) from a
// package-manager invocation.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ExternalToolError) Error() string {
	cmd := e.Tool
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s exited with status %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %v", cmd, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Runner executes an external tool and reports success via its exit status.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) error

	// RunFeed runs tool with the named file on its standard input
	// (dconf load).
	RunFeed(ctx context.Context, stdinPath, tool string, args ...string) error

	// RunCapture runs tool and returns its standard output (dconf dump).
	RunCapture(ctx context.Context, tool string, args ...string) ([]byte, error)
}

// ExecRunner runs tools through os/exec with stdio inherited, so interactive
// prompts (flatpak confirmation, apt progress) reach the user directly.
type ExecRunner struct {
	// Env entries are appended to the inherited environment. Used to pin
	// HOME to the sudo caller's home when the installer runs under sudo.
	Env []string
}

// Run executes tool with args, returning *ExternalToolError on non-zero exit.
func (r *ExecRunner) Run(ctx context.Context, tool string, args ...string) error {
	cmd := r.command(ctx, tool, args...)
	cmd.Stdin = os.Stdin
	return wrapRunError(cmd.Run(), tool, args)
}

// RunFeed executes tool with the named file as its standard input.
func (r *ExecRunner) RunFeed(ctx context.Context, stdinPath, tool string, args ...string) error {
	f, err := os.Open(stdinPath)
	if err != nil {
		return &ExternalToolError{Tool: tool, Args: args, Err: err}
	}
	defer f.Close()

	cmd := r.command(ctx, tool, args...)
	cmd.Stdin = f
	return wrapRunError(cmd.Run(), tool, args)
}

// RunCapture executes tool and returns its standard output. Stderr still
// passes through to the terminal.
func (r *ExecRunner) RunCapture(ctx context.Context, tool string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := r.command(ctx, tool, args...)
	cmd.Stdout = &out
	if err := wrapRunError(cmd.Run(), tool, args); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *ExecRunner) command(ctx context.Context, tool string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), r.Env...)
	return cmd
}

func wrapRunError(err error, tool string, args []string) error {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &ExternalToolError{Tool: tool, Args: args, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &ExternalToolError{Tool: tool, Args: args, Err: err}
}

// RecordingRunner captures invocations for tests instead of executing them.
type RecordingRunner struct {
	// Calls accumulates every invocation as "tool arg1 arg2 ...". Fed
	// invocations carry a " < path" suffix.
	Calls []string

	// FailOn maps a tool name to the exit code it should fail with.
	FailOn map[string]int

	// Output maps a tool name to the bytes RunCapture should return.
	Output map[string][]byte
}

// Run records the invocation and fails if the tool is listed in FailOn.
func (r *RecordingRunner) Run(ctx context.Context, tool string, args ...string) error {
	return r.record(tool, args, "")
}

// RunFeed records the invocation together with its stdin path.
func (r *RecordingRunner) RunFeed(ctx context.Context, stdinPath, tool string, args ...string) error {
	return r.record(tool, args, stdinPath)
}

// RunCapture records the invocation and returns the canned Output for tool.
func (r *RecordingRunner) RunCapture(ctx context.Context, tool string, args ...string) ([]byte, error) {
	if err := r.record(tool, args, ""); err != nil {
		return nil, err
	}
	return r.Output[tool], nil
}

func (r *RecordingRunner) record(tool string, args []string, stdinPath string) error {
	call := tool
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	if stdinPath != "" {
		call += " < " + stdinPath
	}
	r.Calls = append(r.Calls, call)

	if code, ok := r.FailOn[tool]; ok {
		return &ExternalToolError{Tool: tool, Args: args, ExitCode: code}
	}
	return nil
}
