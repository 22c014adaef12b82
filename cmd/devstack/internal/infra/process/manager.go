// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package process abstracts external process execution for the devstack CLI.

All exec.Command calls in stack management code go through the Manager
interface so that container-runtime interaction can be mocked in unit tests.
The runtime itself (docker, docker compose) is treated as an opaque command
with an exit code; nothing in this package knows what the commands mean.
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context; long-running processes must respect
// cancellation.
type Manager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments
	//
	// # Outputs
	//
	//   - []byte: Captured stdout
	//   - error: Non-nil if the command fails or is cancelled
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command in a working directory with extra
	// environment entries, returning stdout, stderr, and the exit code.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - dir: Working directory ("" for the current one)
	//   - env: Extra KEY=VALUE entries appended to the inherited environment
	//   - name: The executable name or path
	//   - args: Command arguments
	//
	// # Outputs
	//
	//   - string: Captured stdout
	//   - string: Captured stderr
	//   - int: Process exit code (-1 if the process never ran)
	//   - error: Non-nil on start failure, non-zero exit, or cancellation
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreaming executes a command and streams combined output to w
	// until the process exits or ctx is cancelled. Used for `logs -f`.
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultManager is the production Manager backed by os/exec.
type DefaultManager struct{}

// NewDefaultManager creates a production process manager.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its stdout.
func (m *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	stdout, stderr, _, err := m.RunInDir(ctx, "", nil, name, args...)
	if err != nil {
		return []byte(stdout), fmt.Errorf("%w: %s", err, stderr)
	}
	return []byte(stdout), nil
}

// RunInDir executes a command with a working directory and environment.
func (m *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := exitCodeOf(cmd, err)

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("command %s cancelled: %w", name, ctx.Err())
		}
		return stdout.String(), stderr.String(), exitCode, err
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// RunStreaming executes a command, streaming combined output to w.
func (m *DefaultManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		// Cancellation is the normal way to stop a follow stream.
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("streaming command %s failed: %w", name, err)
	}
	return nil
}

// exitCodeOf extracts the process exit code from a Run error.
func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// =============================================================================
// Mock Implementation
// =============================================================================

// Call records a single invocation against the MockManager.
type Call struct {
	Method string
	Dir    string
	Name   string
	Args   []string
}

// MockManager is a configurable Manager for unit tests.
//
// Each method records its call and delegates to the corresponding Func
// field when set; otherwise it returns a benign success.
type MockManager struct {
	RunFunc          func(ctx context.Context, name string, args ...string) ([]byte, error)
	RunInDirFunc     func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)
	RunStreamingFunc func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	mu    sync.Mutex
	calls []Call
}

// Run implements Manager for MockManager.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record("Run", "", name, args)
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return nil, nil
}

// RunInDir implements Manager for MockManager.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.record("RunInDir", dir, name, args)
	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(ctx, dir, env, name, args...)
	}
	return "", "", 0, nil
}

// RunStreaming implements Manager for MockManager.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	m.record("RunStreaming", dir, name, args)
	if m.RunStreamingFunc != nil {
		return m.RunStreamingFunc(ctx, dir, w, name, args...)
	}
	return nil
}

// Calls returns a copy of all recorded invocations.
func (m *MockManager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded invocations.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockManager) record(method, dir, name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Dir: dir, Name: name, Args: append([]string(nil), args...)})
}

var _ Manager = (*DefaultManager)(nil)
var _ Manager = (*MockManager)(nil)
