// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{" Info ", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("stack started", "services", 10)

	out := buf.String()
	if !strings.Contains(out, "stack started") {
		t.Errorf("message missing from output: %q", out)
	}
	if !strings.Contains(out, "services=10") {
		t.Errorf("attribute missing from output: %q", out)
	}
	if !strings.Contains(out, "service=devstack") {
		t.Errorf("default service attribute missing: %q", out)
	}
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Debug("noise")
	logger.Info("also noise")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Errorf("below-level records emitted: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record dropped: %q", out)
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).With("component", "orchestrator")

	logger.Info("bring-up complete")

	if !strings.Contains(buf.String(), "component=orchestrator") {
		t.Errorf("With attribute missing: %q", buf.String())
	}
}

func TestFileLoggingWritesJSON(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger := New(Config{LogDir: dir, Output: &buf})
	defer logger.Close()

	logger.Info("probe ready", "service", "gateway")

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one log file, got %v (err %v)", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "devstack_") {
		t.Errorf("log file name = %q, want devstack_ prefix", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("file record is not JSON: %v\n%s", err, data)
	}
	if record["msg"] != "probe ready" || record["service"] != "gateway" {
		t.Errorf("record = %v", record)
	}

	// Console output still carries the record.
	if !strings.Contains(buf.String(), "probe ready") {
		t.Errorf("console output missing record: %q", buf.String())
	}
}

func TestFileLoggingExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	logger := New(Config{LogDir: "~/logs", Output: &bytes.Buffer{}})
	defer logger.Close()
	logger.Info("hello")

	entries, err := os.ReadDir(filepath.Join(home, "logs"))
	if err != nil || len(entries) == 0 {
		t.Fatalf("no log file under expanded ~/logs: %v (err %v)", entries, err)
	}
}

func TestUnwritableLogDirDegradesToConsole(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0755)

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(dir, "sub"), Output: &buf})
	logger.Info("still logging")

	if !strings.Contains(buf.String(), "still logging") {
		t.Errorf("console output lost after file setup failure: %q", buf.String())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on console-only logger: %v", err)
	}
}

func TestSetDefaultInstallsLogger(t *testing.T) {
	var buf bytes.Buffer
	custom := New(Config{Service: "testsvc", Output: &buf})
	SetDefault(custom)
	defer SetDefault(nil)

	Default().Info("configured")

	if !strings.Contains(buf.String(), "service=testsvc") {
		t.Errorf("Default did not return installed logger: %q", buf.String())
	}
}

func TestDefaultLazilyBuildsLogger(t *testing.T) {
	SetDefault(nil)
	logger := Default()
	if logger == nil {
		t.Fatal("Default returned nil")
	}
	if logger.Level() != LevelInfo {
		t.Errorf("lazy default level = %v, want info", logger.Level())
	}
}
