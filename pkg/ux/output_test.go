package ux

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn and returns what it wrote to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	w.Close()
	data, _ := io.ReadAll(r)
	return string(data)
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()
	w.Close()
	data, _ := io.ReadAll(r)
	return string(data)
}

func TestPlainModeOutput(t *testing.T) {
	SetPlain(true)
	defer SetPlain(true)

	out := captureStdout(t, func() { Success("services started") })
	if out != "OK: services started\n" {
		t.Errorf("Success plain output = %q", out)
	}

	out = captureStdout(t, func() { Title("Validation") })
	if out != "== Validation ==\n" {
		t.Errorf("Title plain output = %q", out)
	}

	out = captureStderr(t, func() { Warning("gateway missing header") })
	if out != "WARN: gateway missing header\n" {
		t.Errorf("Warning plain output = %q", out)
	}

	out = captureStderr(t, func() { Error("auth unreachable") })
	if out != "ERROR: auth unreachable\n" {
		t.Errorf("Error plain output = %q", out)
	}
}

func TestPlainModeSuppressesMuted(t *testing.T) {
	SetPlain(true)
	out := captureStdout(t, func() { Muted("details") })
	if out != "" {
		t.Errorf("Muted should be silent in plain mode, got %q", out)
	}
}

func TestStatusLinePlainIsTabSeparated(t *testing.T) {
	SetPlain(true)
	out := captureStdout(t, func() { StatusLine("gateway", IconSuccess, "healthy") })
	fields := strings.Split(strings.TrimSuffix(out, "\n"), "\t")
	if len(fields) != 3 || fields[1] != "gateway" || fields[2] != "healthy" {
		t.Errorf("StatusLine plain output = %q", out)
	}
}

func TestSummariesPlain(t *testing.T) {
	SetPlain(true)

	out := captureStdout(t, func() { BringupSummary(8, 1, 2) })
	if out != "SUMMARY: ready=8 failed=1 skipped=2\n" {
		t.Errorf("BringupSummary = %q", out)
	}

	out = captureStdout(t, func() { CheckSummary(10, 2, 1) })
	if out != "SUMMARY: passed=10 failed=2 warned=1\n" {
		t.Errorf("CheckSummary = %q", out)
	}
}

func TestIconRenderPlainPassthrough(t *testing.T) {
	SetPlain(true)
	if got := IconError.Render(); got != "✗" {
		t.Errorf("plain icon = %q", got)
	}
}

func TestSetPlainOverride(t *testing.T) {
	SetPlain(false)
	defer SetPlain(true)
	if Plain() {
		t.Error("SetPlain(false) should force styled mode")
	}
	SetPlain(true)
	if !Plain() {
		t.Error("SetPlain(true) should force plain mode")
	}
}
