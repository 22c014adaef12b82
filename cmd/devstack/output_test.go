package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

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

func TestOutputResultQuietMode(t *testing.T) {
	cfg := OutputConfig{Quiet: true}
	start := time.Now()

	if code := OutputResult(cfg, "test", start, nil, false, nil); code != CLIExitSuccess {
		t.Errorf("clean run = %d, want %d", code, CLIExitSuccess)
	}
	if code := OutputResult(cfg, "test", start, nil, true, nil); code != CLIExitFindings {
		t.Errorf("findings = %d, want %d", code, CLIExitFindings)
	}
	if code := OutputResult(cfg, "test", start, nil, false, errors.New("boom")); code != CLIExitError {
		t.Errorf("error = %d, want %d", code, CLIExitError)
	}
}

func TestOutputResultQuietProducesNoOutput(t *testing.T) {
	out := captureStdout(t, func() {
		OutputResult(OutputConfig{Quiet: true}, "test", time.Now(), map[string]int{"x": 1}, true, nil)
	})
	if out != "" {
		t.Errorf("quiet mode wrote output: %q", out)
	}
}

func TestOutputResultJSONEnvelope(t *testing.T) {
	out := captureStdout(t, func() {
		code := OutputResult(OutputConfig{JSON: true}, "stack status", time.Now(),
			map[string]string{"gateway": "running"}, false, nil)
		if code != CLIExitSuccess {
			t.Errorf("code = %d", code)
		}
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if !result.Success || result.Command != "stack status" || result.APIVersion != "1.0" {
		t.Errorf("envelope = %+v", result)
	}
}

func TestOutputResultJSONError(t *testing.T) {
	out := captureStdout(t, func() {
		code := OutputResult(OutputConfig{JSON: true}, "validate", time.Now(),
			nil, false, errors.New("connection refused"))
		if code != CLIExitError {
			t.Errorf("code = %d, want %d", code, CLIExitError)
		}
	})

	var result CommandResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("error output is not valid JSON: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "connection refused") {
		t.Errorf("envelope = %+v", result)
	}
}

func TestOutputJSONCompact(t *testing.T) {
	out := captureStdout(t, func() {
		if err := OutputJSON(map[string]int{"a": 1}, true); err != nil {
			t.Errorf("OutputJSON: %v", err)
		}
	})
	if strings.Contains(out, "  ") {
		t.Errorf("compact output is indented: %q", out)
	}
}

func TestOutputResultFindingsWithJSON(t *testing.T) {
	out := captureStdout(t, func() {
		code := OutputResult(OutputConfig{JSON: true, Compact: true}, "validate", time.Now(),
			nil, true, nil)
		if code != CLIExitFindings {
			t.Errorf("code = %d, want %d", code, CLIExitFindings)
		}
	})
	if !strings.Contains(out, `"success":true`) {
		t.Errorf("findings should still report success envelope: %q", out)
	}
}
