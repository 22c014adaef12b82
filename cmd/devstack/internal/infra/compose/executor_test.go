package compose

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/infra/process"
)

func newTestExecutor(t *testing.T, mock *process.MockManager) *DefaultExecutor {
	t.Helper()
	exec, err := NewDefaultExecutor(Config{StackDir: "/tmp/unison-test"}, mock)
	if err != nil {
		t.Fatalf("NewDefaultExecutor failed: %v", err)
	}
	// Pretend only the base file exists.
	exec.osStatFunc = func(path string) (os.FileInfo, error) {
		if strings.HasSuffix(path, "docker-compose.yml") {
			return nil, nil
		}
		return nil, os.ErrNotExist
	}
	return exec
}

func TestNewDefaultExecutorRequiresStackDir(t *testing.T) {
	_, err := NewDefaultExecutor(Config{}, &process.MockManager{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewDefaultExecutorDefaults(t *testing.T) {
	exec, err := NewDefaultExecutor(Config{StackDir: "/tmp"}, &process.MockManager{})
	if err != nil {
		t.Fatalf("NewDefaultExecutor failed: %v", err)
	}
	if exec.config.ProjectName != "unison" {
		t.Errorf("ProjectName = %q, want %q", exec.config.ProjectName, "unison")
	}
	if exec.config.ContainerNamePrefix != "unison-" {
		t.Errorf("ContainerNamePrefix = %q, want %q", exec.config.ContainerNamePrefix, "unison-")
	}
	if exec.config.DefaultTimeout != 5*time.Minute {
		t.Errorf("DefaultTimeout = %v, want 5m", exec.config.DefaultTimeout)
	}
}

func TestUpBuildsExpectedArgs(t *testing.T) {
	var gotArgs []string
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			gotArgs = args
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	result, err := exec.Up(context.Background(), UpOptions{
		ForceBuild:    true,
		RemoveOrphans: true,
		Services:      []string{"auth", "gateway"},
	})
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if !result.Success {
		t.Error("result.Success = false, want true")
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"compose", "-p unison", "up -d", "--build", "--remove-orphans", "auth gateway"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestUpRejectsInvalidEnvKeys(t *testing.T) {
	exec := newTestExecutor(t, &process.MockManager{})

	_, err := exec.Up(context.Background(), UpOptions{
		Env: map[string]string{"BAD KEY; rm -rf": "x"},
	})
	if !errors.Is(err, ErrInvalidEnvVar) {
		t.Errorf("err = %v, want ErrInvalidEnvVar", err)
	}
}

func TestUpReportsNonZeroExit(t *testing.T) {
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			return "", "no such file", 1, errors.New("exit status 1")
		},
	}
	exec := newTestExecutor(t, mock)

	result, err := exec.Up(context.Background(), UpOptions{})
	if err == nil {
		t.Fatal("expected error for failed compose up")
	}
	if result.Success {
		t.Error("result.Success = true for failed command")
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestDownBuildsExpectedArgs(t *testing.T) {
	var gotArgs []string
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			gotArgs = args
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	if _, err := exec.Down(context.Background(), DownOptions{RemoveOrphans: true, RemoveVolumes: true}); err != nil {
		t.Fatalf("Down failed: %v", err)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"down", "--remove-orphans", "-v"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestStopEscalatesToForceStop(t *testing.T) {
	// Sequence: list (2 running), graceful stop, list (1 running),
	// force stop, list (0 running).
	listCalls := 0
	var stopTimeouts []string
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			joined := strings.Join(args, " ")
			if strings.HasPrefix(joined, "ps -q") {
				listCalls++
				switch listCalls {
				case 1:
					return "abc\ndef\n", "", 0, nil
				case 2:
					return "def\n", "", 0, nil
				default:
					return "", "", 0, nil
				}
			}
			if args[0] == "stop" {
				stopTimeouts = append(stopTimeouts, args[2])
			}
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	result, err := exec.Stop(context.Background(), StopOptions{GracefulTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.GracefulStopped != 1 {
		t.Errorf("GracefulStopped = %d, want 1", result.GracefulStopped)
	}
	if result.ForceStopped != 1 {
		t.Errorf("ForceStopped = %d, want 1", result.ForceStopped)
	}
	if result.TotalStopped != 2 {
		t.Errorf("TotalStopped = %d, want 2", result.TotalStopped)
	}
	if len(stopTimeouts) < 2 || stopTimeouts[0] != "5" || stopTimeouts[1] != "0" {
		t.Errorf("stop timeouts = %v, want graceful 5 then force 0", stopTimeouts)
	}
}

func TestStatusParsesDockerJSONL(t *testing.T) {
	jsonl := `{"Names":"unison-gateway-1","State":"running","Status":"Up 2 hours (healthy)","Image":"kong:3.4","Ports":"0.0.0.0:8000->8000/tcp"}
{"Names":"unison-auth-1","State":"exited","Status":"Exited (1) 5 minutes ago","Image":"unison/auth:latest","Ports":""}`

	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			return jsonl, "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	status, err := exec.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Services) != 2 {
		t.Fatalf("got %d services, want 2", len(status.Services))
	}
	if status.Running != 1 || status.Stopped != 1 {
		t.Errorf("Running=%d Stopped=%d, want 1/1", status.Running, status.Stopped)
	}

	gw := status.Services[0]
	if gw.Name != "gateway" {
		t.Errorf("service name = %q, want %q", gw.Name, "gateway")
	}
	if gw.Healthy == nil || !*gw.Healthy {
		t.Error("gateway should be healthy")
	}
	if len(gw.Ports) != 1 || gw.Ports[0].HostPort != 8000 || gw.Ports[0].Protocol != "tcp" {
		t.Errorf("unexpected ports: %+v", gw.Ports)
	}

	auth := status.Services[1]
	if auth.Name != "auth" {
		t.Errorf("service name = %q, want %q", auth.Name, "auth")
	}
	if auth.Healthy != nil {
		t.Error("auth has no healthcheck, Healthy should be nil")
	}
}

func TestStatusEmptyOutput(t *testing.T) {
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	status, err := exec.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Services) != 0 {
		t.Errorf("got %d services, want 0", len(status.Services))
	}
}

func TestExtractServiceName(t *testing.T) {
	exec := newTestExecutor(t, &process.MockManager{})

	cases := []struct {
		container string
		want      string
	}{
		{"unison-gateway-1", "gateway"},
		{"unison-io-core-2", "io-core"},
		{"unison-auth", "auth"},
		{"other-thing-1", "other-thing"},
	}
	for _, tc := range cases {
		if got := exec.extractServiceName(tc.container); got != tc.want {
			t.Errorf("extractServiceName(%q) = %q, want %q", tc.container, got, tc.want)
		}
	}
}

func TestParseHealthStatus(t *testing.T) {
	if h := parseHealthStatus("Up 2 hours (healthy)"); h == nil || !*h {
		t.Error("healthy status not detected")
	}
	if h := parseHealthStatus("Up 1 minute (unhealthy)"); h == nil || *h {
		t.Error("unhealthy status not detected")
	}
	if h := parseHealthStatus("Up 3 hours"); h != nil {
		t.Error("no-healthcheck status should yield nil")
	}
}

func TestComposeFilesIncludesOverrideOnlyWhenPresent(t *testing.T) {
	exec := newTestExecutor(t, &process.MockManager{})

	files := exec.ComposeFiles()
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1 (override absent): %v", len(files), files)
	}

	exec.osStatFunc = func(string) (os.FileInfo, error) { return nil, nil }
	files = exec.ComposeFiles()
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (override present): %v", len(files), files)
	}
	if !strings.HasSuffix(files[1], "docker-compose.override.yml") {
		t.Errorf("second file = %q, want override", files[1])
	}
}

func TestPullUsesComposeFiles(t *testing.T) {
	var gotArgs []string
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			gotArgs = args
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	if _, err := exec.Pull(context.Background()); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "pull") || !strings.Contains(joined, "-f") {
		t.Errorf("unexpected pull args: %q", joined)
	}
}

func TestForceCleanupCollectsErrors(t *testing.T) {
	mock := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			joined := strings.Join(args, " ")
			if strings.Contains(joined, "{{.Names}}") {
				return "unison-auth-1\nunison-gateway-1\n", "", 0, nil
			}
			if args[0] == "rm" && strings.Contains(joined, "unison-gateway-1") {
				return "", "in use", 1, errors.New("exit status 1")
			}
			return "", "", 0, nil
		},
	}
	exec := newTestExecutor(t, mock)

	result, err := exec.ForceCleanup(context.Background())
	if !errors.Is(err, ErrCleanupPartial) {
		t.Errorf("err = %v, want ErrCleanupPartial", err)
	}
	if result.ContainersRemoved != 1 {
		t.Errorf("ContainersRemoved = %d, want 1", result.ContainersRemoved)
	}
	if len(result.Errors) == 0 {
		t.Error("expected recorded errors")
	}
}
