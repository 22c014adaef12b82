package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/infra/process"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrComposeNotFound is returned when the docker compose plugin is not available.
	ErrComposeNotFound = errors.New("docker compose not found")

	// ErrComposeFileMissing is returned when a required compose file doesn't exist.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrServiceNotFound is returned when a specified service doesn't exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrCleanupPartial is returned when cleanup completes with some errors.
	ErrCleanupPartial = errors.New("cleanup completed with errors")

	// ErrInvalidConfig is returned when Config is invalid.
	ErrInvalidConfig = errors.New("invalid compose configuration")

	// ErrInvalidEnvVar is returned when an environment variable key is invalid.
	// This prevents config injection attacks through malformed env var names.
	ErrInvalidEnvVar = errors.New("invalid environment variable")
)

// envVarKeyRegex validates environment variable key names.
// Keys must start with a letter or underscore and contain only
// alphanumeric characters and underscores. This prevents shell
// metacharacter injection through crafted env var names.
var envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// =============================================================================
// Interface Definition
// =============================================================================

// Executor manages docker compose operations for the development stack.
//
// # Description
//
// This interface abstracts all interactions with docker compose, enabling
// testable orchestration of container services. It handles compose file
// layering (base then override), environment injection, and provides both
// graceful and forceful container management.
//
// # Security
//
//   - Sanitizes environment variable keys before injection
//   - Does not log sensitive environment values (tokens, secrets)
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Operations that modify
// container state (Up, Down, ForceCleanup) should be serialized.
type Executor interface {
	// Up starts services defined in the compose configuration.
	//
	// # Description
	//
	// Executes `docker compose up -d` with optional build flag.
	// Injects environment variables from the provided map.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration for the up operation
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr
	//   - error: If compose command fails
	//
	// # Limitations
	//
	//   - Does not verify service health after startup (the orchestrator
	//     polls health endpoints separately)
	//
	// # Assumptions
	//
	//   - Docker daemon is running and accessible
	//   - Compose files exist at configured paths
	Up(ctx context.Context, opts UpOptions) (*Result, error)

	// Down stops and removes containers defined in compose configuration.
	//
	// # Description
	//
	// Executes `docker compose down` with optional flags for orphan
	// removal and volume deletion. Attempts graceful shutdown first.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration for the down operation
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr
	//   - error: If compose command fails (may trigger ForceCleanup)
	//
	// # Assumptions
	//
	//   - Containers may already be stopped (not an error)
	Down(ctx context.Context, opts DownOptions) (*Result, error)

	// Stop stops stack containers with timeout-based escalation.
	//
	// # Description
	//
	// Stops containers using a multi-phase approach:
	//  1. Graceful stop with configurable timeout (default 10s)
	//  2. If containers remain, force stop with 0s timeout
	//
	// This ensures containers are stopped even if they ignore SIGTERM.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - opts: Configuration for stop operation
	//
	// # Outputs
	//
	//   - *StopResult: Details of stopped containers
	//   - error: If stop cannot complete
	//
	// # Limitations
	//
	//   - Does not remove containers (use Down() after)
	Stop(ctx context.Context, opts StopOptions) (*StopResult, error)

	// Pull fetches the latest images for all stack services.
	//
	// # Description
	//
	// Executes `docker compose pull`. Used by the update command ahead
	// of a restart so that Up picks up fresh images.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr
	//   - error: If the pull fails
	Pull(ctx context.Context) (*Result, error)

	// Logs streams container logs to the provided writer.
	//
	// # Description
	//
	// Executes `docker compose logs` with optional follow mode.
	// Streams logs to the provided io.Writer until context is cancelled.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation (controls stream lifetime)
	//   - opts: Configuration for log streaming
	//   - w: Writer to receive log output
	//
	// # Outputs
	//
	//   - error: If command fails to start or stream errors
	//
	// # Limitations
	//
	//   - Follow mode blocks until context cancellation
	Logs(ctx context.Context, opts LogsOptions, w io.Writer) error

	// Status returns the current state of compose services.
	//
	// # Description
	//
	// Executes `docker ps` with JSON output and parses the result to
	// determine which services are running, their health, and ports.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//
	// # Outputs
	//
	//   - *Status: Current state of all services
	//   - error: If status query fails
	//
	// # Limitations
	//
	//   - Health status may lag actual container state
	//   - Parsing depends on docker ps --format json output structure
	Status(ctx context.Context) (*Status, error)

	// ForceCleanup removes all stack containers regardless of compose state.
	//
	// # Description
	//
	// Fallback when compose down fails. Force stops all matching
	// containers, then force removes by name filter. Each step continues
	// even if previous steps fail, collecting all errors.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//
	// # Outputs
	//
	//   - *CleanupResult: Details of stopped/removed containers
	//   - error: ErrCleanupPartial if some steps failed, nil otherwise
	ForceCleanup(ctx context.Context) (*CleanupResult, error)

	// ComposeFiles returns the ordered list of compose files in use.
	ComposeFiles() []string
}

// =============================================================================
// Supporting Types
// =============================================================================

// Config provides configuration for compose operations.
type Config struct {
	// StackDir is the directory containing compose files.
	// All compose file paths are relative to this directory.
	StackDir string

	// ProjectName is the compose project name.
	// Default: "unison"
	ProjectName string

	// BaseFile is the primary compose file name.
	// Default: "docker-compose.yml"
	BaseFile string

	// OverrideFile is the user override file name.
	// Optional, only used if the file exists.
	// Default: "docker-compose.override.yml"
	OverrideFile string

	// ContainerNamePrefix is the prefix for container names.
	// Used for filtering in Stop and ForceCleanup.
	// Default: "unison-"
	ContainerNamePrefix string

	// DefaultTimeout is the default timeout for compose operations.
	// Default: 5 minutes
	DefaultTimeout time.Duration
}

// UpOptions configures the Up operation.
type UpOptions struct {
	// ForceBuild rebuilds images even if they exist.
	// Maps to: --build flag
	ForceBuild bool

	// Services limits which services to start.
	// Empty means all services.
	Services []string

	// Env contains environment variables to inject.
	// These are passed to compose and available to all services.
	Env map[string]string

	// RemoveOrphans removes containers for services not defined.
	RemoveOrphans bool

	// Timeout overrides the default operation timeout.
	// Zero means use DefaultTimeout from config.
	Timeout time.Duration
}

// DownOptions configures the Down operation.
type DownOptions struct {
	// RemoveOrphans removes containers for services not in compose file.
	RemoveOrphans bool

	// RemoveVolumes removes named volumes declared in the compose file.
	// WARNING: This is destructive and cannot be undone.
	RemoveVolumes bool

	// Timeout for graceful container shutdown.
	Timeout time.Duration
}

// StopOptions configures the Stop operation.
type StopOptions struct {
	// GracefulTimeout is the time to wait for graceful shutdown (SIGTERM).
	// After this timeout, containers are force-stopped with SIGKILL.
	// Default: 10 seconds
	GracefulTimeout time.Duration

	// SkipForceStop disables the automatic force-stop after graceful timeout.
	SkipForceStop bool
}

// StopResult contains the result of a Stop operation.
type StopResult struct {
	// TotalStopped is the total number of containers stopped.
	TotalStopped int

	// GracefulStopped is containers that stopped gracefully (SIGTERM).
	GracefulStopped int

	// ForceStopped is containers that required force stop (SIGKILL).
	ForceStopped int

	// ContainerNames lists all containers that were running before the stop.
	ContainerNames []string

	// Errors contains any non-fatal errors encountered.
	Errors []string
}

// LogsOptions configures the Logs operation.
type LogsOptions struct {
	// Follow streams logs continuously.
	Follow bool

	// Services limits which services to show logs for.
	// Empty means all services.
	Services []string

	// Tail limits output to last N lines per container.
	// Zero means all logs.
	Tail int

	// Timestamps prepends each line with a timestamp.
	Timestamps bool
}

// Result contains the result of a compose operation.
type Result struct {
	// Success indicates if the operation completed without error.
	Success bool

	// ExitCode is the exit code of the compose command.
	ExitCode int

	// Stdout contains standard output.
	Stdout string

	// Stderr contains standard error.
	Stderr string

	// Duration is how long the operation took.
	Duration time.Duration

	// Command is the full command that was executed (for debugging).
	Command string
}

// Status contains the current state of compose services.
type Status struct {
	// Services contains status for each service.
	Services []ServiceStatus

	// Running is the count of running services.
	Running int

	// Stopped is the count of stopped services.
	Stopped int

	// Unhealthy is the count of unhealthy services.
	Unhealthy int
}

// ServiceStatus contains the status of a single service.
type ServiceStatus struct {
	// Name is the compose service name.
	Name string

	// ContainerName is the actual container name.
	ContainerName string

	// State is the container state (running, exited, etc.).
	State string

	// Healthy indicates health check status.
	// nil means no health check defined.
	Healthy *bool

	// Ports contains published port mappings.
	Ports []PortMapping

	// Image is the container image.
	Image string
}

// PortMapping represents a port binding.
type PortMapping struct {
	HostIP        string
	HostPort      int
	ContainerPort int
	Protocol      string
}

// CleanupResult contains details of a ForceCleanup operation.
type CleanupResult struct {
	// ContainersStopped is the number of containers force-stopped.
	ContainersStopped int

	// ContainersRemoved is the number of containers removed.
	ContainersRemoved int

	// ContainerNames lists the names of removed containers.
	ContainerNames []string

	// Errors contains any non-fatal errors encountered.
	Errors []string
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultExecutor implements Executor using the docker compose plugin.
type DefaultExecutor struct {
	config     Config
	proc       process.Manager
	osStatFunc func(string) (os.FileInfo, error)
	mu         sync.Mutex
}

// NewDefaultExecutor creates an Executor with the given configuration.
//
// # Description
//
// Creates an executor configured for docker compose operations.
// Validates the configuration and sets sensible defaults.
//
// # Inputs
//
//   - cfg: Compose configuration (StackDir required)
//   - proc: Manager for command execution
//
// # Outputs
//
//   - *DefaultExecutor: Configured executor
//   - error: If configuration is invalid
//
// # Defaults Applied
//
//   - ProjectName: "unison"
//   - BaseFile: "docker-compose.yml"
//   - OverrideFile: "docker-compose.override.yml"
//   - ContainerNamePrefix: "unison-"
//   - DefaultTimeout: 5 minutes
//
// # Limitations
//
//   - Does not verify docker compose is installed (checked at runtime)
func NewDefaultExecutor(cfg Config, proc process.Manager) (*DefaultExecutor, error) {
	if cfg.StackDir == "" {
		return nil, fmt.Errorf("%w: StackDir is required", ErrInvalidConfig)
	}
	applyConfigDefaults(&cfg)

	return &DefaultExecutor{
		config:     cfg,
		proc:       proc,
		osStatFunc: os.Stat,
	}, nil
}

// applyConfigDefaults applies default values to empty fields.
func applyConfigDefaults(cfg *Config) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = "unison"
	}
	if cfg.BaseFile == "" {
		cfg.BaseFile = "docker-compose.yml"
	}
	if cfg.OverrideFile == "" {
		cfg.OverrideFile = "docker-compose.override.yml"
	}
	if cfg.ContainerNamePrefix == "" {
		cfg.ContainerNamePrefix = "unison-"
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Up starts services defined in the compose configuration.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	// Validate env vars before proceeding to prevent config injection
	if err := e.validateEnvVars(opts.Env); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	args := e.buildComposeFileArgs()
	args = append(args, "up", "-d")

	if opts.ForceBuild {
		args = append(args, "--build")
	}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if len(opts.Services) > 0 {
		args = append(args, opts.Services...)
	}

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Down stops and removes containers defined in compose configuration.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := e.buildComposeFileArgs()
	args = append(args, "down")

	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}

	return e.runCompose(ctx, args, nil, e.resolveTimeout(opts.Timeout))
}

// Stop stops stack containers with timeout-based escalation.
func (e *DefaultExecutor) Stop(ctx context.Context, opts StopOptions) (*StopResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &StopResult{
		ContainerNames: []string{},
		Errors:         []string{},
	}

	gracefulTimeout := opts.GracefulTimeout
	if gracefulTimeout == 0 {
		gracefulTimeout = 10 * time.Second
	}

	runningBefore, err := e.listRunningContainers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to list containers: %v", err))
	}
	result.ContainerNames = append(result.ContainerNames, runningBefore...)

	// Phase 1: graceful stop with timeout
	if err := e.stopContainers(ctx, int(gracefulTimeout.Seconds()), runningBefore); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("graceful stop: %v", err))
	}

	runningAfterGraceful, _ := e.listRunningContainers(ctx)
	result.GracefulStopped = len(runningBefore) - len(runningAfterGraceful)

	// Phase 2: force stop if containers remain
	if !opts.SkipForceStop && len(runningAfterGraceful) > 0 {
		if err := e.stopContainers(ctx, 0, runningAfterGraceful); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("force stop: %v", err))
		}
		runningAfterForce, _ := e.listRunningContainers(ctx)
		result.ForceStopped = len(runningAfterGraceful) - len(runningAfterForce)
	}

	result.TotalStopped = result.GracefulStopped + result.ForceStopped

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("stop completed with errors: %v", result.Errors)
	}
	return result, nil
}

// Pull fetches the latest images for all stack services.
func (e *DefaultExecutor) Pull(ctx context.Context) (*Result, error) {
	args := e.buildComposeFileArgs()
	args = append(args, "pull")

	return e.runCompose(ctx, args, nil, e.config.DefaultTimeout)
}

// Logs streams container logs to the provided writer.
func (e *DefaultExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	args := e.buildComposeFileArgs()
	args = append(args, "logs")

	if opts.Follow {
		args = append(args, "-f")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", fmt.Sprintf("%d", opts.Tail))
	}
	if opts.Timestamps {
		args = append(args, "--timestamps")
	}
	if len(opts.Services) > 0 {
		args = append(args, opts.Services...)
	}

	return e.proc.RunStreaming(ctx, e.config.StackDir, w, "docker", append([]string{"compose"}, args...)...)
}

// Status returns the current state of compose services.
func (e *DefaultExecutor) Status(ctx context.Context) (*Status, error) {
	args := []string{
		"ps",
		"-a",
		"--filter", fmt.Sprintf("name=%s", e.config.ContainerNamePrefix),
		"--format", "json",
	}

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to get container status: %w", err)
	}

	return e.parseContainerStatus(output.Stdout)
}

// ForceCleanup removes all stack containers regardless of compose state.
func (e *DefaultExecutor) ForceCleanup(ctx context.Context) (*CleanupResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &CleanupResult{
		ContainerNames: []string{},
		Errors:         []string{},
	}

	// Step 1: force stop everything matching the prefix
	running, err := e.listRunningContainers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list running: %v", err))
	}
	if stopErr := e.stopContainers(ctx, 0, running); stopErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("force stop: %v", stopErr))
	} else {
		result.ContainersStopped = len(running)
	}

	// Step 2: force remove by name filter
	names, err := e.listAllContainers(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list containers: %v", err))
	}
	for _, name := range names {
		if _, rmErr := e.runDocker(ctx, []string{"rm", "-f", name}, 30*time.Second); rmErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", name, rmErr))
			continue
		}
		result.ContainersRemoved++
		result.ContainerNames = append(result.ContainerNames, name)
	}

	if len(result.Errors) > 0 {
		return result, ErrCleanupPartial
	}
	return result, nil
}

// ComposeFiles returns the ordered list of compose files in use.
// The base file is always included; the override file only when present
// on disk.
func (e *DefaultExecutor) ComposeFiles() []string {
	files := []string{filepath.Join(e.config.StackDir, e.config.BaseFile)}

	overridePath := filepath.Join(e.config.StackDir, e.config.OverrideFile)
	if e.fileExists(overridePath) {
		files = append(files, overridePath)
	}

	return files
}

// =============================================================================
// Private Helper Methods
// =============================================================================

// buildComposeFileArgs builds the -p and -f arguments for compose commands.
func (e *DefaultExecutor) buildComposeFileArgs() []string {
	args := []string{"-p", e.config.ProjectName}
	for _, file := range e.ComposeFiles() {
		args = append(args, "-f", file)
	}
	return args
}

// runCompose executes `docker compose` with the given arguments, environment,
// and timeout. Output is captured in memory, so this is not suitable for
// streaming; use proc.RunStreaming for that.
func (e *DefaultExecutor) runCompose(ctx context.Context, args []string, env map[string]string, timeout time.Duration) (*Result, error) {
	start := time.Now()

	cmdEnv := buildCommandEnvironment(env)
	fullArgs := append([]string{"compose"}, args...)
	cmdStr := fmt.Sprintf("docker %s", strings.Join(fullArgs, " "))

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := e.proc.RunInDir(execCtx, e.config.StackDir, cmdEnv, "docker", fullArgs...)

	result := &Result{
		Success:  exitCode == 0 && err == nil,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		return result, fmt.Errorf("compose command failed: %w", err)
	}
	if exitCode != 0 {
		return result, fmt.Errorf("compose command exited with code %d: %s", exitCode, stderr)
	}

	return result, nil
}

// runDocker executes a direct docker command (ps, stop, rm) outside of
// compose file layering.
func (e *DefaultExecutor) runDocker(ctx context.Context, args []string, timeout time.Duration) (*Result, error) {
	start := time.Now()
	cmdStr := fmt.Sprintf("docker %s", strings.Join(args, " "))

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := e.proc.RunInDir(execCtx, "", nil, "docker", args...)

	result := &Result{
		Success:  exitCode == 0 && err == nil,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  cmdStr,
	}

	if err != nil {
		return result, fmt.Errorf("docker command failed: %w", err)
	}
	if exitCode != 0 {
		return result, fmt.Errorf("docker command exited with code %d: %s", exitCode, stderr)
	}

	return result, nil
}

// stopContainers runs `docker stop` on the given container IDs.
// A zero timeout means immediate SIGKILL.
func (e *DefaultExecutor) stopContainers(ctx context.Context, timeoutSecs int, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := []string{"stop", "-t", fmt.Sprintf("%d", timeoutSecs)}
	args = append(args, ids...)

	_, err := e.runDocker(ctx, args, e.config.DefaultTimeout)
	return err
}

// listRunningContainers returns IDs of running containers matching the prefix.
func (e *DefaultExecutor) listRunningContainers(ctx context.Context) ([]string, error) {
	args := []string{
		"ps", "-q",
		"--filter", fmt.Sprintf("name=%s", e.config.ContainerNamePrefix),
		"--filter", "status=running",
	}

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return parseLines(output.Stdout), nil
}

// listAllContainers returns names of all containers matching the prefix,
// regardless of state.
func (e *DefaultExecutor) listAllContainers(ctx context.Context) ([]string, error) {
	args := []string{
		"ps", "-a",
		"--filter", fmt.Sprintf("name=%s", e.config.ContainerNamePrefix),
		"--format", "{{.Names}}",
	}

	output, err := e.runDocker(ctx, args, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return parseLines(output.Stdout), nil
}

// parseContainerStatus parses docker ps JSON output into a Status.
//
// Docker emits one JSON object per line (JSONL), not an array.
// Container names follow the compose pattern prefix-servicename-N.
func (e *DefaultExecutor) parseContainerStatus(jsonOutput string) (*Status, error) {
	status := &Status{Services: []ServiceStatus{}}

	for _, line := range parseLines(jsonOutput) {
		var c struct {
			Names  string `json:"Names"`
			State  string `json:"State"`
			Status string `json:"Status"`
			Image  string `json:"Image"`
			Ports  string `json:"Ports"`
		}
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("failed to parse container JSON: %w", err)
		}

		svc := ServiceStatus{
			Name:          e.extractServiceName(c.Names),
			ContainerName: c.Names,
			State:         c.State,
			Image:         c.Image,
			Healthy:       parseHealthStatus(c.Status),
			Ports:         parsePortMappings(c.Ports),
		}
		status.Services = append(status.Services, svc)

		switch c.State {
		case "running":
			status.Running++
		case "exited", "stopped":
			status.Stopped++
		}
		if svc.Healthy != nil && !*svc.Healthy {
			status.Unhealthy++
		}
	}

	return status, nil
}

// parseHealthStatus extracts health from a status string like
// "Up 2 hours (healthy)". Returns nil when no healthcheck is defined.
func parseHealthStatus(statusStr string) *bool {
	if strings.Contains(statusStr, "unhealthy") {
		healthy := false
		return &healthy
	}
	if strings.Contains(statusStr, "healthy") {
		healthy := true
		return &healthy
	}
	return nil
}

// parsePortMappings parses the docker ps Ports column, e.g.
// "0.0.0.0:8080->8080/tcp, :::8080->8080/tcp".
func parsePortMappings(ports string) []PortMapping {
	out := []PortMapping{}

	for _, entry := range strings.Split(ports, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" || !strings.Contains(entry, "->") {
			continue
		}

		parts := strings.SplitN(entry, "->", 2)
		hostPart := parts[0]
		containerPart := parts[1]

		var m PortMapping
		if idx := strings.LastIndex(hostPart, ":"); idx >= 0 {
			m.HostIP = hostPart[:idx]
			fmt.Sscanf(hostPart[idx+1:], "%d", &m.HostPort)
		}
		if idx := strings.Index(containerPart, "/"); idx >= 0 {
			fmt.Sscanf(containerPart[:idx], "%d", &m.ContainerPort)
			m.Protocol = containerPart[idx+1:]
		}
		out = append(out, m)
	}

	return out
}

// extractServiceName extracts the compose service name from a container
// name like "unison-gateway-1".
func (e *DefaultExecutor) extractServiceName(containerName string) string {
	name := strings.TrimPrefix(containerName, e.config.ContainerNamePrefix)

	parts := strings.Split(name, "-")
	if len(parts) > 1 {
		lastPart := parts[len(parts)-1]
		if _, err := fmt.Sscanf(lastPart, "%d", new(int)); err == nil {
			parts = parts[:len(parts)-1]
		}
	}

	return strings.Join(parts, "-")
}

// validateEnvVars checks environment variable keys against envVarKeyRegex.
func (e *DefaultExecutor) validateEnvVars(env map[string]string) error {
	for key := range env {
		if !envVarKeyRegex.MatchString(key) {
			return fmt.Errorf("%w: key %q", ErrInvalidEnvVar, key)
		}
	}
	return nil
}

// buildCommandEnvironment converts an env map to KEY=VALUE pairs.
func buildCommandEnvironment(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// parseLines splits output into trimmed non-empty lines.
func parseLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// fileExists reports whether path exists via the injected stat function.
func (e *DefaultExecutor) fileExists(path string) bool {
	_, err := e.osStatFunc(path)
	return err == nil
}

// resolveTimeout returns the override if set, else the config default.
func (e *DefaultExecutor) resolveTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return e.config.DefaultTimeout
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockExecutor is a test double for Executor.
//
// Each method delegates to the corresponding Func field when set, otherwise
// returns a benign success value. Call counts are recorded for assertions.
type MockExecutor struct {
	UpFunc           func(ctx context.Context, opts UpOptions) (*Result, error)
	DownFunc         func(ctx context.Context, opts DownOptions) (*Result, error)
	StopFunc         func(ctx context.Context, opts StopOptions) (*StopResult, error)
	PullFunc         func(ctx context.Context) (*Result, error)
	LogsFunc         func(ctx context.Context, opts LogsOptions, w io.Writer) error
	StatusFunc       func(ctx context.Context) (*Status, error)
	ForceCleanupFunc func(ctx context.Context) (*CleanupResult, error)
	ComposeFilesFunc func() []string

	UpCalls           int
	DownCalls         int
	StopCalls         int
	PullCalls         int
	LogsCalls         int
	StatusCalls       int
	ForceCleanupCalls int
}

// Up implements Executor for MockExecutor.
func (m *MockExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	m.UpCalls++
	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Down implements Executor for MockExecutor.
func (m *MockExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	m.DownCalls++
	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Stop implements Executor for MockExecutor.
func (m *MockExecutor) Stop(ctx context.Context, opts StopOptions) (*StopResult, error) {
	m.StopCalls++
	if m.StopFunc != nil {
		return m.StopFunc(ctx, opts)
	}
	return &StopResult{}, nil
}

// Pull implements Executor for MockExecutor.
func (m *MockExecutor) Pull(ctx context.Context) (*Result, error) {
	m.PullCalls++
	if m.PullFunc != nil {
		return m.PullFunc(ctx)
	}
	return &Result{Success: true}, nil
}

// Logs implements Executor for MockExecutor.
func (m *MockExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) error {
	m.LogsCalls++
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, opts, w)
	}
	return nil
}

// Status implements Executor for MockExecutor.
func (m *MockExecutor) Status(ctx context.Context) (*Status, error) {
	m.StatusCalls++
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &Status{}, nil
}

// ForceCleanup implements Executor for MockExecutor.
func (m *MockExecutor) ForceCleanup(ctx context.Context) (*CleanupResult, error) {
	m.ForceCleanupCalls++
	if m.ForceCleanupFunc != nil {
		return m.ForceCleanupFunc(ctx)
	}
	return &CleanupResult{}, nil
}

// ComposeFiles implements Executor for MockExecutor.
func (m *MockExecutor) ComposeFiles() []string {
	if m.ComposeFilesFunc != nil {
		return m.ComposeFilesFunc()
	}
	return nil
}

var _ Executor = (*DefaultExecutor)(nil)
var _ Executor = (*MockExecutor)(nil)
