// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/unisonhq/unison-devstack/cmd/devstack/config"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/diagnostics"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/graph"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/health"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/infra/compose"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/infra/process"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/orchestrate"
	"github.com/unisonhq/unison-devstack/pkg/ux"
)

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// stackExecutor builds the compose executor from the loaded config.
func stackExecutor() (compose.Executor, error) {
	cfg := config.Global
	return compose.NewDefaultExecutor(compose.Config{
		StackDir:            filepath.Join(expandHome(cfg.Stack.Dir), "stack"),
		ProjectName:         cfg.Stack.ProjectName,
		ContainerNamePrefix: cfg.Stack.ContainerPrefix,
	}, process.NewDefaultManager())
}

// buildGraph assembles the service graph from the manifest, applying
// per-service UNISON_<NAME>_URL readiness overrides.
func buildGraph() (*graph.Graph, error) {
	services := make([]graph.Service, len(config.Global.Services))
	copy(services, config.Global.Services)
	for i := range services {
		services[i].URL = config.ServiceURL(services[i].Name, services[i].URL)
	}
	return graph.New(services)
}

// composeRuntime adapts the compose executor to the orchestrator's
// start interface, one service per Up call so dependency order holds.
func composeRuntime(execr compose.Executor) orchestrate.Runtime {
	return orchestrate.RuntimeFunc(func(ctx context.Context, svc graph.Service) error {
		_, err := execr.Up(ctx, compose.UpOptions{
			Services:   []string{svc.Name},
			ForceBuild: forceBuild,
		})
		return err
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func confirm(prompt string) bool {
	fmt.Printf("%s (yes/no): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "yes" || input == "y"
}

func runStart(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	code := startStack(ctx)
	cancel()
	os.Exit(code)
}

func startStack(ctx context.Context) int {
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		return OutputResult(cfg, "stack start", start, nil, false, err)
	}
	g, err := buildGraph()
	if err != nil {
		return OutputResult(cfg, "stack start", start, nil, false, err)
	}

	ux.Title("Starting Unison dev stack")

	if noWait {
		if _, err := execr.Up(ctx, compose.UpOptions{ForceBuild: forceBuild, RemoveOrphans: true}); err != nil {
			return OutputResult(cfg, "stack start", start, nil, false, err)
		}
		ux.Success("Services launched, readiness checks skipped")
		return OutputResult(cfg, "stack start", start, nil, false, nil)
	}

	bring := config.Global.Bringup
	poller := health.NewPoller(
		health.NewHTTPProbe(nil, 0),
		time.Duration(bring.IntervalSeconds)*time.Second,
		time.Duration(bring.TimeoutSeconds)*time.Second,
	)
	orch := orchestrate.New(composeRuntime(execr), poller)

	tracer := diagnostics.NewDefaultTracer(ctx, "devstack")
	defer tracer.Shutdown(ctx)
	spanCtx, end := tracer.StartSpan(ctx, "stack.bringup", map[string]string{
		"services": fmt.Sprintf("%d", g.Len()),
	})

	summary, err := orch.BringUp(spanCtx, g)
	end(err)
	if summary == nil {
		return OutputResult(cfg, "stack start", start, nil, false, err)
	}

	printBringup(summary)

	code := OutputResult(cfg, "stack start", start, summary, !summary.AllReady(), err)
	if code != CLIExitError && criticalFailure(g, summary) {
		// A critical service down means the stack is unusable, not
		// merely degraded.
		code = CLIExitError
	}
	return code
}

func printBringup(summary *orchestrate.Summary) {
	if outputConfig().JSON || outputConfig().Quiet {
		return
	}
	failed := make(map[string]bool, len(summary.Failed))
	for _, name := range summary.Failed {
		failed[name] = true
	}
	for _, outcome := range summary.Outcomes {
		icon := ux.IconSuccess
		if failed[outcome.Service] {
			icon = ux.IconError
		}
		detail := fmt.Sprintf("%d attempts, %s", outcome.Attempts, outcome.Elapsed.Round(time.Millisecond))
		ux.StatusLine(outcome.Service, icon, detail)
	}
	for _, name := range summary.Skipped {
		ux.StatusLine(name, ux.IconSkipped, "skipped, dependency failed")
	}
	ux.BringupSummary(len(summary.Ready), len(summary.Failed), len(summary.Skipped))
}

func criticalFailure(g *graph.Graph, summary *orchestrate.Summary) bool {
	for _, name := range append(append([]string{}, summary.Failed...), summary.Skipped...) {
		if svc, err := g.Lookup(name); err == nil && svc.Critical {
			return true
		}
	}
	return false
}

func runStop(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack stop", start, nil, false, err))
	}

	ux.Title("Stopping Unison dev stack")
	res, err := execr.Stop(ctx, compose.StopOptions{GracefulTimeout: stopTimeout})
	if err != nil {
		os.Exit(OutputResult(cfg, "stack stop", start, nil, false, err))
	}

	if res.TotalStopped == 0 {
		ux.Info("No running stack containers found")
	} else {
		ux.Success(fmt.Sprintf("Stopped %d containers (%d graceful, %d forced)",
			res.TotalStopped, res.GracefulStopped, res.ForceStopped))
	}
	os.Exit(OutputResult(cfg, "stack stop", start, res, len(res.Errors) > 0, nil))
}

func runRestart(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	cfg := outputConfig()
	start := time.Now()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack restart", start, nil, false, err))
	}
	if _, err := execr.Stop(ctx, compose.StopOptions{GracefulTimeout: stopTimeout}); err != nil {
		os.Exit(OutputResult(cfg, "stack restart", start, nil, false, err))
	}

	os.Exit(startStack(ctx))
}

// StatusReport combines container state with readiness probe results.
type StatusReport struct {
	Containers *compose.Status    `json:"containers"`
	Readiness  []ServiceReadiness `json:"readiness"`
}

// ServiceReadiness is the outcome of one probe against a manifest
// service's readiness endpoint.
type ServiceReadiness struct {
	Service string `json:"service"`
	Ready   bool   `json:"ready"`
	Detail  string `json:"detail"`
}

// probeReadiness issues a single probe per manifest service, in
// manifest order. Container state alone cannot answer readiness when
// a service defines no healthcheck, so status always asks the
// endpoints directly.
func probeReadiness(ctx context.Context, g *graph.Graph, prober health.Prober) []ServiceReadiness {
	results := make([]ServiceReadiness, 0, g.Len())
	for _, svc := range g.Services() {
		outcome := prober.Probe(ctx, svc.URL)
		detail := outcome.Status.String()
		if outcome.Code != 0 {
			detail = fmt.Sprintf("%s (%d)", detail, outcome.Code)
		}
		results = append(results, ServiceReadiness{
			Service: svc.Name,
			Ready:   outcome.Ready(),
			Detail:  detail,
		})
	}
	return results
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack status", start, nil, false, err))
	}

	status, err := execr.Status(ctx)
	if err != nil {
		os.Exit(OutputResult(cfg, "stack status", start, nil, false, err))
	}

	g, err := buildGraph()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack status", start, nil, false, err))
	}
	readiness := probeReadiness(ctx, g, health.NewHTTPProbe(nil, 0))

	notReady := 0
	for _, r := range readiness {
		if !r.Ready {
			notReady++
		}
	}

	if !cfg.JSON && !cfg.Quiet {
		ux.Title("Unison dev stack status")
		if len(status.Services) == 0 {
			ux.Info("No stack containers found")
		}
		for _, svc := range status.Services {
			ux.StatusLine(svc.Name, statusIcon(svc), statusDetail(svc))
		}
		ux.Muted(fmt.Sprintf("%d running, %d stopped, %d unhealthy",
			status.Running, status.Stopped, status.Unhealthy))

		ux.Title("Service readiness")
		for _, r := range readiness {
			icon := ux.IconSuccess
			if !r.Ready {
				icon = ux.IconError
			}
			ux.StatusLine(r.Service, icon, r.Detail)
		}
		ux.Muted(fmt.Sprintf("%d/%d ready", len(readiness)-notReady, len(readiness)))
	}

	report := &StatusReport{Containers: status, Readiness: readiness}
	os.Exit(OutputResult(cfg, "stack status", start, report, status.Unhealthy > 0 || notReady > 0, nil))
}

func statusIcon(svc compose.ServiceStatus) ux.Icon {
	if svc.State != "running" {
		return ux.IconPending
	}
	if svc.Healthy != nil && !*svc.Healthy {
		return ux.IconError
	}
	return ux.IconSuccess
}

func statusDetail(svc compose.ServiceStatus) string {
	parts := []string{svc.State}
	if svc.Healthy != nil {
		if *svc.Healthy {
			parts = append(parts, "healthy")
		} else {
			parts = append(parts, "unhealthy")
		}
	}
	for _, p := range svc.Ports {
		parts = append(parts, fmt.Sprintf("%d->%d/%s", p.HostPort, p.ContainerPort, p.Protocol))
	}
	return strings.Join(parts, ", ")
}

func runLogs(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	execr, err := stackExecutor()
	if err != nil {
		OutputError(jsonOutput, "Cannot build compose executor", err)
		os.Exit(CLIExitError)
	}

	if len(args) > 0 {
		ux.Info("Streaming logs for " + strings.Join(args, " "))
	} else {
		ux.Info("Streaming logs for all services")
	}

	opts := compose.LogsOptions{Follow: followLogs, Services: args, Tail: tailLines}
	if err := execr.Logs(ctx, opts, os.Stdout); err != nil {
		OutputError(jsonOutput, "Log streaming failed", err)
		os.Exit(CLIExitError)
	}
}

func runUpdate(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack update", start, nil, false, err))
	}

	ux.Title("Pulling latest service images")
	res, err := pullAndRecreate(ctx, execr)
	if err != nil {
		os.Exit(OutputResult(cfg, "stack update", start, nil, false, err))
	}
	ux.Success("Images pulled and services recreated with the new versions")
	os.Exit(OutputResult(cfg, "stack update", start, res, false, nil))
}

// pullAndRecreate fetches newer images and restarts the stack on top of
// them. Compose only swaps containers whose image actually changed, so an
// up-to-date stack is left untouched.
func pullAndRecreate(ctx context.Context, execr compose.Executor) (*compose.Result, error) {
	if _, err := execr.Pull(ctx); err != nil {
		return nil, err
	}
	return execr.Up(ctx, compose.UpOptions{RemoveOrphans: true})
}

func runClean(cmd *cobra.Command, args []string) {
	if !confirm("This force-removes every stack container, running or not. Continue?") {
		fmt.Println("Aborted. No changes were made")
		return
	}

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack clean", start, nil, false, err))
	}

	res, err := execr.ForceCleanup(ctx)
	if res != nil {
		ux.Success(fmt.Sprintf("Removed %d containers (%d force-stopped)",
			res.ContainersRemoved, res.ContainersStopped))
		for _, msg := range res.Errors {
			ux.Warning(msg)
		}
	}
	os.Exit(OutputResult(cfg, "stack clean", start, res, res != nil && len(res.Errors) > 0, err))
}

func runDestroy(cmd *cobra.Command, args []string) {
	fmt.Println("WARNING: You are about to permanently delete all local containers" +
		" and data associated with the Unison dev stack, including any database" +
		" volumes. Back up anything you want to keep before continuing.")
	if !confirm("Are you sure you want to continue?") {
		fmt.Println("Aborted. No changes were made")
		return
	}

	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	execr, err := stackExecutor()
	if err != nil {
		os.Exit(OutputResult(cfg, "stack destroy", start, nil, false, err))
	}

	res, err := execr.Down(ctx, compose.DownOptions{
		RemoveVolumes: removeVolumes,
		RemoveOrphans: true,
	})
	if err != nil {
		os.Exit(OutputResult(cfg, "stack destroy", start, nil, false, err))
	}
	ux.Success("Local Unison stack and data destroyed")
	os.Exit(OutputResult(cfg, "stack destroy", start, res, false, nil))
}
