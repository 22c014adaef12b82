// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/unisonhq/unison-devstack/cmd/devstack/config"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/diagnostics"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/validate"
	"github.com/unisonhq/unison-devstack/pkg/ux"
)

// ValidationOutput is the JSON payload of a validate run.
type ValidationOutput struct {
	RunID  string           `json:"run_id"`
	Report *validate.Report `json:"report"`
}

// buildChecks assembles the full security suite. Order is stable so
// reports from successive runs diff cleanly.
func buildChecks(rctx *validate.Context) []validate.Check {
	var checks []validate.Check

	for _, svc := range config.Global.Services {
		checks = append(checks, validate.NewEndpointReachable(svc.Name, config.ServiceURL(svc.Name, svc.URL)))
	}
	for _, plugin := range config.Global.Validation.RequiredPlugins {
		checks = append(checks, validate.NewGatewayPlugin(plugin))
	}
	checks = append(checks,
		validate.NewAuthToken(),
		validate.NewTokenVerify(),
		validate.NewAuthRequired(),
		validate.NewAuthedEvent(),
		validate.NewInputSanitized(),
		validate.NewRateLimit(0),
		validate.NewSecretStrength(),
		validate.NewInternalIsolated(),
		validate.NewSecurityHeaders(""),
	)
	return checks
}

func validationContext() *validate.Context {
	eps := config.ResolveEndpoints()
	creds := config.ResolveCredentials()

	rctx := validate.NewContext()
	rctx.AuthURL = eps.AuthURL
	rctx.APIURL = eps.APIURL
	rctx.GatewayURL = eps.GatewayURL
	rctx.AdminURL = eps.AdminURL
	rctx.InternalEndpoints = config.Global.Validation.InternalEndpoints
	rctx.Username = creds.Username
	rctx.Password = creds.Password
	rctx.AuthSecret = creds.AuthSecret
	return rctx
}

func runValidate(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()
	cfg := outputConfig()

	tracer := diagnostics.NewDefaultTracer(ctx, "devstack")
	defer tracer.Shutdown(ctx)

	rctx := validationContext()
	checks := buildChecks(rctx)

	runID := uuid.NewString()
	ux.Title("Unison security validation")
	ux.Muted("run " + runID)

	harness := validate.NewHarness(
		validate.WithTracer(tracer),
		validate.WithParallelism(parallelism),
	)
	report := harness.Run(ctx, checks, rctx)

	printReport(report)

	hasFindings := report.ExitStatus() != 0
	code := OutputResult(cfg, "validate", start, &ValidationOutput{RunID: runID, Report: report}, hasFindings, nil)
	os.Exit(code)
}

func printReport(report *validate.Report) {
	cfg := outputConfig()
	if cfg.JSON || cfg.Quiet {
		return
	}

	for _, res := range report.Results {
		var icon ux.Icon
		switch res.Status {
		case validate.StatusPass:
			icon = ux.IconSuccess
		case validate.StatusWarn:
			icon = ux.IconWarning
		default:
			icon = ux.IconError
			if res.Severity == validate.SeverityWarning {
				icon = ux.IconWarning
			}
		}
		ux.StatusLine(res.CheckID, icon, res.Detail)
	}

	passed, failed, warned := report.Counts()
	ux.CheckSummary(passed, failed, warned)
	ux.Muted(fmt.Sprintf("completed in %s", report.Duration.Round(time.Millisecond)))
}
