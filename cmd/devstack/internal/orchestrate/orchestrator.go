// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package orchestrate drives stack bring-up in dependency order.

The Orchestrator walks a validated service graph, starts each service
through the Runtime, and confirms readiness with a health poller before
starting anything that depends on it. A service that never becomes ready
poisons its transitive dependents: they are skipped outright, never
started, so the summary is not polluted with cascading failures against
a known-bad dependency. Already-started services are left running on a
later failure for inspection.
*/
package orchestrate

import (
	"context"

	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/graph"
	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/health"
	"github.com/unisonhq/unison-devstack/pkg/logging"
)

// Runtime starts services. The production implementation shells out to
// the container runtime via the compose executor; tests use a mock.
type Runtime interface {
	// Start issues the start command for one service and returns when
	// the runtime accepts it. Readiness is confirmed separately.
	Start(ctx context.Context, svc graph.Service) error
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, svc graph.Service) error

// Start implements Runtime.
func (f RuntimeFunc) Start(ctx context.Context, svc graph.Service) error {
	return f(ctx, svc)
}

// Waiter confirms a started service is serving its readiness endpoint.
// *health.Poller is the production implementation.
type Waiter interface {
	Wait(ctx context.Context, service, endpoint string) health.PollOutcome
}

// Summary is the immutable outcome of one bring-up run.
type Summary struct {
	// Ready lists services that started and became ready, in start order.
	Ready []string `json:"ready"`

	// Failed lists services that were started but never became ready,
	// or whose start command itself failed.
	Failed []string `json:"failed"`

	// Skipped lists services never attempted because a dependency failed.
	Skipped []string `json:"skipped"`

	// Outcomes holds the per-service poll records, in start order.
	Outcomes []health.PollOutcome `json:"outcomes"`
}

// AllReady reports whether every service in the graph became ready.
func (s *Summary) AllReady() bool {
	return len(s.Failed) == 0 && len(s.Skipped) == 0
}

// Orchestrator brings up a service graph.
type Orchestrator struct {
	runtime Runtime
	waiter  Waiter
	logger  *logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(runtime Runtime, waiter Waiter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runtime: runtime,
		waiter:  waiter,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BringUp starts every service in the graph in dependency order.
//
// # Description
//
// Computes the topological order, then for each service: start, poll
// readiness, proceed. A readiness timeout (or start failure) marks the
// service failed and transitively skips its dependents; independent
// branches continue. The orchestrator never rolls back started services.
//
// # Inputs
//
//   - ctx: Cancellation propagates into in-flight polls; on cancel the
//     summary covers work done so far and ctx.Err() is returned
//   - g: Validated service graph
//
// # Outputs
//
//   - *Summary: Always non-nil once ordering succeeds, even when some
//     services fail; the caller decides whether to proceed to validation
//   - error: Graph ordering failure (configuration error, nothing was
//     started) or context cancellation
func (o *Orchestrator) BringUp(ctx context.Context, g *graph.Graph) (*Summary, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Ready:   []string{},
		Failed:  []string{},
		Skipped: []string{},
	}
	skip := map[string]bool{}

	for _, svc := range order {
		if ctx.Err() != nil {
			summary.Skipped = append(summary.Skipped, svc.Name)
			continue
		}
		if skip[svc.Name] {
			o.logger.Warn("skipping service, dependency failed", "service", svc.Name)
			summary.Skipped = append(summary.Skipped, svc.Name)
			continue
		}

		o.logger.Info("starting service", "service", svc.Name)
		if err := o.runtime.Start(ctx, svc); err != nil {
			o.logger.Error("service start failed", "service", svc.Name, "error", err)
			summary.Failed = append(summary.Failed, svc.Name)
			o.poisonDependents(g, svc.Name, skip)
			continue
		}

		outcome := o.waiter.Wait(ctx, svc.Name, svc.URL)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if outcome.Result != health.Ready {
			o.logger.Error("service never became ready",
				"service", svc.Name,
				"attempts", outcome.Attempts,
				"elapsed", outcome.Elapsed)
			summary.Failed = append(summary.Failed, svc.Name)
			o.poisonDependents(g, svc.Name, skip)
			continue
		}

		o.logger.Info("service ready",
			"service", svc.Name,
			"attempts", outcome.Attempts,
			"elapsed", outcome.Elapsed)
		summary.Ready = append(summary.Ready, svc.Name)
	}

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	return summary, nil
}

// poisonDependents marks every transitive dependent of name for skipping.
func (o *Orchestrator) poisonDependents(g *graph.Graph, name string, skip map[string]bool) {
	deps, err := g.Dependents(name)
	if err != nil {
		return
	}
	for _, d := range deps {
		skip[d] = true
	}
}
