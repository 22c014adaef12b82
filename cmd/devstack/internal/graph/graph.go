// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package graph models the service dependency graph of the development stack.

A Graph is built once per run from configuration and validated up front:
duplicate names, unknown dependency references, and dependency cycles are
all rejected before any container is started. Ordering is deterministic
for a given declaration order, so repeated runs of the same configuration
always start services in the same sequence.
*/
package graph

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrInvalidServiceName is returned when a service name fails validation.
	ErrInvalidServiceName = errors.New("invalid service name")

	// ErrDuplicateService is returned when two services share a name.
	ErrDuplicateService = errors.New("duplicate service name")

	// ErrUnknownDependency is returned when depends_on references a name
	// that is not declared in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrDependencyCycle is returned when the dependency graph contains
	// a cycle and no valid start order exists.
	ErrDependencyCycle = errors.New("dependency cycle")

	// ErrServiceNotFound is returned when a lookup names an undeclared service.
	ErrServiceNotFound = errors.New("service not found")
)

// serviceNamePattern validates service names: lowercase alphanumeric
// with hyphens and underscores, starting with an alphanumeric.
// This matches compose service naming and prevents injection through
// crafted names reaching the container runtime.
var serviceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ConfigError wraps a graph validation failure. It always wraps one of
// the sentinel errors above, so callers can use errors.Is for both the
// broad category (any ConfigError) and the specific cause.
type ConfigError struct {
	// Service is the name of the offending service, when known.
	Service string

	// Cause is the underlying sentinel error.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("service graph: %v", e.Cause)
	}
	return fmt.Sprintf("service graph: %s: %v", e.Service, e.Cause)
}

// Unwrap exposes the sentinel cause for errors.Is.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// Types
// =============================================================================

// Service describes one member of the stack.
type Service struct {
	// Name is the unique service identifier, e.g. "auth" or "io-core".
	Name string `yaml:"name"`

	// URL is the readiness endpoint polled during bring-up,
	// e.g. "http://localhost:8089/health".
	URL string `yaml:"url"`

	// Container is the container name managed by the runtime.
	// Defaults to "unison-<name>" when empty.
	Container string `yaml:"container,omitempty"`

	// DependsOn lists services that must be ready before this one starts.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Critical marks services whose readiness failure should be treated
	// as an error rather than a warning in validation reports.
	Critical bool `yaml:"critical,omitempty"`
}

// Graph is a validated, immutable service dependency graph.
//
// # Thread Safety
//
// Graph is read-only after construction and safe for concurrent use.
type Graph struct {
	services []Service
	index    map[string]int
}

// =============================================================================
// Construction
// =============================================================================

// New builds a Graph from the given services in declaration order.
//
// # Description
//
// Validates service names, uniqueness, and dependency references.
// Cycle detection happens in TopologicalOrder; everything else is
// rejected here so a malformed configuration fails before any
// container runtime command is issued.
//
// # Inputs
//
//   - services: Services in declaration order (order is significant,
//     it breaks ties during topological sorting)
//
// # Outputs
//
//   - *Graph: Validated graph
//   - error: *ConfigError wrapping ErrInvalidServiceName,
//     ErrDuplicateService, or ErrUnknownDependency
func New(services []Service) (*Graph, error) {
	index := make(map[string]int, len(services))

	for i, svc := range services {
		if !serviceNamePattern.MatchString(svc.Name) {
			return nil, &ConfigError{Service: svc.Name, Cause: ErrInvalidServiceName}
		}
		if _, exists := index[svc.Name]; exists {
			return nil, &ConfigError{Service: svc.Name, Cause: ErrDuplicateService}
		}
		index[svc.Name] = i
	}

	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, &ConfigError{
					Service: svc.Name,
					Cause:   fmt.Errorf("%w: %q", ErrUnknownDependency, dep),
				}
			}
			if dep == svc.Name {
				return nil, &ConfigError{Service: svc.Name, Cause: ErrDependencyCycle}
			}
		}
	}

	g := &Graph{
		services: make([]Service, len(services)),
		index:    index,
	}
	copy(g.services, services)
	return g, nil
}

// =============================================================================
// Queries
// =============================================================================

// Services returns all services in declaration order.
func (g *Graph) Services() []Service {
	out := make([]Service, len(g.services))
	copy(out, g.services)
	return out
}

// Lookup returns the service with the given name.
func (g *Graph) Lookup(name string) (Service, error) {
	i, ok := g.index[name]
	if !ok {
		return Service{}, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	return g.services[i], nil
}

// TopologicalOrder returns services in a valid start order.
//
// # Description
//
// Kahn's algorithm over the dependency edges. When several services are
// simultaneously startable, declaration order breaks the tie, so the
// result is fully deterministic for a given configuration.
//
// # Outputs
//
//   - []Service: Services ordered so every dependency precedes its dependents
//   - error: *ConfigError wrapping ErrDependencyCycle if no order exists;
//     no partial order is returned
func (g *Graph) TopologicalOrder() ([]Service, error) {
	n := len(g.services)
	indegree := make([]int, n)
	dependents := make([][]int, n)

	for i, svc := range g.services {
		for _, dep := range svc.DependsOn {
			j := g.index[dep]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	order := make([]Service, 0, n)
	placed := make([]bool, n)

	for len(order) < n {
		// Lowest declaration index among startable services wins the tie.
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			remaining := []string{}
			for i := 0; i < n; i++ {
				if !placed[i] {
					remaining = append(remaining, g.services[i].Name)
				}
			}
			return nil, &ConfigError{
				Cause: fmt.Errorf("%w involving %s", ErrDependencyCycle, strings.Join(remaining, ", ")),
			}
		}

		placed[next] = true
		order = append(order, g.services[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}

	return order, nil
}

// Dependents returns the names of all services that transitively depend
// on the given service, in declaration order. Used for cascade-skip when
// a service fails to become ready.
func (g *Graph) Dependents(name string) ([]string, error) {
	if _, ok := g.index[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}

	// Direct dependent edges.
	direct := make(map[string][]string, len(g.services))
	for _, svc := range g.services {
		for _, dep := range svc.DependsOn {
			direct[dep] = append(direct[dep], svc.Name)
		}
	}

	seen := map[string]bool{}
	stack := []string{name}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range direct[cur] {
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}

	out := []string{}
	for _, svc := range g.services {
		if seen[svc.Name] {
			out = append(out, svc.Name)
		}
	}
	return out, nil
}

// Len returns the number of services in the graph.
func (g *Graph) Len() int {
	return len(g.services)
}
