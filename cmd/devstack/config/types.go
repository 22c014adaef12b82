// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"

	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/graph"
)

// CurrentConfigVersion is written into newly created config files.
const CurrentConfigVersion = "1"

type DevstackConfig struct {
	// Meta: config file bookkeeping
	Meta MetaConfig `yaml:"meta"`

	// Stack: where compose files live and how containers are named
	Stack StackConfig `yaml:"stack"`

	// Bringup: readiness polling policy
	Bringup BringupConfig `yaml:"bringup"`

	// Logging: console level and optional file logging
	Logging LoggingConfig `yaml:"logging"`

	// Services: the dependency-ordered service manifest
	Services []graph.Service `yaml:"services"`

	// Validation: knobs for the security check suite
	Validation ValidationConfig `yaml:"validation"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type StackConfig struct {
	Dir             string `yaml:"dir"`              // e.g. ~/.unison
	ProjectName     string `yaml:"project_name"`     // e.g. unison
	ContainerPrefix string `yaml:"container_prefix"` // e.g. unison-
}

type BringupConfig struct {
	// IntervalSeconds is the fixed delay between readiness probes.
	IntervalSeconds int `yaml:"interval_seconds"`

	// TimeoutSeconds is the per-service readiness budget.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir enables JSON file logging when non-empty.
	Dir string `yaml:"dir"`
}

type ValidationConfig struct {
	// InternalEndpoints must not answer from the public interface.
	InternalEndpoints []string `yaml:"internal_endpoints"`

	// RequiredPlugins are asserted present on the gateway admin API.
	RequiredPlugins []string `yaml:"required_plugins"`
}

// DefaultConfig returns the configuration written on first run.
//
// The service manifest mirrors the stack's compose file: ports and
// dependency edges match what the containers actually expose locally.
func DefaultConfig() DevstackConfig {
	stackDir := "~/.unison"
	if home, err := os.UserHomeDir(); err == nil {
		stackDir = filepath.Join(home, ".unison")
	}

	return DevstackConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Stack: StackConfig{
			Dir:             stackDir,
			ProjectName:     "unison",
			ContainerPrefix: "unison-",
		},
		Bringup: BringupConfig{
			IntervalSeconds: 1,
			TimeoutSeconds:  20,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.unison/logs",
		},
		Services: []graph.Service{
			{Name: "context", URL: "http://localhost:8081/health"},
			{Name: "policy", URL: "http://localhost:8083/health", DependsOn: []string{"context"}},
			{Name: "auth", URL: "http://localhost:8089/health", Critical: true},
			{Name: "orchestrator", URL: "http://localhost:8080/health", DependsOn: []string{"context", "policy"}, Critical: true},
			{Name: "io-core", URL: "http://localhost:8085/health", DependsOn: []string{"orchestrator", "auth"}, Critical: true},
			{Name: "actuation", URL: "http://localhost:8096/health", DependsOn: []string{"orchestrator"}},
			{Name: "ingest", URL: "http://localhost:8090/health", DependsOn: []string{"io-core"}},
			{Name: "vpn", URL: "http://localhost:8094/health"},
			{Name: "vdi", URL: "http://localhost:8093/health", DependsOn: []string{"vpn"}},
			{Name: "gateway", URL: "http://localhost:8001/status", DependsOn: []string{"auth", "io-core"}, Critical: true},
		},
		Validation: ValidationConfig{
			InternalEndpoints: []string{
				"http://localhost:8081/kv",
				"http://localhost:8083/admin",
			},
			RequiredPlugins: []string{"jwt", "rate-limiting", "cors"},
		},
	}
}
