// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	forceBuild    bool
	noWait        bool
	jsonOutput    bool
	compactOutput bool
	quietOutput   bool
	followLogs    bool
	tailLines     int
	stopTimeout   time.Duration
	removeVolumes bool
	parallelism   int
	tokenUser     string
	tokenRole     string
	tokenTTL      time.Duration

	rootCmd = &cobra.Command{
		Use:   "devstack",
		Short: "A cli to manage the local Unison development stack",
		Long: `Devstack brings up the Unison service stack on your machine,
				waits for every service to report healthy, and validates the
				security posture of the running stack.`,
	}

	// --- Stack Management ---
	stackCmd = &cobra.Command{
		Use:   "stack",
		Short: "Manage the local Unison services on your machine",
	}
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start all local Unison services in dependency order",
		Run:   runStart, // Defined in cmd_stack.go
	}
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop all local Unison services",
		Run:   runStop, // Defined in cmd_stack.go
	}
	restartCmd = &cobra.Command{
		Use:   "restart",
		Short: "Stop and start all local Unison services",
		Run:   runRestart, // Defined in cmd_stack.go
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show state and health of running services",
		Run:   runStatus, // Defined in cmd_stack.go
	}
	logsCmd = &cobra.Command{
		Use:   "logs [service_name]",
		Short: "Stream logs from a local service container",
		Run:   runLogs, // Defined in cmd_stack.go
	}
	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Pull the latest service images",
		Run:   runUpdate, // Defined in cmd_stack.go
	}
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Force-remove stack containers that normal teardown missed",
		Run:   runClean, // Defined in cmd_stack.go
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "DANGER: Stops and deletes all local containers AND data",
		Run:   runDestroy, // Defined in cmd_stack.go
	}

	// --- Validation ---
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Run the security validation suite against the running stack",
		Run:   runValidate, // Defined in cmd_validate.go
	}

	// --- Utilities ---
	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Generate a signed test JWT for the local auth service",
		Run:   runToken, // Defined in cmd_token.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&compactOutput, "compact", false, "Compact JSON output, no indentation")
	rootCmd.PersistentFlags().BoolVarP(&quietOutput, "quiet", "q", false, "Suppress output, exit code only")

	rootCmd.AddCommand(stackCmd)
	stackCmd.AddCommand(startCmd)
	stackCmd.AddCommand(stopCmd)
	stackCmd.AddCommand(restartCmd)
	stackCmd.AddCommand(statusCmd)
	stackCmd.AddCommand(logsCmd)
	stackCmd.AddCommand(updateCmd)
	stackCmd.AddCommand(cleanCmd)
	stackCmd.AddCommand(destroyCmd)
	startCmd.Flags().BoolVar(&forceBuild, "build", false, "Force rebuild of container images")
	startCmd.Flags().BoolVar(&noWait, "no-wait", false, "Launch services without waiting for readiness")
	restartCmd.Flags().BoolVar(&forceBuild, "build", false, "Force rebuild of container images")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "Graceful shutdown window before force stop")
	logsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false, "Stream logs continuously")
	logsCmd.Flags().IntVar(&tailLines, "tail", 0, "Limit output to the last N lines per container")
	destroyCmd.Flags().BoolVar(&removeVolumes, "volumes", true, "Also remove named volumes")

	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&parallelism, "parallel", 1, "Run up to N checks concurrently (1 = sequential)")

	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "Subject claim (default: configured test user)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "Role claim (user or admin)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}
