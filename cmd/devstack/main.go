// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/unisonhq/unison-devstack/cmd/devstack/config"
	"github.com/unisonhq/unison-devstack/pkg/logging"
	"github.com/unisonhq/unison-devstack/pkg/ux"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(CLIExitError)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if jsonOutput || quietOutput {
			ux.SetPlain(true)
		}
		if err := config.Load(); err != nil {
			return err
		}
		logging.SetDefault(logging.New(logging.Config{
			Level:  logging.ParseLevel(config.Global.Logging.Level),
			LogDir: config.Global.Logging.Dir,
		}))
		return nil
	}
}
