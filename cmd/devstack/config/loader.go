// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the devstack configuration file, creating a
// default one under ~/.unison on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Global holds the loaded configuration. Call Load before reading it.
var Global DevstackConfig

var once sync.Once

// Load reads ~/.unison/devstack.yaml into Global, writing a default
// config file first if none exists. Safe to call more than once; only
// the first call does work.
func Load() error {
	var loadErr error
	once.Do(func() {
		loadErr = loadInternal()
	})
	return loadErr
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	configPath := filepath.Join(home, ".unison", "devstack.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf(" First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("cannot read config %s: %w", configPath, err)
	}

	var cfg DevstackConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("cannot parse config %s: %w", configPath, err)
	}

	Global = cfg
	return nil
}

func createDefault(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("cannot serialize default config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("cannot write default config: %w", err)
	}

	return nil
}
