// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is the loaded configuration singleton.
	Global ValgenConfig
	once   sync.Once
)

// Load reads the config into Global, creating a default file on first run.
// Subsequent calls are no-ops.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal(defaultPath())
	})
	return err
}

func defaultPath() string {
	if p := os.Getenv("KODIAK_VALGEN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "valgen.yaml"
	}
	return filepath.Join(home, ".kodiak", "valgen.yaml")
}

func loadInternal(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", configPath)
		if err := createDefault(configPath); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read the config file: %w", err)
	}

	Global = DefaultConfig()
	if err = yaml.Unmarshal(data, &Global); err != nil {
		return fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err = Global.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
