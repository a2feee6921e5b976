// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the valgen server configuration from
// ~/.kodiak/valgen.yaml, creating a commented default on first run.
// Command-line flags override the file.
package config

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// ValgenConfig is the on-disk server configuration.
type ValgenConfig struct {
	Server  ServerConfig  `yaml:"server" validate:"required"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port int    `yaml:"port" validate:"gte=1,lte=65535"`
	Seed uint64 `yaml:"seed"`
}

type JournalConfig struct {
	// Path is the BadgerDB directory for the execution tree journal.
	// Empty disables persistence.
	Path string `yaml:"path"`

	// AllowDegraded lets the server start when the journal cannot be
	// opened, running in-memory only.
	AllowDegraded bool `yaml:"allow_degraded"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir receives per-day JSON log files when set.
	Dir string `yaml:"dir"`
}

var configValidate = validator.New()

// Validate checks the loaded configuration.
func (c *ValgenConfig) Validate() error {
	return configValidate.Struct(c)
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() ValgenConfig {
	journalPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		journalPath = filepath.Join(home, ".kodiak", "valgen", "journal")
	}
	return ValgenConfig{
		Server: ServerConfig{
			Port: 8080,
			Seed: 1,
		},
		Journal: JournalConfig{
			Path:          journalPath,
			AllowDegraded: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
