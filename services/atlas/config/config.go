// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the Atlas service.
//
// Configuration comes from a YAML file, overridable by environment
// variables for the deployment-specific fields. Per-workspace profiles
// tune traversal budgets and rollup base weights without redeploying.
//
// Thread Safety:
//
//	All exported functions and types are safe for concurrent use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

// MaxYAMLFileSize is the maximum allowed config file size (1MB).
// Prevents memory issues from accidentally pointing at a large file.
const MaxYAMLFileSize = 1024 * 1024

// Environment variable overrides.
const (
	EnvAddr     = "ATLAS_ADDR"
	EnvDataDir  = "ATLAS_DATA_DIR"
	EnvLogLevel = "ATLAS_LOG_LEVEL"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address (":8080").
	Addr string `yaml:"addr"`

	// ShutdownGrace bounds graceful shutdown on SIGTERM.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// RateRPS and RateBurst configure the per-client rate limiter.
	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`
}

// StorageConfig configures the BadgerDB store.
type StorageConfig struct {
	// Path is the on-disk data directory. Ignored when InMemory is set.
	Path string `yaml:"path"`

	// InMemory runs the store without persistence (tests, demos).
	InMemory bool `yaml:"in_memory"`

	// SyncWrites makes every commit fsync before returning.
	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is the value-log garbage collection cadence.
	GCInterval time.Duration `yaml:"gc_interval"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir enables JSON file logging when non-empty.
	Dir string `yaml:"dir"`

	// JSON forces JSON output on stderr regardless of TTY detection.
	JSON bool `yaml:"json"`
}

// BudgetProfile carries traversal budget overrides. Zero fields fall back
// to the global defaults.
type BudgetProfile struct {
	MaxHops            int           `yaml:"max_hops"`
	MaxVisited         int           `yaml:"max_visited"`
	Timeout            time.Duration `yaml:"timeout"`
	TopK               int           `yaml:"top_k"`
	HubDegreeThreshold int           `yaml:"hub_degree_threshold"`
}

// WorkspaceProfile tunes one workspace's budgets and rollup weights.
type WorkspaceProfile struct {
	Budgets BudgetProfile `yaml:"budgets"`

	// Weights overrides rollup base weights by relation type name.
	Weights map[string]float64 `yaml:"weights"`
}

// Config is the root Atlas configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`

	// Budgets are the service-wide traversal budget defaults.
	Budgets BudgetProfile `yaml:"budgets"`

	// Profiles maps workspace id to its overrides.
	Profiles map[string]WorkspaceProfile `yaml:"profiles"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			ShutdownGrace: 15 * time.Second,
			RateRPS:       50,
			RateBurst:     100,
		},
		Storage: StorageConfig{
			Path:       "~/.atlas/data",
			GCInterval: 10 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file, applies environment overrides, and
// validates the result. An empty path returns defaults with environment
// overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if info.Size() > MaxYAMLFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", path, MaxYAMLFileSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if addr := os.Getenv(EnvAddr); addr != "" {
		cfg.Server.Addr = addr
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.Storage.Path = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks field ranges and workspace profile contents.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set unless in_memory")
	}
	for ws, profile := range c.Profiles {
		for name, weight := range profile.Weights {
			if !datatypes.RelationType(name).Valid() {
				return fmt.Errorf("profile %s: unknown relation type %q", ws, name)
			}
			if weight < 0 {
				return fmt.Errorf("profile %s: negative weight for %q", ws, name)
			}
		}
	}
	return nil
}

// BaseWeightsFor returns the effective rollup base weights of a workspace:
// the defaults overlaid with the workspace profile's overrides.
func (c *Config) BaseWeightsFor(workspaceID string) datatypes.BaseWeights {
	weights := datatypes.DefaultBaseWeights()
	profile, ok := c.Profiles[workspaceID]
	if !ok {
		return weights
	}
	for name, weight := range profile.Weights {
		weights[datatypes.RelationType(name)] = weight
	}
	return weights
}

// BudgetsFor returns the effective budget profile of a workspace: the
// service-wide budgets overlaid with the workspace profile.
func (c *Config) BudgetsFor(workspaceID string) BudgetProfile {
	budgets := c.Budgets
	profile, ok := c.Profiles[workspaceID]
	if !ok {
		return budgets
	}
	override := profile.Budgets
	if override.MaxHops > 0 {
		budgets.MaxHops = override.MaxHops
	}
	if override.MaxVisited > 0 {
		budgets.MaxVisited = override.MaxVisited
	}
	if override.Timeout > 0 {
		budgets.Timeout = override.Timeout
	}
	if override.TopK > 0 {
		budgets.TopK = override.TopK
	}
	if override.HubDegreeThreshold > 0 {
		budgets.HubDegreeThreshold = override.HubDegreeThreshold
	}
	return budgets
}
