// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Storage.InMemory)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  rate_rps: 10
storage:
  in_memory: true
budgets:
  max_hops: 4
profiles:
  ws-1:
    budgets:
      top_k: 5
    weights:
      call: 0.7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, float64(10), cfg.Server.RateRPS)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 4, cfg.Budgets.MaxHops)
	assert.Equal(t, 0.7, cfg.Profiles["ws-1"].Weights["call"])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvAddr, ":7070")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownRelationType(t *testing.T) {
	path := writeConfig(t, `
profiles:
  ws-1:
    weights:
      summons: 1.0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown relation type")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestBaseWeightsFor(t *testing.T) {
	cfg := Default()
	cfg.Profiles = map[string]WorkspaceProfile{
		"ws-1": {Weights: map[string]float64{"call": 0.25}},
	}

	tuned := cfg.BaseWeightsFor("ws-1")
	assert.Equal(t, 0.25, tuned[datatypes.RelationTypeCall])

	// Untouched types keep defaults, other workspaces unaffected.
	defaults := datatypes.DefaultBaseWeights()
	assert.Equal(t, defaults[datatypes.RelationTypeDependOn], tuned[datatypes.RelationTypeDependOn])
	assert.Equal(t, defaults, cfg.BaseWeightsFor("ws-other"))
}

func TestBudgetsFor(t *testing.T) {
	cfg := Default()
	cfg.Budgets = BudgetProfile{MaxHops: 6, MaxVisited: 20000, TopK: 3}
	cfg.Profiles = map[string]WorkspaceProfile{
		"ws-1": {Budgets: BudgetProfile{MaxHops: 2}},
	}

	tuned := cfg.BudgetsFor("ws-1")
	assert.Equal(t, 2, tuned.MaxHops)
	assert.Equal(t, 20000, tuned.MaxVisited)
	assert.Equal(t, 3, tuned.TopK)

	assert.Equal(t, cfg.Budgets, cfg.BudgetsFor("ws-other"))
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "budgets:\n  max_hops: 3\n")

	mgr, err := NewManager(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, mgr.Current().Budgets.MaxHops)

	require.NoError(t, os.WriteFile(path, []byte("budgets:\n  max_hops: 5\n"), 0o644))
	mgr.reload()
	assert.Equal(t, 5, mgr.Current().Budgets.MaxHops)
}

func TestManagerReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, "budgets:\n  max_hops: 3\n")

	mgr, err := NewManager(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	mgr.reload()
	assert.Equal(t, 3, mgr.Current().Budgets.MaxHops)
}
