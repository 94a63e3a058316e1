// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/services/atlas/config"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/domains"
	"github.com/AleutianAI/atlas/services/atlas/query"
	"github.com/AleutianAI/atlas/services/atlas/rollup"
	atlasbadger "github.com/AleutianAI/atlas/services/atlas/storage/badger"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// openStore opens the BadgerDB store from the config and starts the GC
// loop. Callers close the returned channel to stop GC.
func openStore(cfg *config.Config, logger *logging.Logger) (*store.BadgerStore, chan struct{}, error) {
	dbCfg := atlasbadger.DefaultConfig()
	dbCfg.Path = expandHome(cfg.Storage.Path)
	dbCfg.InMemory = cfg.Storage.InMemory
	dbCfg.SyncWrites = cfg.Storage.SyncWrites
	if cfg.Storage.GCInterval > 0 {
		dbCfg.GCInterval = cfg.Storage.GCInterval
	}
	if logger != nil {
		dbCfg.Logger = logger.Slog()
	}

	db, err := atlasbadger.Open(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	stopGC := make(chan struct{})
	go atlasbadger.RunGC(db, dbCfg, stopGC)
	return store.NewBadgerStore(db), stopGC, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// withLocalStore loads the config and runs fn against the local store.
func withLocalStore(fn func(ctx context.Context, cfg *config.Config, s *store.BadgerStore)) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	s, stopGC, err := openStore(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to open the graph store: %v", err)
	}
	defer s.Close()
	defer close(stopGC)

	fn(context.Background(), cfg, s)
}

// printJSON writes the value as indented JSON on stdout.
func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}

func runRebuild(cmd *cobra.Command, args []string) {
	workspaceID := args[0]
	withLocalStore(func(ctx context.Context, cfg *config.Config, s *store.BadgerStore) {
		engine := rollup.NewEngine(s)
		version, edgeCount, err := engine.RebuildWithWeights(ctx, workspaceID,
			cfg.BaseWeightsFor(workspaceID))
		if err != nil {
			log.Fatalf("Rebuild failed: %v", err)
		}
		printJSON(datatypes.RebuildResponse{
			WorkspaceID: workspaceID,
			Generation:  version,
			EdgeCount:   edgeCount,
		})
	})
}

func runInfer(cmd *cobra.Command, args []string) {
	workspaceID := args[0]
	withLocalStore(func(ctx context.Context, cfg *config.Config, s *store.BadgerStore) {
		result, err := domains.NewSeededEngine(s, nil).Infer(ctx, workspaceID, nil)
		if err != nil {
			log.Fatalf("Inference failed: %v", err)
		}
		printJSON(result)
	})
}

func runDiscover(cmd *cobra.Command, args []string) {
	workspaceID := args[0]
	withLocalStore(func(ctx context.Context, cfg *config.Config, s *store.BadgerStore) {
		run, err := domains.NewDiscoveryEngine(s, nil).Discover(ctx, workspaceID,
			&domains.DiscoveryOptions{
				Generation:     discoverGeneration,
				Resolution:     discoverResolution,
				MinClusterSize: discoverMinClusterSize,
			})
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		printJSON(run)
	})
}

func runQuery(cmd *cobra.Command, args []string) {
	workspaceID := args[0]
	withLocalStore(func(ctx context.Context, cfg *config.Config, s *store.BadgerStore) {
		result, err := query.NewEngine(s).Execute(ctx, &datatypes.QueryRequest{
			WorkspaceID: workspaceID,
			Type:        datatypes.QueryType(queryType),
			Scope: datatypes.QueryScope{
				ObjectID: queryObject,
				TargetID: queryTarget,
				DomainID: queryDomain,
			},
			Params: datatypes.QueryParams{
				Direction: datatypes.Direction(queryDirection),
				MaxHops:   queryMaxHops,
				TopK:      queryTopK,
			},
		})
		if err != nil {
			log.Fatalf("Query failed: %v", err)
		}
		printJSON(result)
	})
}
