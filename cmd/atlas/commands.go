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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string

	// Discovery flags
	discoverGeneration     int64
	discoverResolution     float64
	discoverMinClusterSize int

	// Query flags
	queryType      string
	queryObject    string
	queryTarget    string
	queryDomain    string
	queryDirection string
	queryMaxHops   int
	queryTopK      int

	rootCmd = &cobra.Command{
		Use:   "atlas",
		Short: "Architecture graph analytics: rollups, domain inference, and impact queries",
		Long: `Atlas maintains a versioned rollup of a workspace's architecture
graph and answers impact, path, usage, and domain queries against it.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Atlas HTTP API server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	rebuildCmd = &cobra.Command{
		Use:   "rebuild [workspace_id]",
		Short: "Rebuild all rollup levels of a workspace under a new generation",
		Args:  cobra.ExactArgs(1),
		Run:   runRebuild, // Defined in cmd_graph.go
	}

	inferCmd = &cobra.Command{
		Use:   "infer [workspace_id]",
		Short: "Score services against seed domains and write pending candidates",
		Args:  cobra.ExactArgs(1),
		Run:   runInfer, // Defined in cmd_graph.go
	}

	discoverCmd = &cobra.Command{
		Use:   "discover [workspace_id]",
		Short: "Cluster the service graph into discovered domains",
		Args:  cobra.ExactArgs(1),
		Run:   runDiscover, // Defined in cmd_graph.go
	}

	queryCmd = &cobra.Command{
		Use:   "query [workspace_id]",
		Short: "Run a graph query against the active rollup generation",
		Args:  cobra.ExactArgs(1),
		Run:   runQuery, // Defined in cmd_graph.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the atlas YAML config file")

	discoverCmd.Flags().Int64Var(&discoverGeneration, "generation", 0,
		"Rollup generation to cluster (0 = active)")
	discoverCmd.Flags().Float64Var(&discoverResolution, "resolution", 0,
		"Clustering resolution (0 = default)")
	discoverCmd.Flags().IntVar(&discoverMinClusterSize, "min-cluster-size", 0,
		"Minimum emitted cluster size (0 = default)")

	queryCmd.Flags().StringVar(&queryType, "type", "IMPACT_ANALYSIS",
		"Query type: IMPACT_ANALYSIS, PATH_DISCOVERY, USAGE_DISCOVERY, DOMAIN_SUMMARY")
	queryCmd.Flags().StringVar(&queryObject, "object", "",
		"Traversal origin object id")
	queryCmd.Flags().StringVar(&queryTarget, "target", "",
		"Path discovery target object id")
	queryCmd.Flags().StringVar(&queryDomain, "domain", "",
		"Domain id for domain summaries")
	queryCmd.Flags().StringVar(&queryDirection, "direction", "",
		"Traversal direction: downstream or upstream")
	queryCmd.Flags().IntVar(&queryMaxHops, "max-hops", 0,
		"Hop budget override (0 = default)")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0,
		"Ranked path count override (0 = default)")

	rootCmd.AddCommand(serveCmd, rebuildCmd, inferCmd, discoverCmd, queryCmd)
}
