// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domains

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/pkg/validation"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

var discoveryTracer = otel.Tracer("atlas.domains.discovery")

// DiscoveryAlgorithm and DiscoveryAlgorithmVersion identify the clustering
// implementation recorded on every run.
const (
	DiscoveryAlgorithm        = "louvain"
	DiscoveryAlgorithmVersion = "1"
)

// DiscoveryOptions configures one discovery run.
type DiscoveryOptions struct {
	// Generation pins the rollup generation used as input. Zero resolves
	// the ACTIVE generation.
	Generation int64

	// Resolution is the Louvain resolution parameter. Zero uses the default.
	Resolution float64

	// MinClusterSize filters clusters below this size. Zero uses the default.
	MinClusterSize int
}

// DiscoveryEngine runs Track B domain inference: seed-less community
// detection over the service-service rollup.
type DiscoveryEngine struct {
	store  store.Store
	logger *logging.Logger
}

// NewDiscoveryEngine creates a discovery engine.
func NewDiscoveryEngine(s store.Store, logger *logging.Logger) *DiscoveryEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &DiscoveryEngine{store: s, logger: logger}
}

// Discover clusters the service-service rollup into DISCOVERED domains.
//
// # Description
//
// Builds an undirected weighted graph from the pinned generation's
// service_service edges (the two directions of a pair sum their weights),
// partitions it with weighted Louvain, filters clusters below the minimum
// size, and persists the run, its DISCOVERED domain objects, and its
// memberships in a single transaction.
//
// Cluster keys are the smallest member id, so identical inputs map to
// identical domain ids across runs; re-running over the same graph
// replaces the previous DISCOVERED domains in place.
//
// A workspace with no active generation or no service_service edges is a
// well-defined no-op: the run is recorded COMPLETED with ClusterCount 0.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - workspaceID: Target workspace.
//   - opts: Run options. Nil pins the ACTIVE generation with defaults.
//
// # Outputs
//
//   - *datatypes.DiscoveryRun: The persisted run record.
//   - error: Non-nil on store errors or cancellation. A failed run is
//     still recorded with its error when persistence is possible.
func (e *DiscoveryEngine) Discover(ctx context.Context, workspaceID string, opts *DiscoveryOptions) (*datatypes.DiscoveryRun, error) {
	ctx, span := discoveryTracer.Start(ctx, "domains.DiscoveryEngine.Discover")
	defer span.End()

	if opts == nil {
		opts = &DiscoveryOptions{}
	}
	louvain := DefaultLouvainOptions()
	if opts.Resolution > 0 {
		louvain.Resolution = opts.Resolution
	}
	if opts.MinClusterSize > 0 {
		louvain.MinClusterSize = opts.MinClusterSize
	}

	run := &datatypes.DiscoveryRun{
		ID:               uuid.NewString(),
		WorkspaceID:      workspaceID,
		Algorithm:        DiscoveryAlgorithm,
		AlgorithmVersion: DiscoveryAlgorithmVersion,
		Level:            datatypes.RollupLevelServiceService,
		Resolution:       louvain.Resolution,
		MinClusterSize:   louvain.MinClusterSize,
		Status:           datatypes.RunStatusRunning,
		StartedAt:        time.Now().UTC(),
	}

	generation := opts.Generation
	if generation == 0 {
		active, err := e.store.ActiveGeneration(ctx, workspaceID)
		switch {
		case errors.Is(err, store.ErrNoActiveGeneration):
			// No rollup yet: record an empty completed run.
			return run, e.complete(ctx, run, nil, nil, nil)
		case err != nil:
			return nil, fmt.Errorf("resolve active generation: %w", err)
		default:
			generation = active
		}
	}
	run.Generation = generation

	edges, err := e.store.ListRollupEdges(ctx, workspaceID, generation, datatypes.RollupLevelServiceService)
	if err != nil {
		return nil, fmt.Errorf("list rollup edges: %w", err)
	}

	g := NewGraph()
	for _, edge := range edges {
		g.AddEdge(edge.SubjectID, edge.ObjectID, edge.Weight)
	}
	span.SetAttributes(
		attribute.Int64("generation", generation),
		attribute.Int("node_count", g.NodeCount()),
		attribute.Int("edge_count", g.EdgeCount()),
	)

	result, err := DetectCommunities(ctx, g, louvain)
	if err != nil {
		run.Status = datatypes.RunStatusFailed
		run.Error = err.Error()
		run.FinishedAt = time.Now().UTC()
		// Persist the failure record even when ctx is already cancelled.
		if commitErr := e.store.CommitDiscovery(context.WithoutCancel(ctx), run, nil, nil); commitErr != nil {
			e.logger.Error("failed to record failed discovery run",
				"workspace_id", workspaceID, "run_id", run.ID, "error", commitErr)
		}
		return nil, err
	}

	run.NodeCount = result.NodeCount
	run.EdgeCount = result.EdgeCount
	run.Modularity = result.Modularity

	domains, memberships := materialize(run, result.Communities)
	if err := e.complete(ctx, run, result, domains, memberships); err != nil {
		return nil, err
	}

	e.logger.Info("domain discovery completed",
		"workspace_id", workspaceID,
		"run_id", run.ID,
		"generation", generation,
		"nodes", run.NodeCount,
		"edges", run.EdgeCount,
		"clusters", run.ClusterCount,
		"modularity", run.Modularity,
	)
	return run, nil
}

// complete marks the run COMPLETED and commits it with its domains and
// memberships in one transaction.
func (e *DiscoveryEngine) complete(ctx context.Context, run *datatypes.DiscoveryRun, result *CommunityResult, domains []*datatypes.Object, memberships []*datatypes.DiscoveryMembership) error {
	if result != nil {
		run.ClusterCount = len(result.Communities)
	}
	run.Status = datatypes.RunStatusCompleted
	run.FinishedAt = time.Now().UTC()
	if err := e.store.CommitDiscovery(ctx, run, domains, memberships); err != nil {
		return fmt.Errorf("commit discovery run: %w", err)
	}
	return nil
}

// materialize turns surviving clusters into DISCOVERED domain objects and
// hard memberships. The domain id is derived from the stable cluster key.
func materialize(run *datatypes.DiscoveryRun, communities []Community) ([]*datatypes.Object, []*datatypes.DiscoveryMembership) {
	var domains []*datatypes.Object
	var memberships []*datatypes.DiscoveryMembership

	for _, comm := range communities {
		domainID := discoveredDomainID(comm.Key)
		domains = append(domains, &datatypes.Object{
			ID:          domainID,
			WorkspaceID: run.WorkspaceID,
			Type:        datatypes.ObjectTypeDomain,
			Name:        fmt.Sprintf("Discovered domain (%s)", comm.Key),
			Granularity: datatypes.GranularityCompound,
			Path:        domainID,
			Visibility:  datatypes.VisibilityVisible,
			Origin:      datatypes.DomainOriginDiscovered,
			Metadata: map[string]string{
				"cluster_key":  comm.Key,
				"run_id":       run.ID,
				"algorithm":    run.Algorithm,
				"connectivity": fmt.Sprintf("%.4f", comm.Connectivity),
			},
		})
		for _, nodeID := range comm.Nodes {
			memberships = append(memberships, &datatypes.DiscoveryMembership{
				RunID:       run.ID,
				WorkspaceID: run.WorkspaceID,
				DomainID:    domainID,
				ClusterKey:  comm.Key,
				ObjectID:    nodeID,
				Affinity:    1.0,
				Purity:      comm.Connectivity,
			})
		}
	}
	return domains, memberships
}

// discoveredDomainID derives a stable domain object id from a cluster key,
// truncated to stay within the identifier length limit.
func discoveredDomainID(clusterKey string) string {
	id := "domain." + clusterKey
	if len(id) > validation.MaxIdentifierLength {
		id = id[:validation.MaxIdentifierLength]
	}
	return id
}
