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
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Louvain Community Detection
// =============================================================================

var communityTracer = otel.Tracer("atlas.domains.community")

// Louvain configuration constants.
const (
	// DefaultMaxLouvainIterations is the maximum outer loop iterations.
	DefaultMaxLouvainIterations = 100

	// DefaultConvergenceThreshold stops early if modularity gain < this.
	DefaultConvergenceThreshold = 1e-6

	// DefaultMinClusterSize filters out tiny communities from results.
	DefaultMinClusterSize = 3

	// DefaultResolution affects community granularity.
	// Higher values = smaller communities, lower = larger communities.
	DefaultResolution = 1.0
)

// LouvainOptions configures the Louvain algorithm.
type LouvainOptions struct {
	// MaxIterations limits total outer loop passes. Default: 100
	MaxIterations int

	// ConvergenceThreshold stops early if modularity gain < this. Default: 1e-6
	ConvergenceThreshold float64

	// MinClusterSize filters out tiny communities from results. Default: 3
	MinClusterSize int

	// Resolution affects community granularity. Default: 1.0
	Resolution float64
}

// Validate checks options and applies defaults for invalid values.
func (o *LouvainOptions) Validate() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxLouvainIterations
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = DefaultConvergenceThreshold
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = DefaultMinClusterSize
	}
	if o.Resolution <= 0 {
		o.Resolution = DefaultResolution
	}
}

// DefaultLouvainOptions returns sensible defaults.
func DefaultLouvainOptions() *LouvainOptions {
	return &LouvainOptions{
		MaxIterations:        DefaultMaxLouvainIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
		MinClusterSize:       DefaultMinClusterSize,
		Resolution:           DefaultResolution,
	}
}

// Graph is an undirected weighted graph over service ids, built from
// rollup edges by collapsing the two directions of each pair.
type Graph struct {
	adjacency map[string]map[string]float64

	// totalWeight is the sum of undirected edge weights (each pair once).
	totalWeight float64
	edgeCount   int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{adjacency: make(map[string]map[string]float64)}
}

// AddNode registers a node without edges. Idempotent.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[string]float64)
	}
}

// AddEdge accumulates weight onto the undirected (a, b) pair. Self loops
// are ignored. Calling twice for the two directions of a rollup pair sums
// their weights.
func (g *Graph) AddEdge(a, b string, weight float64) {
	if a == b || weight <= 0 {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	if _, existed := g.adjacency[a][b]; !existed {
		g.edgeCount++
	}
	g.adjacency[a][b] += weight
	g.adjacency[b][a] += weight
	g.totalWeight += weight
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.adjacency) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Community is one detected cluster of services.
type Community struct {
	// Key is the stable cluster identifier: the smallest member id.
	// Identical input graphs yield identical keys across runs.
	Key string `json:"key"`

	// Nodes contains the member ids, sorted.
	Nodes []string `json:"nodes"`

	// InternalWeight is the summed weight of edges within the community.
	InternalWeight float64 `json:"internal_weight"`

	// ExternalWeight is the summed weight of edges leaving the community.
	ExternalWeight float64 `json:"external_weight"`

	// Connectivity is internal / (internal + external), in [0, 1].
	Connectivity float64 `json:"connectivity"`
}

// CommunityResult contains the full Louvain output.
type CommunityResult struct {
	// Communities contains clusters meeting MinClusterSize, sorted by Key.
	Communities []Community `json:"communities"`

	// Modularity is the final modularity score Q of the full partition,
	// computed before the size filter.
	Modularity float64 `json:"modularity"`

	// Iterations is the number of outer loop passes completed.
	Iterations int `json:"iterations"`

	// Converged indicates convergence before MaxIterations.
	Converged bool `json:"converged"`

	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

// DetectCommunities partitions the graph with weighted Louvain.
//
// # Description
//
// Starts with every node in its own community, then repeatedly moves each
// node into the neighboring community with the best positive modularity
// gain until no move improves or the gain falls under the convergence
// threshold. Nodes are visited in sorted id order and ties are broken
// deterministically, so identical graphs always produce identical
// partitions.
//
// # Inputs
//
//   - ctx: Context for cancellation, checked at iteration boundaries.
//   - g: Input graph. An empty graph yields an empty converged result.
//   - opts: Configuration options. If nil, defaults are used.
//
// # Outputs
//
//   - *CommunityResult: Clusters meeting MinClusterSize plus partition
//     statistics.
//   - error: Non-nil only on cancellation.
//
// Complexity: O(V + E) per iteration, typically few iterations.
func DetectCommunities(ctx context.Context, g *Graph, opts *LouvainOptions) (*CommunityResult, error) {
	nodeCount := g.NodeCount()

	ctx, span := communityTracer.Start(ctx, "domains.DetectCommunities",
		trace.WithAttributes(
			attribute.Int("node_count", nodeCount),
			attribute.Int("edge_count", g.EdgeCount()),
		),
	)
	defer span.End()

	if nodeCount == 0 {
		span.AddEvent("empty_graph")
		return &CommunityResult{Converged: true}, nil
	}

	if opts == nil {
		opts = DefaultLouvainOptions()
	} else {
		opts.Validate()
	}

	// Sorted node list for deterministic iteration order.
	nodeIDs := make([]string, 0, nodeCount)
	for id := range g.adjacency {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	// Each node starts in its own community.
	nodeToComm := make(map[string]int, nodeCount)
	for i, id := range nodeIDs {
		nodeToComm[id] = i
	}

	m := g.totalWeight
	if m == 0 {
		span.AddEvent("no_edges")
		result := buildCommunityResult(g, nodeToComm, nodeIDs, opts)
		result.Converged = true
		return result, nil
	}

	// Weighted degree (strength) per node.
	strength := make(map[string]float64, nodeCount)
	for _, id := range nodeIDs {
		for _, w := range g.adjacency[id] {
			strength[id] += w
		}
	}

	// Cached community strength sums for O(1) deltaQ evaluation.
	commStrength := make(map[int]float64, nodeCount)
	for _, id := range nodeIDs {
		commStrength[nodeToComm[id]] = strength[id]
	}

	previousQ := -1.0
	iterations := 0
	converged := false

	for iterations < opts.MaxIterations {
		// Cancellation check at iteration boundary.
		if ctx.Err() != nil {
			span.AddEvent("cancelled", trace.WithAttributes(
				attribute.Int("iterations_completed", iterations),
			))
			return nil, ctx.Err()
		}

		iterations++
		improved := false

		for _, id := range nodeIDs {
			currentComm := nodeToComm[id]
			bestComm := currentComm
			bestDeltaQ := 0.0
			ki := strength[id]

			// Weight of edges from this node into each neighbor community,
			// iterated in sorted neighbor order for deterministic
			// tie-breaking.
			weightToComm := make(map[int]float64)
			neighborIDs := make([]string, 0, len(g.adjacency[id]))
			for neighborID := range g.adjacency[id] {
				neighborIDs = append(neighborIDs, neighborID)
			}
			sort.Strings(neighborIDs)
			for _, neighborID := range neighborIDs {
				weightToComm[nodeToComm[neighborID]] += g.adjacency[id][neighborID]
			}

			weightToCurrent := weightToComm[currentComm]
			for _, neighborID := range neighborIDs {
				comm := nodeToComm[neighborID]
				if comm == currentComm {
					continue
				}
				deltaQ := deltaModularity(ki, weightToComm[comm], weightToCurrent,
					commStrength[comm], commStrength[currentComm]-ki, m, opts.Resolution)
				if deltaQ > bestDeltaQ {
					bestDeltaQ = deltaQ
					bestComm = comm
				}
			}

			if bestComm != currentComm && bestDeltaQ > 0 {
				commStrength[currentComm] -= ki
				commStrength[bestComm] += ki
				nodeToComm[id] = bestComm
				improved = true
			}
		}

		currentQ := modularity(g, nodeToComm, commStrength, m, opts.Resolution)
		if !improved || (previousQ >= 0 && currentQ-previousQ < opts.ConvergenceThreshold) {
			converged = true
			break
		}
		previousQ = currentQ
	}

	result := buildCommunityResult(g, nodeToComm, nodeIDs, opts)
	result.Iterations = iterations
	result.Converged = converged

	span.SetAttributes(
		attribute.Int("iterations", iterations),
		attribute.Int("communities_found", len(result.Communities)),
		attribute.Float64("modularity", result.Modularity),
		attribute.Bool("converged", converged),
		attribute.String("algorithm", "louvain"),
	)
	return result, nil
}

// deltaModularity computes the modularity gain of moving a node with
// strength ki into a target community.
//
// deltaQ = (w_target - w_current) / m
//   - resolution * ki * (S_target - S_current_excl) / (2 * m^2)
func deltaModularity(ki, weightToTarget, weightToCurrent, targetStrength, currentStrengthExcl, m, resolution float64) float64 {
	if m == 0 {
		return 0
	}
	deltaQ := (weightToTarget - weightToCurrent) / m
	deltaQ -= resolution * ki * (targetStrength - currentStrengthExcl) / (2 * m * m)
	return deltaQ
}

// modularity computes Q of the current partition using cached community
// strength sums for the null model term.
//
// Q = sum_c [ W_in_c / m - resolution * (S_c / 2m)^2 ]
func modularity(g *Graph, nodeToComm map[string]int, commStrength map[int]float64, m, resolution float64) float64 {
	if m == 0 {
		return 0
	}

	// Internal weight per community. The adjacency stores each undirected
	// edge in both directions, so halve the sum.
	internal := make(map[int]float64)
	for id, neighbors := range g.adjacency {
		comm := nodeToComm[id]
		for neighborID, w := range neighbors {
			if nodeToComm[neighborID] == comm {
				internal[comm] += w
			}
		}
	}

	Q := 0.0
	for comm, s := range commStrength {
		if s == 0 {
			continue
		}
		Q += internal[comm]/2/m - resolution*(s/(2*m))*(s/(2*m))
	}
	return Q
}

// buildCommunityResult groups nodes by community, computes per-cluster
// connectivity, and applies the minimum size filter.
func buildCommunityResult(g *Graph, nodeToComm map[string]int, nodeIDs []string, opts *LouvainOptions) *CommunityResult {
	commToNodes := make(map[int][]string)
	for _, id := range nodeIDs {
		comm := nodeToComm[id]
		commToNodes[comm] = append(commToNodes[comm], id)
	}

	commStrength := make(map[int]float64, len(commToNodes))
	for _, id := range nodeIDs {
		comm := nodeToComm[id]
		for _, w := range g.adjacency[id] {
			commStrength[comm] += w
		}
	}
	q := modularity(g, nodeToComm, commStrength, g.totalWeight, opts.Resolution)

	communities := make([]Community, 0, len(commToNodes))
	for _, nodes := range commToNodes {
		if len(nodes) < opts.MinClusterSize {
			continue
		}
		sort.Strings(nodes)

		member := make(map[string]bool, len(nodes))
		for _, id := range nodes {
			member[id] = true
		}
		internal, external := 0.0, 0.0
		for _, id := range nodes {
			for neighborID, w := range g.adjacency[id] {
				if member[neighborID] {
					internal += w
				} else {
					external += w
				}
			}
		}
		internal /= 2 // both directions counted

		connectivity := 0.0
		if internal+external > 0 {
			connectivity = internal / (internal + external)
		}
		communities = append(communities, Community{
			Key:            nodes[0],
			Nodes:          nodes,
			InternalWeight: internal,
			ExternalWeight: external,
			Connectivity:   connectivity,
		})
	}
	sort.Slice(communities, func(i, j int) bool {
		return communities[i].Key < communities[j].Key
	})

	return &CommunityResult{
		Communities: communities,
		Modularity:  q,
		NodeCount:   len(nodeIDs),
		EdgeCount:   g.edgeCount,
	}
}
