// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// QueryType selects the graph algorithm to run.
type QueryType string

const (
	QueryTypeImpactAnalysis QueryType = "IMPACT_ANALYSIS"
	QueryTypePathDiscovery  QueryType = "PATH_DISCOVERY"
	QueryTypeUsageDiscovery QueryType = "USAGE_DISCOVERY"
	QueryTypeDomainSummary  QueryType = "DOMAIN_SUMMARY"
)

// Valid reports whether the query type is known.
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeImpactAnalysis, QueryTypePathDiscovery,
		QueryTypeUsageDiscovery, QueryTypeDomainSummary:
		return true
	}
	return false
}

// Direction selects the traversal direction for impact analysis.
type Direction string

const (
	// DirectionDownstream follows outgoing edges (what the origin affects).
	DirectionDownstream Direction = "downstream"

	// DirectionUpstream follows incoming edges (what affects the origin).
	DirectionUpstream Direction = "upstream"
)

// Default query budgets. All are overridable per call or per workspace profile.
const (
	// DefaultMaxHops bounds traversal depth.
	DefaultMaxHops = 6

	// DefaultMaxVisited bounds the total visited-node budget.
	DefaultMaxVisited = 20_000

	// DefaultQueryTimeout bounds traversal wall-clock time.
	DefaultQueryTimeout = 2000 * time.Millisecond

	// DefaultTopK is the number of paths returned by path discovery.
	DefaultTopK = 3

	// DefaultHubDegreeThreshold is the fan-out above which a node's
	// expansion is capped rather than fully explored.
	DefaultHubDegreeThreshold = 200
)

// QueryScope identifies the graph region a query operates on.
//
// Which fields are required depends on the query type; the engine validates
// before any traversal begins.
type QueryScope struct {
	// ObjectID is the traversal origin (impact, usage, path source).
	ObjectID string `json:"object_id,omitempty"`

	// TargetID is the path discovery destination.
	TargetID string `json:"target_id,omitempty"`

	// DomainID selects the domain for domain summaries.
	DomainID string `json:"domain_id,omitempty"`

	// Generation pins a rollup generation. Zero means the active
	// generation at query start. A query never mixes generations.
	Generation int64 `json:"generation,omitempty"`
}

// QueryParams carries per-call overrides of the traversal budgets.
// Zero values fall back to workspace profile values, then to defaults.
type QueryParams struct {
	MaxHops            int           `json:"max_hops,omitempty" validate:"omitempty,gt=0,lte=64"`
	MaxVisited         int           `json:"max_visited,omitempty" validate:"omitempty,gt=0"`
	Timeout            time.Duration `json:"timeout,omitempty"`
	TopK               int           `json:"top_k,omitempty" validate:"omitempty,gt=0,lte=100"`
	HubDegreeThreshold int           `json:"hub_degree_threshold,omitempty" validate:"omitempty,gt=0"`
	Direction          Direction     `json:"direction,omitempty" validate:"omitempty,oneof=downstream upstream"`
}

// QueryRequest is the full request for one query execution.
type QueryRequest struct {
	WorkspaceID string      `json:"workspace_id" validate:"required"`
	Type        QueryType   `json:"type" validate:"required"`
	Scope       QueryScope  `json:"scope"`
	Params      QueryParams `json:"params"`
}

// QueryNode is one node in a query result.
type QueryNode struct {
	ID   string     `json:"id"`
	Type ObjectType `json:"type,omitempty"`
	Name string     `json:"name,omitempty"`

	// Hops is the distance from the origin, where applicable.
	Hops int `json:"hops,omitempty"`
}

// QueryEdge is one edge in a query result. Either a relation edge
// (Type set) or a rollup edge (Level set).
type QueryEdge struct {
	SubjectID  string       `json:"subject_id"`
	ObjectID   string       `json:"object_id"`
	Type       RelationType `json:"type,omitempty"`
	Level      RollupLevel  `json:"level,omitempty"`
	Weight     float64      `json:"weight,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

// QueryPath is one scored path between two objects.
type QueryPath struct {
	// Nodes lists the object ids from source to target inclusive.
	Nodes []string `json:"nodes"`

	Hops          int     `json:"hops"`
	AvgConfidence float64 `json:"avg_confidence"`
	MinEdgeWeight float64 `json:"min_edge_weight"`
	Score         float64 `json:"score"`

	// Key is the deterministic tie-break key ("a>b>c").
	Key string `json:"key"`
}

// QueryStats reports traversal effort and the pinned generation.
type QueryStats struct {
	VisitedCount int           `json:"visited_count"`
	Duration     time.Duration `json:"duration"`

	// Generation is the pinned rollup generation, zero when the query
	// ran over raw relations only.
	Generation int64 `json:"generation,omitempty"`
}

// QueryResult is the response for one query execution.
//
// Truncated is set when a hop, visit, or time budget stopped the traversal
// early. Budget exhaustion is a successful outcome, not an error.
type QueryResult struct {
	Type      QueryType   `json:"type"`
	Nodes     []QueryNode `json:"nodes"`
	Edges     []QueryEdge `json:"edges"`
	Paths     []QueryPath `json:"paths,omitempty"`
	Truncated bool        `json:"truncated"`
	Stats     QueryStats  `json:"stats"`
}
