// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// serviceLevels are the rollup levels a traversal runs over: the three
// compound-level projections. The domain_domain level is only read by
// domain summaries.
var serviceLevels = []datatypes.RollupLevel{
	datatypes.RollupLevelServiceService,
	datatypes.RollupLevelServiceDatabase,
	datatypes.RollupLevelServiceBroker,
}

// queryGraph is an immutable directed adjacency view over one generation's
// service-level rollup edges, plus an object lookup for result shaping.
type queryGraph struct {
	out map[string][]*datatypes.RollupEdge
	in  map[string][]*datatypes.RollupEdge

	objects map[string]*datatypes.Object
}

// loadGraph reads the three service levels of one finalized generation and
// builds the adjacency. Neighbor lists are sorted by far-end id so
// traversal and hub sampling are deterministic.
func (e *Engine) loadGraph(ctx context.Context, workspaceID string, generation int64) (*queryGraph, error) {
	g := &queryGraph{
		out:     make(map[string][]*datatypes.RollupEdge),
		in:      make(map[string][]*datatypes.RollupEdge),
		objects: make(map[string]*datatypes.Object),
	}

	for _, level := range serviceLevels {
		edges, err := e.store.ListRollupEdges(ctx, workspaceID, generation, level)
		if err != nil {
			return nil, fmt.Errorf("load %s edges: %w", level, err)
		}
		for _, edge := range edges {
			g.out[edge.SubjectID] = append(g.out[edge.SubjectID], edge)
			g.in[edge.ObjectID] = append(g.in[edge.ObjectID], edge)
		}
	}

	for _, adjacency := range []map[string][]*datatypes.RollupEdge{g.out, g.in} {
		for id, edges := range adjacency {
			sort.Slice(edges, func(i, j int) bool {
				a, b := edges[i], edges[j]
				if a.SubjectID != b.SubjectID {
					return a.SubjectID < b.SubjectID
				}
				return a.ObjectID < b.ObjectID
			})
			adjacency[id] = edges
		}
	}

	objects, err := e.store.ListObjects(ctx, workspaceID, store.ObjectFilter{IncludeHidden: true})
	if err != nil {
		return nil, fmt.Errorf("load objects: %w", err)
	}
	for _, obj := range objects {
		g.objects[obj.ID] = obj
	}
	return g, nil
}

// neighbors returns the adjacency of one node in the given direction.
func (g *queryGraph) neighbors(id string, direction datatypes.Direction) []*datatypes.RollupEdge {
	if direction == datatypes.DirectionUpstream {
		return g.in[id]
	}
	return g.out[id]
}

// far returns the far-end id of an edge relative to the direction.
func far(edge *datatypes.RollupEdge, direction datatypes.Direction) string {
	if direction == datatypes.DirectionUpstream {
		return edge.SubjectID
	}
	return edge.ObjectID
}

// node shapes one result node, enriching from the object store when the
// object is known. Hidden objects are reachable through rollup edges but
// stay unnamed in results.
func (g *queryGraph) node(id string, hops int) datatypes.QueryNode {
	n := datatypes.QueryNode{ID: id, Hops: hops}
	if obj, ok := g.objects[id]; ok && obj.Visibility == datatypes.VisibilityVisible {
		n.Type = obj.Type
		n.Name = obj.Name
	}
	return n
}

func queryEdge(edge *datatypes.RollupEdge) datatypes.QueryEdge {
	return datatypes.QueryEdge{
		SubjectID:  edge.SubjectID,
		ObjectID:   edge.ObjectID,
		Level:      edge.Level,
		Weight:     edge.Weight,
		Confidence: edge.Confidence,
	}
}
