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
)

// traversal is the outcome of one bounded breadth-first expansion.
type traversal struct {
	// hops maps reached node id to its distance from the origin.
	hops map[string]int

	// edges lists every traversed edge in visit order.
	edges []*datatypes.RollupEdge

	visited   int
	truncated bool
}

// traverse runs a bounded BFS from origin in one direction.
//
// Budgets are enforced in order of cheapness: the hop bound shapes the
// frontier, the visited budget and deadline are checked per expansion, and
// hub nodes expand only their first HubDegreeThreshold neighbors in sorted
// order. Any budget hit sets truncated and stops cleanly.
func traverse(ctx context.Context, g *queryGraph, origin string, direction datatypes.Direction, budgets Budgets) *traversal {
	t := &traversal{hops: map[string]int{origin: 0}}

	frontier := []string{origin}
	t.visited = 1

	for depth := 0; depth < budgets.MaxHops && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			if ctx.Err() != nil {
				t.truncated = true
				return t
			}

			edges := g.neighbors(id, direction)
			if len(edges) > budgets.HubDegreeThreshold {
				// Hub: expand a deterministic sample of its fan-out.
				edges = edges[:budgets.HubDegreeThreshold]
				t.truncated = true
			}

			for _, edge := range edges {
				farID := far(edge, direction)
				if _, seen := t.hops[farID]; seen {
					continue
				}
				if t.visited >= budgets.MaxVisited {
					t.truncated = true
					return t
				}
				t.hops[farID] = depth + 1
				t.edges = append(t.edges, edge)
				t.visited++
				next = append(next, farID)
			}
		}
		frontier = next
	}

	// Unexplored frontier at the hop bound means the result is a prefix.
	if len(frontier) > 0 {
		for _, id := range frontier {
			if len(g.neighbors(id, direction)) > 0 {
				t.truncated = true
				break
			}
		}
	}
	return t
}

// impact runs IMPACT_ANALYSIS: the bounded reachability set from the
// origin, downstream by default.
func (e *Engine) impact(ctx context.Context, req *datatypes.QueryRequest, budgets Budgets) (*datatypes.QueryResult, error) {
	direction := req.Params.Direction
	if direction == "" {
		direction = datatypes.DirectionDownstream
	}
	return e.reachability(ctx, req, direction, budgets)
}

// reachability is the shared implementation of impact and usage.
func (e *Engine) reachability(ctx context.Context, req *datatypes.QueryRequest, direction datatypes.Direction, budgets Budgets) (*datatypes.QueryResult, error) {
	if _, err := e.store.GetObject(ctx, req.WorkspaceID, req.Scope.ObjectID); err != nil {
		return nil, fmt.Errorf("origin %s: %w", req.Scope.ObjectID, err)
	}

	generation, err := e.pinGeneration(ctx, req.WorkspaceID, req.Scope)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGraph(ctx, req.WorkspaceID, generation)
	if err != nil {
		return nil, err
	}

	t := traverse(ctx, g, req.Scope.ObjectID, direction, budgets)

	nodes := make([]datatypes.QueryNode, 0, len(t.hops))
	for id, hops := range t.hops {
		nodes = append(nodes, g.node(id, hops))
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Hops != nodes[j].Hops {
			return nodes[i].Hops < nodes[j].Hops
		}
		return nodes[i].ID < nodes[j].ID
	})

	edges := make([]datatypes.QueryEdge, 0, len(t.edges))
	for _, edge := range t.edges {
		edges = append(edges, queryEdge(edge))
	}

	return &datatypes.QueryResult{
		Nodes:     nodes,
		Edges:     edges,
		Truncated: t.truncated,
		Stats: datatypes.QueryStats{
			VisitedCount: t.visited,
			Generation:   generation,
		},
	}, nil
}

