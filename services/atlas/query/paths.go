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
	"strings"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

// paths runs PATH_DISCOVERY: the top-K simple paths from source to target
// over the pinned generation, ranked by PathScore.
//
// No path between two existing objects is an empty result, not an error.
func (e *Engine) paths(ctx context.Context, req *datatypes.QueryRequest, budgets Budgets) (*datatypes.QueryResult, error) {
	for _, id := range []string{req.Scope.ObjectID, req.Scope.TargetID} {
		if _, err := e.store.GetObject(ctx, req.WorkspaceID, id); err != nil {
			return nil, fmt.Errorf("object %s: %w", id, err)
		}
	}

	generation, err := e.pinGeneration(ctx, req.WorkspaceID, req.Scope)
	if err != nil {
		return nil, err
	}
	g, err := e.loadGraph(ctx, req.WorkspaceID, generation)
	if err != nil {
		return nil, err
	}

	finder := &pathFinder{
		ctx:     ctx,
		graph:   g,
		target:  req.Scope.TargetID,
		budgets: budgets,
		onPath:  map[string]bool{req.Scope.ObjectID: true},
	}
	finder.walk(req.Scope.ObjectID, []string{req.Scope.ObjectID}, nil)

	ranked := rankPaths(finder.found, budgets.TopK)

	// Union of the nodes appearing in returned paths.
	nodeSet := make(map[string]bool)
	for _, path := range ranked {
		for _, id := range path.Nodes {
			nodeSet[id] = true
		}
	}
	nodes := make([]datatypes.QueryNode, 0, len(nodeSet))
	for id := range nodeSet {
		nodes = append(nodes, g.node(id, 0))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return &datatypes.QueryResult{
		Nodes:     nodes,
		Paths:     ranked,
		Truncated: finder.truncated,
		Stats: datatypes.QueryStats{
			VisitedCount: finder.visited,
			Generation:   generation,
		},
	}, nil
}

// pathFinder enumerates simple paths with a bounded depth-first walk.
type pathFinder struct {
	ctx     context.Context
	graph   *queryGraph
	target  string
	budgets Budgets

	onPath    map[string]bool
	found     []datatypes.QueryPath
	visited   int
	truncated bool
}

// walk extends the current simple path from node. Expansion stops on the
// hop bound, the visited budget, or deadline; any of these marks the
// result truncated since a better path may lie beyond.
func (f *pathFinder) walk(node string, path []string, edges []*datatypes.RollupEdge) {
	if f.ctx.Err() != nil {
		f.truncated = true
		return
	}

	edgeList := f.graph.neighbors(node, datatypes.DirectionDownstream)
	if len(edgeList) > f.budgets.HubDegreeThreshold {
		edgeList = edgeList[:f.budgets.HubDegreeThreshold]
		f.truncated = true
	}

	for _, edge := range edgeList {
		next := edge.ObjectID
		if f.onPath[next] {
			continue
		}
		if f.visited >= f.budgets.MaxVisited {
			f.truncated = true
			return
		}
		f.visited++

		if next == f.target {
			f.found = append(f.found, buildPath(append(path, next), append(edges, edge)))
			continue
		}
		if len(path) >= f.budgets.MaxHops {
			// Deeper paths exist but the hop budget forbids exploring them.
			f.truncated = true
			continue
		}

		f.onPath[next] = true
		f.walk(next, append(path, next), append(edges, edge))
		delete(f.onPath, next)
	}
}

// buildPath computes the score inputs of one complete path.
func buildPath(nodes []string, edges []*datatypes.RollupEdge) datatypes.QueryPath {
	hops := len(edges)
	sumConfidence := 0.0
	minWeight := edges[0].Weight
	for _, edge := range edges {
		sumConfidence += edge.Confidence
		if edge.Weight < minWeight {
			minWeight = edge.Weight
		}
	}
	avgConfidence := sumConfidence / float64(hops)

	out := make([]string, len(nodes))
	copy(out, nodes)

	return datatypes.QueryPath{
		Nodes:         out,
		Hops:          hops,
		AvgConfidence: avgConfidence,
		MinEdgeWeight: minWeight,
		Score:         PathScore(avgConfidence, minWeight, hops),
		Key:           strings.Join(out, ">"),
	}
}

// rankPaths orders paths by descending score, then ascending hops, then
// lexicographic key, and keeps the top K.
func rankPaths(paths []datatypes.QueryPath, topK int) []datatypes.QueryPath {
	sort.Slice(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Hops != b.Hops {
			return a.Hops < b.Hops
		}
		return a.Key < b.Key
	})
	if len(paths) > topK {
		paths = paths[:topK]
	}
	return paths
}
