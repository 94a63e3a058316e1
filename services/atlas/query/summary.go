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
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// domainSummary runs DOMAIN_SUMMARY: the domain's members from approved
// memberships and discovery runs, plus its domain_domain rollup edges.
func (e *Engine) domainSummary(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.QueryResult, error) {
	domainID := req.Scope.DomainID
	if _, err := e.store.GetObject(ctx, req.WorkspaceID, domainID); err != nil {
		return nil, fmt.Errorf("domain %s: %w", domainID, err)
	}

	memberIDs := make(map[string]bool)

	relations, err := e.store.ListApprovedRelations(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	for _, rel := range relations {
		if rel.Type == datatypes.RelationTypeMemberOf && rel.ObjectID == domainID {
			memberIDs[rel.SubjectID] = true
		}
	}

	memberships, err := e.store.ListDiscoveryMemberships(ctx, req.WorkspaceID, domainID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		memberIDs[m.ObjectID] = true
	}

	objects := make(map[string]*datatypes.Object)
	objectList, err := e.store.ListObjects(ctx, req.WorkspaceID, store.ObjectFilter{IncludeHidden: true})
	if err != nil {
		return nil, err
	}
	for _, obj := range objectList {
		objects[obj.ID] = obj
	}

	nodes := make([]datatypes.QueryNode, 0, len(memberIDs))
	for id := range memberIDs {
		n := datatypes.QueryNode{ID: id}
		if obj, ok := objects[id]; ok {
			n.Type = obj.Type
			n.Name = obj.Name
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	result := &datatypes.QueryResult{Nodes: nodes}

	// Domain-level edges come from the pinned generation; a workspace
	// without any rollup still gets a member listing.
	generation, err := e.pinGeneration(ctx, req.WorkspaceID, req.Scope)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveGeneration) {
			return result, nil
		}
		return nil, err
	}
	ddEdges, err := e.store.ListRollupEdges(ctx, req.WorkspaceID, generation, datatypes.RollupLevelDomainDomain)
	if err != nil {
		return nil, err
	}
	for _, edge := range ddEdges {
		if edge.SubjectID == domainID || edge.ObjectID == domainID {
			result.Edges = append(result.Edges, queryEdge(edge))
		}
	}
	result.Stats.Generation = generation
	return result, nil
}
