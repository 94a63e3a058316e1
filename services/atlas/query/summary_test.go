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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

func TestDomainSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	version := seedFixture(t, s)

	// svc-a is an approved member, svc-b a discovered one.
	require.NoError(t, s.PutRelation(ctx, &datatypes.Relation{
		ID: "rel-mem-a", WorkspaceID: "ws-1",
		SubjectID: "svc-a", ObjectID: "dom-1",
		Type: datatypes.RelationTypeMemberOf, Status: datatypes.RelationStatusApproved,
		Source: datatypes.RelationSourceManual, Confidence: 1,
	}))
	require.NoError(t, s.CommitDiscovery(ctx, &datatypes.DiscoveryRun{
		ID: "run-1", WorkspaceID: "ws-1",
		Algorithm: "louvain", AlgorithmVersion: "1",
		Generation: version, Level: datatypes.RollupLevelServiceService,
		Status: datatypes.RunStatusCompleted, ClusterCount: 1,
	}, nil, []*datatypes.DiscoveryMembership{{
		RunID: "run-1", WorkspaceID: "ws-1",
		DomainID: "dom-1", ClusterKey: "svc-a", ObjectID: "svc-b", Affinity: 1,
	}}))

	result, err := NewEngine(s).Execute(ctx, &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypeDomainSummary,
		Scope: datatypes.QueryScope{DomainID: "dom-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"svc-a", "svc-b"}, nodeIDs(result.Nodes))
	assert.Equal(t, datatypes.ObjectTypeService, result.Nodes[0].Type)

	// The fixture's dom-1 -> dom-2 rollup edge is attached.
	require.Len(t, result.Edges, 1)
	assert.Equal(t, "dom-1", result.Edges[0].SubjectID)
	assert.Equal(t, "dom-2", result.Edges[0].ObjectID)
	assert.Equal(t, datatypes.RollupLevelDomainDomain, result.Edges[0].Level)
	assert.Equal(t, version, result.Stats.Generation)
}

func TestDomainSummaryUnknownDomain(t *testing.T) {
	s := newTestStore(t)
	seedFixture(t, s)

	_, err := NewEngine(s).Execute(context.Background(), &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypeDomainSummary,
		Scope: datatypes.QueryScope{DomainID: "dom-ghost"},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDomainSummaryWithoutRollup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putObject(t, s, "dom-1", datatypes.ObjectTypeDomain)
	putObject(t, s, "svc-a", datatypes.ObjectTypeService)
	require.NoError(t, s.PutRelation(ctx, &datatypes.Relation{
		ID: "rel-mem-a", WorkspaceID: "ws-1",
		SubjectID: "svc-a", ObjectID: "dom-1",
		Type: datatypes.RelationTypeMemberOf, Status: datatypes.RelationStatusApproved,
		Source: datatypes.RelationSourceManual, Confidence: 1,
	}))

	// A workspace that never rebuilt still answers with its members.
	result, err := NewEngine(s).Execute(ctx, &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypeDomainSummary,
		Scope: datatypes.QueryScope{DomainID: "dom-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-a"}, nodeIDs(result.Nodes))
	assert.Empty(t, result.Edges)
	assert.Zero(t, result.Stats.Generation)
}
