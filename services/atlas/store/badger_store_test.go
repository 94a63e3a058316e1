// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	atlasbadger "github.com/AleutianAI/atlas/services/atlas/storage/badger"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := atlasbadger.Open(atlasbadger.InMemoryConfig())
	require.NoError(t, err)
	s := NewBadgerStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putService(t *testing.T, s *BadgerStore, ws, id string) {
	t.Helper()
	require.NoError(t, s.PutObject(context.Background(), &datatypes.Object{
		ID:          id,
		WorkspaceID: ws,
		Type:        datatypes.ObjectTypeService,
		Name:        id,
		Granularity: datatypes.GranularityCompound,
		Path:        id,
		Visibility:  datatypes.VisibilityVisible,
	}))
}

func TestObjectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putService(t, s, "ws-1", "svc-a")

	obj, err := s.GetObject(ctx, "ws-1", "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "svc-a", obj.ID)
	assert.Equal(t, datatypes.CategoryCompute, obj.Category())

	_, err = s.GetObject(ctx, "ws-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListObjectsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putService(t, s, "ws-1", "svc-a")
	require.NoError(t, s.PutObject(ctx, &datatypes.Object{
		ID: "db-1", WorkspaceID: "ws-1", Type: datatypes.ObjectTypeDatabase,
		Granularity: datatypes.GranularityCompound, Path: "db-1",
		Visibility: datatypes.VisibilityVisible,
	}))
	require.NoError(t, s.PutObject(ctx, &datatypes.Object{
		ID: "svc-hidden", WorkspaceID: "ws-1", Type: datatypes.ObjectTypeService,
		Granularity: datatypes.GranularityCompound, Path: "svc-hidden",
		Visibility: datatypes.VisibilityHidden,
	}))

	services, err := s.ListObjects(ctx, "ws-1", ObjectFilter{
		Types: []datatypes.ObjectType{datatypes.ObjectTypeService},
	})
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "svc-a", services[0].ID)

	all, err := s.ListObjects(ctx, "ws-1", ObjectFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListApprovedRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRelation(ctx, &datatypes.Relation{
		ID: "rel-1", WorkspaceID: "ws-1", SubjectID: "a", ObjectID: "b",
		Type: datatypes.RelationTypeCall, Status: datatypes.RelationStatusApproved,
		Source: datatypes.RelationSourceManual, Confidence: 1,
	}))
	require.NoError(t, s.PutRelation(ctx, &datatypes.Relation{
		ID: "rel-2", WorkspaceID: "ws-1", SubjectID: "a", ObjectID: "c",
		Type: datatypes.RelationTypeCall, Status: datatypes.RelationStatusPending,
		Source: datatypes.RelationSourceInferred, Confidence: 0.7,
	}))

	approved, err := s.ListApprovedRelations(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "rel-1", approved[0].ID)
}

func TestGenerationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No active generation before any rebuild.
	_, err := s.ActiveGeneration(ctx, "ws-1")
	assert.ErrorIs(t, err, ErrNoActiveGeneration)

	gen1, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen1.Version)
	assert.Equal(t, datatypes.GenerationStatusBuilding, gen1.Status)

	// BUILDING generations are not readable.
	_, err = s.ListRollupEdges(ctx, "ws-1", gen1.Version, datatypes.RollupLevelServiceService)
	assert.ErrorIs(t, err, ErrGenerationNotFinalized)

	edges := []*datatypes.RollupEdge{{
		WorkspaceID: "ws-1", Generation: gen1.Version,
		Level: datatypes.RollupLevelServiceService,
		SubjectID: "svc-a", ObjectID: "svc-b", Weight: 1.0, RelationCount: 2,
	}}
	require.NoError(t, s.WriteRollupEdges(ctx, edges))
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen1.Version, 1))

	active, err := s.ActiveGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, gen1.Version, active)

	got, err := s.ListRollupEdges(ctx, "ws-1", gen1.Version, datatypes.RollupLevelServiceService)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Weight)

	// Second rebuild archives the first generation atomically.
	gen2, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen2.Version)
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen2.Version, 0))

	active, err = s.ActiveGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, gen2.Version, active)

	prev, err := s.GetGeneration(ctx, "ws-1", gen1.Version)
	require.NoError(t, err)
	assert.Equal(t, datatypes.GenerationStatusArchived, prev.Status)

	// Archived generations stay readable for pinned queries.
	got, err = s.ListRollupEdges(ctx, "ws-1", gen1.Version, datatypes.RollupLevelServiceService)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFailGenerationLeavesActiveUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen1, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen1.Version, 0))

	gen2, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	require.NoError(t, s.FailGeneration(ctx, "ws-1", gen2.Version))

	active, err := s.ActiveGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, gen1.Version, active)

	failed, err := s.GetGeneration(ctx, "ws-1", gen2.Version)
	require.NoError(t, err)
	assert.Equal(t, datatypes.GenerationStatusFailed, failed.Status)

	// A failed generation cannot be activated afterwards.
	assert.Error(t, s.ActivateGeneration(ctx, "ws-1", gen2.Version, 0))
}

func TestPruneGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen1, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	require.NoError(t, s.WriteRollupEdges(ctx, []*datatypes.RollupEdge{{
		WorkspaceID: "ws-1", Generation: gen1.Version,
		Level: datatypes.RollupLevelServiceService, SubjectID: "a", ObjectID: "b", Weight: 1,
	}}))
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen1.Version, 1))

	// The ACTIVE generation is never prunable.
	assert.ErrorIs(t, s.PruneGeneration(ctx, "ws-1", gen1.Version), ErrActiveGeneration)

	gen2, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen2.Version, 0))

	require.NoError(t, s.PruneGeneration(ctx, "ws-1", gen1.Version))
	_, err = s.GetGeneration(ctx, "ws-1", gen1.Version)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplacePendingCandidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &datatypes.DomainCandidate{
		WorkspaceID: "ws-1", ObjectID: "svc-a",
		Affinities:      map[string]float64{"dom-1": 1.0},
		Purity:          1.0,
		PrimaryDomainID: "dom-1",
	}
	written, err := s.ReplacePendingCandidate(ctx, first)
	require.NoError(t, err)
	assert.True(t, written)

	// Re-running replaces the PENDING candidate rather than duplicating.
	second := &datatypes.DomainCandidate{
		WorkspaceID: "ws-1", ObjectID: "svc-a",
		Affinities:      map[string]float64{"dom-2": 1.0},
		Purity:          1.0,
		PrimaryDomainID: "dom-2",
	}
	written, err = s.ReplacePendingCandidate(ctx, second)
	require.NoError(t, err)
	assert.True(t, written)

	pending, err := s.ListDomainCandidates(ctx, "ws-1", datatypes.CandidateStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "dom-2", pending[0].PrimaryDomainID)

	// Approved candidates are never replaced by a re-run.
	require.NoError(t, s.SetCandidateStatus(ctx, "ws-1", "svc-a", datatypes.CandidateStatusApproved))
	written, err = s.ReplacePendingCandidate(ctx, first)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := s.GetDomainCandidate(ctx, "ws-1", "svc-a")
	require.NoError(t, err)
	assert.Equal(t, "dom-2", got.PrimaryDomainID)
	assert.Equal(t, datatypes.CandidateStatusApproved, got.Status)
}

func TestCommitDiscoveryAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &datatypes.DiscoveryRun{
		ID: "run-1", WorkspaceID: "ws-1",
		Algorithm: "louvain", AlgorithmVersion: "1",
		Generation: 1, Level: datatypes.RollupLevelServiceService,
		Status: datatypes.RunStatusCompleted, ClusterCount: 1,
	}
	domain := &datatypes.Object{
		ID: "dom-disc-1", WorkspaceID: "ws-1", Type: datatypes.ObjectTypeDomain,
		Granularity: datatypes.GranularityCompound, Path: "dom-disc-1",
		Visibility: datatypes.VisibilityVisible,
		Origin:     datatypes.DomainOriginDiscovered,
	}
	members := []*datatypes.DiscoveryMembership{
		{RunID: "run-1", WorkspaceID: "ws-1", DomainID: "dom-disc-1", ObjectID: "svc-a", Affinity: 1.0},
		{RunID: "run-1", WorkspaceID: "ws-1", DomainID: "dom-disc-1", ObjectID: "svc-b", Affinity: 1.0},
	}

	require.NoError(t, s.CommitDiscovery(ctx, run, []*datatypes.Object{domain}, members))

	gotRun, err := s.GetDiscoveryRun(ctx, "ws-1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusCompleted, gotRun.Status)

	gotMembers, err := s.ListDiscoveryMemberships(ctx, "ws-1", "dom-disc-1")
	require.NoError(t, err)
	assert.Len(t, gotMembers, 2)

	gotDomain, err := s.GetObject(ctx, "ws-1", "dom-disc-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.DomainOriginDiscovered, gotDomain.Origin)
}

func TestReplacePendingCandidateRejectsBadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ReplacePendingCandidate(ctx, &datatypes.DomainCandidate{
		WorkspaceID: "ws/../1", ObjectID: "svc-a",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace id")

	_, err = s.ReplacePendingCandidate(ctx, &datatypes.DomainCandidate{
		WorkspaceID: "ws-1", ObjectID: "",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object id")

	// Nothing was written by the rejected calls.
	pending, err := s.ListDomainCandidates(ctx, "ws-1", datatypes.CandidateStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCommitDiscoveryRejectsBadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &datatypes.DiscoveryRun{
		ID: "run/1", WorkspaceID: "ws-1",
		Algorithm: "louvain", AlgorithmVersion: "1",
		Generation: 1, Level: datatypes.RollupLevelServiceService,
		Status: datatypes.RunStatusCompleted,
	}
	err := s.CommitDiscovery(ctx, run, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id")

	run.ID = "run-1"
	members := []*datatypes.DiscoveryMembership{
		{RunID: "run-1", WorkspaceID: "ws-1", DomainID: "dom disc", ObjectID: "svc-a", Affinity: 1.0},
	}
	err = s.CommitDiscovery(ctx, run, nil, members)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain id")

	// The rejected runs left no trace.
	_, err = s.GetDiscoveryRun(ctx, "ws-1", "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkspaceIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putService(t, s, "ws-1", "svc-a")
	putService(t, s, "ws-2", "svc-b")

	objs, err := s.ListObjects(ctx, "ws-1", ObjectFilter{})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "svc-a", objs[0].ID)
}
