// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rollup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	atlasbadger "github.com/AleutianAI/atlas/services/atlas/storage/badger"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

func newTestStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	db, err := atlasbadger.Open(atlasbadger.InMemoryConfig())
	require.NoError(t, err)
	s := store.NewBadgerStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putObject(t *testing.T, s *store.BadgerStore, obj *datatypes.Object) {
	t.Helper()
	if obj.WorkspaceID == "" {
		obj.WorkspaceID = "ws-1"
	}
	if obj.Visibility == "" {
		obj.Visibility = datatypes.VisibilityVisible
	}
	if obj.Path == "" && obj.ParentID == "" {
		obj.Path = obj.ID
	}
	require.NoError(t, s.PutObject(context.Background(), obj))
}

func putCompound(t *testing.T, s *store.BadgerStore, id string, typ datatypes.ObjectType) {
	t.Helper()
	putObject(t, s, &datatypes.Object{
		ID: id, Type: typ, Granularity: datatypes.GranularityCompound,
	})
}

func putAtomic(t *testing.T, s *store.BadgerStore, id, parentID string, typ datatypes.ObjectType) {
	t.Helper()
	putObject(t, s, &datatypes.Object{
		ID: id, Type: typ, Granularity: datatypes.GranularityAtomic,
		ParentID: parentID, Path: parentID + "/" + id, Depth: 1,
	})
}

func putApproved(t *testing.T, s *store.BadgerStore, id, subject, object string, typ datatypes.RelationType) {
	t.Helper()
	require.NoError(t, s.PutRelation(context.Background(), &datatypes.Relation{
		ID: id, WorkspaceID: "ws-1", SubjectID: subject, ObjectID: object,
		Type: typ, Status: datatypes.RelationStatusApproved,
		Source: datatypes.RelationSourceManual, Confidence: 1,
	}))
}

// seedGraph builds two services with endpoints, a database with a table, a
// broker with a topic, and two domains with approved memberships.
func seedGraph(t *testing.T, s *store.BadgerStore) {
	t.Helper()
	putCompound(t, s, "svc-a", datatypes.ObjectTypeService)
	putCompound(t, s, "svc-b", datatypes.ObjectTypeService)
	putAtomic(t, s, "ep-a1", "svc-a", datatypes.ObjectTypeAPIEndpoint)
	putAtomic(t, s, "ep-b1", "svc-b", datatypes.ObjectTypeAPIEndpoint)
	putCompound(t, s, "db-1", datatypes.ObjectTypeDatabase)
	putAtomic(t, s, "tbl-1", "db-1", datatypes.ObjectTypeTable)
	putCompound(t, s, "brk-1", datatypes.ObjectTypeBroker)
	putAtomic(t, s, "top-1", "brk-1", datatypes.ObjectTypeTopic)
	putObject(t, s, &datatypes.Object{
		ID: "dom-1", Type: datatypes.ObjectTypeDomain,
		Granularity: datatypes.GranularityCompound, Origin: datatypes.DomainOriginSeed,
	})
	putObject(t, s, &datatypes.Object{
		ID: "dom-2", Type: datatypes.ObjectTypeDomain,
		Granularity: datatypes.GranularityCompound, Origin: datatypes.DomainOriginSeed,
	})

	putApproved(t, s, "rel-call", "svc-a", "ep-b1", datatypes.RelationTypeCall)
	putApproved(t, s, "rel-dep", "svc-a", "svc-b", datatypes.RelationTypeDependOn)
	putApproved(t, s, "rel-write", "svc-b", "tbl-1", datatypes.RelationTypeWrite)
	putApproved(t, s, "rel-read", "svc-b", "tbl-1", datatypes.RelationTypeRead)
	putApproved(t, s, "rel-prod", "svc-a", "top-1", datatypes.RelationTypeProduce)
	putApproved(t, s, "rel-cons", "svc-b", "top-1", datatypes.RelationTypeConsume)
	putApproved(t, s, "rel-expose", "svc-a", "ep-a1", datatypes.RelationTypeExpose)
	putApproved(t, s, "rel-mem-a", "svc-a", "dom-1", datatypes.RelationTypeMemberOf)
	putApproved(t, s, "rel-mem-b", "svc-b", "dom-2", datatypes.RelationTypeMemberOf)
}

func TestRebuildProjectsAllLevels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, s)

	version, err := NewEngine(s).Rebuild(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	ss, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceService)
	require.NoError(t, err)
	require.Len(t, ss, 1)
	// call (1.0) and depend_on (0.4) between the same services merge into
	// one edge keeping the max weight.
	assert.Equal(t, "svc-a", ss[0].SubjectID)
	assert.Equal(t, "svc-b", ss[0].ObjectID)
	assert.Equal(t, 1.0, ss[0].Weight)
	assert.Equal(t, 1.0, ss[0].Confidence)
	assert.Equal(t, 2, ss[0].RelationCount)

	sdb, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceDatabase)
	require.NoError(t, err)
	require.Len(t, sdb, 1)
	assert.Equal(t, "svc-b", sdb[0].SubjectID)
	assert.Equal(t, "db-1", sdb[0].ObjectID)
	assert.Equal(t, 0.8, sdb[0].Weight)
	assert.Equal(t, 2, sdb[0].RelationCount)

	sb, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceBroker)
	require.NoError(t, err)
	require.Len(t, sb, 2)
	assert.Equal(t, "svc-a", sb[0].SubjectID)
	assert.Equal(t, "svc-b", sb[1].SubjectID)
	assert.Equal(t, "brk-1", sb[0].ObjectID)
	assert.Equal(t, 0.6, sb[0].Weight)

	dd, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelDomainDomain)
	require.NoError(t, err)
	require.Len(t, dd, 1)
	assert.Equal(t, "dom-1", dd[0].SubjectID)
	assert.Equal(t, "dom-2", dd[0].ObjectID)
	assert.Equal(t, 1.0, dd[0].Weight)
	assert.Equal(t, 2, dd[0].RelationCount)
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, s)

	engine := NewEngine(s)
	v1, err := engine.Rebuild(ctx, "ws-1")
	require.NoError(t, err)
	v2, err := engine.Rebuild(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	active, err := s.ActiveGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, v2, active)

	// Identical input produces an identical edge set under the new
	// generation; the old generation stays readable as ARCHIVED.
	for _, level := range datatypes.RollupLevels() {
		old, err := s.ListRollupEdges(ctx, "ws-1", v1, level)
		require.NoError(t, err)
		fresh, err := s.ListRollupEdges(ctx, "ws-1", v2, level)
		require.NoError(t, err)
		require.Len(t, fresh, len(old))
		for i := range old {
			assert.Equal(t, old[i].SubjectID, fresh[i].SubjectID)
			assert.Equal(t, old[i].ObjectID, fresh[i].ObjectID)
			assert.Equal(t, old[i].Weight, fresh[i].Weight)
			assert.Equal(t, old[i].RelationCount, fresh[i].RelationCount)
		}
	}
}

func TestRebuildEmptyWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	version, err := NewEngine(s).Rebuild(ctx, "ws-empty")
	require.NoError(t, err)

	gen, err := s.GetGeneration(ctx, "ws-empty", version)
	require.NoError(t, err)
	assert.Equal(t, datatypes.GenerationStatusActive, gen.Status)
	assert.Zero(t, gen.EdgeCount)
}

func TestRebuildUnknownObjectKeepsPriorGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, s)

	engine := NewEngine(s)
	v1, err := engine.Rebuild(ctx, "ws-1")
	require.NoError(t, err)

	putApproved(t, s, "rel-ghost", "svc-a", "ghost", datatypes.RelationTypeCall)

	_, err = engine.Rebuild(ctx, "ws-1")
	require.ErrorIs(t, err, ErrUnknownObject)

	// The failed build never became visible.
	active, err := s.ActiveGeneration(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, v1, active)

	gen, err := s.GetGeneration(ctx, "ws-1", v1+1)
	require.NoError(t, err)
	assert.Equal(t, datatypes.GenerationStatusFailed, gen.Status)
}

func TestRebuildSkipsIntraServiceRelations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putCompound(t, s, "svc-a", datatypes.ObjectTypeService)
	putAtomic(t, s, "ep-a1", "svc-a", datatypes.ObjectTypeAPIEndpoint)
	putAtomic(t, s, "ep-a2", "svc-a", datatypes.ObjectTypeAPIEndpoint)
	putApproved(t, s, "rel-self", "ep-a1", "ep-a2", datatypes.RelationTypeCall)

	version, err := NewEngine(s).Rebuild(ctx, "ws-1")
	require.NoError(t, err)

	ss, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceService)
	require.NoError(t, err)
	assert.Empty(t, ss)
}

func TestRebuildCustomWeights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, s)

	weights := datatypes.BaseWeights{datatypes.RelationTypeCall: 0.5}
	version, err := NewEngine(s, WithBaseWeights(weights)).Rebuild(ctx, "ws-1")
	require.NoError(t, err)

	// Only call relations participate under the custom weight table.
	ss, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceService)
	require.NoError(t, err)
	require.Len(t, ss, 1)
	assert.Equal(t, 0.5, ss[0].Weight)
	assert.Equal(t, 1, ss[0].RelationCount)

	sdb, err := s.ListRollupEdges(ctx, "ws-1", version, datatypes.RollupLevelServiceDatabase)
	require.NoError(t, err)
	assert.Empty(t, sdb)
}

func TestLevelTarget(t *testing.T) {
	tests := []struct {
		name    string
		subject datatypes.Category
		object  datatypes.Category
		want    datatypes.RollupLevel
		ok      bool
	}{
		{"compute to compute", datatypes.CategoryCompute, datatypes.CategoryCompute, datatypes.RollupLevelServiceService, true},
		{"compute to storage", datatypes.CategoryCompute, datatypes.CategoryStorage, datatypes.RollupLevelServiceDatabase, true},
		{"compute to channel", datatypes.CategoryCompute, datatypes.CategoryChannel, datatypes.RollupLevelServiceBroker, true},
		{"storage subject", datatypes.CategoryStorage, datatypes.CategoryCompute, "", false},
		{"meta object", datatypes.CategoryCompute, datatypes.CategoryMeta, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := levelTarget(tt.subject, tt.object)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRebuildWithWeightsReportsEdgeCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGraph(t, s)

	version, edgeCount, err := NewEngine(s).RebuildWithWeights(ctx, "ws-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// One service-service, one service-database, two service-broker, one
	// domain-domain edge.
	assert.Equal(t, 5, edgeCount)

	gen, err := s.GetGeneration(ctx, "ws-1", version)
	require.NoError(t, err)
	assert.Equal(t, edgeCount, gen.EdgeCount)
}
