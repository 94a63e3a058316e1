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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// activateEdges writes service_service rollup edges under a fresh ACTIVE
// generation and returns its version.
func activateEdges(t *testing.T, s *store.BadgerStore, ws string, pairs map[[2]string]float64) int64 {
	t.Helper()
	ctx := context.Background()

	gen, err := s.BeginGeneration(ctx, ws)
	require.NoError(t, err)

	var edges []*datatypes.RollupEdge
	for pair, weight := range pairs {
		edges = append(edges, &datatypes.RollupEdge{
			WorkspaceID: ws, Generation: gen.Version,
			Level:     datatypes.RollupLevelServiceService,
			SubjectID: pair[0], ObjectID: pair[1],
			Weight: weight, RelationCount: 1,
		})
	}
	require.NoError(t, s.WriteRollupEdges(ctx, edges))
	require.NoError(t, s.ActivateGeneration(ctx, ws, gen.Version, len(edges)))
	return gen.Version
}

func TestDiscoverTwoClusters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	version := activateEdges(t, s, "ws-1", map[[2]string]float64{
		{"svc-a1", "svc-a2"}: 1.0,
		{"svc-a2", "svc-a3"}: 1.0,
		{"svc-a1", "svc-a3"}: 1.0,
		{"svc-b1", "svc-b2"}: 1.0,
		{"svc-b2", "svc-b3"}: 1.0,
		{"svc-b1", "svc-b3"}: 1.0,
		{"svc-a3", "svc-b1"}: 0.1,
		// An isolated pair falls under the minimum cluster size.
		{"svc-c1", "svc-c2"}: 1.0,
	})

	run, err := NewDiscoveryEngine(s, nil).Discover(ctx, "ws-1", nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusCompleted, run.Status)
	assert.Equal(t, version, run.Generation)
	assert.Equal(t, DiscoveryAlgorithm, run.Algorithm)
	assert.Equal(t, 8, run.NodeCount)
	assert.Equal(t, 8, run.EdgeCount)
	assert.Equal(t, 2, run.ClusterCount)
	assert.Greater(t, run.Modularity, 0.0)

	stored, err := s.GetDiscoveryRun(ctx, "ws-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ClusterCount, stored.ClusterCount)

	// Cluster keys are the smallest member ids; the derived domain
	// objects are DISCOVERED and carry their cluster key.
	domA, err := s.GetObject(ctx, "ws-1", "domain.svc-a1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ObjectTypeDomain, domA.Type)
	assert.Equal(t, datatypes.DomainOriginDiscovered, domA.Origin)
	assert.Equal(t, "svc-a1", domA.Metadata["cluster_key"])

	members, err := s.ListDiscoveryMemberships(ctx, "ws-1", "domain.svc-a1")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "svc-a1", members[0].ObjectID)
	assert.InDelta(t, 1.0, members[0].Affinity, 1e-9)
	assert.Greater(t, members[0].Purity, 0.9)

	membersB, err := s.ListDiscoveryMemberships(ctx, "ws-1", "domain.svc-b1")
	require.NoError(t, err)
	assert.Len(t, membersB, 3)
}

func TestDiscoverRerunIsStable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	activateEdges(t, s, "ws-1", map[[2]string]float64{
		{"svc-a1", "svc-a2"}: 1.0,
		{"svc-a2", "svc-a3"}: 1.0,
		{"svc-a1", "svc-a3"}: 1.0,
	})

	engine := NewDiscoveryEngine(s, nil)
	first, err := engine.Discover(ctx, "ws-1", nil)
	require.NoError(t, err)
	second, err := engine.Discover(ctx, "ws-1", nil)
	require.NoError(t, err)

	// Identical input maps to the identical domain id, so a re-run
	// replaces rather than proliferates discovered domains.
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, second.ClusterCount)

	domains, err := s.ListObjects(ctx, "ws-1", store.ObjectFilter{
		Types:  []datatypes.ObjectType{datatypes.ObjectTypeDomain},
		Origin: datatypes.DomainOriginDiscovered,
	})
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "domain.svc-a1", domains[0].ID)
	assert.Equal(t, second.ID, domains[0].Metadata["run_id"])
}

func TestDiscoverNoActiveGeneration(t *testing.T) {
	s := newTestStore(t)

	run, err := NewDiscoveryEngine(s, nil).Discover(context.Background(), "ws-empty", nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusCompleted, run.Status)
	assert.Zero(t, run.ClusterCount)
	assert.Zero(t, run.Generation)

	stored, err := s.GetDiscoveryRun(context.Background(), "ws-empty", run.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusCompleted, stored.Status)
}

func TestDiscoverEmptyRollup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gen, err := s.BeginGeneration(ctx, "ws-1")
	require.NoError(t, err)
	require.NoError(t, s.ActivateGeneration(ctx, "ws-1", gen.Version, 0))

	run, err := NewDiscoveryEngine(s, nil).Discover(ctx, "ws-1", nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.RunStatusCompleted, run.Status)
	assert.Zero(t, run.ClusterCount)
	assert.Zero(t, run.NodeCount)
	assert.Equal(t, gen.Version, run.Generation)
}

func TestDiscoverPinnedGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v1 := activateEdges(t, s, "ws-1", map[[2]string]float64{
		{"svc-a1", "svc-a2"}: 1.0,
		{"svc-a2", "svc-a3"}: 1.0,
		{"svc-a1", "svc-a3"}: 1.0,
	})
	// Second generation supersedes the first but v1 stays queryable.
	activateEdges(t, s, "ws-1", map[[2]string]float64{
		{"svc-a1", "svc-a2"}: 1.0,
	})

	run, err := NewDiscoveryEngine(s, nil).Discover(ctx, "ws-1", &DiscoveryOptions{Generation: v1})
	require.NoError(t, err)
	assert.Equal(t, v1, run.Generation)
	assert.Equal(t, 1, run.ClusterCount)
}
