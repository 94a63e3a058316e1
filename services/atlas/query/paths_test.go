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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

func TestPathDiscoveryRanksByScore(t *testing.T) {
	s := newTestStore(t)
	version := seedFixture(t, s)

	result, err := NewEngine(s).Execute(context.Background(), &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypePathDiscovery,
		Scope: datatypes.QueryScope{ObjectID: "svc-a", TargetID: "svc-c"},
	})
	require.NoError(t, err)
	assert.Equal(t, version, result.Stats.Generation)
	require.Len(t, result.Paths, 2)

	// The two-hop path through svc-b has a far stronger bottleneck
	// (0.8 vs 0.4) and outranks the direct edge despite the hop penalty.
	best := result.Paths[0]
	assert.Equal(t, []string{"svc-a", "svc-b", "svc-c"}, best.Nodes)
	assert.Equal(t, 2, best.Hops)
	assert.InDelta(t, 0.85, best.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.8, best.MinEdgeWeight, 1e-9)
	assert.InDelta(t, 0.85*math.Log1p(0.8)/1.1, best.Score, 1e-9)
	assert.Equal(t, "svc-a>svc-b>svc-c", best.Key)

	direct := result.Paths[1]
	assert.Equal(t, []string{"svc-a", "svc-c"}, direct.Nodes)
	assert.InDelta(t, 1.0*math.Log1p(0.4)/1.0, direct.Score, 1e-9)
	assert.Greater(t, best.Score, direct.Score)
}

func TestPathDiscoveryNoPathIsEmptyResult(t *testing.T) {
	s := newTestStore(t)
	seedFixture(t, s)

	result, err := NewEngine(s).Execute(context.Background(), &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypePathDiscovery,
		Scope: datatypes.QueryScope{ObjectID: "svc-a", TargetID: "svc-d"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Paths)
	assert.False(t, result.Truncated)
}

func TestPathDiscoveryTopK(t *testing.T) {
	s := newTestStore(t)
	seedFixture(t, s)

	result, err := NewEngine(s).Execute(context.Background(), &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypePathDiscovery,
		Scope:  datatypes.QueryScope{ObjectID: "svc-a", TargetID: "svc-c"},
		Params: datatypes.QueryParams{TopK: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Paths, 1)
	assert.Equal(t, []string{"svc-a", "svc-b", "svc-c"}, result.Paths[0].Nodes)
}

func TestPathDiscoveryHopBudgetTruncates(t *testing.T) {
	s := newTestStore(t)
	seedFixture(t, s)

	result, err := NewEngine(s).Execute(context.Background(), &datatypes.QueryRequest{
		WorkspaceID: "ws-1", Type: datatypes.QueryTypePathDiscovery,
		Scope:  datatypes.QueryScope{ObjectID: "svc-a", TargetID: "svc-c"},
		Params: datatypes.QueryParams{MaxHops: 1},
	})
	require.NoError(t, err)

	// Only the direct edge fits inside one hop; the two-hop path exists
	// beyond the budget, so the result is marked truncated.
	require.Len(t, result.Paths, 1)
	assert.Equal(t, []string{"svc-a", "svc-c"}, result.Paths[0].Nodes)
	assert.True(t, result.Truncated)
}

func TestPathScore(t *testing.T) {
	t.Run("hop penalty decreases score", func(t *testing.T) {
		oneHop := PathScore(1.0, 1.0, 1)
		twoHops := PathScore(1.0, 1.0, 2)
		threeHops := PathScore(1.0, 1.0, 3)
		assert.Greater(t, oneHop, twoHops)
		assert.Greater(t, twoHops, threeHops)
	})

	t.Run("stronger bottleneck increases score", func(t *testing.T) {
		assert.Greater(t, PathScore(1.0, 0.8, 2), PathScore(1.0, 0.4, 2))
	})

	t.Run("higher confidence increases score", func(t *testing.T) {
		assert.Greater(t, PathScore(0.9, 1.0, 2), PathScore(0.5, 1.0, 2))
	})

	t.Run("exact formula", func(t *testing.T) {
		assert.InDelta(t, 0.85*math.Log1p(0.8)/1.1, PathScore(0.85, 0.8, 2), 1e-12)
	})

	t.Run("degenerate hops", func(t *testing.T) {
		assert.Zero(t, PathScore(1.0, 1.0, 0))
	})
}
