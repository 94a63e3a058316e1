// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/atlas/services/atlas/config"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/domains"
	"github.com/AleutianAI/atlas/services/atlas/observability"
	"github.com/AleutianAI/atlas/services/atlas/rollup"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleRebuild triggers a rollup rebuild.
//
// # Description
//
// POST /v1/rebuild. Rebuilds all rollup levels of the workspace under a
// new generation and atomically activates it. Base weights come from the
// workspace's config profile when one exists.
func HandleRebuild(engine *rollup.Engine, cfg *config.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RebuildRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		weights := datatypes.BaseWeights(nil)
		if cfg != nil {
			weights = cfg.Current().BaseWeightsFor(req.WorkspaceID)
		}

		start := time.Now()
		version, edgeCount, err := engine.RebuildWithWeights(c.Request.Context(), req.WorkspaceID, weights)
		if metrics != nil {
			metrics.RecordOperation(observability.OperationRebuild, err == nil, time.Since(start))
		}
		if err != nil {
			writeError(c, err)
			return
		}
		if metrics != nil {
			metrics.RecordRebuild(req.WorkspaceID, edgeCount)
		}

		c.JSON(http.StatusOK, datatypes.RebuildResponse{
			WorkspaceID: req.WorkspaceID,
			Generation:  version,
			EdgeCount:   edgeCount,
			Duration:    time.Since(start),
		})
	}
}

// HandleInfer triggers seeded domain inference.
//
// # Description
//
// POST /v1/infer. Scores every compute service against the workspace's
// seed domains and writes PENDING candidates. Finalized candidates are
// never touched.
func HandleInfer(engine *domains.SeededEngine, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.InferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		start := time.Now()
		result, err := engine.Infer(c.Request.Context(), req.WorkspaceID, &domains.SeededOptions{
			SignalWeights:      req.SignalWeights,
			SecondaryThreshold: req.SecondaryThreshold,
		})
		if metrics != nil {
			metrics.RecordOperation(observability.OperationInfer, err == nil, time.Since(start))
		}
		if err != nil {
			writeError(c, err)
			return
		}
		if metrics != nil {
			metrics.RecordCandidates(req.WorkspaceID, result.Written)
		}

		c.JSON(http.StatusOK, result)
	}
}

// HandleDiscover triggers seed-less domain discovery.
//
// # Description
//
// POST /v1/discover. Clusters the service-service rollup of the pinned
// (or ACTIVE) generation and materializes DISCOVERED domains. A workspace
// without rollup data completes as an empty run.
func HandleDiscover(engine *domains.DiscoveryEngine, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DiscoverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		start := time.Now()
		run, err := engine.Discover(c.Request.Context(), req.WorkspaceID, &domains.DiscoveryOptions{
			Generation:     req.Generation,
			Resolution:     req.Resolution,
			MinClusterSize: req.MinClusterSize,
		})
		if metrics != nil {
			metrics.RecordOperation(observability.OperationDiscover, err == nil, time.Since(start))
		}
		if err != nil {
			writeError(c, err)
			return
		}
		if metrics != nil {
			metrics.RecordDiscovery(req.WorkspaceID, run.ClusterCount)
		}

		c.JSON(http.StatusOK, run)
	}
}
