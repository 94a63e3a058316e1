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
	"github.com/AleutianAI/atlas/services/atlas/observability"
	"github.com/AleutianAI/atlas/services/atlas/query"
)

// HandleQuery executes a graph query.
//
// # Description
//
// POST /v1/query. The request carries the query type, scope, and optional
// per-call budget overrides. Workspace config profiles fill budget fields
// the caller left at zero, then the engine's defaults cover the rest.
// Truncated results return 200 with Truncated set, never an error.
func HandleQuery(engine *query.Engine, cfg *config.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if cfg != nil {
			applyProfileBudgets(&req, cfg.Current().BudgetsFor(req.WorkspaceID))
		}

		start := time.Now()
		result, err := engine.Execute(c.Request.Context(), &req)
		if metrics != nil {
			truncated := err == nil && result.Truncated
			metrics.RecordQuery(string(req.Type), err == nil, truncated)
			metrics.RecordOperation(observability.OperationQuery, err == nil, time.Since(start))
		}
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// applyProfileBudgets fills zero-valued budget params from the workspace
// profile. Explicit per-call params always win.
func applyProfileBudgets(req *datatypes.QueryRequest, profile config.BudgetProfile) {
	p := &req.Params
	if p.MaxHops == 0 && profile.MaxHops > 0 {
		p.MaxHops = profile.MaxHops
	}
	if p.MaxVisited == 0 && profile.MaxVisited > 0 {
		p.MaxVisited = profile.MaxVisited
	}
	if p.Timeout == 0 && profile.Timeout > 0 {
		p.Timeout = profile.Timeout
	}
	if p.TopK == 0 && profile.TopK > 0 {
		p.TopK = profile.TopK
	}
	if p.HubDegreeThreshold == 0 && profile.HubDegreeThreshold > 0 {
		p.HubDegreeThreshold = profile.HubDegreeThreshold
	}
}
