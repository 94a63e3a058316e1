// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes registers the HTTP routes of the Atlas service.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/atlas/services/atlas/config"
	"github.com/AleutianAI/atlas/services/atlas/domains"
	"github.com/AleutianAI/atlas/services/atlas/handlers"
	"github.com/AleutianAI/atlas/services/atlas/middleware"
	"github.com/AleutianAI/atlas/services/atlas/observability"
	"github.com/AleutianAI/atlas/services/atlas/query"
	"github.com/AleutianAI/atlas/services/atlas/rollup"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// Engines bundles the service engines routes depend on.
type Engines struct {
	Rollup    *rollup.Engine
	Seeded    *domains.SeededEngine
	Discovery *domains.DiscoveryEngine
	Query     *query.Engine
}

// NewEngines constructs the standard engine set over one store.
func NewEngines(s store.Store) Engines {
	return Engines{
		Rollup:    rollup.NewEngine(s),
		Seeded:    domains.NewSeededEngine(s, nil),
		Discovery: domains.NewDiscoveryEngine(s, nil),
		Query:     query.NewEngine(s),
	}
}

// SetupRoutes registers all Atlas routes on the router.
//
// # Inputs
//
//   - router: Gin router to register on.
//   - engines: The service engines.
//   - cfg: Config manager for workspace profiles and rate limits. May be
//     nil; defaults apply.
//   - metrics: Prometheus metrics. May be nil; recording is skipped.
func SetupRoutes(router *gin.Engine, engines Engines, cfg *config.Manager, metrics *observability.Metrics) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rps, burst := 0.0, 0
	if cfg != nil {
		current := cfg.Current()
		rps = current.Server.RateRPS
		burst = current.Server.RateBurst
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimit(rps, burst))
	{
		v1.POST("/rebuild", handlers.HandleRebuild(engines.Rollup, cfg, metrics))
		v1.POST("/infer", handlers.HandleInfer(engines.Seeded, metrics))
		v1.POST("/discover", handlers.HandleDiscover(engines.Discovery, metrics))
		v1.POST("/query", handlers.HandleQuery(engines.Query, cfg, metrics))
	}
}
