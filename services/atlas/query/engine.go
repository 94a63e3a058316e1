// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query implements the read-side graph query engine.
//
// Every query runs through the same pipeline: PARSE -> VALIDATE ->
// TRAVERSE -> RANK -> RESPOND. Validation fails fast before any store
// access. Traversal is pinned to a single rollup generation resolved at
// query start and never mixes generations mid-flight.
//
// Traversal budgets (hops, visited nodes, wall clock) are hard bounds:
// exhausting a budget truncates the result and sets Truncated, it never
// fails the query.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

var queryTracer = otel.Tracer("atlas.query")

// Sentinel errors for query execution.
var (
	// ErrInvalidRequest is returned when the request fails validation.
	// Wrapped errors carry the specific field failure.
	ErrInvalidRequest = errors.New("invalid query request")

	// ErrUnknownQueryType is returned for query types outside the closed
	// enumeration.
	ErrUnknownQueryType = errors.New("unknown query type")
)

// Budgets holds the effective traversal limits of one query execution.
type Budgets struct {
	MaxHops            int
	MaxVisited         int
	Timeout            time.Duration
	TopK               int
	HubDegreeThreshold int
}

// DefaultBudgets returns the global default budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxHops:            datatypes.DefaultMaxHops,
		MaxVisited:         datatypes.DefaultMaxVisited,
		Timeout:            datatypes.DefaultQueryTimeout,
		TopK:               datatypes.DefaultTopK,
		HubDegreeThreshold: datatypes.DefaultHubDegreeThreshold,
	}
}

// merge overlays non-zero per-call params onto the budget set.
func (b Budgets) merge(p datatypes.QueryParams) Budgets {
	if p.MaxHops > 0 {
		b.MaxHops = p.MaxHops
	}
	if p.MaxVisited > 0 {
		b.MaxVisited = p.MaxVisited
	}
	if p.Timeout > 0 {
		b.Timeout = p.Timeout
	}
	if p.TopK > 0 {
		b.TopK = p.TopK
	}
	if p.HubDegreeThreshold > 0 {
		b.HubDegreeThreshold = p.HubDegreeThreshold
	}
	return b
}

// Engine executes graph queries against finalized rollup generations.
//
// Thread Safety: safe for concurrent use.
type Engine struct {
	store    store.Store
	validate *validator.Validate
	logger   *logging.Logger
	defaults Budgets
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDefaultBudgets overrides the engine-wide default budgets, typically
// from a workspace profile.
func WithDefaultBudgets(b Budgets) EngineOption {
	return func(e *Engine) { e.defaults = b }
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine with default budgets.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		validate: validator.New(),
		logger:   logging.Default(),
		defaults: DefaultBudgets(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one query through the full pipeline.
//
// # Inputs
//
//   - ctx: Context for cancellation, combined with the query timeout.
//   - req: The query request. Validated before any store access.
//
// # Outputs
//
//   - *datatypes.QueryResult: The result, possibly truncated.
//   - error: ErrInvalidRequest for bad input, store.ErrNotFound for
//     unknown objects, store.ErrNoActiveGeneration when no rollup exists.
func (e *Engine) Execute(ctx context.Context, req *datatypes.QueryRequest) (*datatypes.QueryResult, error) {
	ctx, span := queryTracer.Start(ctx, "query.Engine.Execute")
	defer span.End()

	if err := e.validateRequest(req); err != nil {
		span.AddEvent("validation_failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("workspace_id", req.WorkspaceID),
		attribute.String("query_type", string(req.Type)),
	)

	budgets := e.defaults.merge(req.Params)
	ctx, cancel := context.WithTimeout(ctx, budgets.Timeout)
	defer cancel()

	start := time.Now()
	var (
		result *datatypes.QueryResult
		err    error
	)
	switch req.Type {
	case datatypes.QueryTypeImpactAnalysis:
		result, err = e.impact(ctx, req, budgets)
	case datatypes.QueryTypePathDiscovery:
		result, err = e.paths(ctx, req, budgets)
	case datatypes.QueryTypeUsageDiscovery:
		result, err = e.usage(ctx, req, budgets)
	case datatypes.QueryTypeDomainSummary:
		result, err = e.domainSummary(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueryType, req.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Type = req.Type
	result.Stats.Duration = time.Since(start)

	e.logger.Debug("query executed",
		"workspace_id", req.WorkspaceID,
		"type", req.Type,
		"nodes", len(result.Nodes),
		"visited", result.Stats.VisitedCount,
		"truncated", result.Truncated,
		"duration", result.Stats.Duration,
	)
	span.SetAttributes(
		attribute.Int("visited_count", result.Stats.VisitedCount),
		attribute.Bool("truncated", result.Truncated),
	)
	return result, nil
}

// validateRequest checks struct tags plus per-type scope requirements.
// Validation never touches the store.
func (e *Engine) validateRequest(req *datatypes.QueryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := e.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownQueryType, req.Type)
	}

	switch req.Type {
	case datatypes.QueryTypeImpactAnalysis, datatypes.QueryTypeUsageDiscovery:
		if req.Scope.ObjectID == "" {
			return fmt.Errorf("%w: scope.object_id is required for %s", ErrInvalidRequest, req.Type)
		}
	case datatypes.QueryTypePathDiscovery:
		if req.Scope.ObjectID == "" || req.Scope.TargetID == "" {
			return fmt.Errorf("%w: scope.object_id and scope.target_id are required for %s", ErrInvalidRequest, req.Type)
		}
		if req.Scope.ObjectID == req.Scope.TargetID {
			return fmt.Errorf("%w: source and target are the same object", ErrInvalidRequest)
		}
	case datatypes.QueryTypeDomainSummary:
		if req.Scope.DomainID == "" {
			return fmt.Errorf("%w: scope.domain_id is required for %s", ErrInvalidRequest, req.Type)
		}
	}
	return nil
}

// pinGeneration resolves the generation a query runs against: the pinned
// version from the scope, or the ACTIVE generation at query start.
func (e *Engine) pinGeneration(ctx context.Context, workspaceID string, scope datatypes.QueryScope) (int64, error) {
	if scope.Generation > 0 {
		return scope.Generation, nil
	}
	version, err := e.store.ActiveGeneration(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	return version, nil
}
