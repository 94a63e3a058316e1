// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rollup implements the rollup aggregation engine.
//
// A rebuild consumes all APPROVED relations of a workspace, projects each
// qualifying relation onto the COMPOUND ancestors of its endpoints, and
// materializes one deduplicated, weighted edge set per rollup level, tagged
// with a freshly allocated generation version.
//
// # Generation Lifecycle
//
// Edges are written under a BUILDING generation, invisible to readers. The
// ACTIVE/ARCHIVED flip in the store is the only externally visible state
// transition: a failed rebuild marks its generation FAILED and leaves the
// prior ACTIVE generation untouched.
//
// # Concurrency
//
// Rebuilds are serialized per workspace; rebuilds of different workspaces
// run in parallel. The four level projections of one rebuild run
// concurrently via errgroup.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// ErrUnknownObject is returned when an approved relation references an
// object id that does not exist. The rebuild fails as a unit so callers can
// distinguish bad references from empty workspaces.
var ErrUnknownObject = errors.New("relation references unknown object")

// maxAncestorDepth bounds hierarchy climbing to catch parent cycles.
const maxAncestorDepth = 32

// Engine runs rollup rebuilds against a graph store.
//
// Thread Safety: safe for concurrent use. Rebuilds of the same workspace
// are serialized internally.
type Engine struct {
	store   store.Store
	weights datatypes.BaseWeights
	logger  *logging.Logger

	// locks serializes rebuilds per workspace (workspaceID -> *sync.Mutex).
	locks sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseWeights overrides the per-relation-type base weights.
func WithBaseWeights(w datatypes.BaseWeights) Option {
	return func(e *Engine) {
		if len(w) > 0 {
			e.weights = w
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a rollup engine with default base weights.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		weights: datatypes.DefaultBaseWeights(),
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) workspaceLock(workspaceID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(workspaceID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Rebuild recomputes all rollup levels for a workspace under a new
// generation and atomically activates it.
//
// # Description
//
// Loads the workspace's objects and APPROVED relations, allocates the next
// generation version, projects every qualifying relation onto the four
// rollup levels, writes the merged edge set, and flips the active
// generation pointer. Any failure after allocation marks the generation
// FAILED; the previously ACTIVE generation stays readable throughout.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - workspaceID: Target workspace. Must be non-empty.
//
// # Outputs
//
//   - int64: The newly ACTIVE generation version.
//   - error: Non-nil on store errors, unknown object references, or
//     cancellation. The prior ACTIVE generation is untouched on error.
func (e *Engine) Rebuild(ctx context.Context, workspaceID string) (int64, error) {
	version, _, err := e.RebuildWithWeights(ctx, workspaceID, e.weights)
	return version, err
}

// RebuildWithWeights runs Rebuild with per-call base weights, typically a
// workspace profile override, and additionally reports the number of edges
// written. Nil or empty weights fall back to the engine defaults.
// Per-workspace serialization is shared with Rebuild.
func (e *Engine) RebuildWithWeights(ctx context.Context, workspaceID string, weights datatypes.BaseWeights) (int64, int, error) {
	if len(weights) == 0 {
		weights = e.weights
	}
	mu := e.workspaceLock(workspaceID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	objects, err := e.store.ListObjects(ctx, workspaceID, store.ObjectFilter{IncludeHidden: true})
	if err != nil {
		return 0, 0, fmt.Errorf("list objects: %w", err)
	}
	relations, err := e.store.ListApprovedRelations(ctx, workspaceID)
	if err != nil {
		return 0, 0, fmt.Errorf("list approved relations: %w", err)
	}

	gen, err := e.store.BeginGeneration(ctx, workspaceID)
	if err != nil {
		return 0, 0, fmt.Errorf("begin generation: %w", err)
	}

	edges, err := e.project(ctx, workspaceID, gen.Version, weights, objects, relations)
	if err != nil {
		e.fail(ctx, workspaceID, gen.Version, "project", err)
		return 0, 0, err
	}
	if err := e.store.WriteRollupEdges(ctx, edges); err != nil {
		e.fail(ctx, workspaceID, gen.Version, "write", err)
		return 0, 0, fmt.Errorf("write rollup edges: %w", err)
	}
	if err := e.store.ActivateGeneration(ctx, workspaceID, gen.Version, len(edges)); err != nil {
		e.fail(ctx, workspaceID, gen.Version, "activate", err)
		return 0, 0, fmt.Errorf("activate generation: %w", err)
	}

	e.logger.Info("rollup rebuild completed",
		"workspace_id", workspaceID,
		"generation", gen.Version,
		"relations", len(relations),
		"edges", len(edges),
		"duration", time.Since(start),
	)
	return gen.Version, len(edges), nil
}

// fail marks the generation FAILED and logs the stage for diagnosis.
func (e *Engine) fail(ctx context.Context, workspaceID string, version int64, stage string, cause error) {
	if err := e.store.FailGeneration(ctx, workspaceID, version); err != nil {
		e.logger.Error("failed to mark generation failed",
			"workspace_id", workspaceID, "generation", version, "error", err)
	}
	e.logger.Error("rollup rebuild failed",
		"workspace_id", workspaceID,
		"generation", version,
		"stage", stage,
		"error", cause,
	)
}

// =============================================================================
// Projection
// =============================================================================

// Hierarchy resolves objects to their COMPOUND ancestors and services to
// their approved domains. It is a read-only index over one workspace's
// objects and memberships, shared by the rollup and inference engines.
type Hierarchy struct {
	objects map[string]*datatypes.Object

	// domainOf maps a COMPOUND object id to its approved domain id.
	domainOf map[string]string
}

// NewHierarchy indexes objects by id and extracts approved member_of
// relations into a domain lookup.
func NewHierarchy(objects []*datatypes.Object, relations []*datatypes.Relation) *Hierarchy {
	h := &Hierarchy{
		objects:  make(map[string]*datatypes.Object, len(objects)),
		domainOf: make(map[string]string),
	}
	for _, obj := range objects {
		h.objects[obj.ID] = obj
	}
	for _, rel := range relations {
		if rel.Type == datatypes.RelationTypeMemberOf {
			h.domainOf[rel.SubjectID] = rel.ObjectID
		}
	}
	return h
}

// Object returns the indexed object by id.
func (h *Hierarchy) Object(id string) (*datatypes.Object, bool) {
	obj, ok := h.objects[id]
	return obj, ok
}

// DomainOf returns the approved domain of a COMPOUND object, if any.
func (h *Hierarchy) DomainOf(id string) (string, bool) {
	domain, ok := h.domainOf[id]
	return domain, ok
}

// CompoundAncestor climbs the parent chain until it reaches a COMPOUND
// object and returns it. An ATOMIC object without a parent stands for
// itself.
func (h *Hierarchy) CompoundAncestor(id string) (*datatypes.Object, error) {
	current, ok := h.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if current.Granularity == datatypes.GranularityCompound {
			return current, nil
		}
		if current.ParentID == "" {
			// An ATOMIC root stands for itself.
			return current, nil
		}
		parent, ok := h.objects[current.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of %s", ErrUnknownObject, current.ParentID, current.ID)
		}
		current = parent
	}
	return nil, fmt.Errorf("ancestor chain too deep for object %s", id)
}

// edgeKey identifies one ordered (subject, object) pair within a level.
type edgeKey struct {
	subject string
	object  string
}

// levelTarget returns the rollup level for a (subject, object) ancestor
// category pair, or false when the pair qualifies for no level.
func levelTarget(subject, object datatypes.Category) (datatypes.RollupLevel, bool) {
	if subject != datatypes.CategoryCompute {
		return "", false
	}
	switch object {
	case datatypes.CategoryCompute:
		return datatypes.RollupLevelServiceService, true
	case datatypes.CategoryStorage:
		return datatypes.RollupLevelServiceDatabase, true
	case datatypes.CategoryChannel:
		return datatypes.RollupLevelServiceBroker, true
	}
	return "", false
}

// project computes the merged edge sets of all four levels. Each level runs
// in its own goroutine; results are deterministic regardless of schedule
// because levels share no output state.
func (e *Engine) project(ctx context.Context, workspaceID string, version int64, weights datatypes.BaseWeights, objects []*datatypes.Object, relations []*datatypes.Relation) ([]*datatypes.RollupEdge, error) {
	h := NewHierarchy(objects, relations)

	levels := datatypes.RollupLevels()
	merged := make([]map[edgeKey]*datatypes.RollupEdge, len(levels))

	g, ctx := errgroup.WithContext(ctx)
	for i, level := range levels {
		g.Go(func() error {
			m, err := e.projectLevel(ctx, workspaceID, version, level, weights, h, relations)
			if err != nil {
				return err
			}
			merged[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var edges []*datatypes.RollupEdge
	for _, m := range merged {
		for _, edge := range m {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.ObjectID < b.ObjectID
	})
	return edges, nil
}

// projectLevel projects all qualifying relations onto one level, merging
// parallel projections by keeping the maximum observed weight per ordered
// pair.
func (e *Engine) projectLevel(ctx context.Context, workspaceID string, version int64, level datatypes.RollupLevel, weights datatypes.BaseWeights, h *Hierarchy, relations []*datatypes.Relation) (map[edgeKey]*datatypes.RollupEdge, error) {
	out := make(map[edgeKey]*datatypes.RollupEdge)

	for i, rel := range relations {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		weight, ok := weights.Weight(rel.Type)
		if !ok {
			continue
		}

		subject, err := h.CompoundAncestor(rel.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", rel.ID, err)
		}
		object, err := h.CompoundAncestor(rel.ObjectID)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", rel.ID, err)
		}

		var key edgeKey
		switch level {
		case datatypes.RollupLevelDomainDomain:
			subjectDomain, okS := h.DomainOf(subject.ID)
			objectDomain, okO := h.DomainOf(object.ID)
			if !okS || !okO || subjectDomain == objectDomain {
				continue
			}
			key = edgeKey{subject: subjectDomain, object: objectDomain}
		default:
			target, ok := levelTarget(subject.Category(), object.Category())
			if !ok || target != level {
				continue
			}
			if subject.ID == object.ID {
				// Intra-compound relations (endpoint to endpoint of the
				// same service) produce no rollup edge.
				continue
			}
			key = edgeKey{subject: subject.ID, object: object.ID}
		}

		if existing, ok := out[key]; ok {
			if weight > existing.Weight {
				existing.Weight = weight
			}
			existing.Confidence += rel.Confidence
			existing.RelationCount++
			continue
		}
		out[key] = &datatypes.RollupEdge{
			WorkspaceID:   workspaceID,
			Generation:    version,
			Level:         level,
			SubjectID:     key.subject,
			ObjectID:      key.object,
			Weight:        weight,
			Confidence:    rel.Confidence,
			RelationCount: 1,
		}
	}

	// Confidence accumulated as a sum above; finalize to the mean.
	for _, edge := range out {
		edge.Confidence /= float64(edge.RelationCount)
	}
	return out, nil
}
