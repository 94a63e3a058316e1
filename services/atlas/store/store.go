// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store implements the Atlas graph store adapter on BadgerDB.
//
// The store holds objects and relations (written by external collaborators),
// and rollup generations, domain candidates, and discovery runs (written by
// the Atlas engines).
//
// # Consistency Model
//
// The generation pointer is the sole synchronization point between the
// rollup rebuild writer and query readers. ActivateGeneration performs the
// ARCHIVED/ACTIVE flip and the pointer update in a single transaction, so
// readers observe either the old or the new generation, never a mix.
// Rollup edge rows themselves are written outside any reader-visible state:
// a BUILDING generation's edges are unreachable until the flip.
//
// CommitDiscovery persists a discovery run together with its discovered
// domain objects and memberships in one transaction (batch-job atomicity).
package store

import (
	"context"
	"errors"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	// Callers can distinguish "no relations" (empty list) from "bad
	// reference" (this error).
	ErrNotFound = errors.New("record not found")

	// ErrNoActiveGeneration is returned when a workspace has no ACTIVE
	// rollup generation.
	ErrNoActiveGeneration = errors.New("no active generation")

	// ErrGenerationNotFinalized is returned when a read targets a
	// generation that never finished building.
	ErrGenerationNotFinalized = errors.New("generation not finalized")

	// ErrActiveGeneration is returned when pruning targets the current
	// ACTIVE generation.
	ErrActiveGeneration = errors.New("cannot prune active generation")
)

// ObjectFilter narrows ListObjects results. Zero value matches all
// visible objects.
type ObjectFilter struct {
	// Types restricts to the given object types when non-empty.
	Types []datatypes.ObjectType

	// Origin restricts domain objects by origin when set.
	Origin datatypes.DomainOrigin

	// IncludeHidden includes HIDDEN objects.
	IncludeHidden bool
}

// Store is the graph store adapter consumed by the rollup, domain
// inference, and query engines.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// PutObject inserts or replaces an object after validating it.
	PutObject(ctx context.Context, obj *datatypes.Object) error

	// GetObject returns one object or ErrNotFound.
	GetObject(ctx context.Context, workspaceID, id string) (*datatypes.Object, error)

	// ListObjects returns the workspace's objects matching the filter,
	// sorted by id.
	ListObjects(ctx context.Context, workspaceID string, filter ObjectFilter) ([]*datatypes.Object, error)

	// PutRelation inserts or replaces a relation after validating it.
	PutRelation(ctx context.Context, rel *datatypes.Relation) error

	// ListApprovedRelations returns all APPROVED relations for the
	// workspace, sorted by id. Engines never read other statuses.
	ListApprovedRelations(ctx context.Context, workspaceID string) ([]*datatypes.Relation, error)

	// BeginGeneration allocates the next generation version for the
	// workspace and records it as BUILDING.
	BeginGeneration(ctx context.Context, workspaceID string) (*datatypes.Generation, error)

	// WriteRollupEdges bulk-writes rollup edges for a BUILDING generation.
	WriteRollupEdges(ctx context.Context, edges []*datatypes.RollupEdge) error

	// ActivateGeneration atomically archives the previous ACTIVE
	// generation and activates the given BUILDING one.
	ActivateGeneration(ctx context.Context, workspaceID string, version int64, edgeCount int) error

	// FailGeneration marks a BUILDING generation as FAILED, leaving the
	// previous ACTIVE generation untouched.
	FailGeneration(ctx context.Context, workspaceID string, version int64) error

	// ActiveGeneration returns the ACTIVE generation version or
	// ErrNoActiveGeneration.
	ActiveGeneration(ctx context.Context, workspaceID string) (int64, error)

	// GetGeneration returns one generation record or ErrNotFound.
	GetGeneration(ctx context.Context, workspaceID string, version int64) (*datatypes.Generation, error)

	// ListRollupEdges returns the edges of one (generation, level),
	// sorted by (subject, object). Returns ErrGenerationNotFinalized for
	// BUILDING or FAILED generations and ErrNotFound for unknown ones.
	ListRollupEdges(ctx context.Context, workspaceID string, version int64, level datatypes.RollupLevel) ([]*datatypes.RollupEdge, error)

	// PruneGeneration deletes an ARCHIVED or FAILED generation and its
	// edges. Refuses the ACTIVE generation with ErrActiveGeneration.
	PruneGeneration(ctx context.Context, workspaceID string, version int64) error

	// ReplacePendingCandidate writes a PENDING domain candidate,
	// replacing any existing PENDING candidate for the same object.
	// Candidates already APPROVED or REJECTED are left untouched; the
	// boolean reports whether a write happened.
	ReplacePendingCandidate(ctx context.Context, cand *datatypes.DomainCandidate) (bool, error)

	// GetDomainCandidate returns the candidate for one object or ErrNotFound.
	GetDomainCandidate(ctx context.Context, workspaceID, objectID string) (*datatypes.DomainCandidate, error)

	// ListDomainCandidates returns candidates, optionally filtered by
	// status (empty matches all), sorted by object id.
	ListDomainCandidates(ctx context.Context, workspaceID string, status datatypes.CandidateStatus) ([]*datatypes.DomainCandidate, error)

	// SetCandidateStatus transitions a candidate's status (approval flow).
	SetCandidateStatus(ctx context.Context, workspaceID, objectID string, status datatypes.CandidateStatus) error

	// CommitDiscovery persists a discovery run together with its
	// discovered domain objects and memberships in one transaction.
	CommitDiscovery(ctx context.Context, run *datatypes.DiscoveryRun, domains []*datatypes.Object, memberships []*datatypes.DiscoveryMembership) error

	// GetDiscoveryRun returns one run record or ErrNotFound.
	GetDiscoveryRun(ctx context.Context, workspaceID, runID string) (*datatypes.DiscoveryRun, error)

	// ListDiscoveryMemberships returns the discovery memberships of one
	// domain, sorted by object id.
	ListDiscoveryMemberships(ctx context.Context, workspaceID, domainID string) ([]*datatypes.DiscoveryMembership, error)

	// Close releases the underlying database.
	Close() error
}
