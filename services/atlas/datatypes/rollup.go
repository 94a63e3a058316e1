// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// RollupLevel identifies one of the four fixed rollup projections.
type RollupLevel string

const (
	// RollupLevelServiceService aggregates compute-to-compute interactions.
	RollupLevelServiceService RollupLevel = "service_service"

	// RollupLevelServiceDatabase aggregates compute-to-storage interactions.
	RollupLevelServiceDatabase RollupLevel = "service_database"

	// RollupLevelServiceBroker aggregates compute-to-channel interactions.
	RollupLevelServiceBroker RollupLevel = "service_broker"

	// RollupLevelDomainDomain aggregates interactions between domains,
	// resolved through approved domain memberships.
	RollupLevelDomainDomain RollupLevel = "domain_domain"
)

// RollupLevels returns all levels in build order.
func RollupLevels() []RollupLevel {
	return []RollupLevel{
		RollupLevelServiceService,
		RollupLevelServiceDatabase,
		RollupLevelServiceBroker,
		RollupLevelDomainDomain,
	}
}

// Valid reports whether the level is one of the four fixed projections.
func (l RollupLevel) Valid() bool {
	switch l {
	case RollupLevelServiceService, RollupLevelServiceDatabase,
		RollupLevelServiceBroker, RollupLevelDomainDomain:
		return true
	}
	return false
}

// RollupEdge is a materialized aggregated edge at one rollup level.
//
// Within one (workspace, generation, level) there is at most one edge per
// ordered (subject, object) pair: parallel projections are merged by keeping
// the maximum observed weight. Rollup edges are written in bulk by a rebuild
// and never mutated in place.
type RollupEdge struct {
	WorkspaceID string      `json:"workspace_id"`
	Generation  int64       `json:"generation"`
	Level       RollupLevel `json:"level"`

	// SubjectID and ObjectID are COMPOUND ancestor ids (or domain ids at
	// the domain_domain level).
	SubjectID string `json:"subject_id"`
	ObjectID  string `json:"object_id"`

	// Weight is the maximum base weight among merged projections.
	Weight float64 `json:"weight"`

	// Confidence is the mean confidence of the merged relations, used by
	// path scoring.
	Confidence float64 `json:"confidence"`

	// RelationCount is the number of underlying relations merged into
	// this edge. Informational only.
	RelationCount int `json:"relation_count"`
}

// GenerationStatus is the lifecycle state of a rollup generation.
type GenerationStatus string

const (
	// GenerationStatusBuilding marks a generation whose edges are still
	// being written. Never visible to readers.
	GenerationStatusBuilding GenerationStatus = "BUILDING"

	// GenerationStatusActive marks the single readable generation per
	// workspace.
	GenerationStatusActive GenerationStatus = "ACTIVE"

	// GenerationStatusArchived marks superseded generations. Readable by
	// pinned queries until pruned.
	GenerationStatusArchived GenerationStatus = "ARCHIVED"

	// GenerationStatusFailed marks generations abandoned mid-build.
	GenerationStatusFailed GenerationStatus = "FAILED"
)

// Generation identifies one complete, self-consistent rollup snapshot.
//
// Versions increase monotonically per workspace. Exactly one generation per
// workspace is ACTIVE at a time; the BUILDING -> ACTIVE flip is the only
// externally visible state transition of a rebuild.
type Generation struct {
	WorkspaceID string           `json:"workspace_id"`
	Version     int64            `json:"version"`
	Status      GenerationStatus `json:"status"`

	// EdgeCount is the total rollup edges written across all levels.
	EdgeCount int `json:"edge_count"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Finalized reports whether the generation completed building and its edge
// set is immutable (ACTIVE or ARCHIVED).
func (g *Generation) Finalized() bool {
	return g.Status == GenerationStatusActive || g.Status == GenerationStatusArchived
}
