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

// CandidateStatus is the approval state of a domain candidate.
type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "PENDING"
	CandidateStatusApproved CandidateStatus = "APPROVED"
	CandidateStatusRejected CandidateStatus = "REJECTED"
)

// DomainCandidate is a seeded-inference result for one object.
//
// Affinities is a probability distribution over candidate domains: values
// are in [0,1] and sum to 1. Purity is the maximum affinity, PrimaryDomainID
// the arg-max. Secondary domains are all non-primary domains whose affinity
// meets the configured threshold, sorted by descending affinity.
//
// Re-running seeded inference REPLACES the PENDING candidate for the same
// (workspace, object) pair. APPROVED and REJECTED candidates are never
// touched by a re-run.
type DomainCandidate struct {
	WorkspaceID string `json:"workspace_id"`
	ObjectID    string `json:"object_id"`

	// Affinities maps domain id to normalized affinity.
	Affinities map[string]float64 `json:"affinities"`

	// Purity is the maximum affinity value.
	Purity float64 `json:"purity"`

	// PrimaryDomainID is the arg-max domain.
	PrimaryDomainID string `json:"primary_domain_id"`

	// SecondaryDomainIDs are non-primary domains above the threshold,
	// sorted by descending affinity (lexicographic on ties).
	SecondaryDomainIDs []string `json:"secondary_domain_ids,omitempty"`

	// Signals is the raw, pre-normalization breakdown:
	// signal name -> domain id -> raw score.
	Signals map[string]map[string]float64 `json:"signals,omitempty"`

	Status    CandidateStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunStatus is the lifecycle state of a discovery run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// DiscoveryRun records one execution of seed-less domain discovery.
//
// A run over zero qualifying rollup edges is a well-defined no-op: it is
// recorded as COMPLETED with ClusterCount 0, never as a failure.
type DiscoveryRun struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`

	// Algorithm and AlgorithmVersion identify the clustering implementation.
	Algorithm        string `json:"algorithm"`
	AlgorithmVersion string `json:"algorithm_version"`

	// Generation is the rollup generation the input graph was built from.
	Generation int64 `json:"generation"`

	// Level is the rollup level used as input.
	Level RollupLevel `json:"level"`

	Resolution     float64 `json:"resolution"`
	MinClusterSize int     `json:"min_cluster_size"`

	// Final graph statistics, recorded whether or not any cluster
	// survives the size filter.
	NodeCount    int     `json:"node_count"`
	EdgeCount    int     `json:"edge_count"`
	ClusterCount int     `json:"cluster_count"`
	Modularity   float64 `json:"modularity"`

	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// DiscoveryMembership assigns one object to a discovered domain.
type DiscoveryMembership struct {
	RunID       string `json:"run_id"`
	WorkspaceID string `json:"workspace_id"`

	// DomainID is the discovered domain object id.
	DomainID string `json:"domain_id"`

	// ClusterKey is the stable identifier of the cluster within the run.
	ClusterKey string `json:"cluster_key"`

	ObjectID string `json:"object_id"`

	// Affinity is 1.0 for hard community assignment.
	Affinity float64 `json:"affinity"`

	// Purity is optional; zero when the algorithm provides none.
	Purity float64 `json:"purity,omitempty"`
}
