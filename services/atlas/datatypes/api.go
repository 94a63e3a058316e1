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

// RebuildRequest triggers a rollup rebuild for one workspace.
type RebuildRequest struct {
	WorkspaceID string `json:"workspace_id" binding:"required"`
}

// RebuildResponse reports a completed rebuild.
type RebuildResponse struct {
	WorkspaceID string        `json:"workspace_id"`
	Generation  int64         `json:"generation"`
	EdgeCount   int           `json:"edge_count"`
	Duration    time.Duration `json:"duration"`
}

// InferRequest triggers seeded domain inference for one workspace.
type InferRequest struct {
	WorkspaceID string `json:"workspace_id" binding:"required"`

	// SignalWeights overrides the signal combination weights by signal
	// name. Omitted signals keep their defaults.
	SignalWeights map[string]float64 `json:"signal_weights,omitempty"`

	// SecondaryThreshold overrides the minimum affinity for secondary
	// domains. Zero keeps the default.
	SecondaryThreshold float64 `json:"secondary_threshold,omitempty"`
}

// DiscoverRequest triggers seed-less domain discovery for one workspace.
type DiscoverRequest struct {
	WorkspaceID string `json:"workspace_id" binding:"required"`

	// Generation pins the rollup generation used as input. Zero resolves
	// the ACTIVE generation.
	Generation int64 `json:"generation,omitempty"`

	// Resolution overrides the clustering resolution. Zero keeps the
	// default.
	Resolution float64 `json:"resolution,omitempty"`

	// MinClusterSize overrides the minimum emitted cluster size. Zero
	// keeps the default.
	MinClusterSize int `json:"min_cluster_size,omitempty"`
}
