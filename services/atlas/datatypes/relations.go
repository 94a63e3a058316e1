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

import (
	"fmt"

	"github.com/AleutianAI/atlas/pkg/validation"
)

// RelationType defines the interaction kind of a directed edge.
type RelationType string

const (
	// RelationTypeCall is a synchronous invocation (service -> service/endpoint).
	RelationTypeCall RelationType = "call"

	// RelationTypeExpose marks a service exposing an endpoint.
	RelationTypeExpose RelationType = "expose"

	// RelationTypeRead is a storage read (service -> database/table).
	RelationTypeRead RelationType = "read"

	// RelationTypeWrite is a storage write (service -> database/table).
	RelationTypeWrite RelationType = "write"

	// RelationTypeProduce publishes to a channel (service -> topic/broker).
	RelationTypeProduce RelationType = "produce"

	// RelationTypeConsume subscribes to a channel (service -> topic/broker).
	RelationTypeConsume RelationType = "consume"

	// RelationTypeDependOn is a generic weak dependency.
	RelationTypeDependOn RelationType = "depend_on"

	// RelationTypeMemberOf assigns an object to a domain. Created when a
	// domain candidate is approved, never by scanners.
	RelationTypeMemberOf RelationType = "member_of"
)

// relationTypeSet is the closed enumeration of relation types.
var relationTypeSet = map[RelationType]struct{}{
	RelationTypeCall:     {},
	RelationTypeExpose:   {},
	RelationTypeRead:     {},
	RelationTypeWrite:    {},
	RelationTypeProduce:  {},
	RelationTypeConsume:  {},
	RelationTypeDependOn: {},
	RelationTypeMemberOf: {},
}

// Valid reports whether the relation type is known.
func (t RelationType) Valid() bool {
	_, ok := relationTypeSet[t]
	return ok
}

// RelationStatus is the approval lifecycle state of a relation.
//
// The rollup, discovery, and query engines only ever read APPROVED
// relations. Once APPROVED a relation is immutable input until deleted.
type RelationStatus string

const (
	RelationStatusPending  RelationStatus = "PENDING"
	RelationStatusApproved RelationStatus = "APPROVED"
	RelationStatusRejected RelationStatus = "REJECTED"
)

// RelationSource records how a relation came to exist.
type RelationSource string

const (
	RelationSourceManual   RelationSource = "MANUAL"
	RelationSourceInferred RelationSource = "INFERRED"
	RelationSourceRollup   RelationSource = "ROLLUP"
)

// Relation is a directed, typed edge between two objects.
type Relation struct {
	// ID is the stable relation identifier.
	ID string `json:"id"`

	// WorkspaceID scopes the relation to one workspace.
	WorkspaceID string `json:"workspace_id"`

	// SubjectID is the source object id.
	SubjectID string `json:"subject_id"`

	// ObjectID is the target object id.
	ObjectID string `json:"object_id"`

	// Type is the interaction kind.
	Type RelationType `json:"type"`

	// Status is the approval state. Engines read APPROVED only.
	Status RelationStatus `json:"status"`

	// Source records the relation's provenance.
	Source RelationSource `json:"source"`

	// Derived marks relations produced from other relations.
	Derived bool `json:"derived,omitempty"`

	// Confidence is an optional certainty in [0,1]. Zero value 1.0 is
	// applied by Validate for manual relations that omit it.
	Confidence float64 `json:"confidence"`
}

// Validate checks identifiers, enum membership, and the confidence range.
func (r *Relation) Validate() error {
	if err := validation.ValidateIdentifier(r.ID); err != nil {
		return fmt.Errorf("relation id: %w", err)
	}
	if err := validation.ValidateWorkspaceID(r.WorkspaceID); err != nil {
		return err
	}
	if err := validation.ValidateIdentifier(r.SubjectID); err != nil {
		return fmt.Errorf("subject id: %w", err)
	}
	if err := validation.ValidateIdentifier(r.ObjectID); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unknown relation type %q", r.Type)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	return nil
}

// BaseWeights maps relation types to rollup edge base weights.
//
// Weights are per-workspace configurable. Relation types absent from the
// map contribute no rollup edge.
type BaseWeights map[RelationType]float64

// DefaultBaseWeights returns the default per-relation-type base weights:
// call > read/write > produce/consume > depend_on.
func DefaultBaseWeights() BaseWeights {
	return BaseWeights{
		RelationTypeCall:     1.0,
		RelationTypeRead:     0.8,
		RelationTypeWrite:    0.8,
		RelationTypeProduce:  0.6,
		RelationTypeConsume:  0.6,
		RelationTypeDependOn: 0.4,
	}
}

// Weight returns the base weight for the relation type and whether the
// type participates in rollups at all.
func (w BaseWeights) Weight(t RelationType) (float64, bool) {
	weight, ok := w[t]
	return weight, ok
}
