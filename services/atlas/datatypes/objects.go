// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the core data model for the Atlas graph:
// objects (nodes), relations (edges), rollup edges, generations, domain
// candidates, and query request/response shapes.
//
// Objects and relations are produced by external collaborators (scanners,
// manual registration, inference pipelines). Atlas reads them and writes
// back rollup edges, domain candidates, discovered domains, and discovery
// runs. The only objects Atlas itself creates are DISCOVERED domains.
package datatypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/atlas/pkg/validation"
)

// ObjectType classifies a node in the architecture graph.
//
// The enumeration is closed: unknown types are rejected at validation time
// so category derivation stays total.
type ObjectType string

const (
	// ObjectTypeService is a deployable compute unit (COMPOUND).
	ObjectTypeService ObjectType = "service"

	// ObjectTypeAPIEndpoint is a single exposed endpoint of a service (ATOMIC).
	ObjectTypeAPIEndpoint ObjectType = "api_endpoint"

	// ObjectTypeJob is a scheduled or batch compute unit (COMPOUND).
	ObjectTypeJob ObjectType = "job"

	// ObjectTypeDatabase is a storage system (COMPOUND).
	ObjectTypeDatabase ObjectType = "database"

	// ObjectTypeTable is a single table or collection within a database (ATOMIC).
	ObjectTypeTable ObjectType = "table"

	// ObjectTypeBroker is a messaging system (COMPOUND).
	ObjectTypeBroker ObjectType = "broker"

	// ObjectTypeTopic is a single topic or queue within a broker (ATOMIC).
	ObjectTypeTopic ObjectType = "topic"

	// ObjectTypeDomain is a logical grouping of objects (COMPOUND, META).
	ObjectTypeDomain ObjectType = "domain"
)

// Category is the coarse classification derived from the object type.
type Category string

const (
	CategoryCompute Category = "COMPUTE"
	CategoryStorage Category = "STORAGE"
	CategoryChannel Category = "CHANNEL"
	CategoryMeta    Category = "META"
)

// objectCategories maps each object type to its derived category.
var objectCategories = map[ObjectType]Category{
	ObjectTypeService:     CategoryCompute,
	ObjectTypeAPIEndpoint: CategoryCompute,
	ObjectTypeJob:         CategoryCompute,
	ObjectTypeDatabase:    CategoryStorage,
	ObjectTypeTable:       CategoryStorage,
	ObjectTypeBroker:      CategoryChannel,
	ObjectTypeTopic:       CategoryChannel,
	ObjectTypeDomain:      CategoryMeta,
}

// Category returns the derived category for the object type.
// Unknown types map to CategoryMeta.
func (t ObjectType) Category() Category {
	if c, ok := objectCategories[t]; ok {
		return c
	}
	return CategoryMeta
}

// Valid reports whether the object type is part of the closed enumeration.
func (t ObjectType) Valid() bool {
	_, ok := objectCategories[t]
	return ok
}

// Granularity distinguishes aggregate nodes from leaf nodes.
type Granularity string

const (
	// GranularityCompound marks an aggregate node such as a whole service.
	GranularityCompound Granularity = "COMPOUND"

	// GranularityAtomic marks a leaf node such as one endpoint.
	GranularityAtomic Granularity = "ATOMIC"
)

// Visibility controls whether an object appears in query results.
type Visibility string

const (
	VisibilityVisible Visibility = "VISIBLE"
	VisibilityHidden  Visibility = "HIDDEN"
)

// DomainOrigin distinguishes human-authored domains from discovered ones.
type DomainOrigin string

const (
	// DomainOriginSeed marks a human-defined domain usable for seeded inference.
	DomainOriginSeed DomainOrigin = "SEED"

	// DomainOriginDiscovered marks a domain created by community detection.
	DomainOriginDiscovered DomainOrigin = "DISCOVERED"
)

// Object is a node in the architecture graph.
//
// ParentID, Path and Depth form a materialized hierarchy: Path is the '/'
// joined concatenation of ancestor ids (root first, self last) and must stay
// consistent with ParentID. Every ATOMIC object's parent, when present, must
// be COMPOUND.
type Object struct {
	// ID is the opaque, stable object identifier.
	ID string `json:"id"`

	// WorkspaceID scopes the object to one workspace.
	WorkspaceID string `json:"workspace_id"`

	// Type is the object type from the closed enumeration.
	Type ObjectType `json:"type"`

	// Name is the human-readable name used by seeded inference signals.
	Name string `json:"name"`

	// Granularity marks the object as COMPOUND or ATOMIC.
	Granularity Granularity `json:"granularity"`

	// ParentID is the optional owning COMPOUND object.
	ParentID string `json:"parent_id,omitempty"`

	// Path is the materialized ancestor path ("svc-a/ep-1").
	Path string `json:"path"`

	// Depth is the number of ancestors above this object.
	Depth int `json:"depth"`

	// Visibility controls query result inclusion.
	Visibility Visibility `json:"visibility"`

	// Origin is set for domain objects only (SEED or DISCOVERED).
	Origin DomainOrigin `json:"origin,omitempty"`

	// Metadata holds free-form attributes (keywords, cluster keys, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Category returns the derived category of the object.
func (o *Object) Category() Category {
	return o.Type.Category()
}

// Validate checks identifier validity, enum membership, and the
// path/parent consistency invariant.
func (o *Object) Validate() error {
	if err := validation.ValidateIdentifier(o.ID); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	if err := validation.ValidateWorkspaceID(o.WorkspaceID); err != nil {
		return err
	}
	if !o.Type.Valid() {
		return fmt.Errorf("unknown object type %q", o.Type)
	}
	if o.Granularity != GranularityCompound && o.Granularity != GranularityAtomic {
		return fmt.Errorf("unknown granularity %q", o.Granularity)
	}
	if o.ParentID != "" {
		if err := validation.ValidateIdentifier(o.ParentID); err != nil {
			return fmt.Errorf("parent id: %w", err)
		}
	}
	if o.Path != "" {
		segments := strings.Split(o.Path, "/")
		if segments[len(segments)-1] != o.ID {
			return fmt.Errorf("path %q does not end with object id %q", o.Path, o.ID)
		}
		if o.ParentID != "" {
			if len(segments) < 2 || segments[len(segments)-2] != o.ParentID {
				return fmt.Errorf("path %q inconsistent with parent id %q", o.Path, o.ParentID)
			}
		}
		if o.Depth != len(segments)-1 {
			return fmt.Errorf("depth %d inconsistent with path %q", o.Depth, o.Path)
		}
	}
	return nil
}

// Timestamped is embedded by records that track creation and update times.
type Timestamped struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
