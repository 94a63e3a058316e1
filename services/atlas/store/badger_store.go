// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/atlas/pkg/validation"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

// BadgerStore implements Store on a BadgerDB instance.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// snapshot isolation for reads and atomicity for the generation flip and
// discovery commits.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an opened BadgerDB.
//
// The store takes ownership of the database: Close closes it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// JSON codec helpers
// =============================================================================

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func getInt64(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}

func setInt64(txn *badger.Txn, key []byte, v int64) error {
	return txn.Set(key, []byte(strconv.FormatInt(v, 10)))
}

// scanJSON iterates all values under prefix, decoding each into a fresh T.
func scanJSON[T any](db *badger.DB, ctx context.Context, prefix []byte, visit func(*T) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
			if count%1024 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			var v T
			if err := it.Item().Value(func(data []byte) error {
				return json.Unmarshal(data, &v)
			}); err != nil {
				return err
			}
			if err := visit(&v); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// Objects
// =============================================================================

// PutObject inserts or replaces an object after validating it.
func (s *BadgerStore) PutObject(ctx context.Context, obj *datatypes.Object) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, objectKey(obj.WorkspaceID, obj.ID), obj)
	})
}

// GetObject returns one object or ErrNotFound.
func (s *BadgerStore) GetObject(ctx context.Context, workspaceID, id string) (*datatypes.Object, error) {
	var obj datatypes.Object
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, objectKey(workspaceID, id), &obj)
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// ListObjects returns the workspace's objects matching the filter, sorted
// by id (key order).
func (s *BadgerStore) ListObjects(ctx context.Context, workspaceID string, filter ObjectFilter) ([]*datatypes.Object, error) {
	typeSet := make(map[datatypes.ObjectType]struct{}, len(filter.Types))
	for _, t := range filter.Types {
		typeSet[t] = struct{}{}
	}

	var objects []*datatypes.Object
	err := scanJSON[datatypes.Object](s.db, ctx, objectPrefix(workspaceID), func(obj *datatypes.Object) error {
		if !filter.IncludeHidden && obj.Visibility == datatypes.VisibilityHidden {
			return nil
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[obj.Type]; !ok {
				return nil
			}
		}
		if filter.Origin != "" && obj.Origin != filter.Origin {
			return nil
		}
		objects = append(objects, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// =============================================================================
// Relations
// =============================================================================

// PutRelation inserts or replaces a relation after validating it.
func (s *BadgerStore) PutRelation(ctx context.Context, rel *datatypes.Relation) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, relationKey(rel.WorkspaceID, rel.ID), rel)
	})
}

// ListApprovedRelations returns all APPROVED relations, sorted by id.
func (s *BadgerStore) ListApprovedRelations(ctx context.Context, workspaceID string) ([]*datatypes.Relation, error) {
	var relations []*datatypes.Relation
	err := scanJSON[datatypes.Relation](s.db, ctx, relationPrefix(workspaceID), func(rel *datatypes.Relation) error {
		if rel.Status == datatypes.RelationStatusApproved {
			relations = append(relations, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return relations, nil
}

// =============================================================================
// Generations
// =============================================================================

// BeginGeneration allocates the next version for the workspace and records
// it as BUILDING.
func (s *BadgerStore) BeginGeneration(ctx context.Context, workspaceID string) (*datatypes.Generation, error) {
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}

	var gen datatypes.Generation
	err := s.db.Update(func(txn *badger.Txn) error {
		last, err := getInt64(txn, generationSequenceKey(workspaceID))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		next := last + 1

		gen = datatypes.Generation{
			WorkspaceID: workspaceID,
			Version:     next,
			Status:      datatypes.GenerationStatusBuilding,
			StartedAt:   time.Now().UTC(),
		}
		if err := setJSON(txn, generationKey(workspaceID, next), &gen); err != nil {
			return err
		}
		return setInt64(txn, generationSequenceKey(workspaceID), next)
	})
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

// WriteRollupEdges bulk-writes edges for a BUILDING generation.
//
// The write is not transactional: BUILDING edges are unreachable until
// ActivateGeneration flips the pointer, so partial writes are invisible.
func (s *BadgerStore) WriteRollupEdges(ctx context.Context, edges []*datatypes.RollupEdge) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, edge := range edges {
		if i%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := json.Marshal(edge)
		if err != nil {
			return fmt.Errorf("marshal rollup edge: %w", err)
		}
		key := rollupEdgeKey(edge.WorkspaceID, edge.Generation, string(edge.Level), edge.SubjectID, edge.ObjectID)
		if err := wb.Set(key, data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// ActivateGeneration atomically archives the previous ACTIVE generation and
// activates the given one. This is the only reader-visible transition of a
// rebuild.
func (s *BadgerStore) ActivateGeneration(ctx context.Context, workspaceID string, version int64, edgeCount int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var gen datatypes.Generation
		if err := getJSON(txn, generationKey(workspaceID, version), &gen); err != nil {
			return fmt.Errorf("generation %d: %w", version, err)
		}
		if gen.Status != datatypes.GenerationStatusBuilding {
			return fmt.Errorf("generation %d is %s, expected BUILDING", version, gen.Status)
		}

		previous, err := getInt64(txn, generationPointerKey(workspaceID))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if previous > 0 {
			var prevGen datatypes.Generation
			if err := getJSON(txn, generationKey(workspaceID, previous), &prevGen); err != nil {
				return fmt.Errorf("previous generation %d: %w", previous, err)
			}
			prevGen.Status = datatypes.GenerationStatusArchived
			if err := setJSON(txn, generationKey(workspaceID, previous), &prevGen); err != nil {
				return err
			}
		}

		gen.Status = datatypes.GenerationStatusActive
		gen.EdgeCount = edgeCount
		gen.FinishedAt = time.Now().UTC()
		if err := setJSON(txn, generationKey(workspaceID, version), &gen); err != nil {
			return err
		}
		return setInt64(txn, generationPointerKey(workspaceID), version)
	})
}

// FailGeneration marks a BUILDING generation as FAILED. The previous ACTIVE
// generation and pointer are untouched.
func (s *BadgerStore) FailGeneration(ctx context.Context, workspaceID string, version int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var gen datatypes.Generation
		if err := getJSON(txn, generationKey(workspaceID, version), &gen); err != nil {
			return fmt.Errorf("generation %d: %w", version, err)
		}
		gen.Status = datatypes.GenerationStatusFailed
		gen.FinishedAt = time.Now().UTC()
		return setJSON(txn, generationKey(workspaceID, version), &gen)
	})
}

// ActiveGeneration returns the ACTIVE generation version or
// ErrNoActiveGeneration.
func (s *BadgerStore) ActiveGeneration(ctx context.Context, workspaceID string) (int64, error) {
	var version int64
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := getInt64(txn, generationPointerKey(workspaceID))
		if errors.Is(err, ErrNotFound) {
			return ErrNoActiveGeneration
		}
		version = v
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// GetGeneration returns one generation record or ErrNotFound.
func (s *BadgerStore) GetGeneration(ctx context.Context, workspaceID string, version int64) (*datatypes.Generation, error) {
	var gen datatypes.Generation
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, generationKey(workspaceID, version), &gen)
	})
	if err != nil {
		return nil, err
	}
	return &gen, nil
}

// ListRollupEdges returns the edges of one (generation, level), in key
// order (subject, then object).
func (s *BadgerStore) ListRollupEdges(ctx context.Context, workspaceID string, version int64, level datatypes.RollupLevel) ([]*datatypes.RollupEdge, error) {
	gen, err := s.GetGeneration(ctx, workspaceID, version)
	if err != nil {
		return nil, err
	}
	if !gen.Finalized() {
		return nil, fmt.Errorf("generation %d is %s: %w", version, gen.Status, ErrGenerationNotFinalized)
	}

	var edges []*datatypes.RollupEdge
	err = scanJSON[datatypes.RollupEdge](s.db, ctx, rollupLevelPrefix(workspaceID, version, string(level)), func(edge *datatypes.RollupEdge) error {
		edges = append(edges, edge)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// PruneGeneration deletes an ARCHIVED or FAILED generation and its edges.
func (s *BadgerStore) PruneGeneration(ctx context.Context, workspaceID string, version int64) error {
	active, err := s.ActiveGeneration(ctx, workspaceID)
	if err != nil && !errors.Is(err, ErrNoActiveGeneration) {
		return err
	}
	if active == version {
		return ErrActiveGeneration
	}

	// Collect edge keys first; deleting while iterating invalidates the
	// iterator.
	var keys [][]byte
	prefix := rollupGenerationPrefix(workspaceID, version)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	if err := wb.Delete(generationKey(workspaceID, version)); err != nil {
		return err
	}
	return wb.Flush()
}

// =============================================================================
// Domain candidates
// =============================================================================

// ReplacePendingCandidate writes a PENDING candidate, replacing any
// existing PENDING candidate for the same object. Returns false without
// writing when the existing candidate is APPROVED or REJECTED.
func (s *BadgerStore) ReplacePendingCandidate(ctx context.Context, cand *datatypes.DomainCandidate) (bool, error) {
	if err := validation.ValidateWorkspaceID(cand.WorkspaceID); err != nil {
		return false, err
	}
	if err := validation.ValidateIdentifier(cand.ObjectID); err != nil {
		return false, fmt.Errorf("candidate object id: %w", err)
	}

	written := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := candidateKey(cand.WorkspaceID, cand.ObjectID)

		var existing datatypes.DomainCandidate
		err := getJSON(txn, key, &existing)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && existing.Status != datatypes.CandidateStatusPending {
			return nil
		}

		cand.Status = datatypes.CandidateStatusPending
		cand.UpdatedAt = time.Now().UTC()
		written = true
		return setJSON(txn, key, cand)
	})
	return written, err
}

// GetDomainCandidate returns the candidate for one object or ErrNotFound.
func (s *BadgerStore) GetDomainCandidate(ctx context.Context, workspaceID, objectID string) (*datatypes.DomainCandidate, error) {
	var cand datatypes.DomainCandidate
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, candidateKey(workspaceID, objectID), &cand)
	})
	if err != nil {
		return nil, err
	}
	return &cand, nil
}

// ListDomainCandidates returns candidates filtered by status (empty matches
// all), sorted by object id.
func (s *BadgerStore) ListDomainCandidates(ctx context.Context, workspaceID string, status datatypes.CandidateStatus) ([]*datatypes.DomainCandidate, error) {
	var candidates []*datatypes.DomainCandidate
	err := scanJSON[datatypes.DomainCandidate](s.db, ctx, candidatePrefix(workspaceID), func(cand *datatypes.DomainCandidate) error {
		if status == "" || cand.Status == status {
			candidates = append(candidates, cand)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// SetCandidateStatus transitions a candidate's status.
func (s *BadgerStore) SetCandidateStatus(ctx context.Context, workspaceID, objectID string, status datatypes.CandidateStatus) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := candidateKey(workspaceID, objectID)
		var cand datatypes.DomainCandidate
		if err := getJSON(txn, key, &cand); err != nil {
			return err
		}
		cand.Status = status
		cand.UpdatedAt = time.Now().UTC()
		return setJSON(txn, key, &cand)
	})
}

// =============================================================================
// Discovery
// =============================================================================

// CommitDiscovery persists a run with its discovered domains and
// memberships in one transaction. Either everything is visible or nothing
// is (batch-job atomicity per run).
func (s *BadgerStore) CommitDiscovery(ctx context.Context, run *datatypes.DiscoveryRun, domains []*datatypes.Object, memberships []*datatypes.DiscoveryMembership) error {
	if err := validation.ValidateWorkspaceID(run.WorkspaceID); err != nil {
		return err
	}
	if err := validation.ValidateIdentifier(run.ID); err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	for _, d := range domains {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("discovered domain: %w", err)
		}
	}
	for _, m := range memberships {
		if err := validation.ValidateWorkspaceID(m.WorkspaceID); err != nil {
			return err
		}
		if err := validation.ValidateIdentifier(m.DomainID); err != nil {
			return fmt.Errorf("membership domain id: %w", err)
		}
		if err := validation.ValidateIdentifier(m.ObjectID); err != nil {
			return fmt.Errorf("membership object id: %w", err)
		}
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, discoveryRunKey(run.WorkspaceID, run.ID), run); err != nil {
			return err
		}
		for _, d := range domains {
			if err := setJSON(txn, objectKey(d.WorkspaceID, d.ID), d); err != nil {
				return err
			}
		}
		for _, m := range memberships {
			if err := setJSON(txn, membershipKey(m.WorkspaceID, m.DomainID, m.ObjectID), m); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDiscoveryRun returns one run record or ErrNotFound.
func (s *BadgerStore) GetDiscoveryRun(ctx context.Context, workspaceID, runID string) (*datatypes.DiscoveryRun, error) {
	var run datatypes.DiscoveryRun
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, discoveryRunKey(workspaceID, runID), &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListDiscoveryMemberships returns one domain's memberships, sorted by
// object id.
func (s *BadgerStore) ListDiscoveryMemberships(ctx context.Context, workspaceID, domainID string) ([]*datatypes.DiscoveryMembership, error) {
	var members []*datatypes.DiscoveryMembership
	err := scanJSON[datatypes.DiscoveryMembership](s.db, ctx, membershipPrefix(workspaceID, domainID), func(m *datatypes.DiscoveryMembership) error {
		members = append(members, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

var _ Store = (*BadgerStore)(nil)
