// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domains

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/atlas/pkg/logging"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
	"github.com/AleutianAI/atlas/services/atlas/rollup"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

var seededTracer = otel.Tracer("atlas.domains.seeded")

// MetadataKeywords is the domain object metadata key holding a
// comma-separated keyword list used by the code signal.
const MetadataKeywords = "keywords"

// SeededOptions configures one seeded inference run.
type SeededOptions struct {
	// SignalWeights maps signal name to combination weight.
	// Nil uses DefaultSignalWeights.
	SignalWeights map[string]float64

	// SecondaryThreshold is the minimum affinity for secondary domains.
	// Zero uses DefaultSecondaryThreshold.
	SecondaryThreshold float64
}

func (o *SeededOptions) applyDefaults() {
	if o.SignalWeights == nil {
		o.SignalWeights = DefaultSignalWeights()
	}
	if o.SecondaryThreshold <= 0 {
		o.SecondaryThreshold = DefaultSecondaryThreshold
	}
}

// SeededResult summarizes one seeded inference run.
type SeededResult struct {
	// SeedDomains is the number of SEED domains evaluated against.
	SeedDomains int `json:"seed_domains"`

	// Evaluated is the number of compute services scored.
	Evaluated int `json:"evaluated"`

	// Written is the number of PENDING candidates written or replaced.
	Written int `json:"written"`

	// SkippedNoEvidence counts services whose every signal was zero.
	SkippedNoEvidence int `json:"skipped_no_evidence"`

	// SkippedFinalized counts services whose candidate is already
	// APPROVED or REJECTED and was left untouched.
	SkippedFinalized int `json:"skipped_finalized"`
}

// SeededEngine runs Track A domain inference: scoring compute services
// against human-defined SEED domains.
type SeededEngine struct {
	store  store.Store
	logger *logging.Logger
}

// NewSeededEngine creates a seeded inference engine.
func NewSeededEngine(s store.Store, logger *logging.Logger) *SeededEngine {
	if logger == nil {
		logger = logging.Default()
	}
	return &SeededEngine{store: s, logger: logger}
}

// Infer scores every visible COMPOUND compute service against the
// workspace's SEED domains and writes PENDING candidates.
//
// # Description
//
// Three signals are computed per (service, domain) pair: name/keyword
// overlap (code), shared storage footprint with the domain's approved
// members (storage), and shared messaging footprint (messaging). The
// weighted combination is normalized into an affinity distribution;
// services with zero evidence across all signals produce no candidate.
//
// A re-run replaces the PENDING candidate of each scored service.
// APPROVED and REJECTED candidates are never touched.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - workspaceID: Target workspace.
//   - opts: Run options. Nil uses defaults.
//
// # Outputs
//
//   - *SeededResult: Counters for the run.
//   - error: Non-nil on store errors or cancellation.
func (e *SeededEngine) Infer(ctx context.Context, workspaceID string, opts *SeededOptions) (*SeededResult, error) {
	ctx, span := seededTracer.Start(ctx, "domains.SeededEngine.Infer")
	defer span.End()

	if opts == nil {
		opts = &SeededOptions{}
	}
	opts.applyDefaults()

	start := time.Now()

	objects, err := e.store.ListObjects(ctx, workspaceID, store.ObjectFilter{IncludeHidden: true})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	relations, err := e.store.ListApprovedRelations(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list approved relations: %w", err)
	}

	h := rollup.NewHierarchy(objects, relations)
	seeds := seedDomains(objects)
	result := &SeededResult{SeedDomains: len(seeds)}
	if len(seeds) == 0 {
		// Nothing to score against: a workspace without SEED domains is a
		// well-defined no-op, not an error.
		e.logger.Info("seeded inference skipped, no seed domains",
			"workspace_id", workspaceID)
		return result, nil
	}

	profiles := buildDomainProfiles(seeds, h, relations)
	footprints := buildFootprints(h, relations)

	for _, obj := range objects {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isInferenceTarget(obj) {
			continue
		}
		result.Evaluated++

		signals := e.score(obj, profiles, footprints[obj.ID])
		affinities := Normalize(CombineSignals(signals, opts.SignalWeights))
		if affinities == nil {
			result.SkippedNoEvidence++
			continue
		}
		primary, purity, secondaries := Rank(affinities, opts.SecondaryThreshold)

		written, err := e.store.ReplacePendingCandidate(ctx, &datatypes.DomainCandidate{
			WorkspaceID:        workspaceID,
			ObjectID:           obj.ID,
			Affinities:         affinities,
			Purity:             purity,
			PrimaryDomainID:    primary,
			SecondaryDomainIDs: secondaries,
			Signals:            signals,
			Status:             datatypes.CandidateStatusPending,
			UpdatedAt:          time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("write candidate for %s: %w", obj.ID, err)
		}
		if written {
			result.Written++
		} else {
			result.SkippedFinalized++
		}
	}

	e.logger.Info("seeded inference completed",
		"workspace_id", workspaceID,
		"seed_domains", result.SeedDomains,
		"evaluated", result.Evaluated,
		"written", result.Written,
		"skipped_no_evidence", result.SkippedNoEvidence,
		"skipped_finalized", result.SkippedFinalized,
		"duration", time.Since(start),
	)
	return result, nil
}

// isInferenceTarget reports whether the object is scored by Track A:
// visible COMPOUND compute units.
func isInferenceTarget(obj *datatypes.Object) bool {
	return obj.Category() == datatypes.CategoryCompute &&
		obj.Granularity == datatypes.GranularityCompound &&
		obj.Visibility == datatypes.VisibilityVisible
}

// seedDomains filters the workspace's SEED domain objects.
func seedDomains(objects []*datatypes.Object) []*datatypes.Object {
	var seeds []*datatypes.Object
	for _, obj := range objects {
		if obj.Type == datatypes.ObjectTypeDomain && obj.Origin == datatypes.DomainOriginSeed {
			seeds = append(seeds, obj)
		}
	}
	return seeds
}

// domainProfile is the evidence base of one seed domain.
type domainProfile struct {
	id string

	// tokens is the lowercase token set of the domain name and keywords.
	tokens map[string]bool

	// storage and messaging are the COMPOUND storage/channel ids used by
	// the domain's approved members.
	storage   map[string]bool
	messaging map[string]bool
}

// footprint is one service's resolved dependency sets.
type footprint struct {
	storage   map[string]bool
	messaging map[string]bool
}

// buildDomainProfiles indexes each seed domain's tokens and the combined
// storage/messaging footprint of its approved members.
func buildDomainProfiles(seeds []*datatypes.Object, h *rollup.Hierarchy, relations []*datatypes.Relation) []*domainProfile {
	byID := make(map[string]*domainProfile, len(seeds))
	profiles := make([]*domainProfile, 0, len(seeds))
	for _, seed := range seeds {
		p := &domainProfile{
			id:        seed.ID,
			tokens:    tokenize(seed.Name + " " + seed.Metadata[MetadataKeywords]),
			storage:   make(map[string]bool),
			messaging: make(map[string]bool),
		}
		byID[seed.ID] = p
		profiles = append(profiles, p)
	}

	footprints := buildFootprints(h, relations)
	for _, rel := range relations {
		if rel.Type != datatypes.RelationTypeMemberOf {
			continue
		}
		p, ok := byID[rel.ObjectID]
		if !ok {
			continue
		}
		fp, ok := footprints[rel.SubjectID]
		if !ok {
			continue
		}
		for id := range fp.storage {
			p.storage[id] = true
		}
		for id := range fp.messaging {
			p.messaging[id] = true
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].id < profiles[j].id })
	return profiles
}

// buildFootprints resolves every approved relation to COMPOUND ancestors
// and collects per-service storage and messaging dependency sets.
// Relations with unresolvable endpoints are skipped: inference is advisory
// and tolerates partial graphs.
func buildFootprints(h *rollup.Hierarchy, relations []*datatypes.Relation) map[string]*footprint {
	footprints := make(map[string]*footprint)
	get := func(id string) *footprint {
		fp, ok := footprints[id]
		if !ok {
			fp = &footprint{storage: make(map[string]bool), messaging: make(map[string]bool)}
			footprints[id] = fp
		}
		return fp
	}

	for _, rel := range relations {
		subject, err := h.CompoundAncestor(rel.SubjectID)
		if err != nil {
			continue
		}
		object, err := h.CompoundAncestor(rel.ObjectID)
		if err != nil {
			continue
		}
		if subject.Category() != datatypes.CategoryCompute {
			continue
		}
		switch object.Category() {
		case datatypes.CategoryStorage:
			get(subject.ID).storage[object.ID] = true
		case datatypes.CategoryChannel:
			get(subject.ID).messaging[object.ID] = true
		}
	}
	return footprints
}

// score computes the raw per-signal scores of one service against every
// seed domain. All raw scores are in [0, 1].
func (e *SeededEngine) score(obj *datatypes.Object, profiles []*domainProfile, fp *footprint) map[string]map[string]float64 {
	signals := map[string]map[string]float64{
		SignalCode:      {},
		SignalStorage:   {},
		SignalMessaging: {},
	}

	objTokens := tokenize(obj.Name)
	for _, p := range profiles {
		if s := tokenOverlap(objTokens, p.tokens); s > 0 {
			signals[SignalCode][p.id] = s
		}
		if fp != nil {
			if s := setOverlap(fp.storage, p.storage); s > 0 {
				signals[SignalStorage][p.id] = s
			}
			if s := setOverlap(fp.messaging, p.messaging); s > 0 {
				signals[SignalMessaging][p.id] = s
			}
		}
	}
	return signals
}

// tokenize splits a string into a lowercase alphanumeric token set.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) > 1 {
			tokens[field] = true
		}
	}
	return tokens
}

// tokenOverlap returns the fraction of obj tokens present in the domain
// token set.
func tokenOverlap(obj, domain map[string]bool) float64 {
	if len(obj) == 0 || len(domain) == 0 {
		return 0
	}
	matched := 0
	for token := range obj {
		if domain[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(obj))
}

// setOverlap returns the fraction of the service's dependency set shared
// with the domain's footprint.
func setOverlap(service, domain map[string]bool) float64 {
	if len(service) == 0 || len(domain) == 0 {
		return 0
	}
	shared := 0
	for id := range service {
		if domain[id] {
			shared++
		}
	}
	return float64(shared) / float64(len(service))
}
