// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domains implements the two domain inference tracks: seeded
// affinity scoring against human-defined SEED domains, and seed-less
// community discovery over the service-service rollup.
//
// Both tracks are advisory: they write PENDING candidates and DISCOVERED
// domains for human review and never create member_of relations themselves.
package domains

import "sort"

// Signal names produced by seeded inference.
const (
	SignalCode      = "code"
	SignalStorage   = "storage"
	SignalMessaging = "messaging"
)

// Seeded inference defaults.
const (
	// DefaultSecondaryThreshold is the minimum normalized affinity for a
	// non-primary domain to be reported as secondary.
	DefaultSecondaryThreshold = 0.25

	// Default per-signal combination weights: code evidence dominates,
	// storage outweighs messaging.
	DefaultCodeWeight      = 0.5
	DefaultStorageWeight   = 0.3
	DefaultMessagingWeight = 0.2
)

// DefaultSignalWeights returns the default signal combination weights.
func DefaultSignalWeights() map[string]float64 {
	return map[string]float64{
		SignalCode:      DefaultCodeWeight,
		SignalStorage:   DefaultStorageWeight,
		SignalMessaging: DefaultMessagingWeight,
	}
}

// CombineSignals collapses per-signal raw scores into one weighted score
// per domain. Signals absent from the weight table contribute nothing.
func CombineSignals(signals map[string]map[string]float64, weights map[string]float64) map[string]float64 {
	combined := make(map[string]float64)
	for name, perDomain := range signals {
		weight, ok := weights[name]
		if !ok || weight == 0 {
			continue
		}
		for domainID, score := range perDomain {
			combined[domainID] += weight * score
		}
	}
	return combined
}

// Normalize scales scores into a probability distribution summing to 1.
// Returns nil when every score is zero: an all-zero profile carries no
// evidence and must not be turned into a uniform distribution.
func Normalize(scores map[string]float64) map[string]float64 {
	total := 0.0
	for _, score := range scores {
		total += score
	}
	if total <= 0 {
		return nil
	}
	affinities := make(map[string]float64, len(scores))
	for domainID, score := range scores {
		affinities[domainID] = score / total
	}
	return affinities
}

// Rank extracts the primary domain, purity, and threshold-filtered
// secondary domains from a normalized affinity distribution.
//
// The primary is the arg-max affinity, broken lexicographically so
// identical inputs always rank identically. Secondaries are all
// non-primary domains at or above the threshold, sorted by descending
// affinity with lexicographic tie-break.
func Rank(affinities map[string]float64, secondaryThreshold float64) (primary string, purity float64, secondaries []string) {
	if len(affinities) == 0 {
		return "", 0, nil
	}

	domainIDs := make([]string, 0, len(affinities))
	for id := range affinities {
		domainIDs = append(domainIDs, id)
	}
	sort.Strings(domainIDs)

	for _, id := range domainIDs {
		if affinities[id] > purity {
			primary = id
			purity = affinities[id]
		}
	}

	for _, id := range domainIDs {
		if id == primary {
			continue
		}
		if affinities[id] >= secondaryThreshold {
			secondaries = append(secondaries, id)
		}
	}
	sort.SliceStable(secondaries, func(i, j int) bool {
		ai, aj := affinities[secondaries[i]], affinities[secondaries[j]]
		if ai != aj {
			return ai > aj
		}
		return secondaries[i] < secondaries[j]
	})
	return primary, purity, secondaries
}
