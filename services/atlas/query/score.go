// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import "math"

// PathScore ranks one path by confidence, bottleneck strength, and length:
//
//	score = avgConfidence * ln(1 + minEdgeWeight) / (1 + (hops-1) * 0.1)
//
// The logarithm dampens the bottleneck term so a single heavy edge cannot
// dominate confidence; the hop penalty prefers shorter paths at equal
// evidence. Higher is better.
func PathScore(avgConfidence, minEdgeWeight float64, hops int) float64 {
	if hops < 1 {
		return 0
	}
	return avgConfidence * math.Log1p(minEdgeWeight) / (1 + float64(hops-1)*0.1)
}
