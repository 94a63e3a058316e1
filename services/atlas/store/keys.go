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

import "fmt"

// Key layout. Identifiers are validated by pkg/validation before they reach
// key construction, so '/' is safe as the separator. Generation versions are
// zero-padded so lexicographic key order matches numeric order.
//
//	o/{ws}/{id}                       object
//	r/{ws}/{id}                       relation
//	g/{ws}/{version}                  generation record
//	gp/{ws}                           active generation pointer
//	gs/{ws}                           generation version sequence
//	e/{ws}/{version}/{level}/{s}/{o}  rollup edge
//	c/{ws}/{objectID}                 domain candidate
//	dr/{ws}/{runID}                   discovery run
//	dm/{ws}/{domainID}/{objectID}     discovery membership

func objectKey(ws, id string) []byte {
	return []byte(fmt.Sprintf("o/%s/%s", ws, id))
}

func objectPrefix(ws string) []byte {
	return []byte(fmt.Sprintf("o/%s/", ws))
}

func relationKey(ws, id string) []byte {
	return []byte(fmt.Sprintf("r/%s/%s", ws, id))
}

func relationPrefix(ws string) []byte {
	return []byte(fmt.Sprintf("r/%s/", ws))
}

func generationKey(ws string, version int64) []byte {
	return []byte(fmt.Sprintf("g/%s/%012d", ws, version))
}

func generationPointerKey(ws string) []byte {
	return []byte(fmt.Sprintf("gp/%s", ws))
}

func generationSequenceKey(ws string) []byte {
	return []byte(fmt.Sprintf("gs/%s", ws))
}

func rollupEdgeKey(ws string, version int64, level, subject, object string) []byte {
	return []byte(fmt.Sprintf("e/%s/%012d/%s/%s/%s", ws, version, level, subject, object))
}

func rollupLevelPrefix(ws string, version int64, level string) []byte {
	return []byte(fmt.Sprintf("e/%s/%012d/%s/", ws, version, level))
}

func rollupGenerationPrefix(ws string, version int64) []byte {
	return []byte(fmt.Sprintf("e/%s/%012d/", ws, version))
}

func candidateKey(ws, objectID string) []byte {
	return []byte(fmt.Sprintf("c/%s/%s", ws, objectID))
}

func candidatePrefix(ws string) []byte {
	return []byte(fmt.Sprintf("c/%s/", ws))
}

func discoveryRunKey(ws, runID string) []byte {
	return []byte(fmt.Sprintf("dr/%s/%s", ws, runID))
}

func membershipKey(ws, domainID, objectID string) []byte {
	return []byte(fmt.Sprintf("dm/%s/%s/%s", ws, domainID, objectID))
}

func membershipPrefix(ws, domainID string) []byte {
	return []byte(fmt.Sprintf("dm/%s/%s/", ws, domainID))
}
