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

import (
	"context"

	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

// usage runs USAGE_DISCOVERY: the flat set of upstream dependents of the
// origin, answering "who uses this".
func (e *Engine) usage(ctx context.Context, req *datatypes.QueryRequest, budgets Budgets) (*datatypes.QueryResult, error) {
	return e.reachability(ctx, req, datatypes.DirectionUpstream, budgets)
}
