// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/atlas/services/atlas/config"
	"github.com/AleutianAI/atlas/services/atlas/datatypes"
)

func TestApplyProfileBudgets(t *testing.T) {
	req := &datatypes.QueryRequest{
		Params: datatypes.QueryParams{MaxHops: 2},
	}
	applyProfileBudgets(req, config.BudgetProfile{
		MaxHops:    4,
		MaxVisited: 500,
		Timeout:    time.Second,
	})

	// Explicit per-call params win, zero fields take the profile.
	assert.Equal(t, 2, req.Params.MaxHops)
	assert.Equal(t, 500, req.Params.MaxVisited)
	assert.Equal(t, time.Second, req.Params.Timeout)
	assert.Zero(t, req.Params.TopK)
}
