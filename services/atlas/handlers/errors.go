// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP handlers of the Atlas service.
//
// Handlers are thin: bind, delegate to an engine, map errors to status
// codes. All domain logic lives in the rollup, domains, and query
// packages.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/atlas/services/atlas/query"
	"github.com/AleutianAI/atlas/services/atlas/rollup"
	"github.com/AleutianAI/atlas/services/atlas/store"
)

// writeError maps engine errors onto HTTP status codes.
//
// Validation failures are the caller's fault (400), unknown objects 404,
// a missing active generation or a pin on a non-finalized generation 409
// (the workspace needs a rebuild first), bad relation references 422,
// everything else 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidRequest), errors.Is(err, query.ErrUnknownQueryType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNoActiveGeneration), errors.Is(err, store.ErrGenerationNotFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, rollup.ErrUnknownObject):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
