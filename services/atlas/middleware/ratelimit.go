// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the Atlas service.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Rate limiting defaults. Graph queries are cheap reads; rebuilds and
// discovery runs are heavyweight and get a much tighter budget at the
// route level.
const (
	// DefaultRequestsPerSecond is the sustained per-client rate.
	DefaultRequestsPerSecond = 50

	// DefaultBurst is the per-client burst allowance.
	DefaultBurst = 100
)

// clientLimiters holds one token bucket per client key.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func (c *clientLimiters) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.rps, c.burst)
		c.limiters[key] = limiter
	}
	return limiter
}

// RateLimit creates a Gin middleware enforcing a per-client token bucket.
//
// # Description
//
// Clients are keyed by the X-Workspace-ID header when present, falling
// back to the remote address. Requests over the budget are rejected with
// 429 and never reach the handler.
//
// # Inputs
//
//   - rps: Sustained requests per second per client. Non-positive uses
//     DefaultRequestsPerSecond.
//   - burst: Burst allowance per client. Non-positive uses DefaultBurst.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for use with Gin.
//
// Thread Safety: the returned middleware is safe for concurrent use.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	limiters := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}

	return func(c *gin.Context) {
		key := c.GetHeader("X-Workspace-ID")
		if key == "" {
			key = c.ClientIP()
		}
		if !limiters.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
