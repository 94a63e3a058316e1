// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the Atlas service.
//
// # Description
//
// Metrics cover the three write pipelines (rollup rebuilds, seeded
// inference, domain discovery) and the read-side query engine:
//   - Request counters by operation and status
//   - Duration histograms per operation
//   - Query truncation counters by query type
//   - Gauges for the last rebuild's edge volume
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "atlas"

// Subsystem for graph pipeline metrics
const graphSubsystem = "graph"

// Operation names used as metric labels.
type Operation string

const (
	OperationRebuild  Operation = "rebuild"
	OperationInfer    Operation = "infer"
	OperationDiscover Operation = "discover"
	OperationQuery    Operation = "query"
)

// Metrics holds all Prometheus metrics for the Atlas pipelines.
//
// Initialize once at startup via InitMetrics().
type Metrics struct {
	// RequestsTotal counts operations by name and status.
	// Labels: operation (rebuild, infer, discover, query), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// DurationSeconds measures operation duration.
	// Labels: operation
	DurationSeconds *prometheus.HistogramVec

	// QueriesTotal counts query executions by type and status.
	// Labels: query_type (IMPACT_ANALYSIS, ...), status (success, error)
	QueriesTotal *prometheus.CounterVec

	// QueryTruncationsTotal counts truncated query results by type.
	// Labels: query_type
	QueryTruncationsTotal *prometheus.CounterVec

	// RollupEdges reports the edge count of the last completed rebuild.
	// Labels: workspace
	RollupEdges *prometheus.GaugeVec

	// DiscoveredClusters reports the cluster count of the last completed
	// discovery run.
	// Labels: workspace
	DiscoveredClusters *prometheus.GaugeVec

	// CandidatesWrittenTotal counts domain candidates written by seeded
	// inference.
	// Labels: workspace
	CandidatesWrittenTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics creates and registers all Prometheus metrics against the
// default registry.
//
// # Description
//
// Should be called once at application startup. Panics if called twice
// (duplicate registration against the default registry).
//
// # Outputs
//
//   - *Metrics: The initialized metrics instance.
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates all metrics against the given registerer. Tests use
// an isolated registry to avoid global registration conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "requests_total",
				Help:      "Total operations by name and status",
			},
			[]string{"operation", "status"},
		),

		DurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "duration_seconds",
				Help:      "Operation duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"operation"},
		),

		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "queries_total",
				Help:      "Total query executions by type and status",
			},
			[]string{"query_type", "status"},
		),

		QueryTruncationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "query_truncations_total",
				Help:      "Total query results truncated by a traversal budget",
			},
			[]string{"query_type"},
		),

		RollupEdges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "rollup_edges",
				Help:      "Edge count of the last completed rollup rebuild",
			},
			[]string{"workspace"},
		),

		DiscoveredClusters: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "discovered_clusters",
				Help:      "Cluster count of the last completed discovery run",
			},
			[]string{"workspace"},
		),

		CandidatesWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: graphSubsystem,
				Name:      "candidates_written_total",
				Help:      "Total domain candidates written by seeded inference",
			},
			[]string{"workspace"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordOperation records one completed operation.
func (m *Metrics) RecordOperation(op Operation, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(op), status).Inc()
	m.DurationSeconds.WithLabelValues(string(op)).Observe(duration.Seconds())
}

// RecordQuery records one query execution.
func (m *Metrics) RecordQuery(queryType string, success, truncated bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(queryType, status).Inc()
	if truncated {
		m.QueryTruncationsTotal.WithLabelValues(queryType).Inc()
	}
}

// RecordRebuild records the edge volume of a completed rebuild.
func (m *Metrics) RecordRebuild(workspaceID string, edgeCount int) {
	m.RollupEdges.WithLabelValues(workspaceID).Set(float64(edgeCount))
}

// RecordDiscovery records the cluster count of a completed discovery run.
func (m *Metrics) RecordDiscovery(workspaceID string, clusterCount int) {
	m.DiscoveredClusters.WithLabelValues(workspaceID).Set(float64(clusterCount))
}

// RecordCandidates records candidates written by one inference run.
func (m *Metrics) RecordCandidates(workspaceID string, written int) {
	m.CandidatesWrittenTotal.WithLabelValues(workspaceID).Add(float64(written))
}
