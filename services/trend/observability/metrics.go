// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the trend service.
//
// Metrics cover the two hot paths: window recomputes (count, duration,
// failures, by trigger) and trend reads (served points, raw fallbacks).
// Exposed via the /metrics endpoint; all operations are thread-safe through
// Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "aleutianvital"

// Subsystem for trend computation metrics.
const trendSubsystem = "trend"

// Recompute trigger labels.
const (
	TriggerWrite = "write"
	TriggerRead  = "read"
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TrendMetrics holds all Prometheus metrics for the trend service.
// Initialize once at startup via NewTrendMetrics().
type TrendMetrics struct {
	// RecomputesTotal counts window recomputes.
	// Labels: trigger (write, read), status (success, error)
	RecomputesTotal *prometheus.CounterVec

	// RecomputeDurationSeconds measures full write-path duration, from
	// observation fetch through row upsert.
	// Labels: trigger (write, read)
	RecomputeDurationSeconds *prometheus.HistogramVec

	// RowsMaterializedTotal counts trend rows written by recomputes.
	RowsMaterializedTotal prometheus.Counter

	// StaleMarksTotal counts failed recomputes that marked a window stale.
	StaleMarksTotal prometheus.Counter

	// FallbackPointsTotal counts served points that fell back to the raw
	// observed weight (dates below the active horizon).
	FallbackPointsTotal prometheus.Counter

	// ObservationsLoggedTotal counts accepted weight log entries.
	ObservationsLoggedTotal prometheus.Counter
}

// NewTrendMetrics creates and registers all trend metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewTrendMetrics(reg prometheus.Registerer) *TrendMetrics {
	factory := promauto.With(reg)

	return &TrendMetrics{
		RecomputesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "recomputes_total",
				Help:      "Window recomputes by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
		RecomputeDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "recompute_duration_seconds",
				Help:      "Full recompute duration, fetch through upsert.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		RowsMaterializedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "rows_materialized_total",
				Help:      "Trend rows written by recomputes.",
			},
		),
		StaleMarksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "stale_marks_total",
				Help:      "Failed recomputes that marked a window stale.",
			},
		),
		FallbackPointsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "fallback_points_total",
				Help:      "Served points that fell back to the raw weight.",
			},
		),
		ObservationsLoggedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: trendSubsystem,
				Name:      "observations_logged_total",
				Help:      "Accepted weight log entries.",
			},
		),
	}
}
