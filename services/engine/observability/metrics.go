// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// scenario engine.
//
// # Description
//
// This package implements Prometheus metrics for monitoring tree generation
// sessions. Metrics include:
//   - Node expansion counters (by outcome)
//   - Active expansion gauges
//   - Node and layer latency histograms
//   - Session counters (by final state)
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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "foresight"

// Subsystem for engine metrics
const engineSubsystem = "engine"

// EngineMetrics holds all Prometheus metrics for tree generation.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring expansion
// throughput and collaborator latency. Initialize once at startup via
// InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type EngineMetrics struct {
	// NodesExpandedTotal counts node expansions by outcome.
	// Labels: outcome (completed, failed)
	NodesExpandedTotal *prometheus.CounterVec

	// ActiveExpansions tracks node expansions currently in flight.
	ActiveExpansions prometheus.Gauge

	// NodeExpansionSeconds measures one node's research + synthesis +
	// attach duration.
	// Labels: outcome (completed, failed)
	NodeExpansionSeconds *prometheus.HistogramVec

	// LayerSeconds measures the wall time of one breadth-first layer.
	LayerSeconds prometheus.Histogram

	// SessionsTotal counts generation sessions by final state.
	// Labels: state (completed, cancelled, failed)
	SessionsTotal *prometheus.CounterVec

	// CollaboratorErrorsTotal counts collaborator failures by step.
	// Labels: step (research, synthesis, validation)
	CollaboratorErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of EngineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *EngineMetrics

var initOnce sync.Once

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics against the default
// registry. Safe to call more than once; registration happens exactly once.
//
// # Outputs
//
//   - *EngineMetrics: The initialized metrics instance.
func InitMetrics() *EngineMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &EngineMetrics{
			NodesExpandedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "nodes_expanded_total",
					Help:      "Total node expansions by outcome",
				},
				[]string{"outcome"},
			),

			ActiveExpansions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "active_expansions",
					Help:      "Node expansions currently in flight",
				},
			),

			NodeExpansionSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "node_expansion_seconds",
					Help:      "Duration of one node expansion in seconds",
					Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"outcome"},
			),

			LayerSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "layer_seconds",
					Help:      "Wall time of one breadth-first layer in seconds",
					Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
				},
			),

			SessionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "sessions_total",
					Help:      "Total generation sessions by final state",
				},
				[]string{"state"},
			),

			CollaboratorErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: engineSubsystem,
					Name:      "collaborator_errors_total",
					Help:      "Total collaborator failures by step",
				},
				[]string{"step"},
			),
		}
	})
	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// All helpers are nil-safe so code paths that run without metrics wired
// (unit tests, library use) need no guards.

// NodeExpanded records one finished node expansion.
func (m *EngineMetrics) NodeExpanded(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.NodesExpandedTotal.WithLabelValues(outcome).Inc()
	m.NodeExpansionSeconds.WithLabelValues(outcome).Observe(seconds)
}

// ExpansionStarted increments the active expansion gauge.
func (m *EngineMetrics) ExpansionStarted() {
	if m == nil {
		return
	}
	m.ActiveExpansions.Inc()
}

// ExpansionEnded decrements the active expansion gauge.
func (m *EngineMetrics) ExpansionEnded() {
	if m == nil {
		return
	}
	m.ActiveExpansions.Dec()
}

// LayerFinished records the wall time of one layer.
func (m *EngineMetrics) LayerFinished(seconds float64) {
	if m == nil {
		return
	}
	m.LayerSeconds.Observe(seconds)
}

// SessionEnded records a session reaching a final state.
func (m *EngineMetrics) SessionEnded(state string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(state).Inc()
}

// CollaboratorError records a collaborator failure at the given step.
func (m *EngineMetrics) CollaboratorError(step string) {
	if m == nil {
		return
	}
	m.CollaboratorErrorsTotal.WithLabelValues(step).Inc()
}
