// Copyright (C) 2026 Kodiak AI (jmercer@kodiakai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the valgen service.
//
// Description:
//
//	Provides standard counters and histograms for protocol requests, value
//	generation, tree growth, and dataset exports. All metrics use the
//	"valgen_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Protocol Metrics ---

	// RequestsTotal counts protocol requests by result (value, exit,
	// unsupported, rejected).
	RequestsTotal metric.Int64Counter

	// GeneratedValuesTotal counts generated values by type tag.
	GeneratedValuesTotal metric.Int64Counter

	// MalformedTotal counts requests answered with the malformed status.
	MalformedTotal metric.Int64Counter

	// --- Session Metrics ---

	// SessionsTotal counts sessions opened since process start.
	SessionsTotal metric.Int64Counter

	// ActiveSessions tracks currently connected sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- Tree Metrics ---

	// TreeNodesTotal counts nodes added to the execution tree.
	TreeNodesTotal metric.Int64Counter

	// --- Export Metrics ---

	// ExportsTotal counts dataset exports by format.
	ExportsTotal metric.Int64Counter

	// ExportDuration records dataset export duration in seconds.
	ExportDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("valgen")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.RequestsTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestsTotal, err = meter.Int64Counter(
		"valgen_requests_total",
		metric.WithDescription("Total protocol requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create requests_total: %w", err)
	}

	m.GeneratedValuesTotal, err = meter.Int64Counter(
		"valgen_generated_values_total",
		metric.WithDescription("Total generated values"),
		metric.WithUnit("{value}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generated_values_total: %w", err)
	}

	m.MalformedTotal, err = meter.Int64Counter(
		"valgen_malformed_requests_total",
		metric.WithDescription("Total malformed protocol requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create malformed_requests_total: %w", err)
	}

	m.SessionsTotal, err = meter.Int64Counter(
		"valgen_sessions_total",
		metric.WithDescription("Total sessions opened"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sessions_total: %w", err)
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"valgen_active_sessions",
		metric.WithDescription("Currently connected sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active_sessions: %w", err)
	}

	m.TreeNodesTotal, err = meter.Int64Counter(
		"valgen_tree_nodes_total",
		metric.WithDescription("Total execution tree nodes added"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tree_nodes_total: %w", err)
	}

	m.ExportsTotal, err = meter.Int64Counter(
		"valgen_exports_total",
		metric.WithDescription("Total dataset exports"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create exports_total: %w", err)
	}

	m.ExportDuration, err = meter.Float64Histogram(
		"valgen_export_duration_seconds",
		metric.WithDescription("Dataset export duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create export_duration: %w", err)
	}

	return m, nil
}
