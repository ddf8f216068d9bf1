// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SessionMetrics tracks coordination-pass outcomes for production monitoring.
type SessionMetrics struct {
	queryCounter    metric.Int64Counter
	toolCallCounter metric.Int64Counter
	plannerLatency  metric.Float64Histogram
}

// NewSessionMetrics creates a session metrics tracker with OTEL meters.
func NewSessionMetrics() (*SessionMetrics, error) {
	meter := otel.Meter("sage/session")

	queryCounter, err := meter.Int64Counter(
		"sage.queries.total",
		metric.WithDescription("Coordination passes by mode and outcome"),
	)
	if err != nil {
		return nil, err
	}

	toolCallCounter, err := meter.Int64Counter(
		"sage.tool_calls.total",
		metric.WithDescription("Planned tool calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	plannerLatency, err := meter.Float64Histogram(
		"sage.planner.latency_seconds",
		metric.WithDescription("Planner round-trip latency"),
	)
	if err != nil {
		return nil, err
	}

	return &SessionMetrics{
		queryCounter:    queryCounter,
		toolCallCounter: toolCallCounter,
		plannerLatency:  plannerLatency,
	}, nil
}

// RecordQuery counts one coordination pass.
func (m *SessionMetrics) RecordQuery(ctx context.Context, mode string, err error) {
	m.queryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("error", err != nil),
	))
}

// RecordToolCall counts one planned tool call.
func (m *SessionMetrics) RecordToolCall(ctx context.Context, tool string, failed bool) {
	m.toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("error", failed),
	))
}

// RecordPlannerLatency observes one planner round trip.
func (m *SessionMetrics) RecordPlannerLatency(ctx context.Context, elapsed time.Duration) {
	m.plannerLatency.Record(ctx, elapsed.Seconds())
}
