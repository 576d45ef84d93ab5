package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the application tracer
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/permitdesk/permitdesk")
}

// OTelMetrics holds OpenTelemetry metric instruments for the mutation path.
// These complement the Prometheus metrics when an OTLP collector is configured.
type OTelMetrics struct {
	mutationsTotal   metric.Int64Counter
	mutationDuration metric.Float64Histogram
	accessDenials    metric.Int64Counter
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/permitdesk/permitdesk")

	m := &OTelMetrics{}
	var err error

	m.mutationsTotal, err = meter.Int64Counter(
		"permit.mutations",
		metric.WithDescription("Total number of permit mutations through the facade"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutations counter: %w", err)
	}

	m.mutationDuration, err = meter.Float64Histogram(
		"permit.mutation.duration",
		metric.WithDescription("Permit mutation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mutation duration histogram: %w", err)
	}

	m.accessDenials, err = meter.Int64Counter(
		"permit.access.denials",
		metric.WithDescription("Total number of denied mutation attempts"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access denials counter: %w", err)
	}

	return m, nil
}

// RecordMutation records a completed facade mutation
func (m *OTelMetrics) RecordMutation(ctx context.Context, operation string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.mutationsTotal.Add(ctx, 1, attrs)
	m.mutationDuration.Record(ctx, seconds, attrs)
}

// RecordDenial records a denied mutation attempt
func (m *OTelMetrics) RecordDenial(ctx context.Context, operation string) {
	m.accessDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
