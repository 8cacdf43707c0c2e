package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gafeatures/internal/infrastructure"
)

const (
	TracerName = "gafeatures.operation"
)

// OperationTracer provides OpenTelemetry instrumentation for operations
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer bound to the run's providers. A nil
// providers value yields spans from the global tracer and no metrics.
func NewOperationTracer(providers *infrastructure.OTelProviders) *OperationTracer {
	if providers == nil {
		return &OperationTracer{tracer: otel.Tracer(TracerName)}
	}
	tracer := providers.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &OperationTracer{tracer: tracer, metrics: providers.Metrics}
}

// Metrics returns the pipeline instruments, nil when metrics are disabled
func (pt *OperationTracer) Metrics() *infrastructure.PipelineMetrics {
	return pt.metrics
}

// TraceOperationExecution creates a span for the entire operation execution
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, stepCount int) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.Int("operation.step_count", stepCount),
		),
	)
}

// TraceStepExecution creates a span for an individual step execution
func (pt *OperationTracer) TraceStepExecution(ctx context.Context, operationID, stepID string, attempt int) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, fmt.Sprintf("operation.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
			attribute.Int("step.attempt", attempt),
		),
	)
}

// RecordStepCompletion ends the step span and records step metrics
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, operationID, stepID string, duration time.Duration, err error) {
	defer span.End()

	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))
	infrastructure.RecordStepMetrics(ctx, pt.metrics, operationID, stepID, duration, err == nil)

	if err != nil {
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("error.type", string(GetErrorType(err))),
		))
		return
	}
	span.SetStatus(codes.Ok, "step completed")
}

// RecordOperationCompletion ends the operation span and records its duration
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, operationID string, duration time.Duration, err error) {
	defer span.End()

	span.SetAttributes(attribute.Float64("operation.duration_seconds", duration.Seconds()))
	infrastructure.RecordOperationMetrics(ctx, pt.metrics, operationID, duration, err == nil)

	if err != nil {
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("operation.id", operationID),
		))
		return
	}
	span.SetStatus(codes.Ok, "operation completed")
}
