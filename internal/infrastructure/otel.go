package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gafeatures/pkg/contracts"
)

const (
	ServiceName = "gafeatures"
	MeterName   = "gafeatures"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	EnableTracing  bool
	// TraceWriter receives pretty-printed spans when tracing is enabled
	TraceWriter io.Writer
}

// OTelProviders holds the OpenTelemetry providers of one pipeline run.
// Metrics are collected into a private Prometheus registry so that a run
// can snapshot them to a text file without serving HTTP.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	Metrics        *PipelineMetrics
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a configuration with tracing disabled
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		TraceWriter:    os.Stderr,
	}
}

// InitializeOTel sets up tracing and metrics for a run
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	logger.DebugContext(ctx, "OpenTelemetry initialization complete",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.Bool("tracing_enabled", cfg.EnableTracing))

	return providers, nil
}

// initializeTracing sets up a stdout span exporter, or a no-op tracer when disabled
func initializeTracing(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	if !cfg.EnableTracing {
		providers.Tracer = noop.NewTracerProvider().Tracer(MeterName)
		return nil
	}

	w := cfg.TraceWriter
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Synchronous export keeps span output ordered with the run's logs.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	return nil
}

// initializeMetrics wires the OTel Prometheus exporter to a private registry
func initializeMetrics(cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	providers.Registry = registry
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	metrics, err := CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	providers.Metrics = metrics

	return nil
}

// PipelineMetrics holds the instruments recorded during a run
type PipelineMetrics struct {
	RowsFlattened     metric.Int64Counter
	ChunksWritten     metric.Int64Counter
	ColumnsFilled     metric.Int64Counter
	RowsExported      metric.Int64Counter
	StepsTotal        metric.Int64Counter
	StepDuration      metric.Float64Histogram
	StepErrors        metric.Int64Counter
	OperationDuration metric.Float64Histogram
}

// CreatePipelineMetrics creates the pipeline instruments on meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	rowsFlattened, err := meter.Int64Counter(
		"rows_flattened",
		metric.WithDescription("Session rows written by the flatten stage"),
	)
	if err != nil {
		return nil, err
	}

	chunksWritten, err := meter.Int64Counter(
		"chunks_written",
		metric.WithDescription("Temporary chunk files written by the flatten stage"),
	)
	if err != nil {
		return nil, err
	}

	columnsFilled, err := meter.Int64Counter(
		"columns_filled",
		metric.WithDescription("Schema columns back-filled with their default because a chunk lacked them"),
	)
	if err != nil {
		return nil, err
	}

	rowsExported, err := meter.Int64Counter(
		"rows_exported",
		metric.WithDescription("Rows written to the output tables"),
	)
	if err != nil {
		return nil, err
	}

	stepsTotal, err := meter.Int64Counter(
		"operation_steps",
		metric.WithDescription("Operation steps executed"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"operation_step_duration",
		metric.WithDescription("Operation step duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepErrors, err := meter.Int64Counter(
		"operation_step_errors",
		metric.WithDescription("Operation steps that failed"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"operation_duration",
		metric.WithDescription("Whole operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RowsFlattened:     rowsFlattened,
		ChunksWritten:     chunksWritten,
		ColumnsFilled:     columnsFilled,
		RowsExported:      rowsExported,
		StepsTotal:        stepsTotal,
		StepDuration:      stepDuration,
		StepErrors:        stepErrors,
		OperationDuration: operationDuration,
	}, nil
}

// RecordFlatten records the outcome of flattening one input file
func RecordFlatten(ctx context.Context, metrics *PipelineMetrics, input string, rows, chunks, filled int) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("input", filepath.Base(input)))
	metrics.RowsFlattened.Add(ctx, int64(rows), attrs)
	metrics.ChunksWritten.Add(ctx, int64(chunks), attrs)
	metrics.ColumnsFilled.Add(ctx, int64(filled), attrs)
}

// RecordExport records rows written for one output table
func RecordExport(ctx context.Context, metrics *PipelineMetrics, table, sink string, rows int) {
	if metrics == nil {
		return
	}
	metrics.RowsExported.Add(ctx, int64(rows), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("sink", sink),
	))
}

// RecordStepMetrics records metrics for one operation step
func RecordStepMetrics(ctx context.Context, metrics *PipelineMetrics, operationID, stepID string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation.id", operationID),
		attribute.String("step.id", stepID),
	}
	metrics.StepsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if !success {
		status = "failure"
		metrics.StepErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	metrics.StepDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))
}

// RecordOperationMetrics records the duration and outcome of a whole operation
func RecordOperationMetrics(ctx context.Context, metrics *PipelineMetrics, operationID string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.OperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation.id", operationID),
		attribute.String("status", status),
	))
}

// WriteMetricsFile snapshots the registry in Prometheus text format
func (p *OTelProviders) WriteMetricsFile(path string) error {
	if p.Registry == nil {
		return fmt.Errorf("metrics are not initialized")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	p.Logger.Info("Metrics written", slog.String("path", path))
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
