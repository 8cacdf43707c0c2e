package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestInitializeOTel_Defaults(t *testing.T) {
	providers, err := InitializeOTel(nil, testLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Registry)
	assert.NotNil(t, providers.Metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_TracingToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceWriter = &buf

	providers, err := InitializeOTel(cfg, testLogger())
	require.NoError(t, err)
	require.NotNil(t, providers.TracerProvider)

	ctx, span := providers.Tracer.Start(context.Background(), "flatten-train")
	RecordError(ctx, errors.New("invalid JSON"))
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "flatten-train")
	assert.Contains(t, buf.String(), "invalid JSON")
}

func TestWriteMetricsFile(t *testing.T) {
	providers, err := InitializeOTel(nil, testLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()
	RecordFlatten(ctx, providers.Metrics, "/data/train_v2.csv", 120, 2, 1)
	RecordExport(ctx, providers.Metrics, "x_train", "csv", 40)
	RecordStepMetrics(ctx, providers.Metrics, "run", "split", 2*time.Second, false)
	RecordOperationMetrics(ctx, providers.Metrics, "run", 3*time.Second, true)

	path := filepath.Join(t.TempDir(), "metrics", "gafeatures.prom")
	require.NoError(t, providers.WriteMetricsFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "rows_flattened_total")
	assert.Contains(t, text, `input="train_v2.csv"`)
	assert.Contains(t, text, "rows_exported_total")
	assert.Contains(t, text, "operation_step_errors_total")
	assert.Contains(t, text, "operation_duration_seconds")
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordFlatten(ctx, nil, "x", 1, 1, 0)
		RecordExport(ctx, nil, "x", "csv", 1)
		RecordStepMetrics(ctx, nil, "op", "step", time.Second, true)
		RecordOperationMetrics(ctx, nil, "op", time.Second, true)
	})
}

func TestWriteMetricsFile_NotInitialized(t *testing.T) {
	p := &OTelProviders{Logger: testLogger()}
	assert.Error(t, p.WriteMetricsFile(filepath.Join(t.TempDir(), "m.prom")))
}
