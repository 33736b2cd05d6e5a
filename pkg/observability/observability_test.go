package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "defectlab", cfg.ServiceName)
	assert.Equal(t, observability.ModeRun, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.False(t, cfg.Prometheus)
}

func TestInit_NoopWhenNoExporter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	_, span := providers.Tracer.Start(context.Background(), "op")
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_PrometheusServesRecordedRuns(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true
	cfg.LogOutput = io.Discard

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })
	require.NotNil(t, providers.MetricsHandler)

	mm, err := observability.NewMiningMetrics(providers.Meter)
	require.NoError(t, err)

	mm.RecordRun(context.Background(), observability.MiningStats{Project: "demo", Releases: 3, Duration: time.Second})

	rec := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "defectlab_mining_releases")
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "defectlab", "ci", observability.ModeMine, "run-1"))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.WithGroup("phase").InfoContext(ctx, "mined", "releases", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "defectlab", record["service"])
	assert.Equal(t, "mine", record["mode"])
	assert.Equal(t, "ci", record["env"])
	assert.Equal(t, "run-1", record["run_id"])

	phase, ok := record["phase"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", phase["trace_id"])
	assert.InDelta(t, 3, phase["releases"], 0)
}

func TestTracingHandler_OmitsEmptyMetadata(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	slog.New(observability.NewTracingHandler(inner, "defectlab", "", observability.ModeEvaluate, "")).
		Info("no span")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "env")
	assert.NotContains(t, record, "run_id")
	assert.Equal(t, "evaluate", record["mode"])
}

func TestMiningMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	mm, err := observability.NewMiningMetrics(mp.Meter("test"))
	require.NoError(t, err)

	mm.RecordRun(context.Background(), observability.MiningStats{Project: "demo", Classes: 42, Labels: 7})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(42), sums["defectlab.mining.classes.total"])
	assert.Equal(t, int64(7), sums["defectlab.mining.labels.total"])
	assert.Equal(t, int64(1), sums["defectlab.mining.runs.total"])
}

func TestMetrics_NilReceiversAreSafe(t *testing.T) {
	t.Parallel()

	var (
		mm *observability.MiningMetrics
		em *observability.EvaluationMetrics
	)

	assert.NotPanics(t, func() {
		mm.RecordRun(context.Background(), observability.MiningStats{})
		em.RecordCell(context.Background(), "NaiveBayes", "ok", time.Millisecond)
	})

	em, err := observability.NewEvaluationMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	em.RecordCell(context.Background(), "IBk", "failed", time.Millisecond)
}

func TestDiagnosticsServer(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer(context.Background(), "127.0.0.1:0", nil, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close(context.Background())) })

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+srv.Addr()+"/healthz", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, observability.ParseOTLPHeaders(" a=1, b = 2 "))
}
