package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gallery-ai/critic/internal/config"
)

func TestNormalizeReason(t *testing.T) {
	assert.Equal(t, "success", NormalizeReason("success", AllowedCritiqueStatuses))
	assert.Equal(t, "other", NormalizeReason("timeout", AllowedCritiqueStatuses))
	assert.Equal(t, "other", NormalizeReason("", AllowedEvidenceOutcomes))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestTraceContextHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")

	ctx := WithRequestID(context.Background(), "req-123")
	logger.InfoContext(ctx, "critique started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-123", record["request_id"])
	assert.Equal(t, "critique started", record["msg"])
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestTraceContextHandler_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.DebugContext(ctx, "inside span")
	span.End()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
}

func TestNewMetrics_NilMeter(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}

	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider.Meter(MeterScope))
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.Critique.RecordCritique(ctx, PathImage, "success", time.Second)
	m.Critique.RecordCritique(ctx, "bogus", "weird", time.Second)
	m.Critique.RecordRetrieval(ctx, 2, 10*time.Millisecond)
	m.Critique.RecordEvidence(ctx, "malformed", 0)
	m.Enrichment.RecordRow(ctx, "enriched")
	m.Enrichment.RecordCheckpoint(ctx, true)
	m.Embeddings.RecordJobsEnqueued(ctx, 3)
	m.Embeddings.RecordEmbeddingOutcome(ctx, "success")
	m.Cache.RecordHit(ctx, "reference_images")
	m.Cache.RecordMiss(ctx, "unknown_cache")
	NamedCacheObserver{Metrics: m.Cache, Name: CacheReferenceImages}.OnEvict()
	m.Embeddings.SetQueueDepth(7)

	data := collect(t, reader)

	requests, ok := data[MetricNameCritiqueRequests].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, requests.DataPoints, 2)

	var statuses []string
	for _, dp := range requests.DataPoints {
		status, _ := dp.Attributes.Value(AttrStatus)
		statuses = append(statuses, status.AsString())
	}
	assert.ElementsMatch(t, []string{"success", "other"}, statuses)

	enqueued, ok := data[MetricNameEmbeddingJobsEnqueued].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), enqueued.DataPoints[0].Value)

	lookups, ok := data[MetricNameCacheLookups].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, lookups.DataPoints, 2)

	byResult := map[string]string{}
	for _, dp := range lookups.DataPoints {
		result, _ := dp.Attributes.Value(AttrResult)
		cacheName, _ := dp.Attributes.Value(AttrCache)
		byResult[result.AsString()] = cacheName.AsString()
	}
	assert.Equal(t, map[string]string{"hit": "reference_images", "miss": "other"}, byResult)

	evictions, ok := data[MetricNameCacheEvictions].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), evictions.DataPoints[0].Value)

	depth, ok := data[MetricNameEmbeddingQueueDepth].(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 7.0, depth.DataPoints[0].Value, 0)

	assert.Contains(t, data, MetricNameEnrichmentRows)
	assert.Contains(t, data, MetricNameRetrievalDuration)
}

func TestProviders_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(&config.Config{}, "")
	require.NoError(t, err)
	assert.Nil(t, mp)

	tp, err := NewTracerProvider(&config.Config{OtelTracesExporter: "zipkin"}, "")
	require.NoError(t, err)
	assert.Nil(t, tp)

	require.NoError(t, ShutdownMeterProvider(context.Background(), nil))
	require.NoError(t, ShutdownTracerProvider(context.Background(), nil))
}

func TestNewPrometheusMeterProvider(t *testing.T) {
	mp, handler, err := NewPrometheusMeterProvider("test")
	require.NoError(t, err)
	require.NotNil(t, handler)
	require.NoError(t, ShutdownMeterProvider(context.Background(), mp))
}

func TestSamplerFromEnv(t *testing.T) {
	assert.Contains(t, samplerFromEnv("always_off", "").Description(), "AlwaysOff")
	assert.Contains(t, samplerFromEnv("traceidratio", "0.5").Description(), "0.5")
	assert.Contains(t, samplerFromEnv("", "").Description(), "ParentBased")
}
