package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CritiqueMetrics records orchestrator metrics: request outcomes per path,
// retrieval size and latency, evidence outcomes.
type CritiqueMetrics interface {
	RecordCritique(ctx context.Context, path, status string, duration time.Duration)
	RecordRetrieval(ctx context.Context, hits int, duration time.Duration)
	RecordEvidence(ctx context.Context, outcome string, records int)
}

type critiqueMetrics struct {
	requests          metric.Int64Counter
	duration          metric.Float64Histogram
	retrievalHits     metric.Int64Histogram
	retrievalDuration metric.Float64Histogram
	evidenceOutcomes  metric.Int64Counter
	evidenceRecords   metric.Int64Histogram
}

// NewCritiqueMetrics creates CritiqueMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCritiqueMetrics(meter metric.Meter) (CritiqueMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(MetricNameCritiqueRequests,
		metric.WithDescription("Critique requests by path (text, image) and status"))
	if err != nil {
		return nil, fmt.Errorf("create critique requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(MetricNameCritiqueDuration,
		metric.WithDescription("End-to-end critique duration (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create critique duration histogram: %w", err)
	}

	retrievalHits, err := meter.Int64Histogram(MetricNameRetrievalHits,
		metric.WithDescription("Similar artworks returned per retrieval"))
	if err != nil {
		return nil, fmt.Errorf("create retrieval hits histogram: %w", err)
	}

	retrievalDuration, err := meter.Float64Histogram(MetricNameRetrievalDuration,
		metric.WithDescription("Nearest-neighbour query duration (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create retrieval duration histogram: %w", err)
	}

	evidenceOutcomes, err := meter.Int64Counter(MetricNameEvidenceOutcomes,
		metric.WithDescription("Evidence assembly outcomes"))
	if err != nil {
		return nil, fmt.Errorf("create evidence outcomes counter: %w", err)
	}

	evidenceRecords, err := meter.Int64Histogram(MetricNameEvidenceRecords,
		metric.WithDescription("Validated evidence records per bundle"))
	if err != nil {
		return nil, fmt.Errorf("create evidence records histogram: %w", err)
	}

	return &critiqueMetrics{
		requests:          requests,
		duration:          duration,
		retrievalHits:     retrievalHits,
		retrievalDuration: retrievalDuration,
		evidenceOutcomes:  evidenceOutcomes,
		evidenceRecords:   evidenceRecords,
	}, nil
}

func normalizePath(path string) string {
	if path == PathText || path == PathImage {
		return path
	}

	return "other"
}

func (m *critiqueMetrics) RecordCritique(ctx context.Context, path, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrPath, normalizePath(path)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedCritiqueStatuses)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *critiqueMetrics) RecordRetrieval(ctx context.Context, hits int, duration time.Duration) {
	m.retrievalHits.Record(ctx, int64(hits))
	m.retrievalDuration.Record(ctx, duration.Seconds())
}

func (m *critiqueMetrics) RecordEvidence(ctx context.Context, outcome string, records int) {
	outcome = NormalizeReason(outcome, AllowedEvidenceOutcomes)
	m.evidenceOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, outcome)))
	m.evidenceRecords.Record(ctx, int64(records))
}
