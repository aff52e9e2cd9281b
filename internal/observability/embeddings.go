package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records artwork embedding job metrics (backfill, worker).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordJobsEnqueued(ctx context.Context, count int64)
	RecordEmbeddingOutcome(ctx context.Context, status string)
	RecordWorkerError(ctx context.Context, reason string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
	SetQueueDepth(depth int)
}

type embeddingMetrics struct {
	jobsEnqueued metric.Int64Counter
	outcomes     metric.Int64Counter
	workerErrors metric.Int64Counter
	duration     metric.Float64Histogram
	queueDepth   atomic.Int64
	queueGauge   metric.Float64ObservableGauge
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(MetricNameEmbeddingJobsEnqueued,
		metric.WithDescription("Total artwork embedding jobs enqueued"))
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(MetricNameEmbeddingOutcomes,
		metric.WithDescription("Total artwork embedding job outcomes by status"))
	if err != nil {
		return nil, fmt.Errorf("create embedding outcomes counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(MetricNameEmbeddingWorkerErrors,
		metric.WithDescription("Total embedding worker errors by reason"))
	if err != nil {
		return nil, fmt.Errorf("create embedding worker errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(MetricNameEmbeddingDuration,
		metric.WithDescription("Artwork embedding job duration (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	m := &embeddingMetrics{
		jobsEnqueued: jobsEnqueued,
		outcomes:     outcomes,
		workerErrors: workerErrors,
		duration:     duration,
	}

	m.queueGauge, err = meter.Float64ObservableGauge(MetricNameEmbeddingQueueDepth,
		metric.WithDescription("Current embeddings queue depth (available/retryable/scheduled)"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(float64(m.queueDepth.Load()))

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding queue depth gauge: %w", err)
	}

	return m, nil
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, count int64) {
	e.jobsEnqueued.Add(ctx, count)
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, status string) {
	status = NormalizeReason(status, AllowedEmbeddingOutcomes)
	e.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedEmbeddingWorkerReasons)
	e.workerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeReason(status, AllowedEmbeddingOutcomes)
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) SetQueueDepth(depth int) {
	e.queueDepth.Store(int64(depth))
}
