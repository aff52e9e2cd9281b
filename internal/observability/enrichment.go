package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EnrichmentMetrics records dataset enrichment progress.
type EnrichmentMetrics interface {
	RecordRow(ctx context.Context, status string)
	RecordCheckpoint(ctx context.Context, ok bool)
}

type enrichmentMetrics struct {
	rows        metric.Int64Counter
	checkpoints metric.Int64Counter
}

// NewEnrichmentMetrics creates EnrichmentMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEnrichmentMetrics(meter metric.Meter) (EnrichmentMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	rows, err := meter.Int64Counter(MetricNameEnrichmentRows,
		metric.WithDescription("Enrichment rows by status"))
	if err != nil {
		return nil, fmt.Errorf("create enrichment rows counter: %w", err)
	}

	checkpoints, err := meter.Int64Counter(MetricNameEnrichmentCheckpoints,
		metric.WithDescription("Enrichment checkpoint writes by status (success, failed)"))
	if err != nil {
		return nil, fmt.Errorf("create enrichment checkpoints counter: %w", err)
	}

	return &enrichmentMetrics{rows: rows, checkpoints: checkpoints}, nil
}

func (m *enrichmentMetrics) RecordRow(ctx context.Context, status string) {
	status = NormalizeReason(status, AllowedEnrichmentStatuses)
	m.rows.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (m *enrichmentMetrics) RecordCheckpoint(ctx context.Context, ok bool) {
	status := "success"
	if !ok {
		status = "failed"
	}

	m.checkpoints.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrStatus, status)))
}
