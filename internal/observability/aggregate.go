package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric collectors. When metrics are disabled, all fields are nil
// and the components receiving them skip recording.
type Metrics struct {
	Critique   CritiqueMetrics
	Enrichment EnrichmentMetrics
	Embeddings EmbeddingMetrics
	Cache      CacheMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	critique, err := NewCritiqueMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("critique metrics: %w", err)
	}

	enrichment, err := NewEnrichmentMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("enrichment metrics: %w", err)
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{
		Critique:   critique,
		Enrichment: enrichment,
		Embeddings: embeddings,
		Cache:      cache,
	}, nil
}
