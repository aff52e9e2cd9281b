package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics counts lookups and evictions per named cache.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
	RecordEviction(ctx context.Context, cacheName string)
}

type cacheMetrics struct {
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // callers check "if metrics != nil"
		return nil, nil
	}

	lookups, err := meter.Int64Counter(MetricNameCacheLookups,
		metric.WithDescription("Cache lookups by cache and result (hit, miss)"))
	if err != nil {
		return nil, fmt.Errorf("create cache lookups counter: %w", err)
	}

	evictions, err := meter.Int64Counter(MetricNameCacheEvictions,
		metric.WithDescription("Entries evicted to stay within the cache size"))
	if err != nil {
		return nil, fmt.Errorf("create cache evictions counter: %w", err)
	}

	return &cacheMetrics{lookups: lookups, evictions: evictions}, nil
}

func (c *cacheMetrics) record(ctx context.Context, cacheName, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, NormalizeReason(cacheName, AllowedCacheNames)),
		attribute.String(AttrResult, result),
	))
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, CacheResultHit)
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.record(ctx, cacheName, CacheResultMiss)
}

func (c *cacheMetrics) RecordEviction(ctx context.Context, cacheName string) {
	c.evictions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, NormalizeReason(cacheName, AllowedCacheNames))))
}

// NamedCacheObserver adapts CacheMetrics to one named pkg/cache.LoaderCache.
type NamedCacheObserver struct {
	Metrics CacheMetrics
	Name    string
}

func (o NamedCacheObserver) OnHit(ctx context.Context)  { o.Metrics.RecordHit(ctx, o.Name) }
func (o NamedCacheObserver) OnMiss(ctx context.Context) { o.Metrics.RecordMiss(ctx, o.Name) }

// OnEvict runs inside the cache without a request context.
func (o NamedCacheObserver) OnEvict() { o.Metrics.RecordEviction(context.Background(), o.Name) }
