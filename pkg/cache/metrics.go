package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskinfer.cache"

type storeMetrics struct {
	initOnce sync.Once

	hits     metric.Int64Counter
	misses   metric.Int64Counter
	duration metric.Float64Histogram
}

var metricsContainer storeMetrics

// recorder creates the instruments once on the global meter provider. The
// global provider delegates to whatever provider is installed later.
func recorder() *storeMetrics {
	metricsContainer.initOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		metricsContainer.hits, _ = meter.Int64Counter(
			"taskinfer_cache_hits_total",
			metric.WithDescription("Target set lookups answered from the cache"),
		)
		metricsContainer.misses, _ = meter.Int64Counter(
			"taskinfer_cache_misses_total",
			metric.WithDescription("Target set lookups that ran inference"),
		)
		metricsContainer.duration, _ = meter.Float64Histogram(
			"taskinfer_inference_duration_seconds",
			metric.WithDescription("Time spent inferring a target set on a cache miss"),
			metric.WithUnit("s"),
		)
	})
	return &metricsContainer
}

func (m *storeMetrics) recordHit(ctx context.Context, cacheName string) {
	if m.hits != nil {
		m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cacheName)))
	}
}

func (m *storeMetrics) recordMiss(ctx context.Context, cacheName string, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("cache", cacheName))
	if m.misses != nil {
		m.misses.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, took.Seconds(), attrs)
	}
}
