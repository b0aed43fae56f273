package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"taskinfer/pkg/logger"
	"taskinfer/pkg/targets"
)

// counterValue sums the data points of a counter for one cache file
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name, cacheName string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("cache")); ok && v.AsString() == cacheName {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestStore_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	t.Run("Should count every caller that did not compute as a hit", func(t *testing.T) {
		store := NewStore(filepath.FromSlash("/ws/.taskinfer/cache/metrics.hash"), logger.Nop())
		release := make(chan struct{})
		compute := func(context.Context) (targets.TargetSet, error) {
			<-release
			return sampleSet(), nil
		}

		const callers = 8
		var wg sync.WaitGroup
		hits := make(chan bool, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, hit, err := store.GetOrCompute(context.Background(), "same", compute)
				assert.NoError(t, err)
				hits <- hit
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()
		close(hits)

		var reported int64
		for hit := range hits {
			if hit {
				reported++
			}
		}
		assert.EqualValues(t, callers-1, reported)
		assert.Equal(t, reported, counterValue(t, reader, "taskinfer_cache_hits_total", "metrics.hash"))
		assert.EqualValues(t, 1, counterValue(t, reader, "taskinfer_cache_misses_total", "metrics.hash"))
	})
}
