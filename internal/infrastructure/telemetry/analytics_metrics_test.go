package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestAnalyticsMetrics(t *testing.T) (*AnalyticsMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewAnalyticsMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	return sums
}

func TestNewAnalyticsMetrics_NilMeter(t *testing.T) {
	_, err := NewAnalyticsMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestAnalyticsMetrics_Cache(t *testing.T) {
	m, reader := newTestAnalyticsMetrics(t)
	ctx := context.Background()

	m.CacheHit(ctx, "analytics:overview:20240301:20240307:all")
	m.CacheHit(ctx, "analytics:preset:7d")
	m.CacheMiss(ctx, "analytics:trend:20240301:20240307:all")
	m.CacheError(ctx, "get")

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["analytics_cache_hits_total"])
	assert.Equal(t, int64(1), sums["analytics_cache_misses_total"])
	assert.Equal(t, int64(1), sums["analytics_cache_errors_total"])
}

func TestAnalyticsMetrics_Aggregation(t *testing.T) {
	m, reader := newTestAnalyticsMetrics(t)
	ctx := context.Background()

	m.RecordAggregationRun(ctx, "scheduled", 2*time.Second, 7, nil)
	m.RecordAggregationRun(ctx, "manual", time.Second, 0, errors.New("source down"))
	m.RecordPresetBuild(ctx, 7, nil)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["analytics_aggregation_runs_total"])
	assert.Equal(t, int64(7), sums["analytics_aggregates_written_total"])
	assert.Equal(t, int64(1), sums["analytics_preset_builds_total"])
}

func TestAnalyticsMetrics_NilSafe(t *testing.T) {
	var m *AnalyticsMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.CacheHit(ctx, "k")
		m.CacheMiss(ctx, "k")
		m.CacheError(ctx, "set")
		m.RecordAggregationRun(ctx, "manual", time.Second, 1, nil)
		m.RecordPresetBuild(ctx, 30, nil)
	})
}

func TestCacheNamespace(t *testing.T) {
	assert.Equal(t, "overview", cacheNamespace("analytics:overview:20240301:20240307:all"))
	assert.Equal(t, "preset", cacheNamespace("analytics:preset:7d"))
	assert.Equal(t, "other", cacheNamespace("session:abc"))
}
