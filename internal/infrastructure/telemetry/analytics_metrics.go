package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AnalyticsMetrics records cache and aggregation outcomes. A nil
// *AnalyticsMetrics is valid and records nothing.
type AnalyticsMetrics struct {
	cacheHits    *Counter
	cacheMisses  *Counter
	cacheErrors  *Counter
	jobRuns      *Counter
	jobDuration  *Histogram
	rowsWritten  *Counter
	presetBuilds *Counter
}

// NewAnalyticsMetrics registers the analytics instruments on meter
func NewAnalyticsMetrics(meter metric.Meter) (*AnalyticsMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   AnalyticsMetrics
		err error
	)
	if m.cacheHits, err = NewCounter(meter, "analytics_cache_hits_total", "Analytics cache hits", "{hit}"); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = NewCounter(meter, "analytics_cache_misses_total", "Analytics cache misses", "{miss}"); err != nil {
		return nil, err
	}
	if m.cacheErrors, err = NewCounter(meter, "analytics_cache_errors_total", "Analytics cache failures swallowed by the fail-open wrapper", "{error}"); err != nil {
		return nil, err
	}
	if m.jobRuns, err = NewCounter(meter, "analytics_aggregation_runs_total", "Aggregation job runs", "{run}"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = NewHistogram(meter, "analytics_aggregation_duration_seconds", "Aggregation job duration", "s", JobDurationBuckets...); err != nil {
		return nil, err
	}
	if m.rowsWritten, err = NewCounter(meter, "analytics_aggregates_written_total", "Daily aggregate documents written", "{document}"); err != nil {
		return nil, err
	}
	if m.presetBuilds, err = NewCounter(meter, "analytics_preset_builds_total", "Preset summary builds", "{build}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// cacheNamespace reduces a key such as analytics:overview:20240301:... to "overview"
func cacheNamespace(key string) string {
	rest, ok := strings.CutPrefix(key, "analytics:")
	if !ok {
		return "other"
	}
	ns, _, _ := strings.Cut(rest, ":")
	return ns
}

// CacheHit implements cache.CacheObserver
func (m *AnalyticsMetrics) CacheHit(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.cacheHits.Inc(ctx, attribute.String("namespace", cacheNamespace(key)))
}

// CacheMiss implements cache.CacheObserver
func (m *AnalyticsMetrics) CacheMiss(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.cacheMisses.Inc(ctx, attribute.String("namespace", cacheNamespace(key)))
}

// CacheError implements cache.CacheObserver
func (m *AnalyticsMetrics) CacheError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.Inc(ctx, AttrOperation.String(op))
}

// RecordAggregationRun records one aggregation job run
func (m *AnalyticsMetrics) RecordAggregationRun(ctx context.Context, trigger string, d time.Duration, written int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTrigger.String(trigger), AttrResult.String(resultOf(err))}
	m.jobRuns.Inc(ctx, attrs...)
	m.jobDuration.RecordDuration(ctx, d, attrs...)
	if written > 0 {
		m.rowsWritten.Add(ctx, int64(written))
	}
}

// RecordPresetBuild records the outcome of one preset materialization
func (m *AnalyticsMetrics) RecordPresetBuild(ctx context.Context, days int, err error) {
	if m == nil {
		return
	}
	m.presetBuilds.Inc(ctx, AttrPreset.Int(days), AttrResult.String(resultOf(err)))
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
