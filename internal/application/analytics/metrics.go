package analytics

import (
	"context"
	"time"
)

// Metrics receives aggregation outcomes. *telemetry.AnalyticsMetrics implements it.
type Metrics interface {
	RecordAggregationRun(ctx context.Context, trigger string, d time.Duration, written int, err error)
	RecordPresetBuild(ctx context.Context, days int, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordAggregationRun(context.Context, string, time.Duration, int, error) {}
func (noopMetrics) RecordPresetBuild(context.Context, int, error)                           {}
