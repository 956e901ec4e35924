package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/erp/analytics/internal/infrastructure/logger"
	"github.com/erp/analytics/internal/infrastructure/telemetry"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// finalizeTimeout bounds the cache purge and preset rebuild that follow a write
const finalizeTimeout = 30 * time.Second

// Trigger labels recorded on run metrics
const (
	TriggerRange     = "range"
	TriggerYesterday = "yesterday"
)

// AggregationJob materializes DailyAggregate records from the transactional
// source. Runs are serialized within the process and concurrent calls for the
// same range share one execution.
type AggregationJob struct {
	source     analytics.SalesSource
	aggregates analytics.AggregateRepository
	cache      analytics.Cache
	presets    *PresetMaterializer
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    Metrics
	jobTimeout time.Duration

	mu    sync.Mutex
	group singleflight.Group
}

// NewAggregationJob creates a new AggregationJob
func NewAggregationJob(
	source analytics.SalesSource,
	aggregates analytics.AggregateRepository,
	cache analytics.Cache,
	presets *PresetMaterializer,
	logger *zap.Logger,
	opts ...Option,
) *AggregationJob {
	o := applyOptions(opts)
	return &AggregationJob{
		source:     source,
		aggregates: aggregates,
		cache:      cache,
		presets:    presets,
		clock:      o.clock,
		logger:     logger.Named("aggregation_job"),
		metrics:    o.metrics,
		jobTimeout: o.jobTimeout,
	}
}

// Run aggregates every day of [from, to] and returns the number of days written
func (j *AggregationJob) Run(ctx context.Context, from, to time.Time) (int, error) {
	r, err := analytics.NewDateRange(from, to)
	if err != nil {
		return 0, err
	}
	return j.run(ctx, r, TriggerRange)
}

// RunForYesterday aggregates the previous UTC day
func (j *AggregationJob) RunForYesterday(ctx context.Context) (int, error) {
	yesterday := analytics.TruncateDay(j.clock.Now()).AddDate(0, 0, -1)
	return j.run(ctx, analytics.SingleDay(yesterday), TriggerYesterday)
}

// run executes r once for every concurrent caller. The shared execution is
// detached from the caller that started it; each caller only stops waiting
// when its own context ends.
func (j *AggregationJob) run(ctx context.Context, r analytics.DateRange, trigger string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ch := j.group.DoChan(r.String(), func() (any, error) {
		runCtx := context.WithoutCancel(ctx)
		if j.jobTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, j.jobTimeout)
			defer cancel()
		}
		return j.execute(runCtx, r, trigger)
	})

	select {
	case res := <-ch:
		if res.Shared {
			j.logger.Debug("Joined in-flight aggregation run", zap.String("range", r.String()))
		}
		written, _ := res.Val.(int)
		return written, res.Err
	case <-ctx.Done():
		j.logger.Warn("Stopped waiting for aggregation run",
			zap.String("range", r.String()),
			zap.Error(ctx.Err()),
		)
		return 0, ctx.Err()
	}
}

func (j *AggregationJob) execute(ctx context.Context, r analytics.DateRange, trigger string) (written int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := j.clock.Now()
	runID := start.UTC()
	ctx, log := logger.WithRunID(ctx, j.logger, runID.Format(time.RFC3339Nano))
	ctx, span := telemetry.StartSpan(ctx, "aggregation", "run",
		attribute.String("range", r.String()),
		attribute.String("trigger", trigger),
	)
	defer func() {
		span.SetAttributes(attribute.Int("days_written", written))
		telemetry.EndSpan(span, err)
		j.metrics.RecordAggregationRun(ctx, trigger, j.clock.Since(start), written, err)
	}()

	log.Info("Aggregation run started",
		zap.String("range", r.String()),
		zap.String("trigger", trigger),
	)

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	projection, err := j.source.FetchDailySales(ctx, r)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		log.Error("Aggregation run failed reading sales source", zap.Error(err))
		return 0, analytics.NewSourceUnavailableError("sales source", err)
	}

	aggs := analytics.BuildDailyAggregates(projection, runID)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var partial *analytics.PartialWriteError
	if len(aggs) > 0 {
		written, err = j.aggregates.UpsertMany(ctx, aggs)
	}
	j.finalize(ctx, log)

	switch {
	case errors.As(err, &partial):
		log.Warn("Aggregates partially written",
			zap.Int("written", partial.Written),
			zap.Int("failed", partial.Failed),
			zap.Error(partial.Cause),
		)
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, ctxErr
		}
		log.Error("Aggregation run failed writing aggregates", zap.Error(err))
		return written, analytics.NewSourceUnavailableError("aggregate store", err)
	}

	if partial != nil {
		return written, partial
	}

	log.Info("Aggregation run completed",
		zap.String("range", r.String()),
		zap.Int("days_written", written),
		zap.Duration("duration", j.clock.Since(start)),
	)
	return written, nil
}

// finalize purges stale results and rebuilds the presets once the store has
// been written to. Writes may have committed even when the run's context has
// ended, so both steps run on a context of their own.
func (j *AggregationJob) finalize(ctx context.Context, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	j.purgeStale(ctx, log)
	if j.presets != nil {
		j.presets.BuildPresets(ctx, j.clock.Now())
	}
}

// purgeStale drops the cached results that depend on arbitrary date ranges
func (j *AggregationJob) purgeStale(ctx context.Context, log *zap.Logger) {
	for _, prefix := range analytics.StaleOnRebuildPrefixes {
		removed, err := j.cache.DeleteByPrefix(ctx, prefix)
		if err != nil {
			log.Warn("Failed to purge cache prefix", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		log.Debug("Purged cache prefix", zap.String("prefix", prefix), zap.Int64("removed", removed))
	}
}
