package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// PresetMaterializer rebuilds the rolling preset summaries held in the cache
type PresetMaterializer struct {
	aggregates analytics.AggregateRepository
	cache      analytics.Cache
	ttl        time.Duration
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    Metrics
}

// NewPresetMaterializer creates a new PresetMaterializer
func NewPresetMaterializer(
	aggregates analytics.AggregateRepository,
	cache analytics.Cache,
	ttl time.Duration,
	logger *zap.Logger,
	opts ...Option,
) *PresetMaterializer {
	o := applyOptions(opts)
	return &PresetMaterializer{
		aggregates: aggregates,
		cache:      cache,
		ttl:        ttl,
		clock:      o.clock,
		logger:     logger.Named("preset_materializer"),
		metrics:    o.metrics,
	}
}

// BuildPresets recomputes every preset window ending at asOf. A failing
// window is logged and does not stop the others.
func (m *PresetMaterializer) BuildPresets(ctx context.Context, asOf time.Time) {
	for _, days := range analytics.PresetWindows {
		if ctx.Err() != nil {
			m.logger.Warn("Preset rebuild cancelled", zap.Int("window_days", days), zap.Error(ctx.Err()))
			return
		}
		err := m.buildPreset(ctx, days, asOf)
		m.metrics.RecordPresetBuild(ctx, days, err)
		if err != nil {
			m.logger.Error("Failed to build preset summary",
				zap.Int("window_days", days),
				zap.Time("as_of", asOf),
				zap.Error(err),
			)
		}
	}
}

func (m *PresetMaterializer) buildPreset(ctx context.Context, days int, asOf time.Time) error {
	r, err := analytics.PresetRange(days, asOf)
	if err != nil {
		return err
	}
	aggs, err := m.aggregates.FindRange(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to load aggregates for %s: %w", r, err)
	}

	summary := analytics.SummarizeWindow(days, aggs, m.clock.Now().UTC())
	if err := m.cache.Set(ctx, analytics.PresetKey(days), summary, m.ttl); err != nil {
		return fmt.Errorf("failed to store preset summary: %w", err)
	}

	m.logger.Debug("Preset summary built",
		zap.Int("window_days", days),
		zap.String("range", r.String()),
		zap.Int("days_found", len(aggs)),
	)
	return nil
}
