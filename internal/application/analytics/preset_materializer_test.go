package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/analytics/internal/domain/analytics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPresetMaterializer_BuildPresets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// inside 7d, 30d and 365d windows ending 2024-03-05
	day := func(s string) analytics.DailyAggregate {
		d, err := time.Parse(analytics.DateLayout, s)
		require.NoError(t, err)
		return analytics.DailyAggregate{Date: d, TotalSales: dec("10"), TotalOrders: 1, UniqueCustomers: 1}
	}
	_, err := env.aggregates.UpsertMany(ctx, []analytics.DailyAggregate{
		day("2024-03-05"), day("2024-02-27"), day("2024-02-26"), day("2024-02-04"), day("2023-03-06"),
	})
	require.NoError(t, err)

	env.presets.BuildPresets(ctx, now)

	expected := map[int]int64{7: 2, 30: 4, 365: 5}
	for days, orders := range expected {
		var summary analytics.PresetSummary
		found, err := env.cache.Get(ctx, analytics.PresetKey(days), &summary)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, days, summary.WindowDays)
		assert.Equal(t, orders, summary.TotalOrders, "window %dd", days)
		assert.True(t, dec("10").Mul(decimal.NewFromInt(orders)).Equal(summary.TotalSales))
	}
}

func TestPresetMaterializer_FailuresDoNotStopOtherWindows(t *testing.T) {
	env := newTestEnv(t)
	core, logs := observer.New(zap.ErrorLevel)

	m := NewPresetMaterializer(failingAggregates{findErr: errors.New("timeout")}, env.cache, time.Hour, zap.New(core))
	m.BuildPresets(context.Background(), now)

	assert.Equal(t, len(analytics.PresetWindows), logs.FilterMessage("Failed to build preset summary").Len())
	assert.Zero(t, env.cache.Size())
}
