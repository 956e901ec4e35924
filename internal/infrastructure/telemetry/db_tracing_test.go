package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, zap.NewNop()))
}

func TestRegisterDBTracing_EmitsSpans(t *testing.T) {
	recorder := setupSpanRecorder(t)
	db := setupTestDB(t)

	err := RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBName: "sqlite"}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)

	assert.NotEmpty(t, recorder.Ended())
}

func TestRegisterDBTracing_MarksSlowQueries(t *testing.T) {
	recorder := setupSpanRecorder(t)
	db := setupTestDB(t)

	// every query exceeds a 1ns threshold
	err := RegisterDBTracing(db, DBTracingConfig{Enabled: true, SlowQueryThresh: time.Nanosecond}, zap.NewNop())
	require.NoError(t, err)

	var rows []tracedRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)

	var slow bool
	for _, span := range recorder.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == "db.slow_query" && attr.Value.AsBool() {
				slow = true
			}
		}
	}
	assert.True(t, slow)
}
