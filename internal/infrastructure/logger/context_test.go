package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_Missing(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, enriched := WithRequestID(context.Background(), zap.New(core), "req-1")
	enriched.Info("hello")
	FromContext(ctx).Info("from ctx")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	for _, e := range recorded.All() {
		assert.Equal(t, "req-1", e.ContextMap()["request_id"])
	}
	assert.Equal(t, 2, recorded.Len())
}

func TestWithUserID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-7")
	ctx, _ = WithUserID(ctx, FromContext(ctx), "user-42")
	FromContext(ctx).Info("authenticated")

	assert.Equal(t, "user-42", GetUserID(ctx))
	assert.Equal(t, "req-7", GetRequestID(ctx))
	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "user-42", fields["user_id"])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Empty(t, GetUserID(context.Background()))
}

func TestWithRunID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRunID(context.Background(), zap.New(core), "2024-03-02T01:00:00Z")
	L(ctx).Info("run started")

	assert.Equal(t, "2024-03-02T01:00:00Z", GetRunID(ctx))
	assert.Empty(t, GetRequestID(ctx))
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "2024-03-02T01:00:00Z", recorded.All()[0].ContextMap()["run_id"])
}

func TestTraceCorrelation(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.Empty(t, GetTraceID(context.Background()))
	assert.Same(t, base, WithTraceContext(context.Background(), base))

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(WithContext(context.Background(), base), sc)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", GetTraceID(ctx))

	L(ctx).Info("traced")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", fields["trace_id"])
	assert.Equal(t, "0102030405060708", fields["span_id"])
}
