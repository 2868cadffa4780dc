package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAnnotatesRequestAndTraceIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{Logger: zap.New(core)}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTraceID(ctx, "trace-9")
	l.WithContext(ctx).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, "trace-9", fields["trace_id"])
}

func TestContextFieldsEmptyWithoutIDs(t *testing.T) {
	require.Empty(t, ContextFields(context.Background()))
	require.Empty(t, ContextFields(WithRequestID(context.Background(), "")))
	require.Empty(t, ContextFields(nil))
}
