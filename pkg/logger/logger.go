package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with mode-based construction and request-scoped fields.
type Logger struct {
	Logger *zap.Logger
}

var (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

func New(mode string) *Logger {
	var config zap.Config
	if mode == ProductionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zapLogger}
}

// SetGlobalLogger installs l as the process logger. Components constructed
// without an explicit logger fall back to zap.L().
func SetGlobalLogger(l *Logger) {
	zap.ReplaceGlobals(l.Logger)
}

type ctxKey string

const (
	requestIdKey ctxKey = "request_id"
	traceIdKey   ctxKey = "trace_id"
)

// WithRequestID returns a context carrying the request id for log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

// WithTraceID returns a context carrying the trace id for log lines.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIdKey, id)
}

// ContextFields extracts the request-scoped ids present on ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if ctx == nil {
		return fields
	}
	if requestId, ok := ctx.Value(requestIdKey).(string); ok && requestId != "" {
		fields = append(fields, zap.String(string(requestIdKey), requestId))
	}
	if traceId, ok := ctx.Value(traceIdKey).(string); ok && traceId != "" {
		fields = append(fields, zap.String(string(traceIdKey), traceId))
	}
	return fields
}

// WithContext returns a zap logger annotated with the ids on ctx.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	return l.Logger.With(ContextFields(ctx)...)
}
