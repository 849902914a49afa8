package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CtxZapLogger 绑定模块名的 zap 包装。*Ctx 方法从 context 里提取
// trace_id 附加到日志字段；不带 ctx 的同名方法是便捷写法。
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig
}

func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.logCtx(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.logCtx(context.Background(), zapcore.DebugLevel, msg, fields)
}

func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.logCtx(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.logCtx(context.Background(), zapcore.InfoLevel, msg, fields)
}

func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.logCtx(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.logCtx(context.Background(), zapcore.WarnLevel, msg, fields)
}

func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.logCtx(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.logCtx(context.Background(), zapcore.ErrorLevel, msg, fields)
}

func (l *CtxZapLogger) logCtx(ctx context.Context, level zapcore.Level, msg string, fields []zap.Field) {
	if ce := l.base.Check(level, msg); ce != nil {
		ce.Write(l.enrichFields(ctx, fields)...)
	}
}

// With 返回携带预设字段的子 Logger
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// GetZapLogger 暴露底层 *zap.Logger，供第三方库对接
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.config == nil {
		return fields
	}

	enriched := make([]zap.Field, 0, len(fields)+2)
	if l.config.AppName != "" {
		enriched = append(enriched, zap.String("app_name", l.config.AppName))
	}
	if l.config.EnableTraceID {
		if traceID := extractTraceIDFromContext(ctx, l.config); traceID != "" {
			name := l.config.TraceIDFieldName
			if name == "" {
				name = "trace_id"
			}
			enriched = append(enriched, zap.String(name, traceID))
		}
	}
	return append(enriched, fields...)
}

// extractTraceIDFromContext 先取 OpenTelemetry span，再回退自定义 key
func extractTraceIDFromContext(ctx context.Context, cfg *ManagerConfig) string {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}

	if cfg.TraceIDKey != "" {
		if id, ok := ctx.Value(cfg.TraceIDKey).(string); ok {
			return id
		}
	}
	return ""
}
