// Package requestctx carries per-request and per-message values through context.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	traceKey  struct{}
	caseKey   struct{}
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores logger on ctx. A nil logger stores the shared no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger on ctx or the no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared no-op logger so callers can detect "no logger set".
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores trace metadata on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(ctx, traceKey{}, info)
}

// Trace returns the trace metadata on ctx.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID returns the trace id on ctx or "".
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithCaseID records the case being worked on and tags the context logger with it.
func WithCaseID(ctx context.Context, caseID string) context.Context {
	ctx = context.WithValue(ctx, caseKey{}, caseID)
	return WithLogger(ctx, Logger(ctx).With(zap.String("case_id", caseID)))
}

// CaseID returns the case id recorded by WithCaseID.
func CaseID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(caseKey{}).(string)
	return id
}
