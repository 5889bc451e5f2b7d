package pkg

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

type gatewayContextKey string

// CtxKey is the single key every request-scoped value (logger, tracer) is
// attached under, matching the teacher's single-key context convention.
const CtxKey = gatewayContextKey("gateway_context")

type contextValues struct {
	Logger mlog.Logger
	Tracer trace.Tracer
}

// ContextWithLogger returns a context carrying the given logger.
func ContextWithLogger(ctx context.Context, logger mlog.Logger) context.Context {
	v := valuesFrom(ctx)
	v.Logger = logger

	return context.WithValue(ctx, CtxKey, v)
}

// LoggerFromContext extracts the Logger previously attached to ctx, falling
// back to a no-op logger so call sites never need a nil check.
func LoggerFromContext(ctx context.Context) mlog.Logger {
	if v, ok := ctx.Value(CtxKey).(*contextValues); ok && v.Logger != nil {
		return v.Logger
	}

	return mlog.NopLogger{}
}

// ContextWithTracer returns a context carrying the given tracer.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	v := valuesFrom(ctx)
	v.Tracer = tracer

	return context.WithValue(ctx, CtxKey, v)
}

// TracerFromContext extracts the Tracer previously attached to ctx, falling
// back to the global otel default tracer.
func TracerFromContext(ctx context.Context) trace.Tracer {
	if v, ok := ctx.Value(CtxKey).(*contextValues); ok && v.Tracer != nil {
		return v.Tracer
	}

	return otel.Tracer("gateway-core")
}

func valuesFrom(ctx context.Context) *contextValues {
	if v, ok := ctx.Value(CtxKey).(*contextValues); ok {
		cp := *v
		return &cp
	}

	return &contextValues{}
}
