package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of every finanalyst span.
const tracerName = "github.com/MrWong99/finanalyst"

// Span attribute keys shared by the MCP layer and the HTTP middleware.
const (
	AttrTool       = attribute.Key("mcp.tool.name")
	AttrToolStatus = attribute.Key("mcp.tool.status")
	AttrSessionID  = attribute.Key("mcp.session.id")
)

// StartSpan starts a span on the global tracer provider. The caller ends it,
// usually through [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// StartToolSpan starts the server span for one MCP tool call.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return StartSpan(ctx, "mcp.tool."+tool,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrTool.String(tool)),
	)
}

// CorrelationID returns the trace ID of the span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

// EndSpan ends span, recording err and marking the span failed when err is
// non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
