package observability

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hmcts/sscs-hearings-api/internal/platform/requestctx"
)

const cloudTraceHeader = "X-Cloud-Trace-Context"

var tracer = otel.Tracer("github.com/hmcts/sscs-hearings-api/internal/platform/observability")

// TraceMiddleware continues an incoming Cloud Trace context, starts a server span
// and records the trace ids on the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if remote, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
					attribute.String("user_agent.original", r.UserAgent()),
				))
			defer span.End()

			info := traceInfo(span.SpanContext(), projectID)
			if header := formatCloudTraceHeader(info); header != "" {
				w.Header().Set(cloudTraceHeader, header)
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithTrace(ctx, info)))
		})
	}
}

// MessageScope describes one Pub/Sub delivery being processed.
type MessageScope struct {
	ProjectID    string
	Subscription string
	MessageID    string
	Attempt      int
}

// StartMessageSpan opens a consumer span for a Pub/Sub delivery and returns a
// context carrying the trace ids and a logger tagged with the message identity.
// The caller ends the span and reports the outcome through the returned func.
func StartMessageSpan(ctx context.Context, base *zap.Logger, scope MessageScope) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "pubsub receive "+scope.Subscription,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "gcp_pubsub"),
			attribute.String("messaging.destination.name", scope.Subscription),
			attribute.String("messaging.message.id", scope.MessageID),
			attribute.Int("messaging.gcp_pubsub.message.delivery_attempt", scope.Attempt),
		))

	info := traceInfo(span.SpanContext(), scope.ProjectID)
	if base == nil {
		base = requestctx.Logger(ctx)
	}
	logger := base.With(
		zap.String("subscription", SanitizeAttribute(scope.Subscription)),
		zap.String("message_id", SanitizeAttribute(scope.MessageID)),
		zap.String("trace_id", info.TraceID),
	)
	if resource := loggingTraceResource(info); resource != "" {
		logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
	}
	ctx = requestctx.WithLogger(requestctx.WithTrace(ctx, info), logger)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func traceInfo(sc trace.SpanContext, projectID string) requestctx.TraceInfo {
	return requestctx.TraceInfo{
		TraceID:   sc.TraceID().String(),
		SpanID:    sc.SpanID().String(),
		Sampled:   sc.IsSampled(),
		ProjectID: projectID,
	}
}

// parseCloudTraceContext reads "TRACE_ID/SPAN_ID;o=OPTIONS" where SPAN_ID is decimal
// per the Cloud Trace format; hex span ids are also accepted.
func parseCloudTraceContext(header string) (trace.SpanContext, bool) {
	traceHex, rest, ok := strings.Cut(strings.TrimSpace(header), "/")
	if !ok || len(traceHex) != 32 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, options, _ := strings.Cut(rest, ";")
	spanID, ok := parseSpanID(strings.TrimSpace(spanPart))
	if !ok {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if strings.TrimSpace(options) == "o=1" {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func parseSpanID(value string) (trace.SpanID, bool) {
	if num, err := strconv.ParseUint(value, 10, 64); err == nil && num != 0 {
		var id trace.SpanID
		binary.BigEndian.PutUint64(id[:], num)
		return id, true
	}
	if value != "" && len(value) <= 16 {
		if id, err := trace.SpanIDFromHex(strings.Repeat("0", 16-len(value)) + value); err == nil {
			return id, true
		}
	}
	return trace.SpanID{}, false
}

func formatCloudTraceHeader(info requestctx.TraceInfo) string {
	if info.TraceID == "" || info.SpanID == "" {
		return ""
	}
	sampled := 0
	if info.Sampled {
		sampled = 1
	}
	return fmt.Sprintf("%s/%s;o=%d", info.TraceID, info.SpanID, sampled)
}
