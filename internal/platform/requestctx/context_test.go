package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerDefaultsToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatalf("expected noop logger")
	}
	ctx := WithLogger(context.Background(), nil)
	if Logger(ctx) != NoopLogger() {
		t.Fatalf("expected noop logger for nil input")
	}
}

func TestWithCaseIDTagsLogger(t *testing.T) {
	base := zap.NewExample()
	ctx := WithCaseID(WithLogger(context.Background(), base), "1234")
	if CaseID(ctx) != "1234" {
		t.Fatalf("expected case id 1234, got %q", CaseID(ctx))
	}
	if Logger(ctx) == base {
		t.Fatalf("expected derived logger")
	}
}

func TestTraceRoundTrip(t *testing.T) {
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "t-1", ProjectID: "p"})
	if TraceID(ctx) != "t-1" {
		t.Fatalf("unexpected trace id %q", TraceID(ctx))
	}
	if _, ok := Trace(context.Background()); ok {
		t.Fatalf("expected no trace on empty context")
	}
}
