package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hmcts/sscs-hearings-api/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		ok      bool
		sampled bool
	}{
		{name: "decimal span sampled", header: "105445aa7843bc8bf206b12000100000/1;o=1", ok: true, sampled: true},
		{name: "no options", header: "105445aa7843bc8bf206b12000100000/1", ok: true},
		{name: "short trace id", header: "abc/1;o=1"},
		{name: "missing span", header: "105445aa7843bc8bf206b12000100000"},
		{name: "empty", header: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc, ok := parseCloudTraceContext(tc.header)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && sc.IsSampled() != tc.sampled {
				t.Fatalf("sampled = %v, want %v", sc.IsSampled(), tc.sampled)
			}
			if ok && !sc.IsRemote() {
				t.Fatalf("expected remote span context")
			}
		})
	}
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var got requestctx.TraceInfo
	handler := TraceMiddleware("sscs-dev")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got.ProjectID != "sscs-dev" {
		t.Fatalf("expected project id on trace info, got %q", got.ProjectID)
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/hearings", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
}

func TestStartMessageSpanAttachesLogger(t *testing.T) {
	ctx, end := StartMessageSpan(context.Background(), zap.NewNop(), MessageScope{
		ProjectID:    "sscs-dev",
		Subscription: "hmc-to-sscs-sub",
		MessageID:    "m-1",
		Attempt:      1,
	})
	defer end(errors.New("done"))

	if requestctx.Logger(ctx) == requestctx.NoopLogger() {
		t.Fatalf("expected message logger on context")
	}
	if info, ok := requestctx.Trace(ctx); !ok || info.ProjectID != "sscs-dev" {
		t.Fatalf("expected trace info, got %+v", info)
	}
}

func TestSanitizeAttributeDropsControlCharacters(t *testing.T) {
	if got := SanitizeAttribute("dep\nloy\x00"); got != "deploy" {
		t.Fatalf("unexpected sanitised value %q", got)
	}
}
