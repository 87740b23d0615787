package hmc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    []byte
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) handler(status int, response any) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, recordedRequest{
			Method:  req.Method,
			Path:    req.URL.Path,
			Query:   req.URL.RawQuery,
			Headers: req.Header.Clone(),
			Body:    body,
		})
		r.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if response != nil {
			_ = json.NewEncoder(w).Encode(response)
		}
	}
}

func (r *recorder) last(t *testing.T) recordedRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatalf("expected a request to be recorded")
	}
	return r.requests[len(r.requests)-1]
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(config.HMCConfig{
		BaseURL:          server.URL + "/",
		AuthToken:        "idam-token",
		ServiceAuthToken: "Bearer s2s-token",
	}, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateHearingSendsPayloadAndHeaders(t *testing.T) {
	id := int64(555)
	rec := &recorder{}
	client := newTestClient(t, rec.handler(http.StatusOK, domain.HmcUpdateResponse{
		HearingRequestID: &id,
		VersionNumber:    1,
		Status:           domain.HmcStatusHearingRequested,
	}), WithDeploymentID("dep-1"))

	resp, err := client.CreateHearing(context.Background(), domain.HearingRequestPayload{
		CaseDetails: domain.CaseDetails{CaseID: "1234"},
	})
	if err != nil {
		t.Fatalf("CreateHearing: %v", err)
	}
	if resp.HearingRequestID == nil || *resp.HearingRequestID != 555 || resp.VersionNumber != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	got := rec.last(t)
	if got.Method != http.MethodPost || got.Path != "/hearing" {
		t.Fatalf("unexpected request %s %s", got.Method, got.Path)
	}
	if got.Headers.Get("Authorization") != "Bearer idam-token" {
		t.Fatalf("unexpected authorization header %q", got.Headers.Get("Authorization"))
	}
	if got.Headers.Get("ServiceAuthorization") != "Bearer s2s-token" {
		t.Fatalf("unexpected service authorization header %q", got.Headers.Get("ServiceAuthorization"))
	}
	if got.Headers.Get("hmctsDeploymentId") != "dep-1" {
		t.Fatalf("expected deployment header, got %q", got.Headers.Get("hmctsDeploymentId"))
	}
	var sent domain.HearingRequestPayload
	if err := json.Unmarshal(got.Body, &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.CaseDetails.CaseID != "1234" {
		t.Fatalf("expected case id in body, got %+v", sent.CaseDetails)
	}
}

func TestGatewayRoutes(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, rec.handler(http.StatusOK, map[string]any{}))
	ctx := context.Background()

	cases := []struct {
		name   string
		call   func() error
		method string
		path   string
		query  string
	}{
		{"update", func() error {
			_, err := client.UpdateHearing(ctx, "2000001", domain.HearingRequestPayload{})
			return err
		}, http.MethodPut, "/hearing/2000001", ""},
		{"get", func() error { _, err := client.GetHearing(ctx, "2000001"); return err }, http.MethodGet, "/hearing/2000001", ""},
		{"cancel", func() error {
			_, err := client.CancelHearing(ctx, "2000001", domain.HearingCancelRequestPayload{CancellationReasonCodes: []string{"withdraw"}})
			return err
		}, http.MethodDelete, "/hearing/2000001", ""},
		{"list", func() error { _, err := client.GetHearings(ctx, "1234"); return err }, http.MethodGet, "/hearings/1234", ""},
		{"parties notified", func() error {
			return client.PartiesNotified(ctx, "2000001", 3, domain.PartiesNotifiedPayload{})
		}, http.MethodPut, "/partiesNotified/2000001", "version=3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			got := rec.last(t)
			if got.Method != tc.method || got.Path != tc.path || got.Query != tc.query {
				t.Fatalf("expected %s %s?%s, got %s %s?%s", tc.method, tc.path, tc.query, got.Method, got.Path, got.Query)
			}
		})
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, rec.handler(http.StatusNotFound, map[string]string{"message": "no hearing"}))

	_, err := client.GetHearing(context.Background(), "42")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status error, got %T", err)
	}
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, rec.handler(http.StatusInternalServerError, nil))

	_, err := client.CreateHearing(context.Background(), domain.HearingRequestPayload{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("500 must not map to ErrNotFound")
	}
}

func TestEmptyIDsAreRejectedLocally(t *testing.T) {
	rec := &recorder{}
	client := newTestClient(t, rec.handler(http.StatusOK, nil))

	if _, err := client.GetHearing(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if len(rec.requests) != 0 {
		t.Fatalf("expected no request to be sent")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.HMCConfig{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}
