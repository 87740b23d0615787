package di

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
	"github.com/hmcts/sscs-hearings-api/internal/platform/idempotency"
	"github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
	"github.com/hmcts/sscs-hearings-api/internal/refdata"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
	"github.com/hmcts/sscs-hearings-api/internal/services"
)

type stubCases struct{}

func (stubCases) GetCaseDetails(_ context.Context, caseID string) (*domain.CaseData, error) {
	return nil, repositories.NewCaseError(repositories.CaseErrorNotFound, caseID, "missing", nil)
}

func (stubCases) UpdateCaseData(_ context.Context, caseData *domain.CaseData, _ domain.EventType, _, _ string) (*domain.CaseData, error) {
	return caseData, nil
}

type stubHealth struct{}

func (stubHealth) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

type stubRegistry struct {
	closed bool
}

func (r *stubRegistry) Close(context.Context) error {
	r.closed = true
	return nil
}

func (r *stubRegistry) Cases() repositories.CaseRepository    { return stubCases{} }
func (r *stubRegistry) Health() repositories.HealthRepository { return stubHealth{} }

type stubGateway struct{}

func (stubGateway) CreateHearing(context.Context, domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	return domain.HmcUpdateResponse{}, nil
}

func (stubGateway) UpdateHearing(context.Context, string, domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	return domain.HmcUpdateResponse{}, nil
}

func (stubGateway) GetHearing(context.Context, string) (domain.HearingGetResponse, error) {
	return domain.HearingGetResponse{}, nil
}

func (stubGateway) CancelHearing(context.Context, string, domain.HearingCancelRequestPayload) (domain.HmcUpdateResponse, error) {
	return domain.HmcUpdateResponse{}, nil
}

func (stubGateway) GetHearings(context.Context, string) (domain.HearingsGetResponse, error) {
	return domain.HearingsGetResponse{}, nil
}

func newTestDependencies(t *testing.T) Dependencies {
	t.Helper()
	provider, err := refdata.NewProvider(config.ReferenceDataConfig{})
	if err != nil {
		t.Fatalf("reference data: %v", err)
	}
	t.Cleanup(provider.Close)
	return Dependencies{
		Registry:      &stubRegistry{},
		Gateway:       stubGateway{},
		ReferenceData: provider,
		Ledger:        idempotency.NewMemoryStore(),
		Build:         services.BuildInfo{Version: "test"},
	}
}

func testConfig() config.Config {
	return config.Config{
		Service: config.ServiceConfig{Code: "BBA3"},
		Retry:   config.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond},
	}
}

func TestNewContainerBuildsServices(t *testing.T) {
	deps := newTestDependencies(t)
	container, err := NewContainer(context.Background(), testConfig(), deps)
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	if container.Services.Hearings == nil || container.Services.HmcMessages == nil ||
		container.Services.ServiceHearings == nil || container.Services.System == nil {
		t.Fatalf("expected all services wired, got %+v", container.Services)
	}
	if container.Ledger != nil {
		t.Fatalf("expected ledger to stay unused without inbound dedupe")
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !deps.Registry.(*stubRegistry).closed {
		t.Fatalf("expected registry to be closed")
	}
}

func TestNewContainerKeepsLedgerWhenDedupeEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Features.InboundDedupe = true
	container, err := NewContainer(context.Background(), cfg, newTestDependencies(t))
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	if container.Ledger == nil {
		t.Fatalf("expected ledger when inbound dedupe is enabled")
	}
}

func TestNewContainerValidatesDependencies(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig(), Dependencies{}); err == nil {
		t.Fatalf("expected error without registry")
	}

	deps := newTestDependencies(t)
	cfg := testConfig()
	cfg.Service.Code = ""
	if _, err := NewContainer(context.Background(), cfg, deps); err == nil {
		t.Fatalf("expected error without service code")
	}

	deps.Gateway = nil
	if _, err := NewContainer(context.Background(), testConfig(), deps); err == nil {
		t.Fatalf("expected error without gateway")
	}
}

type recordingHearings struct {
	requests []services.HearingRequest
	err      error
}

func (r *recordingHearings) ProcessHearingRequest(_ context.Context, request services.HearingRequest) error {
	r.requests = append(r.requests, request)
	return r.err
}

func (r *recordingHearings) ProcessHearingWrapper(context.Context, services.HearingWrapper) error {
	return r.err
}

func hearingMessage(t *testing.T, request domain.HearingRequest) messaging.Message {
	t.Helper()
	data, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return messaging.Message{ID: "m-1", Data: data}
}

func TestHearingRequestHandlerDecodesAndProcesses(t *testing.T) {
	svc := &recordingHearings{}
	handler := HearingRequestHandler(svc, nil)

	err := handler(context.Background(), hearingMessage(t, domain.HearingRequest{CaseID: "1234", State: domain.HearingStateCreateHearing}))
	if err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
	if len(svc.requests) != 1 || svc.requests[0].CaseID != "1234" || svc.requests[0].State != domain.HearingStateCreateHearing {
		t.Fatalf("unexpected requests %+v", svc.requests)
	}
}

func TestHearingRequestHandlerNacksFailures(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		rejected bool
	}{
		{name: "case missing", err: fmt.Errorf("%w: 1234", services.ErrCaseNotFound), rejected: true},
		{name: "unhandleable", err: services.ErrUnhandleableHearingState, rejected: true},
		{name: "listing", err: services.ErrListing, rejected: true},
		{name: "gateway", err: services.ErrHearingGateway},
		{name: "exhausted", err: &services.ExhaustedRetryError{CaseID: "1234", Attempts: 3, Err: services.ErrUpdateCase}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			logger := func(_ context.Context, event string, _ map[string]any) { events = append(events, event) }
			handler := HearingRequestHandler(&recordingHearings{err: tc.err}, logger)

			err := handler(context.Background(), hearingMessage(t, domain.HearingRequest{CaseID: "1234", State: domain.HearingStateUpdateHearing}))
			var processingErr *services.HearingRequestProcessingError
			if !errors.As(err, &processingErr) {
				t.Fatalf("expected nack with processing error, got %v", err)
			}
			if processingErr.CaseID != "1234" || !errors.Is(err, tc.err) {
				t.Fatalf("expected error for case 1234 wrapping %v, got %v", tc.err, err)
			}
			logged := len(events) == 1 && events[0] == "hearing_request.rejected.error"
			if logged != tc.rejected {
				t.Fatalf("expected rejection log=%v, got %v", tc.rejected, events)
			}
		})
	}
}

func TestHearingRequestHandlerNacksMalformedPayload(t *testing.T) {
	svc := &recordingHearings{}
	var events []string
	logger := func(_ context.Context, event string, _ map[string]any) { events = append(events, event) }
	handler := HearingRequestHandler(svc, logger)

	err := handler(context.Background(), messaging.Message{ID: "m-2", Data: []byte("{not json")})
	var processingErr *services.HearingRequestProcessingError
	if !errors.As(err, &processingErr) || processingErr.MessageID != "m-2" {
		t.Fatalf("expected malformed payload to be nacked, got %v", err)
	}
	if len(svc.requests) != 0 {
		t.Fatalf("expected no processing for malformed payload")
	}
	if len(events) != 1 || events[0] != "hearing_request.malformed.error" {
		t.Fatalf("expected malformed payload to be logged, got %v", events)
	}
}
