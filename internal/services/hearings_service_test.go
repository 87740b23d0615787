package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/hmc"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

func newTestHearingsService(t *testing.T, cases *memoryCases, gateway *stubGateway, logger *recordingLogger) HearingsService {
	t.Helper()
	deps := HearingsServiceDeps{
		Cases:   cases,
		Gateway: gateway,
		Mapper:  newTestMapper(t),
		Retry: RetryPolicy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			Multiplier:      1.5,
			MaxInterval:     5 * time.Millisecond,
		},
	}
	if logger != nil {
		deps.Logger = logger.log
	}
	svc, err := NewHearingsService(deps)
	if err != nil {
		t.Fatalf("new hearings service: %v", err)
	}
	return svc
}

func TestHearingsService_CreateHearingEndToEnd(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{
		createResponse: domain.HmcUpdateResponse{
			HearingRequestID: int64Ptr(555),
			VersionNumber:    1,
			Status:           domain.HmcStatusHearingRequested,
		},
	}
	svc := newTestHearingsService(t, cases, gateway, nil)

	err := svc.ProcessHearingRequest(context.Background(), domain.HearingRequest{
		CaseID: caseData.CaseID,
		State:  domain.HearingStateCreateHearing,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(gateway.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(gateway.created))
	}
	parties := gateway.created[0].PartiesDetails
	if len(parties) != 3 {
		t.Fatalf("expected 3 parties in payload, got %d", len(parties))
	}

	stored := cases.stored(t, caseData.CaseID)
	if len(stored.Hearings) != 1 {
		t.Fatalf("expected one hearing, got %+v", stored.Hearings)
	}
	if got := stored.Hearings[0]; got.HearingID != "555" || got.VersionNumber != 1 || got.Status != domain.HmcStatusHearingRequested {
		t.Fatalf("unexpected hearing %+v", got)
	}
	var ids []string
	for _, entity := range stored.PartyEntities() {
		ids = append(ids, entity.ID())
	}
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Fatalf("expected party ids 1..3, got %v", ids)
	}
	if len(cases.updates) != 1 {
		t.Fatalf("expected a single case update, got %d", len(cases.updates))
	}
	if len(stored.Events) != 1 || stored.Events[0].Type != domain.EventTypeCreateHearing {
		t.Fatalf("expected one createHearing event, got %+v", stored.Events)
	}
}

func TestHearingsService_CreateAdoptsInFlightHearing(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{
		hearings: domain.HearingsGetResponse{
			CaseRef: caseData.CaseID,
			CaseHearings: []domain.CaseHearing{
				{HearingID: 901, HmcStatus: domain.HmcStatusCancelled, HearingRequestDateTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
				{HearingID: 778, HmcStatus: domain.HmcStatusAwaitingListing, HearingRequestDateTime: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)},
				{HearingID: 777, HmcStatus: domain.HmcStatusHearingRequested, HearingRequestDateTime: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
		hearing: domain.HearingGetResponse{RequestDetails: domain.RequestDetails{VersionNumber: 2}},
	}
	svc := newTestHearingsService(t, cases, gateway, nil)

	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(gateway.created) != 0 {
		t.Fatalf("expected existing hearing to be adopted, got %d create calls", len(gateway.created))
	}
	stored := cases.stored(t, caseData.CaseID)
	if len(stored.Hearings) != 1 || stored.Hearings[0].HearingID != "777" || stored.Hearings[0].VersionNumber != 2 {
		t.Fatalf("unexpected hearings %+v", stored.Hearings)
	}
}

func TestHearingsService_CreateTreatsMissingHearingListAsEmpty(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{
		hearingsErr:    &hmc.StatusError{Op: "get hearings", StatusCode: 404},
		createResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(12), VersionNumber: 1},
	}
	svc := newTestHearingsService(t, cases, gateway, nil)

	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(gateway.created) != 1 {
		t.Fatalf("expected create call, got %d", len(gateway.created))
	}
}

func TestHearingsService_CreateGatewayFailure(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{createErr: &hmc.StatusError{Op: "create hearing", StatusCode: 500}}
	logger := &recordingLogger{}
	svc := newTestHearingsService(t, cases, gateway, logger)

	err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	})
	if !errors.Is(err, ErrHearingGateway) {
		t.Fatalf("expected ErrHearingGateway, got %v", err)
	}
	if len(cases.updates) != 0 {
		t.Fatalf("expected no case write, got %d", len(cases.updates))
	}
	if !logger.has("hearings.gateway.failed") {
		t.Fatalf("expected gateway failure to be logged")
	}
}

func TestHearingsService_ListingErrorStopsBeforeScheduler(t *testing.T) {
	caseData := sampleCase()
	caseData.BenefitCode = "999"
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{}
	svc := newTestHearingsService(t, cases, gateway, nil)

	err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	})
	if !errors.Is(err, ErrListing) {
		t.Fatalf("expected ErrListing, got %v", err)
	}
	if len(gateway.listed) != 0 || len(gateway.created) != 0 {
		t.Fatalf("expected no scheduler calls, listed=%d created=%d", len(gateway.listed), len(gateway.created))
	}
}

func TestHearingsService_WriteBackExhaustsRetries(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	unavailable := repositories.NewCaseError(repositories.CaseErrorUnavailable, caseData.CaseID, "store down", nil)
	cases.failures = []error{unavailable, unavailable, unavailable, unavailable}
	gateway := &stubGateway{createResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 1}}
	logger := &recordingLogger{}
	svc := newTestHearingsService(t, cases, gateway, logger)

	err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	})
	var exhausted *ExhaustedRetryError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedRetryError, got %v", err)
	}
	if exhausted.Attempts != 3 || cases.attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, error=%d store=%d", exhausted.Attempts, cases.attempts)
	}
	if !errors.Is(err, ErrUpdateCase) {
		t.Fatalf("expected exhausted error to wrap ErrUpdateCase, got %v", err)
	}
	if !logger.has("hearings.write_back.exhausted.error") {
		t.Fatalf("expected exhaustion to be logged")
	}
}

func TestHearingsService_WriteBackRetriesConflictWithFreshCase(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	cases.failures = []error{repositories.NewCaseError(repositories.CaseErrorConflict, caseData.CaseID, "stale", nil)}
	gateway := &stubGateway{createResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 1}}
	svc := newTestHearingsService(t, cases, gateway, nil)

	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if cases.attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", cases.attempts)
	}
	stored := cases.stored(t, caseData.CaseID)
	if len(stored.Hearings) != 1 || stored.Hearings[0].HearingID != "555" {
		t.Fatalf("unexpected hearings %+v", stored.Hearings)
	}
	if stored.Appeal.Appellant.ID != "1" {
		t.Fatalf("expected reloaded case to receive ids, got %q", stored.Appeal.Appellant.ID)
	}
}

func TestHearingsService_WriteBackNotFoundIsPermanent(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	cases.failures = []error{repositories.NewCaseError(repositories.CaseErrorNotFound, caseData.CaseID, "gone", nil)}
	gateway := &stubGateway{createResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 1}}
	svc := newTestHearingsService(t, cases, gateway, nil)

	err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateCreateHearing,
	})
	var exhausted *ExhaustedRetryError
	if errors.As(err, &exhausted) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if !errors.Is(err, ErrUpdateCase) {
		t.Fatalf("expected ErrUpdateCase, got %v", err)
	}
	if cases.attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", cases.attempts)
	}
}

func TestHearingsService_UpdateHearingKeepsSingleEntry(t *testing.T) {
	caseData := sampleCase()
	caseData.Hearings = []domain.Hearing{{HearingID: "555", VersionNumber: 1}, {HearingID: "12", VersionNumber: 4}}
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{updateResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 2}}
	svc := newTestHearingsService(t, cases, gateway, nil)

	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateUpdateHearing,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	payload, ok := gateway.updated["555"]
	if !ok {
		t.Fatalf("expected update of hearing 555, got %v", gateway.updated)
	}
	if payload.RequestDetails == nil || payload.RequestDetails.VersionNumber != 1 {
		t.Fatalf("expected request version 1, got %+v", payload.RequestDetails)
	}
	stored := cases.stored(t, caseData.CaseID)
	count := 0
	for _, hearing := range stored.Hearings {
		if hearing.HearingID == "555" {
			count++
			if hearing.VersionNumber != 2 {
				t.Fatalf("expected version 2, got %d", hearing.VersionNumber)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected a single entry for hearing 555, got %d", count)
	}
	if last := stored.Events[len(stored.Events)-1]; last.Type != domain.EventTypeUpdateHearing {
		t.Fatalf("expected updateHearing event, got %s", last.Type)
	}
}

func TestHearingsService_UpdateWithoutHearing(t *testing.T) {
	caseData := sampleCase()
	svc := newTestHearingsService(t, newMemoryCases(caseData), &stubGateway{}, nil)

	err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateUpdateHearing,
	})
	if !errors.Is(err, ErrHearingNotFound) {
		t.Fatalf("expected ErrHearingNotFound, got %v", err)
	}
}

func TestHearingsService_StaleResponseSkipsWrite(t *testing.T) {
	caseData := sampleCase()
	caseData.Hearings = []domain.Hearing{{HearingID: "555", VersionNumber: 3}}
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{updateResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 2}}
	logger := &recordingLogger{}
	svc := newTestHearingsService(t, cases, gateway, logger)

	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData: caseData,
		State:    domain.HearingStateUpdateHearing,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(cases.updates) != 0 {
		t.Fatalf("expected no write for stale response, got %d", len(cases.updates))
	}
	if !logger.has("hearings.write_back.stale_version.skipped") {
		t.Fatalf("expected stale response to be logged")
	}
	if logger.has("hearings.write_back.completed") {
		t.Fatalf("expected no completion log when the write was skipped")
	}
}

func TestHearingsService_CancelHearing(t *testing.T) {
	caseData := sampleCase()
	caseData.Hearings = []domain.Hearing{{HearingID: "555", VersionNumber: 1}}
	cases := newMemoryCases(caseData)
	gateway := &stubGateway{cancelResponse: domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 2, Status: domain.HmcStatusCancellationRequested}}
	svc := newTestHearingsService(t, cases, gateway, nil)

	reason := domain.CancellationReasonWithdrawn
	if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{
		CaseData:           caseData,
		State:              domain.HearingStateCancelHearing,
		CancellationReason: &reason,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	payload, ok := gateway.cancelled["555"]
	if !ok {
		t.Fatalf("expected cancel of hearing 555")
	}
	if len(payload.CancellationReasonCodes) != 1 || payload.CancellationReasonCodes[0] != "withdraw" {
		t.Fatalf("unexpected reason codes %v", payload.CancellationReasonCodes)
	}
	if len(cases.updates) != 0 {
		t.Fatalf("expected cancel to leave the case untouched, got %d writes", len(cases.updates))
	}
}

func TestHearingsService_NoOpStates(t *testing.T) {
	for _, state := range []domain.HearingState{domain.HearingStateUpdatedCase, domain.HearingStatePartyNotified} {
		t.Run(string(state), func(t *testing.T) {
			caseData := sampleCase()
			cases := newMemoryCases(caseData)
			gateway := &stubGateway{}
			svc := newTestHearingsService(t, cases, gateway, nil)

			if err := svc.ProcessHearingWrapper(context.Background(), domain.HearingWrapper{CaseData: caseData, State: state}); err != nil {
				t.Fatalf("process: %v", err)
			}
			if len(cases.updates) != 0 || len(gateway.created) != 0 || len(gateway.listed) != 0 {
				t.Fatalf("expected no side effects")
			}
		})
	}
}

func TestHearingsService_RejectsUnknownStateBeforeFetch(t *testing.T) {
	cases := newMemoryCases()
	cases.getErr = errors.New("must not be called")
	logger := &recordingLogger{}
	svc := newTestHearingsService(t, cases, &stubGateway{}, logger)

	err := svc.ProcessHearingRequest(context.Background(), domain.HearingRequest{CaseID: "1", State: "ADJOURN_HEARING"})
	if !errors.Is(err, ErrUnhandleableHearingState) {
		t.Fatalf("expected ErrUnhandleableHearingState, got %v", err)
	}
	if !logger.has("hearings.request.unhandleable_state.error") {
		t.Fatalf("expected error log for unhandleable state")
	}

	err = svc.ProcessHearingRequest(context.Background(), domain.HearingRequest{CaseID: "1"})
	if !errors.Is(err, ErrUnhandleableHearingState) {
		t.Fatalf("expected empty state to be rejected, got %v", err)
	}
}

func TestHearingsService_CaseNotFound(t *testing.T) {
	svc := newTestHearingsService(t, newMemoryCases(), &stubGateway{}, nil)

	err := svc.ProcessHearingRequest(context.Background(), domain.HearingRequest{
		CaseID: "404",
		State:  domain.HearingStateCreateHearing,
	})
	if !errors.Is(err, ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestNewHearingsServiceRequiresDeps(t *testing.T) {
	if _, err := NewHearingsService(HearingsServiceDeps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestApplyHearingResponseRecordsStatus(t *testing.T) {
	caseData := sampleCase()
	caseData.Hearings = []domain.Hearing{{HearingID: "555", VersionNumber: 1, Status: domain.HmcStatusHearingRequested}}

	if !applyHearingResponse(caseData, domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 2, Status: domain.HmcStatusUpdateSubmitted}) {
		t.Fatalf("expected newer response to apply")
	}
	if got := caseData.Hearings[0]; got.VersionNumber != 2 || got.Status != domain.HmcStatusUpdateSubmitted {
		t.Fatalf("unexpected hearing %+v", got)
	}

	if !applyHearingResponse(caseData, domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 2}) {
		t.Fatalf("expected same-version response to apply")
	}
	if got := caseData.Hearings[0].Status; got != domain.HmcStatusUpdateSubmitted {
		t.Fatalf("expected status kept when response has none, got %q", got)
	}

	if applyHearingResponse(caseData, domain.HmcUpdateResponse{HearingRequestID: int64Ptr(555), VersionNumber: 1, Status: domain.HmcStatusCancelled}) {
		t.Fatalf("expected older response to be rejected")
	}
	if got := caseData.Hearings[0]; got.VersionNumber != 2 || got.Status != domain.HmcStatusUpdateSubmitted {
		t.Fatalf("expected hearing untouched by stale response, got %+v", got)
	}
}
