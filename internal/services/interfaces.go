package services

import (
	"context"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
	"github.com/hmcts/sscs-hearings-api/internal/refdata"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CaseData             = domain.CaseData
	HearingRequest       = domain.HearingRequest
	HearingWrapper       = domain.HearingWrapper
	HmcMessage           = domain.HmcMessage
	SystemHealthReport   = domain.SystemHealthReport
	ServiceHearingValues = domain.ServiceHearingValues
	ServiceLinkedCase    = domain.ServiceLinkedCase
)

// Logger records a structured service event. Events ending in ".error" or
// ".failed" are logged at error level.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// HearingsService drives a hearing request through the scheduler and records
// the outcome on the case.
type HearingsService interface {
	ProcessHearingRequest(ctx context.Context, request HearingRequest) error
	ProcessHearingWrapper(ctx context.Context, wrapper HearingWrapper) error
}

// HmcMessageService applies scheduler status messages to cases.
type HmcMessageService interface {
	ProcessMessage(ctx context.Context, msg messaging.Message) error
}

// ServiceHearingsService answers the scheduler's callbacks about a case.
type ServiceHearingsService interface {
	GetServiceHearingValues(ctx context.Context, caseID string) (ServiceHearingValues, error)
	GetServiceLinkedCases(ctx context.Context, caseID string) ([]ServiceLinkedCase, error)
}

// HearingRequestPublisher queues a hearing request for asynchronous processing.
type HearingRequestPublisher interface {
	PublishHearingRequest(ctx context.Context, request HearingRequest) (string, error)
}

// SystemService exposes health information for probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	// Ready returns ErrNotReady when a critical dependency is down.
	Ready(ctx context.Context) (SystemHealthReport, error)
}

// HearingGateway is the scheduler API used by the orchestrator.
type HearingGateway interface {
	CreateHearing(ctx context.Context, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error)
	UpdateHearing(ctx context.Context, hearingID string, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error)
	GetHearing(ctx context.Context, hearingID string) (domain.HearingGetResponse, error)
	CancelHearing(ctx context.Context, hearingID string, payload domain.HearingCancelRequestPayload) (domain.HmcUpdateResponse, error)
	GetHearings(ctx context.Context, caseID string) (domain.HearingsGetResponse, error)
}

// ReferenceData provides the listing reference tables.
type ReferenceData interface {
	Venue(ctx context.Context, epimsID string) (refdata.VenueDetails, error)
	HearingDuration(benefitCode, issueCode string) (refdata.HearingDuration, bool)
	SessionCategory(benefitCode, issueCode string, secondDoctor, fqpm bool) (refdata.SessionCategory, bool)
}
