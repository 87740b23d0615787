package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/hmc"
	"github.com/hmcts/sscs-hearings-api/internal/platform/idempotency"
	"github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

const (
	hmcMessageMeter = "github.com/hmcts/sscs-hearings-api/internal/services"

	outcomeApplied    = "applied"
	outcomeUnchanged  = "unchanged"
	outcomeIrrelevant = "irrelevant"
	outcomeDuplicate  = "duplicate"
	outcomeFailed     = "failed"

	caseOnlySummary     = "Case Updated"
	caseOnlyDescription = "Case updated from hearing status message"
)

// HmcMessageServiceDeps wires the inbound status processor.
type HmcMessageServiceDeps struct {
	Cases         repositories.CaseRepository
	ReferenceData ReferenceData
	ServiceCode   string
	// Gateway resolves the listing status of LISTED messages that omit it.
	Gateway HearingGateway
	// DeploymentID is compared with the hmctsDeploymentId attribute when
	// DeploymentFilter is set.
	DeploymentID     string
	DeploymentFilter bool
	// Ledger suppresses exact redeliveries when set.
	Ledger      idempotency.Store
	LedgerTTL   time.Duration
	PendingHold time.Duration
	Clock       func() time.Time
	Logger      Logger
}

type hmcMessageService struct {
	cases            repositories.CaseRepository
	refData          ReferenceData
	gateway          HearingGateway
	serviceCode      string
	deploymentID     string
	deploymentFilter bool
	ledger           idempotency.Store
	ledgerTTL        time.Duration
	pendingHold      time.Duration
	now              func() time.Time
	logger           Logger
	outcomes         metric.Int64Counter
}

var _ HmcMessageService = (*hmcMessageService)(nil)

// NewHmcMessageService validates deps and builds the processor.
func NewHmcMessageService(deps HmcMessageServiceDeps) (HmcMessageService, error) {
	if deps.Cases == nil {
		return nil, errors.New("hmc message service: case repository is required")
	}
	if deps.ReferenceData == nil {
		return nil, errors.New("hmc message service: reference data is required")
	}
	code := strings.TrimSpace(deps.ServiceCode)
	if code == "" {
		return nil, errors.New("hmc message service: service code is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	ttl := deps.LedgerTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	hold := deps.PendingHold
	if hold <= 0 {
		hold = idempotency.DefaultPendingHold
	}

	svc := &hmcMessageService{
		cases:            deps.Cases,
		refData:          deps.ReferenceData,
		gateway:          deps.Gateway,
		serviceCode:      code,
		deploymentID:     strings.TrimSpace(deps.DeploymentID),
		deploymentFilter: deps.DeploymentFilter,
		ledger:           deps.Ledger,
		ledgerTTL:        ttl,
		pendingHold:      hold,
		now:              func() time.Time { return clock().UTC() },
		logger:           logger,
	}
	counter, err := otel.GetMeterProvider().Meter(hmcMessageMeter).Int64Counter("hmc.messages.processed")
	if err == nil {
		svc.outcomes = counter
	}
	return svc, nil
}

func (s *hmcMessageService) ProcessMessage(ctx context.Context, msg messaging.Message) error {
	outcome := outcomeFailed
	defer func() {
		if s.outcomes != nil {
			s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		}
	}()

	if !s.relevantDeployment(msg) {
		deployment, _ := msg.Attribute(messaging.DeploymentAttribute)
		s.logger(ctx, "hmc.message.deployment_mismatch.skipped", map[string]any{
			"messageId":    msg.ID,
			"deploymentId": deployment,
		})
		outcome = outcomeIrrelevant
		return nil
	}

	var message HmcMessage
	if err := json.Unmarshal(msg.Data, &message); err != nil {
		s.logger(ctx, "hmc.message.decode.failed", map[string]any{
			"messageId": msg.ID,
			"error":     err.Error(),
		})
		return &HmcEventProcessingError{MessageID: msg.ID, Err: fmt.Errorf("decode message: %w", err)}
	}

	if !strings.EqualFold(strings.TrimSpace(message.HmctsServiceCode), s.serviceCode) {
		s.logger(ctx, "hmc.message.service_code.skipped", map[string]any{
			"messageId":   msg.ID,
			"hearingId":   message.HearingID,
			"serviceCode": message.HmctsServiceCode,
		})
		outcome = outcomeIrrelevant
		return nil
	}

	s.logger(ctx, "hmc.message.received", map[string]any{
		"messageId":     msg.ID,
		"caseId":        message.CaseID,
		"hearingId":     message.HearingID,
		"hmcStatus":     string(message.HearingUpdate.HmcStatus),
		"listingStatus": string(message.HearingUpdate.HearingListingStatus),
	})

	key, reserved, err := s.reserve(ctx, msg, message)
	if err != nil {
		return &HmcEventProcessingError{MessageID: msg.ID, HearingID: message.HearingID, Err: err}
	}
	if key != "" && !reserved {
		outcome = outcomeDuplicate
		return nil
	}

	changed, err := s.apply(ctx, message)
	if err != nil {
		s.release(ctx, key)
		s.logger(ctx, "hmc.message.failed", map[string]any{
			"messageId": msg.ID,
			"caseId":    message.CaseID,
			"hearingId": message.HearingID,
			"error":     err.Error(),
		})
		return &HmcEventProcessingError{MessageID: msg.ID, HearingID: message.HearingID, Err: err}
	}
	s.complete(ctx, key)

	outcome = outcomeUnchanged
	if changed {
		outcome = outcomeApplied
	}
	return nil
}

// relevantDeployment accepts a message when its deployment attribute matches the
// configured id. With no configured id only messages without the attribute pass.
func (s *hmcMessageService) relevantDeployment(msg messaging.Message) bool {
	if !s.deploymentFilter {
		return true
	}
	deployment, present := msg.Attribute(messaging.DeploymentAttribute)
	if s.deploymentID == "" {
		return !present
	}
	return present && deployment == s.deploymentID
}

func (s *hmcMessageService) apply(ctx context.Context, message HmcMessage) (bool, error) {
	caseID := strings.TrimSpace(message.CaseID)
	if caseID == "" {
		return false, fmt.Errorf("%w: case id is required", ErrInvalidRequest)
	}
	caseData, err := s.cases.GetCaseDetails(ctx, caseID)
	if err != nil {
		return false, caseLoadError(caseID, err)
	}

	venueChanged, err := s.applyVenueUpdate(ctx, caseData, message)
	if errors.Is(err, errVenueUpdateAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve venue: %w", err)
	}
	if message, err = s.withListingStatus(ctx, message); err != nil {
		return false, err
	}
	stateChanged := s.applyStateUpdate(ctx, caseData, message)
	if !venueChanged && !stateChanged {
		return false, nil
	}

	if _, err := s.cases.UpdateCaseData(ctx, caseData, domain.EventTypeUpdateCaseOnly, caseOnlySummary, caseOnlyDescription); err != nil {
		return false, fmt.Errorf("%w: %w", ErrUpdateCase, err)
	}
	s.logger(ctx, "hmc.message.applied", map[string]any{
		"caseId":    caseID,
		"hearingId": message.HearingID,
		"state":     string(caseData.State),
	})
	return true, nil
}

// withListingStatus fills in the listing status of a LISTED message that
// arrived without one, using the scheduler's current view of the hearing.
func (s *hmcMessageService) withListingStatus(ctx context.Context, message HmcMessage) (HmcMessage, error) {
	update := message.HearingUpdate
	if update.HmcStatus != domain.HmcStatusListed || update.HearingListingStatus != "" || s.gateway == nil {
		return message, nil
	}
	hearing, err := s.gateway.GetHearing(ctx, message.HearingID)
	if err != nil {
		if errors.Is(err, hmc.ErrNotFound) {
			s.logger(ctx, "hmc.listing_status.hearing_missing.warn", map[string]any{
				"caseId":    message.CaseID,
				"hearingId": message.HearingID,
			})
			return message, nil
		}
		return message, fmt.Errorf("%w: get hearing %s: %w", ErrHearingGateway, message.HearingID, err)
	}
	message.HearingUpdate.HearingListingStatus = hearing.HearingResponse.ListingStatus
	return message, nil
}

// reserve claims the message in the ledger. It returns an empty key when
// suppression is disabled and reserved=false when the message was already seen.
func (s *hmcMessageService) reserve(ctx context.Context, msg messaging.Message, message HmcMessage) (string, bool, error) {
	if s.ledger == nil {
		return "", true, nil
	}
	key := dedupeKey(message)
	reservation, err := s.ledger.Reserve(ctx, key, s.now(), s.pendingHold)
	if err != nil {
		return "", false, fmt.Errorf("reserve message: %w", err)
	}
	if reservation.State != idempotency.ReservationStateNew {
		s.logger(ctx, "hmc.message.duplicate.skipped", map[string]any{
			"messageId": msg.ID,
			"hearingId": message.HearingID,
			"ledger":    reservation.State.String(),
		})
		return key, false, nil
	}
	return key, true, nil
}

func (s *hmcMessageService) complete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.ledger.Complete(ctx, key, s.now(), s.ledgerTTL); err != nil {
		s.logger(ctx, "hmc.message.ledger_complete.warn", map[string]any{"error": err.Error()})
	}
}

func (s *hmcMessageService) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.ledger.Release(ctx, key); err != nil {
		s.logger(ctx, "hmc.message.ledger_release.warn", map[string]any{"error": err.Error()})
	}
}

func dedupeKey(message HmcMessage) string {
	broadcast := ""
	if at := message.HearingUpdate.HearingEventBroadcastDateTime; at != nil {
		broadcast = at.UTC().Format(time.RFC3339Nano)
	}
	return idempotency.Key(
		strings.TrimSpace(message.HearingID),
		string(message.HearingUpdate.HmcStatus),
		broadcast,
	)
}
