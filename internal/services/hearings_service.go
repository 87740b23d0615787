package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/hmc"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryInterval   = time.Second
	defaultRetryMultiplier = 2.0
	defaultRetryMaxWait    = 10 * time.Second
)

// RetryPolicy bounds the case write-back retries.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultRetryInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultRetryMultiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = defaultRetryMaxWait
	}
	return p
}

// HearingsServiceDeps wires the hearing orchestrator.
type HearingsServiceDeps struct {
	Cases   repositories.CaseRepository
	Gateway HearingGateway
	Mapper  *HearingsMapper
	Retry   RetryPolicy
	Logger  Logger
}

type hearingsService struct {
	cases   repositories.CaseRepository
	gateway HearingGateway
	mapper  *HearingsMapper
	retry   RetryPolicy
	logger  Logger
}

var _ HearingsService = (*hearingsService)(nil)

// NewHearingsService validates deps and builds the orchestrator.
func NewHearingsService(deps HearingsServiceDeps) (HearingsService, error) {
	if deps.Cases == nil {
		return nil, errors.New("hearings service: case repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("hearings service: hearing gateway is required")
	}
	if deps.Mapper == nil {
		return nil, errors.New("hearings service: mapper is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &hearingsService{
		cases:   deps.Cases,
		gateway: deps.Gateway,
		mapper:  deps.Mapper,
		retry:   deps.Retry.withDefaults(),
		logger:  logger,
	}, nil
}

func (s *hearingsService) ProcessHearingRequest(ctx context.Context, request HearingRequest) error {
	caseID := strings.TrimSpace(request.CaseID)
	s.logger(ctx, "hearings.request.received", map[string]any{
		"caseId":             caseID,
		"hearingState":       string(request.State),
		"hearingRoute":       string(request.HearingRoute),
		"cancellationReason": reasonString(request.CancellationReason),
	})

	if !request.State.Valid() {
		err := fmt.Errorf("%w: %q", ErrUnhandleableHearingState, request.State)
		s.logger(ctx, "hearings.request.unhandleable_state.error", map[string]any{
			"caseId":       caseID,
			"hearingState": string(request.State),
		})
		return err
	}
	if caseID == "" {
		return fmt.Errorf("%w: case id is required", ErrInvalidRequest)
	}

	caseData, err := s.cases.GetCaseDetails(ctx, caseID)
	if err != nil {
		return caseLoadError(caseID, err)
	}
	return s.ProcessHearingWrapper(ctx, HearingWrapper{
		CaseData:           caseData,
		State:              request.State,
		CancellationReason: request.CancellationReason,
	})
}

func (s *hearingsService) ProcessHearingWrapper(ctx context.Context, wrapper HearingWrapper) error {
	if wrapper.CaseData == nil {
		return fmt.Errorf("%w: case data is required", ErrInvalidRequest)
	}
	s.logger(ctx, "hearings.wrapper.processing", map[string]any{
		"caseId":       wrapper.CaseData.CaseID,
		"hearingState": string(wrapper.State),
	})

	switch wrapper.State {
	case domain.HearingStateCreateHearing:
		return s.createHearing(ctx, wrapper)
	case domain.HearingStateUpdateHearing:
		return s.updateHearing(ctx, wrapper)
	case domain.HearingStateCancelHearing:
		return s.cancelHearing(ctx, wrapper)
	case domain.HearingStateUpdatedCase, domain.HearingStatePartyNotified:
		return nil
	default:
		s.logger(ctx, "hearings.wrapper.unhandleable_state.error", map[string]any{
			"caseId":       wrapper.CaseData.CaseID,
			"hearingState": string(wrapper.State),
		})
		return fmt.Errorf("%w: %q", ErrUnhandleableHearingState, wrapper.State)
	}
}

func (s *hearingsService) createHearing(ctx context.Context, wrapper HearingWrapper) error {
	caseData := wrapper.CaseData
	s.mapper.UpdateIDs(caseData)
	payload, err := s.mapper.BuildHearingPayload(wrapper)
	if err != nil {
		return err
	}

	response, adopted, err := s.inFlightHearing(ctx, caseData.CaseID)
	if err != nil {
		return err
	}
	if !adopted {
		response, err = s.gateway.CreateHearing(ctx, payload)
		if err != nil {
			return s.gatewayError(ctx, "create", caseData.CaseID, err)
		}
	}
	s.logger(ctx, "hearings.create.response", map[string]any{
		"caseId":    caseData.CaseID,
		"hearingId": hearingIDOf(response),
		"version":   response.VersionNumber,
		"status":    string(response.Status),
		"adopted":   adopted,
	})
	return s.hearingResponseUpdate(ctx, wrapper, response)
}

// inFlightHearing looks for a hearing already requested for the case so a
// retried create does not request a second hearing. The earliest requested
// match wins.
func (s *hearingsService) inFlightHearing(ctx context.Context, caseID string) (domain.HmcUpdateResponse, bool, error) {
	hearings, err := s.gateway.GetHearings(ctx, caseID)
	if err != nil {
		if errors.Is(err, hmc.ErrNotFound) {
			return domain.HmcUpdateResponse{}, false, nil
		}
		return domain.HmcUpdateResponse{}, false, s.gatewayError(ctx, "list", caseID, err)
	}

	var candidates []domain.CaseHearing
	for _, hearing := range hearings.CaseHearings {
		if hearing.HmcStatus.IsRequestedOrAwaitingListing() {
			candidates = append(candidates, hearing)
		}
	}
	if len(candidates) == 0 {
		return domain.HmcUpdateResponse{}, false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].HearingRequestDateTime.Before(candidates[j].HearingRequestDateTime)
	})
	earliest := candidates[0]

	hearingID := earliest.HearingID
	version := int64(1)
	detail, err := s.gateway.GetHearing(ctx, strconv.FormatInt(hearingID, 10))
	if err != nil {
		s.logger(ctx, "hearings.create.version_lookup.warn", map[string]any{
			"caseId":    caseID,
			"hearingId": hearingID,
			"error":     err.Error(),
		})
	} else if detail.RequestDetails.VersionNumber > 0 {
		version = detail.RequestDetails.VersionNumber
	}

	return domain.HmcUpdateResponse{
		HearingRequestID: &hearingID,
		VersionNumber:    version,
		Status:           earliest.HmcStatus,
		TimeStamp:        earliest.HearingRequestDateTime,
	}, true, nil
}

func (s *hearingsService) updateHearing(ctx context.Context, wrapper HearingWrapper) error {
	caseData := wrapper.CaseData
	s.mapper.UpdateIDs(caseData)
	payload, err := s.mapper.BuildHearingPayload(wrapper)
	if err != nil {
		return err
	}
	hearingID := caseData.LatestHearingID()
	if hearingID == "" {
		return fmt.Errorf("%w: case %s has no hearing to update", ErrHearingNotFound, caseData.CaseID)
	}
	response, err := s.gateway.UpdateHearing(ctx, hearingID, payload)
	if err != nil {
		return s.gatewayError(ctx, "update", caseData.CaseID, err)
	}
	s.logger(ctx, "hearings.update.response", map[string]any{
		"caseId":    caseData.CaseID,
		"hearingId": hearingID,
		"version":   response.VersionNumber,
		"status":    string(response.Status),
	})
	return s.hearingResponseUpdate(ctx, wrapper, response)
}

// cancelHearing asks the scheduler to cancel the latest hearing. The case is
// left unchanged; the cancellation arrives later as a status message.
func (s *hearingsService) cancelHearing(ctx context.Context, wrapper HearingWrapper) error {
	caseData := wrapper.CaseData
	hearingID := caseData.LatestHearingID()
	if hearingID == "" {
		return fmt.Errorf("%w: case %s has no hearing to cancel", ErrHearingNotFound, caseData.CaseID)
	}
	payload := domain.HearingCancelRequestPayload{CancellationReasonCodes: []string{}}
	if wrapper.CancellationReason != nil {
		payload.CancellationReasonCodes = append(payload.CancellationReasonCodes, wrapper.CancellationReason.HmcKey())
	}
	response, err := s.gateway.CancelHearing(ctx, hearingID, payload)
	if err != nil {
		return s.gatewayError(ctx, "cancel", caseData.CaseID, err)
	}
	s.logger(ctx, "hearings.cancel.response", map[string]any{
		"caseId":    caseData.CaseID,
		"hearingId": hearingID,
		"version":   response.VersionNumber,
		"status":    string(response.Status),
	})
	return nil
}

// hearingResponseUpdate records the scheduler response on the case and writes
// it back, retrying failed writes with exponential backoff. A conflicting write
// reloads the case before the next attempt.
func (s *hearingsService) hearingResponseUpdate(ctx context.Context, wrapper HearingWrapper, response domain.HmcUpdateResponse) error {
	event, err := domain.HearingEventFor(wrapper.State)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhandleableHearingState, err)
	}
	caseData := wrapper.CaseData
	caseID := caseData.CaseID

	var (
		attempts  int
		lastErr   error
		permanent bool
		written   bool
	)
	operation := func() error {
		attempts++
		if attempts > 1 && isCaseConflict(lastErr) {
			fresh, err := s.cases.GetCaseDetails(ctx, caseID)
			if err != nil {
				lastErr = fmt.Errorf("%w: reload case: %w", ErrUpdateCase, err)
				return lastErr
			}
			s.mapper.UpdateIDs(fresh)
			caseData = fresh
		}

		if !applyHearingResponse(caseData, response) {
			s.logger(ctx, "hearings.write_back.stale_version.skipped", map[string]any{
				"caseId":    caseID,
				"hearingId": hearingIDOf(response),
				"version":   response.VersionNumber,
			})
			written = false
			return nil
		}

		_, err := s.cases.UpdateCaseData(ctx, caseData, event.EventType, event.Summary, event.Description)
		if err == nil {
			written = true
			return nil
		}
		lastErr = fmt.Errorf("%w: %w", ErrUpdateCase, err)
		var caseErr *repositories.CaseError
		if errors.As(err, &caseErr) && (caseErr.IsNotFound() || caseErr.Code == repositories.CaseErrorInvalidInput) {
			permanent = true
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}

	notify := func(err error, wait time.Duration) {
		s.logger(ctx, "hearings.write_back.retry", map[string]any{
			"caseId":  caseID,
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	err = backoff.RetryNotify(operation, s.backOff(ctx), notify)
	if err == nil {
		if !written {
			return nil
		}
		s.logger(ctx, "hearings.write_back.completed", map[string]any{
			"caseId":    caseID,
			"hearingId": hearingIDOf(response),
			"state":     string(wrapper.State),
			"event":     string(event.EventType),
			"attempts":  attempts,
		})
		return nil
	}
	if permanent || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	exhausted := &ExhaustedRetryError{CaseID: caseID, Attempts: attempts, Err: lastErr}
	s.logger(ctx, "hearings.write_back.exhausted.error", map[string]any{
		"caseId":   caseID,
		"attempts": attempts,
		"error":    exhausted.Error(),
	})
	return exhausted
}

func (s *hearingsService) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialInterval
	exp.Multiplier = s.retry.Multiplier
	exp.MaxInterval = s.retry.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.retry.MaxAttempts-1)), ctx)
}

func (s *hearingsService) gatewayError(ctx context.Context, op, caseID string, err error) error {
	s.logger(ctx, "hearings.gateway.failed", map[string]any{
		"caseId":    caseID,
		"operation": op,
		"error":     err.Error(),
	})
	return fmt.Errorf("%w: %s hearing for case %s: %w", ErrHearingGateway, op, caseID, err)
}

// applyHearingResponse records the scheduler's hearing id and version on the
// case. It returns false, leaving the case untouched, when the response is
// older than the version already recorded.
func applyHearingResponse(caseData *CaseData, response domain.HmcUpdateResponse) bool {
	hearingID := hearingIDOf(response)

	var hearing *domain.Hearing
	if hearingID != "" {
		hearing = caseData.HearingByID(hearingID)
	} else {
		hearing = caseData.LatestHearing()
	}
	if hearing != nil && response.VersionNumber < hearing.VersionNumber {
		return false
	}
	if hearing == nil {
		hearing = caseData.AddHearing(hearingID)
	}
	if hearingID != "" {
		hearing.HearingID = hearingID
	}
	hearing.VersionNumber = response.VersionNumber
	if response.Status != "" {
		hearing.Status = response.Status
	}
	return true
}

func hearingIDOf(response domain.HmcUpdateResponse) string {
	if response.HearingRequestID == nil {
		return ""
	}
	return strconv.FormatInt(*response.HearingRequestID, 10)
}

func reasonString(reason *domain.CancellationReason) string {
	if reason == nil {
		return ""
	}
	return string(*reason)
}

func isCaseConflict(err error) bool {
	var caseErr *repositories.CaseError
	return errors.As(err, &caseErr) && caseErr.IsConflict()
}

// caseLoadError maps case store read failures onto service errors.
func caseLoadError(caseID string, err error) error {
	var caseErr *repositories.CaseError
	if errors.As(err, &caseErr) && caseErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return fmt.Errorf("hearings: load case %s: %w", caseID, err)
}
