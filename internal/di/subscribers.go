package di

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/messaging"
	"github.com/hmcts/sscs-hearings-api/internal/services"
)

// HearingRequestHandler processes queued hearing requests. Every failure is
// returned so the message is nacked; requests that can never succeed end up on
// the subscription's dead-letter topic.
func HearingRequestHandler(svc services.HearingsService, logger services.Logger) messaging.Handler {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return func(ctx context.Context, msg messaging.Message) error {
		var request domain.HearingRequest
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			logger(ctx, "hearing_request.malformed.error", map[string]any{
				"messageId": msg.ID,
				"error":     err.Error(),
			})
			return &services.HearingRequestProcessingError{MessageID: msg.ID, Err: fmt.Errorf("decode message: %w", err)}
		}
		err := svc.ProcessHearingRequest(ctx, request)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			logger(ctx, "hearing_request.rejected.error", map[string]any{
				"messageId":    msg.ID,
				"caseId":       request.CaseID,
				"hearingState": string(request.State),
				"error":        err.Error(),
			})
		}
		return &services.HearingRequestProcessingError{MessageID: msg.ID, CaseID: request.CaseID, Err: err}
	}
}

// HmcEventHandler hands inbound HMC status messages to the message service.
func HmcEventHandler(svc services.HmcMessageService) messaging.Handler {
	return svc.ProcessMessage
}

// isPermanent reports failures that redelivery cannot fix. They are logged
// at error level before the nack so the dead-lettered message can be traced.
func isPermanent(err error) bool {
	return errors.Is(err, services.ErrInvalidRequest) ||
		errors.Is(err, services.ErrUnhandleableHearingState) ||
		errors.Is(err, services.ErrCaseNotFound) ||
		errors.Is(err, services.ErrHearingNotFound) ||
		errors.Is(err, services.ErrListing)
}
