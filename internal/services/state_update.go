package services

import (
	"context"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

// cancellationStates maps a cancellation reason onto the case state it leaves behind.
var cancellationStates = map[domain.CancellationReason]domain.State{
	domain.CancellationReasonWithdrawn:           domain.StateDormantAppealState,
	domain.CancellationReasonStruckOut:           domain.StateDormantAppealState,
	domain.CancellationReasonLapsed:              domain.StateDormantAppealState,
	domain.CancellationReasonPartyUnableToAttend: domain.StateReadyToList,
	domain.CancellationReasonExclusion:           domain.StateReadyToList,
	domain.CancellationReasonIncompleteTribunal:  domain.StateReadyToList,
	domain.CancellationReasonListedInError:       domain.StateReadyToList,
	domain.CancellationReasonOther:               domain.StateReadyToList,
	domain.CancellationReasonPartyDidNotAttend:   domain.StateReadyToList,
}

// caseStateFor resolves the case state implied by a status update. It returns
// StateUnknown when the update leaves the case state alone.
func caseStateFor(update domain.HearingUpdate) domain.State {
	switch update.HmcStatus {
	case domain.HmcStatusListed:
		if update.HearingListingStatus == domain.ListingStatusFixed {
			return domain.StateHearing
		}
	case domain.HmcStatusAwaitingListing:
		return domain.StateReadyToList
	case domain.HmcStatusCancelled:
		reason, ok := domain.ParseCancellationReason(update.HearingCancellationReason)
		if !ok {
			return domain.StateUnknown
		}
		if state, ok := cancellationStates[reason]; ok {
			return state
		}
	case domain.HmcStatusException:
		return domain.StateHandlingError
	}
	return domain.StateUnknown
}

// applyStateUpdate moves the case into the state implied by the message. It
// reports whether the case changed.
func (s *hmcMessageService) applyStateUpdate(ctx context.Context, caseData *CaseData, message HmcMessage) bool {
	next := caseStateFor(message.HearingUpdate)
	if !next.IsKnown() {
		s.logger(ctx, "hmc.state_update.unmapped.skipped", map[string]any{
			"caseId":        caseData.CaseID,
			"hearingId":     message.HearingID,
			"hmcStatus":     string(message.HearingUpdate.HmcStatus),
			"listingStatus": string(message.HearingUpdate.HearingListingStatus),
		})
		return false
	}
	if caseData.State == next {
		return false
	}
	previous := caseData.State
	caseData.State = next
	event := "hmc.state_update.applied"
	if next == domain.StateHandlingError {
		event = "hmc.state_update.exception.warn"
	}
	s.logger(ctx, event, map[string]any{
		"caseId":    caseData.CaseID,
		"hearingId": message.HearingID,
		"from":      string(previous),
		"to":        string(next),
	})
	return true
}
