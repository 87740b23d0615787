package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hmcts/sscs-hearings-api/internal/refdata"
)

// errVenueUpdateAborted stops processing of a message whose venue cannot be
// applied. The message is acked and the case is left as stored.
var errVenueUpdateAborted = errors.New("venue update aborted")

// applyVenueUpdate copies the venue named in the message onto the matching
// hearing. A missing hearing or an unknown venue is logged and returns
// errVenueUpdateAborted. It reports whether the case changed.
func (s *hmcMessageService) applyVenueUpdate(ctx context.Context, caseData *CaseData, message HmcMessage) (bool, error) {
	venueID := strings.TrimSpace(message.HearingUpdate.HearingVenueID)
	if venueID == "" {
		return false, nil
	}
	hearing := caseData.HearingByID(message.HearingID)
	if hearing == nil {
		s.logger(ctx, "hmc.venue_update.hearing_missing.error", map[string]any{
			"caseId":    caseData.CaseID,
			"hearingId": message.HearingID,
			"venueId":   venueID,
			"error":     ErrHearingNotFound.Error(),
		})
		return false, errVenueUpdateAborted
	}

	details, err := s.refData.Venue(ctx, venueID)
	if err != nil {
		if errors.Is(err, refdata.ErrVenueNotFound) {
			s.logger(ctx, "hmc.venue_update.unknown_venue.error", map[string]any{
				"caseId":    caseData.CaseID,
				"hearingId": message.HearingID,
				"venueId":   venueID,
			})
			return false, errVenueUpdateAborted
		}
		return false, err
	}

	venue := details.Venue()
	if hearing.VenueID == venueID && hearing.Venue != nil && *hearing.Venue == venue {
		return false, nil
	}
	hearing.VenueID = venueID
	hearing.Venue = &venue
	s.logger(ctx, "hmc.venue_update.applied", map[string]any{
		"caseId":    caseData.CaseID,
		"hearingId": message.HearingID,
		"venueId":   venueID,
		"venue":     venue.Name,
	})
	return true, nil
}
