package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// HmcStatus is the scheduler's status for a hearing request.
type HmcStatus string

const (
	HmcStatusHearingRequested      HmcStatus = "HEARING_REQUESTED"
	HmcStatusAwaitingListing       HmcStatus = "AWAITING_LISTING"
	HmcStatusListed                HmcStatus = "LISTED"
	HmcStatusUpdateRequested       HmcStatus = "UPDATE_REQUESTED"
	HmcStatusUpdateSubmitted       HmcStatus = "UPDATE_SUBMITTED"
	HmcStatusException             HmcStatus = "EXCEPTION"
	HmcStatusCancellationRequested HmcStatus = "CANCELLATION_REQUESTED"
	HmcStatusCancellationSubmitted HmcStatus = "CANCELLATION_SUBMITTED"
	HmcStatusCancelled             HmcStatus = "CANCELLED"
	HmcStatusAwaitingActuals       HmcStatus = "AWAITING_ACTUALS"
	HmcStatusCompleted             HmcStatus = "COMPLETED"
	HmcStatusAdjourned             HmcStatus = "ADJOURNED"
	HmcStatusClosed                HmcStatus = "CLOSED"
)

var hmcStatuses = []HmcStatus{
	HmcStatusHearingRequested,
	HmcStatusAwaitingListing,
	HmcStatusListed,
	HmcStatusUpdateRequested,
	HmcStatusUpdateSubmitted,
	HmcStatusException,
	HmcStatusCancellationRequested,
	HmcStatusCancellationSubmitted,
	HmcStatusCancelled,
	HmcStatusAwaitingActuals,
	HmcStatusCompleted,
	HmcStatusAdjourned,
	HmcStatusClosed,
}

// ParseHmcStatus accepts the enum token or its display label ("Awaiting Listing",
// "AwaitingListing"). Unrecognised values are upper-cased and kept.
func ParseHmcStatus(raw string) HmcStatus {
	normalised := compact(raw)
	for _, status := range hmcStatuses {
		if compact(string(status)) == normalised {
			return status
		}
	}
	return HmcStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// UnmarshalJSON normalises labels into status tokens.
func (s *HmcStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseHmcStatus(raw)
	return nil
}

// IsRequestedOrAwaitingListing reports whether a hearing request is still in flight.
func (s HmcStatus) IsRequestedOrAwaitingListing() bool {
	return s == HmcStatusHearingRequested || s == HmcStatusAwaitingListing
}

// ListingStatus describes how firmly a listed hearing is booked.
type ListingStatus string

const (
	ListingStatusDraft       ListingStatus = "DRAFT"
	ListingStatusProvisional ListingStatus = "PROVISIONAL"
	ListingStatusFixed       ListingStatus = "FIXED"
	ListingStatusCancelled   ListingStatus = "CNCL"
)

// CancellationReason is why a hearing was cancelled.
type CancellationReason string

const (
	CancellationReasonWithdrawn           CancellationReason = "WITHDRAWN"
	CancellationReasonStruckOut           CancellationReason = "STRUCK_OUT"
	CancellationReasonPartyUnableToAttend CancellationReason = "PARTY_UNABLE_TO_ATTEND"
	CancellationReasonExclusion           CancellationReason = "EXCLUSION"
	CancellationReasonIncompleteTribunal  CancellationReason = "INCOMPLETE_TRIBUNAL"
	CancellationReasonListedInError       CancellationReason = "LISTED_IN_ERROR"
	CancellationReasonOther               CancellationReason = "OTHER"
	CancellationReasonPartyDidNotAttend   CancellationReason = "PARTY_DID_NOT_ATTEND"
	CancellationReasonLapsed              CancellationReason = "LAPSED"
)

type cancellationReasonInfo struct {
	key   string
	label string
}

var cancellationReasons = map[CancellationReason]cancellationReasonInfo{
	CancellationReasonWithdrawn:           {"withdraw", "Withdrawn"},
	CancellationReasonStruckOut:           {"struck", "Struck Out"},
	CancellationReasonPartyUnableToAttend: {"unable", "Party unable to attend"},
	CancellationReasonExclusion:           {"exclusion", "Exclusion"},
	CancellationReasonIncompleteTribunal:  {"incompl", "Incomplete Tribunal"},
	CancellationReasonListedInError:       {"listerr", "Listed In Error"},
	CancellationReasonOther:               {"other", "Other"},
	CancellationReasonPartyDidNotAttend:   {"notatt", "Party Did Not Attend"},
	CancellationReasonLapsed:              {"lapsed", "Lapsed"},
}

// HmcKey returns the reason code sent to the scheduler.
func (r CancellationReason) HmcKey() string {
	if info, ok := cancellationReasons[r]; ok {
		return info.key
	}
	return strings.ToLower(string(r))
}

// ParseCancellationReason resolves a reason from its token, scheduler key or label.
// Labels are matched ignoring case and whitespace, so "PartyDidNotAttend" and
// "Party Did Not Attend" resolve to the same reason.
func ParseCancellationReason(raw string) (CancellationReason, bool) {
	normalised := compact(raw)
	if normalised == "" {
		return "", false
	}
	for reason, info := range cancellationReasons {
		if normalised == compact(string(reason)) || normalised == compact(info.key) || normalised == compact(info.label) {
			return reason, true
		}
	}
	return "", false
}

func compact(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if r == ' ' || r == '_' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HmcUpdateResponse is returned by the scheduler for create, update and cancel calls.
type HmcUpdateResponse struct {
	HearingRequestID *int64    `json:"hearingRequestID,omitempty"`
	VersionNumber    int64     `json:"versionNumber"`
	Status           HmcStatus `json:"status"`
	TimeStamp        time.Time `json:"timeStamp"`
}

// RequestDetails is the header of a hearing request as stored by the scheduler.
type RequestDetails struct {
	HearingRequestID string     `json:"hearingRequestID,omitempty"`
	VersionNumber    int64      `json:"versionNumber,omitempty"`
	Status           HmcStatus  `json:"status,omitempty"`
	Timestamp        time.Time  `json:"timestamp,omitempty"`
	PartiesNotified  *time.Time `json:"partiesNotified,omitempty"`
}

// HearingResponse holds the listing outcome of a hearing.
type HearingResponse struct {
	ListingStatus             ListingStatus `json:"laCaseStatus,omitempty"`
	ListingCaseStatus         string        `json:"listingCaseStatus,omitempty"`
	HearingCancellationReason string        `json:"hearingCancellationReason,omitempty"`
	ReceivedDateTime          time.Time     `json:"receivedDateTime,omitempty"`
}

// HearingGetResponse is the scheduler's full view of one hearing request.
type HearingGetResponse struct {
	RequestDetails  RequestDetails        `json:"requestDetails"`
	HearingDetails  HearingRequestDetails `json:"hearingDetails"`
	CaseDetails     CaseDetails           `json:"caseDetails"`
	PartyDetails    []PartyDetails        `json:"partyDetails,omitempty"`
	HearingResponse HearingResponse       `json:"hearingResponse"`
}

// CaseHearing summarises one hearing in the list returned for a case.
type CaseHearing struct {
	HearingID              int64     `json:"hearingID"`
	HearingRequestDateTime time.Time `json:"hearingRequestDateTime"`
	HearingType            string    `json:"hearingType,omitempty"`
	HmcStatus              HmcStatus `json:"hmcStatus"`
	RequestVersion         int64     `json:"requestVersion,omitempty"`
	HearingListingStatus   string    `json:"hearingListingStatus,omitempty"`
}

// HearingsGetResponse lists every hearing the scheduler holds for a case.
type HearingsGetResponse struct {
	CaseRef          string        `json:"caseRef"`
	HmctsServiceCode string        `json:"hmctsServiceCode,omitempty"`
	CaseHearings     []CaseHearing `json:"caseHearings"`
}

// HearingCancelRequestPayload is sent when cancelling a hearing request.
type HearingCancelRequestPayload struct {
	CancellationReasonCodes []string `json:"cancellationReasonCodes"`
}

// HmcMessage is a status update published by the scheduler.
type HmcMessage struct {
	HmctsServiceCode string        `json:"hmctsServiceCode"`
	CaseID           string        `json:"caseRef"`
	HearingID        string        `json:"hearingID"`
	HearingUpdate    HearingUpdate `json:"hearingUpdate"`
}

// HearingUpdate is the status portion of an HmcMessage.
type HearingUpdate struct {
	HearingResponseReceivedDateTime *time.Time    `json:"hearingResponseReceivedDateTime,omitempty"`
	HearingEventBroadcastDateTime   *time.Time    `json:"hearingEventBroadcastDateTime,omitempty"`
	HmcStatus                       HmcStatus     `json:"HMCStatus"`
	HearingListingStatus            ListingStatus `json:"hearingListingStatus,omitempty"`
	NextHearingDate                 *time.Time    `json:"nextHearingDate,omitempty"`
	HearingVenueID                  string        `json:"hearingVenueId,omitempty"`
	HearingCancellationReason       string        `json:"hearingCancellationReason,omitempty"`
}

// PartiesNotifiedPayload acknowledges that the parties were told about a listing.
type PartiesNotifiedPayload struct {
	ServiceData map[string]any `json:"serviceData,omitempty"`
}
