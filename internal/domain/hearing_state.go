package domain

import (
	"fmt"
	"strings"
)

// HearingState is the lifecycle action requested for a case's hearing.
type HearingState string

const (
	HearingStateCreateHearing HearingState = "CREATE_HEARING"
	HearingStateUpdateHearing HearingState = "UPDATE_HEARING"
	HearingStateUpdatedCase   HearingState = "UPDATED_CASE"
	HearingStateCancelHearing HearingState = "CANCEL_HEARING"
	HearingStatePartyNotified HearingState = "PARTY_NOTIFIED"
)

var hearingStates = map[HearingState]struct{}{
	HearingStateCreateHearing: {},
	HearingStateUpdateHearing: {},
	HearingStateUpdatedCase:   {},
	HearingStateCancelHearing: {},
	HearingStatePartyNotified: {},
}

// Valid reports whether the state is one the orchestrator can dispatch.
func (s HearingState) Valid() bool {
	_, ok := hearingStates[s]
	return ok
}

// ParseHearingState normalises raw input into a HearingState. Unknown tokens are
// returned as-is so the caller can report them.
func ParseHearingState(raw string) HearingState {
	token := strings.ToUpper(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, "-", "_")
	token = strings.ReplaceAll(token, " ", "_")
	return HearingState(token)
}

// HearingRoute identifies the system the hearing is listed through.
type HearingRoute string

const (
	HearingRouteListAssist HearingRoute = "listAssist"
	HearingRouteGaps       HearingRoute = "gaps"
)

// EventType names a case history event written by the case store.
type EventType string

const (
	EventTypeCreateHearing  EventType = "createHearing"
	EventTypeUpdateHearing  EventType = "updateHearing"
	EventTypeCancelHearing  EventType = "cancelHearing"
	EventTypePartyNotified  EventType = "partyNotified"
	EventTypeUpdateCaseOnly EventType = "updateCaseOnly"
	EventTypeDwpRespond     EventType = "dwpRespond"
)

// HearingEvent is the case event written after a hearing state is processed.
type HearingEvent struct {
	EventType   EventType
	Summary     string
	Description string
}

var hearingEvents = map[HearingState]HearingEvent{
	HearingStateCreateHearing: {EventTypeCreateHearing, "Hearing Booked", "Hearing has been requested with the scheduler"},
	HearingStateUpdateHearing: {EventTypeUpdateHearing, "Hearing Updated", "Hearing request has been updated with the scheduler"},
	HearingStateUpdatedCase:   {EventTypeUpdateCaseOnly, "Case Updated", "Case details have been updated"},
	HearingStateCancelHearing: {EventTypeCancelHearing, "Hearing Cancelled", "Hearing request has been cancelled with the scheduler"},
	HearingStatePartyNotified: {EventTypePartyNotified, "Parties Notified", "Parties have been notified of the hearing"},
}

// HearingEventFor returns the case event recorded for the given hearing state.
func HearingEventFor(state HearingState) (HearingEvent, error) {
	event, ok := hearingEvents[state]
	if !ok {
		return HearingEvent{}, fmt.Errorf("no hearing event for state %q", state)
	}
	return event, nil
}

// HearingRequest asks the orchestrator to move a case's hearing into State.
type HearingRequest struct {
	CaseID             string              `json:"ccdCaseId"`
	State              HearingState        `json:"hearingState"`
	CancellationReason *CancellationReason `json:"cancellationReason,omitempty"`
	HearingRoute       HearingRoute        `json:"hearingRoute,omitempty"`
}

// HearingWrapper is the working context for a single orchestration run.
type HearingWrapper struct {
	CaseData           *CaseData
	State              HearingState
	CancellationReason *CancellationReason
}
