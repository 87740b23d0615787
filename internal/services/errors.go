package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCaseNotFound indicates the case store has no case for the id.
	ErrCaseNotFound = errors.New("hearings: case not found")
	// ErrUnhandleableHearingState indicates a hearing request with a state the orchestrator cannot dispatch.
	ErrUnhandleableHearingState = errors.New("hearings: unhandleable hearing state")
	// ErrUpdateCase indicates the case store rejected a write.
	ErrUpdateCase = errors.New("hearings: update case failed")
	// ErrHearingGateway indicates a scheduler call failed.
	ErrHearingGateway = errors.New("hearings: scheduler call failed")
	// ErrHearingNotFound indicates the case carries no hearing with the id in a status message.
	ErrHearingNotFound = errors.New("hearings: hearing not found on case")
	// ErrListing indicates the case cannot be mapped to a hearing request.
	ErrListing = errors.New("hearings: listing error")
	// ErrInvalidRequest indicates a hearing request failed basic validation.
	ErrInvalidRequest = errors.New("hearings: invalid request")
	// ErrNotReady indicates a critical dependency failed its health check.
	ErrNotReady = errors.New("system: not ready")
)

// ExhaustedRetryError is returned once every write-back attempt has failed.
type ExhaustedRetryError struct {
	CaseID   string
	Attempts int
	Err      error
}

func (e *ExhaustedRetryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("hearings: update of case %s failed after %d attempts: %v", e.CaseID, e.Attempts, e.Err)
}

// Unwrap returns the last write failure.
func (e *ExhaustedRetryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HmcEventProcessingError reports that a status message could not be applied.
// The subscriber nacks the message so it is redelivered.
type HmcEventProcessingError struct {
	MessageID string
	HearingID string
	Err       error
}

func (e *HmcEventProcessingError) Error() string {
	if e == nil {
		return ""
	}
	msg := "hmc message: unable to successfully deliver HMC message"
	if e.MessageID != "" {
		msg += " " + e.MessageID
	}
	if e.HearingID != "" {
		msg += " for hearing " + e.HearingID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *HmcEventProcessingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HearingRequestProcessingError reports that a queued hearing request could not
// be processed. The subscriber nacks it so the subscription's retry and
// dead-letter policy apply.
type HearingRequestProcessingError struct {
	MessageID string
	CaseID    string
	Err       error
}

func (e *HearingRequestProcessingError) Error() string {
	if e == nil {
		return ""
	}
	msg := "hearing request: unable to process message"
	if e.MessageID != "" {
		msg += " " + e.MessageID
	}
	if e.CaseID != "" {
		msg += " for case " + e.CaseID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *HearingRequestProcessingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
