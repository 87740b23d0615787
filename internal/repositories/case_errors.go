package repositories

import "fmt"

// CaseErrorCode enumerates failure reasons for case store operations.
type CaseErrorCode string

const (
	// CaseErrorNotFound indicates the case does not exist.
	CaseErrorNotFound CaseErrorCode = "case_not_found"
	// CaseErrorConflict indicates the stored case moved on since it was read.
	CaseErrorConflict CaseErrorCode = "case_conflict"
	// CaseErrorInvalidInput indicates the caller supplied invalid arguments.
	CaseErrorInvalidInput CaseErrorCode = "case_invalid_input"
	// CaseErrorUnavailable indicates the store could not be reached.
	CaseErrorUnavailable CaseErrorCode = "case_unavailable"
)

// CaseError wraps case store failures with machine readable codes.
type CaseError struct {
	Op      string
	CaseID  string
	Code    CaseErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*CaseError)(nil)

// Error implements the error interface.
func (e *CaseError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.CaseID != "" {
		msg = fmt.Sprintf("%s (case %s)", msg, e.CaseID)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *CaseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the case was missing.
func (e *CaseError) IsNotFound() bool { return e != nil && e.Code == CaseErrorNotFound }

// IsConflict reports whether the write lost an optimistic concurrency check.
func (e *CaseError) IsConflict() bool { return e != nil && e.Code == CaseErrorConflict }

// IsUnavailable reports whether the store was unreachable.
func (e *CaseError) IsUnavailable() bool { return e != nil && e.Code == CaseErrorUnavailable }

// NewCaseError constructs a typed case error.
func NewCaseError(code CaseErrorCode, caseID, message string, err error) *CaseError {
	if message == "" {
		message = string(code)
	}
	return &CaseError{
		CaseID:  caseID,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
