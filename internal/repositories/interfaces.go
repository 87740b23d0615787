package repositories

import (
	"context"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Cases() CaseRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CaseRepository reads and writes case data. Implementations must reject an update
// whose CaseData.Version no longer matches the stored version with a CaseError
// carrying CaseErrorConflict, and must append an event describing the update to
// the case history.
type CaseRepository interface {
	// GetCaseDetails loads a case. Missing cases return a CaseError with CaseErrorNotFound.
	GetCaseDetails(ctx context.Context, caseID string) (*domain.CaseData, error)
	// UpdateCaseData persists caseData and records an event of eventType. The returned
	// case carries the new version and event history.
	UpdateCaseData(ctx context.Context, caseData *domain.CaseData, eventType domain.EventType, summary, description string) (*domain.CaseData, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
