package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

const (
	idsUpdatedSummary     = "Updating caseDetails IDs"
	idsUpdatedDescription = "IDs updated for caseDetails due to ServiceHearingValues request"
)

// ServiceHearingsServiceDeps wires the scheduler callback service.
type ServiceHearingsServiceDeps struct {
	Cases  repositories.CaseRepository
	Mapper *HearingsMapper
	Logger Logger
}

type serviceHearingsService struct {
	cases  repositories.CaseRepository
	mapper *HearingsMapper
	logger Logger
}

var _ ServiceHearingsService = (*serviceHearingsService)(nil)

// NewServiceHearingsService validates deps and builds the callback service.
func NewServiceHearingsService(deps ServiceHearingsServiceDeps) (ServiceHearingsService, error) {
	if deps.Cases == nil {
		return nil, errors.New("service hearings: case repository is required")
	}
	if deps.Mapper == nil {
		return nil, errors.New("service hearings: mapper is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &serviceHearingsService{cases: deps.Cases, mapper: deps.Mapper, logger: logger}, nil
}

// GetServiceHearingValues maps the case for the scheduler. Parties that gain an
// id along the way are written back before the values are returned.
func (s *serviceHearingsService) GetServiceHearingValues(ctx context.Context, caseID string) (ServiceHearingValues, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return ServiceHearingValues{}, fmt.Errorf("%w: case id is required", ErrInvalidRequest)
	}
	caseData, err := s.cases.GetCaseDetails(ctx, caseID)
	if err != nil {
		return ServiceHearingValues{}, caseLoadError(caseID, err)
	}

	changed := s.mapper.UpdateIDs(caseData)
	values, err := s.mapper.ServiceHearingValues(caseData)
	if err != nil {
		return ServiceHearingValues{}, err
	}

	if changed {
		if _, err := s.cases.UpdateCaseData(ctx, caseData, domain.EventTypeUpdateCaseOnly, idsUpdatedSummary, idsUpdatedDescription); err != nil {
			s.logger(ctx, "service_hearings.ids_update.failed", map[string]any{
				"caseId": caseID,
				"error":  err.Error(),
			})
			return ServiceHearingValues{}, fmt.Errorf("%w: %w", ErrUpdateCase, err)
		}
		s.logger(ctx, "service_hearings.ids_updated", map[string]any{"caseId": caseID})
	}
	return values, nil
}

// GetServiceLinkedCases lists the cases linked to caseID. Linked cases missing
// from the store are still listed by reference.
func (s *serviceHearingsService) GetServiceLinkedCases(ctx context.Context, caseID string) ([]ServiceLinkedCase, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, fmt.Errorf("%w: case id is required", ErrInvalidRequest)
	}
	caseData, err := s.cases.GetCaseDetails(ctx, caseID)
	if err != nil {
		return nil, caseLoadError(caseID, err)
	}

	linked := make([]ServiceLinkedCase, 0, len(caseData.LinkedCases))
	for _, link := range caseData.LinkedCases {
		reference := strings.TrimSpace(link.CaseReference)
		if reference == "" {
			continue
		}
		entry := ServiceLinkedCase{CaseReference: reference}
		linkedCase, err := s.cases.GetCaseDetails(ctx, reference)
		switch {
		case err == nil:
			entry.CaseName = publicCaseName(linkedCase)
		case isCaseNotFound(err):
			s.logger(ctx, "service_hearings.linked_case_missing.warn", map[string]any{
				"caseId":        caseID,
				"caseReference": reference,
			})
		default:
			return nil, fmt.Errorf("hearings: load linked case %s: %w", reference, err)
		}
		linked = append(linked, entry)
	}
	s.logger(ctx, "service_hearings.linked_cases", map[string]any{
		"caseId": caseID,
		"count":  len(linked),
	})
	return linked, nil
}

func isCaseNotFound(err error) bool {
	var caseErr *repositories.CaseError
	return errors.As(err, &caseErr) && caseErr.IsNotFound()
}
