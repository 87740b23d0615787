package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

func newTestServiceHearingsService(t *testing.T, cases *memoryCases) ServiceHearingsService {
	t.Helper()
	svc, err := NewServiceHearingsService(ServiceHearingsServiceDeps{Cases: cases, Mapper: newTestMapper(t)})
	if err != nil {
		t.Fatalf("new service hearings service: %v", err)
	}
	return svc
}

func TestServiceHearingValues_WritesBackNewIDsOnce(t *testing.T) {
	caseData := sampleCase()
	cases := newMemoryCases(caseData)
	svc := newTestServiceHearingsService(t, cases)

	values, err := svc.GetServiceHearingValues(context.Background(), caseData.CaseID)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if values.HmctsServiceID != "BBA3" || values.CaseType != "BBA3-002" {
		t.Fatalf("unexpected values %+v", values)
	}
	if values.PublicCaseName != "J Bloggs" {
		t.Fatalf("expected public case name J Bloggs, got %q", values.PublicCaseName)
	}
	if len(cases.updates) != 1 || cases.updates[0].summary != idsUpdatedSummary {
		t.Fatalf("expected one id write-back, got %+v", cases.updates)
	}

	if _, err := svc.GetServiceHearingValues(context.Background(), caseData.CaseID); err != nil {
		t.Fatalf("second values: %v", err)
	}
	if len(cases.updates) != 1 {
		t.Fatalf("expected no write when ids are already set, got %d", len(cases.updates))
	}
}

func TestServiceHearingValues_CaseNotFound(t *testing.T) {
	svc := newTestServiceHearingsService(t, newMemoryCases())

	_, err := svc.GetServiceHearingValues(context.Background(), "missing")
	if !errors.Is(err, ErrCaseNotFound) {
		t.Fatalf("expected ErrCaseNotFound, got %v", err)
	}
}

func TestServiceLinkedCases(t *testing.T) {
	primary := sampleCase()
	primary.LinkedCases = []domain.CaseLink{{CaseReference: "2222"}, {CaseReference: "3333"}, {CaseReference: " "}}
	linked := sampleCase()
	linked.CaseID = "2222"
	linked.Appeal.Appellant.Name = domain.Name{FirstName: "Ann", LastName: "Other"}
	svc := newTestServiceHearingsService(t, newMemoryCases(primary, linked))

	got, err := svc.GetServiceLinkedCases(context.Background(), primary.CaseID)
	if err != nil {
		t.Fatalf("linked cases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 linked cases, got %+v", got)
	}
	if got[0].CaseReference != "2222" || got[0].CaseName != "A Other" {
		t.Fatalf("unexpected first linked case %+v", got[0])
	}
	if got[1].CaseReference != "3333" || got[1].CaseName != "" {
		t.Fatalf("unexpected second linked case %+v", got[1])
	}
}
