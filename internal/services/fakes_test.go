package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
	"github.com/hmcts/sscs-hearings-api/internal/refdata"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

type caseUpdate struct {
	caseData  *domain.CaseData
	eventType domain.EventType
	summary   string
}

type memoryCases struct {
	mu      sync.Mutex
	cases   map[string]*domain.CaseData
	updates []caseUpdate
	getErr  error
	// failures queues errors returned by successive UpdateCaseData calls.
	failures []error
	attempts int
	now      time.Time
}

func newMemoryCases(cases ...*domain.CaseData) *memoryCases {
	store := &memoryCases{
		cases: make(map[string]*domain.CaseData),
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, c := range cases {
		store.cases[c.CaseID] = c.Clone()
	}
	return store
}

func (m *memoryCases) GetCaseDetails(_ context.Context, caseID string) (*domain.CaseData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	stored, ok := m.cases[caseID]
	if !ok {
		return nil, repositories.NewCaseError(repositories.CaseErrorNotFound, caseID, "case not found", nil)
	}
	return stored.Clone(), nil
}

func (m *memoryCases) UpdateCaseData(_ context.Context, caseData *domain.CaseData, eventType domain.EventType, summary, description string) (*domain.CaseData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	stored, ok := m.cases[caseData.CaseID]
	if !ok {
		return nil, repositories.NewCaseError(repositories.CaseErrorNotFound, caseData.CaseID, "case not found", nil)
	}
	if stored.Version != caseData.Version {
		return nil, repositories.NewCaseError(repositories.CaseErrorConflict, caseData.CaseID, "stale case version", nil)
	}
	updated := caseData.Clone()
	updated.Version++
	updated.Events = append(updated.Events, domain.Event{
		ID:          fmt.Sprintf("evt-%d", len(m.updates)+1),
		Type:        eventType,
		Summary:     summary,
		Description: description,
		Date:        m.now,
	})
	m.cases[caseData.CaseID] = updated
	m.updates = append(m.updates, caseUpdate{caseData: updated.Clone(), eventType: eventType, summary: summary})
	return updated.Clone(), nil
}

func (m *memoryCases) stored(t *testing.T, caseID string) *domain.CaseData {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cases[caseID]
	if !ok {
		t.Fatalf("case %s not stored", caseID)
	}
	return stored.Clone()
}

type stubGateway struct {
	mu sync.Mutex

	createResponse domain.HmcUpdateResponse
	createErr      error
	updateResponse domain.HmcUpdateResponse
	updateErr      error
	cancelResponse domain.HmcUpdateResponse
	cancelErr      error
	hearings       domain.HearingsGetResponse
	hearingsErr    error
	hearing        domain.HearingGetResponse
	hearingErr     error

	created   []domain.HearingRequestPayload
	updated   map[string]domain.HearingRequestPayload
	cancelled map[string]domain.HearingCancelRequestPayload
	listed    []string
}

func (g *stubGateway) CreateHearing(_ context.Context, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, payload)
	return g.createResponse, g.createErr
}

func (g *stubGateway) UpdateHearing(_ context.Context, hearingID string, payload domain.HearingRequestPayload) (domain.HmcUpdateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updated == nil {
		g.updated = make(map[string]domain.HearingRequestPayload)
	}
	g.updated[hearingID] = payload
	return g.updateResponse, g.updateErr
}

func (g *stubGateway) GetHearing(_ context.Context, _ string) (domain.HearingGetResponse, error) {
	return g.hearing, g.hearingErr
}

func (g *stubGateway) CancelHearing(_ context.Context, hearingID string, payload domain.HearingCancelRequestPayload) (domain.HmcUpdateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelled == nil {
		g.cancelled = make(map[string]domain.HearingCancelRequestPayload)
	}
	g.cancelled[hearingID] = payload
	return g.cancelResponse, g.cancelErr
}

func (g *stubGateway) GetHearings(_ context.Context, caseID string) (domain.HearingsGetResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listed = append(g.listed, caseID)
	return g.hearings, g.hearingsErr
}

type loggedEvent struct {
	name   string
	fields map[string]any
}

type recordingLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (l *recordingLogger) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, loggedEvent{name: event, fields: fields})
}

func (l *recordingLogger) has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range l.events {
		if event.name == name {
			return true
		}
	}
	return false
}

func newTestReferenceData(t *testing.T) *refdata.Provider {
	t.Helper()
	provider, err := refdata.NewProvider(config.ReferenceDataConfig{})
	if err != nil {
		t.Fatalf("reference data: %v", err)
	}
	t.Cleanup(provider.Close)
	return provider
}

func newTestMapper(t *testing.T) *HearingsMapper {
	t.Helper()
	mapper, err := NewHearingsMapper(HearingsMapperDeps{
		ReferenceData:   newTestReferenceData(t),
		ServiceCode:     "BBA3",
		CaseDeepLinkURL: "https://manage-case.example/",
	})
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	return mapper
}

// sampleCase returns a PIP case with an appellant, an acting representative
// and one other party, none of which carry ids.
func sampleCase() *domain.CaseData {
	return &domain.CaseData{
		CaseID:      "1234567890123456",
		Version:     3,
		State:       domain.StateReadyToList,
		BenefitCode: "002",
		IssueCode:   "DD",
		CaseCreated: "2024-03-01",
		Appeal: domain.Appeal{
			Appellant: &domain.Appellant{
				Name:    domain.Name{Title: "Mr", FirstName: "Joe", LastName: "Bloggs"},
				Contact: &domain.Contact{Email: "joe@example.com", Mobile: "07700900000"},
			},
			Rep: &domain.Representative{
				HasRepresentative: domain.Yes,
				Name:              domain.Name{FirstName: "Rita", LastName: "Rep"},
			},
			HearingOptions: &domain.HearingOptions{WantsToAttend: domain.Yes},
			HearingSubtype: &domain.HearingSubtype{WantsHearingTypeFaceToFace: domain.Yes},
		},
		OtherParties: []domain.OtherParty{{
			Name: domain.Name{FirstName: "Olive", LastName: "Other"},
		}},
		CaseManagementLocation: domain.CaseManagementLocation{BaseLocation: "372653", Region: "North West"},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }
