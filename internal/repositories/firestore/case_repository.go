package firestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	pfirestore "github.com/hmcts/sscs-hearings-api/internal/platform/firestore"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

const defaultCaseCollection = "cases"

// caseDocument is the stored form of a case. The case body is kept as JSON so
// the stored field names match the case API exactly.
type caseDocument struct {
	CaseID    string    `firestore:"caseId"`
	Version   int64     `firestore:"version"`
	State     string    `firestore:"state"`
	UpdatedAt time.Time `firestore:"updatedAt"`
	Payload   string    `firestore:"payload"`
}

// CaseRepository stores cases in Firestore, one document per case id.
type CaseRepository struct {
	cases *pfirestore.Collection[caseDocument]
	now   func() time.Time
	newID func() string
}

// CaseRepositoryOption customises the repository.
type CaseRepositoryOption func(*CaseRepository)

// WithCaseClock overrides the clock used to stamp updates and events.
func WithCaseClock(clock func() time.Time) CaseRepositoryOption {
	return func(r *CaseRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithEventIDGenerator overrides how event ids are minted.
func WithEventIDGenerator(gen func() string) CaseRepositoryOption {
	return func(r *CaseRepository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

var _ repositories.CaseRepository = (*CaseRepository)(nil)

// NewCaseRepository binds a case repository to provider. An empty collection
// falls back to "cases".
func NewCaseRepository(provider *pfirestore.Provider, collection string, opts ...CaseRepositoryOption) (*CaseRepository, error) {
	if provider == nil {
		return nil, errors.New("case repository: firestore provider is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultCaseCollection
	}
	repo := &CaseRepository{
		cases: pfirestore.NewCollection[caseDocument](provider, collection),
		now:   time.Now,
		newID: func() string { return ulid.MustNew(ulid.Now(), rand.Reader).String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// GetCaseDetails loads the case stored under caseID.
func (r *CaseRepository) GetCaseDetails(ctx context.Context, caseID string) (*domain.CaseData, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, caseOpError("get", repositories.NewCaseError(repositories.CaseErrorInvalidInput, "", "case id is required", nil))
	}
	doc, err := r.cases.Get(ctx, caseID)
	if err != nil {
		return nil, caseOpError("get", classify(caseID, err))
	}
	caseData, err := decodeCase(doc.Data)
	if err != nil {
		return nil, caseOpError("get", repositories.NewCaseError(repositories.CaseErrorInvalidInput, caseID, "stored case is unreadable", err))
	}
	return caseData, nil
}

// SaveCase stores a new case at version zero. Existing cases are rejected with a conflict.
func (r *CaseRepository) SaveCase(ctx context.Context, caseData *domain.CaseData) error {
	if caseData == nil || strings.TrimSpace(caseData.CaseID) == "" {
		return caseOpError("save", repositories.NewCaseError(repositories.CaseErrorInvalidInput, "", "case id is required", nil))
	}
	stored := caseData.Clone()
	stored.Version = 0
	doc, err := encodeCase(stored, r.now().UTC())
	if err != nil {
		return caseOpError("save", repositories.NewCaseError(repositories.CaseErrorInvalidInput, stored.CaseID, "case cannot be encoded", err))
	}
	if err := r.cases.Create(ctx, stored.CaseID, doc); err != nil {
		return caseOpError("save", classify(stored.CaseID, err))
	}
	return nil
}

// UpdateCaseData writes caseData when its version still matches the stored case,
// bumps the version and appends an event of eventType to the history.
func (r *CaseRepository) UpdateCaseData(ctx context.Context, caseData *domain.CaseData, eventType domain.EventType, summary, description string) (*domain.CaseData, error) {
	if caseData == nil || strings.TrimSpace(caseData.CaseID) == "" {
		return nil, caseOpError("update", repositories.NewCaseError(repositories.CaseErrorInvalidInput, "", "case id is required", nil))
	}
	if strings.TrimSpace(string(eventType)) == "" {
		return nil, caseOpError("update", repositories.NewCaseError(repositories.CaseErrorInvalidInput, caseData.CaseID, "event type is required", nil))
	}
	caseID := strings.TrimSpace(caseData.CaseID)

	ref, err := r.cases.Ref(ctx, caseID)
	if err != nil {
		return nil, caseOpError("update", classify(caseID, err))
	}

	var updated *domain.CaseData
	err = r.cases.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := r.cases.GetTx(tx, ref)
		if err != nil {
			return classify(caseID, err)
		}
		now := r.now().UTC()
		next, err := applyUpdate(current.Data.Version, caseData, domain.Event{
			ID:          r.newID(),
			Type:        eventType,
			Summary:     summary,
			Description: description,
			Date:        now,
		})
		if err != nil {
			return err
		}
		doc, err := encodeCase(next, now)
		if err != nil {
			return repositories.NewCaseError(repositories.CaseErrorInvalidInput, caseID, "case cannot be encoded", err)
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, caseOpError("update", classify(caseID, err))
	}
	return updated, nil
}

// applyUpdate checks the optimistic concurrency token and produces the next
// stored version of the case.
func applyUpdate(storedVersion int64, caseData *domain.CaseData, event domain.Event) (*domain.CaseData, error) {
	if caseData.Version != storedVersion {
		return nil, repositories.NewCaseError(repositories.CaseErrorConflict, caseData.CaseID,
			fmt.Sprintf("case version %d does not match stored version %d", caseData.Version, storedVersion), nil)
	}
	next := caseData.Clone()
	next.Version = storedVersion + 1
	next.Events = append(next.Events, event)
	return next, nil
}

func encodeCase(caseData *domain.CaseData, now time.Time) (caseDocument, error) {
	payload, err := json.Marshal(caseData)
	if err != nil {
		return caseDocument{}, err
	}
	return caseDocument{
		CaseID:    caseData.CaseID,
		Version:   caseData.Version,
		State:     string(caseData.State),
		UpdatedAt: now,
		Payload:   string(payload),
	}, nil
}

func decodeCase(doc caseDocument) (*domain.CaseData, error) {
	var caseData domain.CaseData
	if err := json.Unmarshal([]byte(doc.Payload), &caseData); err != nil {
		return nil, err
	}
	if caseData.CaseID == "" {
		caseData.CaseID = doc.CaseID
	}
	caseData.Version = doc.Version
	return &caseData, nil
}

// classify maps Firestore failures onto case error codes. Errors that are
// already case errors pass through.
func classify(caseID string, err error) error {
	if err == nil {
		return nil
	}
	var caseErr *repositories.CaseError
	if errors.As(err, &caseErr) {
		return caseErr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case pfirestore.IsNotFound(err):
		return repositories.NewCaseError(repositories.CaseErrorNotFound, caseID, "case not found", err)
	case pfirestore.IsConflict(err):
		return repositories.NewCaseError(repositories.CaseErrorConflict, caseID, "case was modified concurrently", err)
	case pfirestore.IsUnavailable(err):
		return repositories.NewCaseError(repositories.CaseErrorUnavailable, caseID, "case store unavailable", err)
	default:
		return repositories.NewCaseError(repositories.CaseErrorUnavailable, caseID, "case store failure", err)
	}
}

func caseOpError(op string, err error) error {
	var caseErr *repositories.CaseError
	if errors.As(err, &caseErr) && caseErr.Op == "" {
		caseErr.Op = "case repository " + op
	}
	return err
}
