//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	pconfig "github.com/hmcts/sscs-hearings-api/internal/platform/config"
	pfirestore "github.com/hmcts/sscs-hearings-api/internal/platform/firestore"
	"github.com/hmcts/sscs-hearings-api/internal/repositories"
)

func TestCaseRepositoryAgainstEmulator(t *testing.T) {
	host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "sscs-hearings-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	repo, err := NewCaseRepository(provider, "integration_cases")
	if err != nil {
		t.Fatalf("NewCaseRepository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	caseID := "it-" + time.Now().UTC().Format("150405000000")
	if err := repo.SaveCase(ctx, &domain.CaseData{CaseID: caseID, State: domain.StateReadyToList}); err != nil {
		t.Fatalf("SaveCase: %v", err)
	}

	loaded, err := repo.GetCaseDetails(ctx, caseID)
	if err != nil {
		t.Fatalf("GetCaseDetails: %v", err)
	}
	if loaded.Version != 0 {
		t.Fatalf("expected version 0, got %d", loaded.Version)
	}

	loaded.AddHearing("2000001").VersionNumber = 1
	updated, err := repo.UpdateCaseData(ctx, loaded, domain.EventTypeCreateHearing, "Hearing Created", "Hearing Created")
	if err != nil {
		t.Fatalf("UpdateCaseData: %v", err)
	}
	if updated.Version != 1 || len(updated.Events) != 1 {
		t.Fatalf("unexpected update result: version=%d events=%d", updated.Version, len(updated.Events))
	}

	// loaded still carries version 0 and must now lose.
	_, err = repo.UpdateCaseData(ctx, loaded, domain.EventTypeUpdateCaseOnly, "stale", "stale")
	var caseErr *repositories.CaseError
	if !errors.As(err, &caseErr) || !caseErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := repo.GetCaseDetails(ctx, "missing-"+caseID); err == nil {
		t.Fatalf("expected not found")
	} else if !errors.As(err, &caseErr) || !caseErr.IsNotFound() {
		t.Fatalf("expected not found case error, got %v", err)
	}
}
