package refdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hmcts/sscs-hearings-api/internal/platform/config"
)

type countingSource struct {
	calls int
	venue VenueDetails
}

func (s *countingSource) LookupVenue(_ context.Context, epimsID string) (VenueDetails, error) {
	s.calls++
	if epimsID != s.venue.EpimsID {
		return VenueDetails{}, ErrVenueNotFound
	}
	return s.venue, nil
}

func TestEmbeddedDefaultsLoad(t *testing.T) {
	provider, err := NewProvider(config.ReferenceDataConfig{})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer provider.Close()

	venue, err := provider.Venue(context.Background(), "372653")
	if err != nil {
		t.Fatalf("Venue: %v", err)
	}
	if venue.Name != "Liverpool Civil and Family Court" || venue.Venue().Address.Postcode != "L2 2BX" {
		t.Fatalf("unexpected venue %+v", venue)
	}

	duration, ok := provider.HearingDuration("002", "dd")
	if !ok || duration.FaceToFace != 60 || duration.Interpreter != 90 {
		t.Fatalf("unexpected duration %+v (found=%t)", duration, ok)
	}

	category, ok := provider.SessionCategory("067", "II", true, false)
	if !ok || category.Category != "4" {
		t.Fatalf("unexpected session category %+v (found=%t)", category, ok)
	}
	if _, ok := provider.SessionCategory("999", "XX", false, false); ok {
		t.Fatalf("expected unknown benefit to miss")
	}
}

func TestVenueLookupIsCached(t *testing.T) {
	source := &countingSource{venue: VenueDetails{EpimsID: "100", Name: "Test Venue"}}
	provider, err := NewProviderFromTables(&Tables{}, config.ReferenceDataConfig{VenueCacheTTL: time.Minute}, WithVenueSource(source))
	if err != nil {
		t.Fatalf("NewProviderFromTables: %v", err)
	}
	defer provider.Close()

	ctx := context.Background()
	if _, err := provider.Venue(ctx, "100"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	provider.cache.Wait()
	if _, err := provider.Venue(ctx, "100"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected a single source call, got %d", source.calls)
	}
}

func TestVenueNotFound(t *testing.T) {
	provider, err := NewProviderFromTables(&Tables{}, config.ReferenceDataConfig{})
	if err != nil {
		t.Fatalf("NewProviderFromTables: %v", err)
	}
	defer provider.Close()

	for _, id := range []string{"", "404"} {
		if _, err := provider.Venue(context.Background(), id); !errors.Is(err, ErrVenueNotFound) {
			t.Fatalf("expected ErrVenueNotFound for %q, got %v", id, err)
		}
	}
}

func TestParseTablesRejectsDuplicates(t *testing.T) {
	data := []byte(`
venues:
  - {epimsId: "1", name: A}
  - {epimsId: "1", name: B}
sessionCategories:
  - {benefitCode: "002", issueCode: DD}
`)
	_, err := ParseTables(data)
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadTablesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refdata.yaml")
	content := "hearingDurations:\n  - {benefitCode: \"010\", issueCode: AB, faceToFace: 40}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if len(tables.HearingDurations) != 1 || tables.HearingDurations[0].FaceToFace != 40 {
		t.Fatalf("unexpected tables %+v", tables)
	}
}
