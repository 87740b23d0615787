// Package refdata serves the listing reference tables: venues, hearing
// durations and session categories.
package refdata

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

//go:embed defaults.yaml
var defaultTables []byte

// VenueDetails is a venue row keyed by EPIMS id.
type VenueDetails struct {
	EpimsID                  string `yaml:"epimsId"`
	Name                     string `yaml:"name"`
	Line1                    string `yaml:"line1"`
	Line2                    string `yaml:"line2"`
	Town                     string `yaml:"town"`
	County                   string `yaml:"county"`
	Postcode                 string `yaml:"postcode"`
	RegionalProcessingCentre string `yaml:"regionalProcessingCentre"`
}

// Venue converts the row to the case-side venue.
func (v VenueDetails) Venue() domain.Venue {
	return domain.Venue{
		Name: v.Name,
		Address: domain.Address{
			Line1:    v.Line1,
			Line2:    v.Line2,
			Town:     v.Town,
			County:   v.County,
			Postcode: v.Postcode,
		},
	}
}

// HearingDuration holds listing durations in minutes for a benefit and issue.
type HearingDuration struct {
	BenefitCode string `yaml:"benefitCode"`
	IssueCode   string `yaml:"issueCode"`
	FaceToFace  int    `yaml:"faceToFace"`
	Interpreter int    `yaml:"interpreter"`
	Paper       int    `yaml:"paper"`
}

// SessionCategory classifies a benefit and issue for listing and panel composition.
type SessionCategory struct {
	BenefitCode  string   `yaml:"benefitCode"`
	IssueCode    string   `yaml:"issueCode"`
	SecondDoctor bool     `yaml:"secondDoctor"`
	FQPM         bool     `yaml:"fqpm"`
	Category     string   `yaml:"category"`
	BenefitName  string   `yaml:"benefitName"`
	PanelMembers []string `yaml:"panelMembers"`
}

// Tables is the decoded reference data file.
type Tables struct {
	Venues            []VenueDetails    `yaml:"venues"`
	HearingDurations  []HearingDuration `yaml:"hearingDurations"`
	SessionCategories []SessionCategory `yaml:"sessionCategories"`
}

// LoadTables reads tables from path, or the embedded defaults when path is empty.
func LoadTables(path string) (*Tables, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ParseTables(defaultTables)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: read %s: %w", path, err)
	}
	return ParseTables(data)
}

// ParseTables decodes and validates YAML reference tables.
func ParseTables(data []byte) (*Tables, error) {
	var tables Tables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("refdata: decode tables: %w", err)
	}
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &tables, nil
}

func (t *Tables) validate() error {
	var problems []string

	venues := make(map[string]struct{}, len(t.Venues))
	for i, venue := range t.Venues {
		id := strings.TrimSpace(venue.EpimsID)
		switch {
		case id == "":
			problems = append(problems, fmt.Sprintf("venues[%d]: epimsId is required", i))
		case venueExists(venues, id):
			problems = append(problems, fmt.Sprintf("venues[%d]: duplicate epimsId %s", i, id))
		}
		venues[id] = struct{}{}
	}

	durations := make(map[string]struct{}, len(t.HearingDurations))
	for i, d := range t.HearingDurations {
		key := durationKey(d.BenefitCode, d.IssueCode)
		if _, dup := durations[key]; dup {
			problems = append(problems, fmt.Sprintf("hearingDurations[%d]: duplicate %s", i, key))
		}
		durations[key] = struct{}{}
		if d.FaceToFace < 0 || d.Interpreter < 0 || d.Paper < 0 {
			problems = append(problems, fmt.Sprintf("hearingDurations[%d]: negative duration", i))
		}
	}

	categories := make(map[string]struct{}, len(t.SessionCategories))
	for i, c := range t.SessionCategories {
		key := categoryKey(c.BenefitCode, c.IssueCode, c.SecondDoctor, c.FQPM)
		if _, dup := categories[key]; dup {
			problems = append(problems, fmt.Sprintf("sessionCategories[%d]: duplicate %s", i, key))
		}
		categories[key] = struct{}{}
		if strings.TrimSpace(c.Category) == "" {
			problems = append(problems, fmt.Sprintf("sessionCategories[%d]: category is required", i))
		}
	}

	if len(problems) > 0 {
		return errors.New("refdata: invalid tables: " + strings.Join(problems, "; "))
	}
	return nil
}

func venueExists(seen map[string]struct{}, id string) bool {
	_, ok := seen[id]
	return ok
}

func durationKey(benefit, issue string) string {
	return strings.ToUpper(strings.TrimSpace(benefit)) + "|" + strings.ToUpper(strings.TrimSpace(issue))
}

func categoryKey(benefit, issue string, secondDoctor, fqpm bool) string {
	return fmt.Sprintf("%s|%t|%t", durationKey(benefit, issue), secondDoctor, fqpm)
}
