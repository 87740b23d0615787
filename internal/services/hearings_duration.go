package services

import (
	"strconv"
	"strings"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

const (
	durationSessionsMultiplier = 165
	durationHoursMultiplier    = 60
	defaultHearingDuration     = 60
	minHearingDuration         = 30
	interpreterExtraMinutes    = 30
	hearingTypePaper           = "paper"
)

// hearingDuration picks the listing duration in minutes. Precedence:
// adjournment values (when enabled), the caseworker override, the default
// listing value, reference data, then the default.
func (m *HearingsMapper) hearingDuration(caseData *CaseData) int {
	if m.adjournment {
		if duration, ok := adjournmentDuration(caseData.Adjournment); ok {
			return duration
		}
	}
	if override := caseData.Listing.OverrideDuration; override != nil && *override >= minHearingDuration {
		return withInterpreterTime(caseData, *override)
	}
	if listed := caseData.Listing.DefaultDuration; listed != nil && *listed >= minHearingDuration {
		return withInterpreterTime(caseData, *listed)
	}
	if duration, ok := m.referenceDuration(caseData); ok {
		return duration
	}
	return defaultHearingDuration
}

func adjournmentDuration(adjournment domain.Adjournment) (int, bool) {
	value, err := strconv.Atoi(strings.TrimSpace(adjournment.NextHearingListingDuration))
	if err != nil || value <= 0 {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(adjournment.NextHearingListingDurationUnits)) {
	case "sessions":
		return value * durationSessionsMultiplier, true
	case "hours":
		return value * durationHoursMultiplier, true
	case "minutes":
		if value >= minHearingDuration {
			return value, true
		}
	}
	return 0, false
}

// referenceDuration already accounts for interpreters through the
// interpreter column, so no extra time is added.
func (m *HearingsMapper) referenceDuration(caseData *CaseData) (int, bool) {
	row, ok := m.refData.HearingDuration(caseData.BenefitCode, caseData.IssueCode)
	if !ok {
		return 0, false
	}
	var duration int
	switch {
	case caseData.WantsToAttend() && caseData.InterpreterRequired():
		duration = row.Interpreter
	case caseData.WantsToAttend():
		duration = row.FaceToFace
	case strings.EqualFold(strings.TrimSpace(caseData.Appeal.HearingType), hearingTypePaper):
		duration = row.Paper
	}
	return duration, duration > 0
}

func withInterpreterTime(caseData *CaseData, duration int) int {
	if caseData.WantsToAttend() && caseData.InterpreterRequired() {
		return duration + interpreterExtraMinutes
	}
	return duration
}
