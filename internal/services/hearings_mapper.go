package services

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
	"github.com/hmcts/sscs-hearings-api/internal/refdata"
)

const (
	hearingTypeSubstantive = "SUB"
	locationTypeCourt      = "court"
	priorityHigh           = "high"
	priorityNormal         = "normal"
	categoryTypeCaseType   = "caseType"
	categoryTypeSubType    = "caseSubType"
	urgentWindowDays       = 14
	standardWindowDays     = 28
	dateLayout             = "2006-01-02"
	caseDetailsPath        = "/cases/case-details/"
)

var welsh = language.MustParseBase("cy")

// HearingsMapperDeps configures the field mapper.
type HearingsMapperDeps struct {
	ReferenceData   ReferenceData
	ServiceCode     string
	CaseDeepLinkURL string
	// Adjournment enables adjournment durations taking precedence over listing values.
	Adjournment bool
}

// HearingsMapper turns case data into scheduler payloads.
type HearingsMapper struct {
	refData     ReferenceData
	serviceCode string
	deepLink    string
	adjournment bool
	sanitizer   *bluemonday.Policy
}

// NewHearingsMapper validates deps and builds a mapper.
func NewHearingsMapper(deps HearingsMapperDeps) (*HearingsMapper, error) {
	if deps.ReferenceData == nil {
		return nil, errors.New("hearings mapper: reference data is required")
	}
	code := strings.TrimSpace(deps.ServiceCode)
	if code == "" {
		return nil, errors.New("hearings mapper: service code is required")
	}
	return &HearingsMapper{
		refData:     deps.ReferenceData,
		serviceCode: code,
		deepLink:    strings.TrimRight(strings.TrimSpace(deps.CaseDeepLinkURL), "/"),
		adjournment: deps.Adjournment,
		sanitizer:   bluemonday.StrictPolicy(),
	}, nil
}

// UpdateIDs assigns ids to parties that have none, continuing from the highest
// numeric id already on the case. It reports whether any id was assigned.
func (m *HearingsMapper) UpdateIDs(caseData *CaseData) bool {
	if caseData == nil {
		return false
	}
	entities := caseData.PartyEntities()
	if joint, ok := caseData.JointPartyEntity(); ok {
		entities = append(entities, joint)
	}
	maxID := 0
	for _, entity := range entities {
		if id, err := strconv.Atoi(entity.ID()); err == nil && id > maxID {
			maxID = id
		}
	}
	changed := false
	for _, entity := range entities {
		if entity.ID() != "" {
			continue
		}
		maxID++
		*entity.IDRef = strconv.Itoa(maxID)
		changed = true
	}
	return changed
}

// BuildHearingPayload maps the wrapped case into a create or update request.
func (m *HearingsMapper) BuildHearingPayload(wrapper HearingWrapper) (domain.HearingRequestPayload, error) {
	caseData := wrapper.CaseData
	if caseData == nil {
		return domain.HearingRequestPayload{}, fmt.Errorf("%w: case data is required", ErrListing)
	}
	category, err := m.sessionCategory(caseData)
	if err != nil {
		return domain.HearingRequestPayload{}, err
	}

	payload := domain.HearingRequestPayload{
		HearingDetails: m.hearingDetails(caseData, category),
		CaseDetails:    m.caseDetails(caseData, category),
		PartiesDetails: m.partiesDetails(caseData),
	}
	if latest := caseData.LatestHearing(); latest != nil && latest.VersionNumber > 0 {
		payload.RequestDetails = &domain.RequestDetails{VersionNumber: latest.VersionNumber}
	}
	return payload, nil
}

// ServiceHearingValues maps the case into the values the scheduler asks for
// before listing.
func (m *HearingsMapper) ServiceHearingValues(caseData *CaseData) (ServiceHearingValues, error) {
	if caseData == nil {
		return ServiceHearingValues{}, fmt.Errorf("%w: case data is required", ErrListing)
	}
	category, err := m.sessionCategory(caseData)
	if err != nil {
		return ServiceHearingValues{}, err
	}
	details := m.hearingDetails(caseData, category)
	caseDetails := m.caseDetails(caseData, category)

	return ServiceHearingValues{
		HmctsServiceID:             m.serviceCode,
		HmctsInternalCaseName:      caseDetails.HmctsInternalCaseName,
		PublicCaseName:             caseDetails.PublicCaseName,
		CaseType:                   m.caseTypeValue(caseData.BenefitCode),
		CaseCategories:             caseDetails.CaseCategories,
		CaseManagementLocationCode: caseDetails.CaseManagementLocationCode,
		CaseRestrictedFlag:         caseDetails.CaseRestrictedFlag,
		CaseSlaStartDate:           caseDetails.CaseSlaStartDate,
		AutoListFlag:               details.AutoListFlag,
		HearingType:                details.HearingType,
		HearingWindow:              details.HearingWindow,
		Duration:                   details.Duration,
		HearingPriorityType:        details.HearingPriorityType,
		NumberOfPhysicalAttendees:  details.NumberOfPhysicalAttendees,
		HearingInWelshFlag:         details.HearingInWelshFlag,
		HearingLocations:           details.HearingLocations,
		FacilitiesRequired:         details.FacilitiesRequired,
		ListingComments:            details.ListingComments,
		PanelRequirements:          details.PanelRequirements,
		HearingIsLinkedFlag:        details.HearingIsLinkedFlag,
		Parties:                    m.partiesDetails(caseData),
		HearingChannels:            details.HearingChannels,
	}, nil
}

func (m *HearingsMapper) sessionCategory(caseData *CaseData) (refdata.SessionCategory, error) {
	secondDoctor := strings.TrimSpace(caseData.IndustrialInjury.SecondPanelDoctorSpecialism) != ""
	fqpm := domain.IsYes(caseData.IsFqpmRequired)
	category, ok := m.refData.SessionCategory(caseData.BenefitCode, caseData.IssueCode, secondDoctor, fqpm)
	if !ok {
		return refdata.SessionCategory{}, fmt.Errorf("%w: invalid benefit/issue code combination %q/%q",
			ErrListing, caseData.BenefitCode, caseData.IssueCode)
	}
	return category, nil
}

func (m *HearingsMapper) hearingDetails(caseData *CaseData, category refdata.SessionCategory) domain.HearingRequestDetails {
	comments := m.listingComments(caseData)
	linked := len(caseData.LinkedCases) > 0
	autoList := !linked && comments == ""
	channel := hearingChannel(caseData)

	return domain.HearingRequestDetails{
		AutoListFlag:              autoList,
		HearingType:               m.serviceCode + "-" + hearingTypeSubstantive,
		HearingWindow:             hearingWindow(caseData, autoList),
		Duration:                  m.hearingDuration(caseData),
		HearingPriorityType:       hearingPriority(caseData),
		NumberOfPhysicalAttendees: physicalAttendees(caseData, channel),
		HearingInWelshFlag:        hearingInWelsh(caseData.LanguagePreference),
		HearingLocations:          hearingLocations(caseData.CaseManagementLocation),
		FacilitiesRequired:        facilitiesRequired(caseData),
		ListingComments:           comments,
		PanelRequirements:         panelRequirements(caseData, category),
		HearingIsLinkedFlag:       linked,
		HearingChannels:           []string{string(channel)},
	}
}

func (m *HearingsMapper) caseDetails(caseData *CaseData, category refdata.SessionCategory) domain.CaseDetails {
	details := domain.CaseDetails{
		HmctsServiceCode:            m.serviceCode,
		CaseID:                      caseData.CaseID,
		HmctsInternalCaseName:       internalCaseName(caseData),
		PublicCaseName:              publicCaseName(caseData),
		CaseInterpreterRequiredFlag: caseData.InterpreterRequired(),
		CaseCategories:              m.caseCategories(caseData, category),
		CaseManagementLocationCode:  strings.TrimSpace(caseData.CaseManagementLocation.BaseLocation),
		CaseSlaStartDate:            caseData.CaseCreated,
	}
	if m.deepLink != "" {
		details.CaseDeepLink = m.deepLink + caseDetailsPath + caseData.CaseID
	}
	return details
}

// listingComments collects each party's free-text hearing notes under a
// "Role - Name:" heading. HTML is stripped.
func (m *HearingsMapper) listingComments(caseData *CaseData) string {
	var comments []string
	add := func(roleLabel string, role domain.PartyRole, name domain.Name, options *domain.HearingOptions) {
		if options == nil || strings.TrimSpace(options.Other) == "" {
			return
		}
		label := roleLabel
		if label == "" {
			label = role.Description()
		}
		text := html.UnescapeString(m.sanitizer.Sanitize(strings.TrimSpace(options.Other)))
		comments = append(comments, fmt.Sprintf("%s - %s:\n%s", label, name.FullName(), text))
	}
	if appellant := caseData.Appeal.Appellant; appellant != nil {
		var label string
		if appellant.Role != nil {
			label = strings.TrimSpace(appellant.Role.Name)
		}
		add(label, domain.PartyRoleAppellant, appellant.Name, caseData.Appeal.HearingOptions)
	}
	for _, party := range caseData.OtherParties {
		var label string
		if party.Role != nil {
			label = strings.TrimSpace(party.Role.Name)
		}
		add(label, domain.PartyRoleOtherParty, party.Name, party.HearingOptions)
	}
	return strings.Join(comments, "\n\n")
}

func hearingWindow(caseData *CaseData, autoList bool) domain.HearingWindow {
	if !autoList {
		return domain.HearingWindow{}
	}
	responded := caseData.LatestEventOfType(domain.EventTypeDwpRespond)
	if responded == nil || responded.Date.IsZero() {
		return domain.HearingWindow{}
	}
	days := standardWindowDays
	if domain.IsYes(caseData.UrgentCase) {
		days = urgentWindowDays
	}
	return domain.HearingWindow{DateRangeStart: responded.Date.AddDate(0, 0, days).Format(dateLayout)}
}

func hearingPriority(caseData *CaseData) string {
	if domain.IsYes(caseData.UrgentCase) || domain.IsYes(caseData.Adjournment.PanelMembersExcluded) {
		return priorityHigh
	}
	return priorityNormal
}

// hearingInWelsh accepts a Yes/No flag or a language tag such as "cy" or "cy-GB".
func hearingInWelsh(preference string) bool {
	preference = strings.TrimSpace(preference)
	if preference == "" {
		return false
	}
	if domain.IsYes(domain.YesNo(preference)) || strings.EqualFold(preference, "welsh") {
		return true
	}
	tag, err := language.Parse(preference)
	if err != nil {
		return false
	}
	base, confidence := tag.Base()
	return confidence != language.No && base == welsh
}

func hearingLocations(location domain.CaseManagementLocation) []domain.HearingLocation {
	id := strings.TrimSpace(location.BaseLocation)
	if id == "" {
		return []domain.HearingLocation{}
	}
	return []domain.HearingLocation{{LocationID: id, LocationType: locationTypeCourt}}
}

func facilitiesRequired(caseData *CaseData) []string {
	seen := map[string]struct{}{}
	facilities := []string{}
	collect := func(options *domain.HearingOptions) {
		if options == nil {
			return
		}
		for _, arrangement := range options.Arrangements {
			arrangement = strings.TrimSpace(arrangement)
			if arrangement == "" {
				continue
			}
			if _, dup := seen[arrangement]; dup {
				continue
			}
			seen[arrangement] = struct{}{}
			facilities = append(facilities, arrangement)
		}
	}
	collect(caseData.Appeal.HearingOptions)
	for _, party := range caseData.OtherParties {
		collect(party.HearingOptions)
	}
	return facilities
}

func panelRequirements(caseData *CaseData, category refdata.SessionCategory) domain.PanelRequirements {
	requirements := domain.PanelRequirements{
		RoleTypes:             []string{},
		AuthorisationTypes:    []string{},
		AuthorisationSubTypes: []string{},
		PanelSpecialisms:      []string{},
	}
	for _, member := range category.PanelMembers {
		var specialism string
		switch strings.ToUpper(strings.TrimSpace(member)) {
		case "MQPM1":
			specialism = caseData.IndustrialInjury.PanelDoctorSpecialism
		case "MQPM2":
			specialism = caseData.IndustrialInjury.SecondPanelDoctorSpecialism
		default:
			continue
		}
		if specialism = strings.TrimSpace(specialism); specialism != "" {
			requirements.PanelSpecialisms = append(requirements.PanelSpecialisms, member+"-"+specialism)
		}
	}
	return requirements
}

func (m *HearingsMapper) caseTypeValue(benefitCode string) string {
	return m.serviceCode + "-" + strings.TrimSpace(benefitCode)
}

func (m *HearingsMapper) caseCategories(caseData *CaseData, category refdata.SessionCategory) []domain.CaseCategory {
	caseType := m.caseTypeValue(category.BenefitCode)
	return []domain.CaseCategory{
		{CategoryType: categoryTypeCaseType, CategoryValue: caseType},
		{
			CategoryType:   categoryTypeSubType,
			CategoryValue:  caseType + strings.ToUpper(strings.TrimSpace(caseData.IssueCode)),
			CategoryParent: caseType,
		},
	}
}

func internalCaseName(caseData *CaseData) string {
	if appellant := caseData.Appeal.Appellant; appellant != nil {
		return appellant.Name.FullName()
	}
	return ""
}

// publicCaseName reduces the appellant's first name to an initial.
func publicCaseName(caseData *CaseData) string {
	appellant := caseData.Appeal.Appellant
	if appellant == nil {
		return ""
	}
	first := strings.TrimSpace(appellant.Name.FirstName)
	last := strings.TrimSpace(appellant.Name.LastName)
	if first == "" {
		return last
	}
	initial := []rune(first)[0]
	return strings.TrimSpace(string(initial) + " " + last)
}
