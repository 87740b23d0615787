package domain

// HearingRequestPayload is the body sent to the scheduler for create and update calls.
type HearingRequestPayload struct {
	RequestDetails *RequestDetails       `json:"requestDetails,omitempty"`
	HearingDetails HearingRequestDetails `json:"hearingDetails"`
	CaseDetails    CaseDetails           `json:"caseDetails"`
	PartiesDetails []PartyDetails        `json:"partyDetails"`
}

// HearingRequestDetails describes the hearing being asked for.
type HearingRequestDetails struct {
	AutoListFlag               bool              `json:"autolistFlag"`
	HearingType                string            `json:"hearingType"`
	HearingWindow              HearingWindow     `json:"hearingWindow"`
	Duration                   int               `json:"duration"`
	NonStandardDurationReasons []string          `json:"nonStandardHearingDurationReasons,omitempty"`
	HearingPriorityType        string            `json:"hearingPriorityType"`
	NumberOfPhysicalAttendees  int               `json:"numberOfPhysicalAttendees"`
	HearingInWelshFlag         bool              `json:"hearingInWelshFlag"`
	HearingLocations           []HearingLocation `json:"hearingLocations"`
	FacilitiesRequired         []string          `json:"facilitiesRequired"`
	ListingComments            string            `json:"listingComments,omitempty"`
	HearingRequester           string            `json:"hearingRequester,omitempty"`
	PrivateHearingRequiredFlag *bool             `json:"privateHearingRequiredFlag,omitempty"`
	LeadJudgeContractType      string            `json:"leadJudgeContractType,omitempty"`
	PanelRequirements          PanelRequirements `json:"panelRequirements"`
	HearingIsLinkedFlag        bool              `json:"hearingIsLinkedFlag"`
	AmendReasonCode            string            `json:"amendReasonCode,omitempty"`
	HearingChannels            []string          `json:"hearingChannels,omitempty"`
}

// HearingWindow bounds when the hearing may be listed. Dates are ISO-8601.
type HearingWindow struct {
	FirstDateTimeMustBe string `json:"firstDateTimeMustBe,omitempty"`
	DateRangeStart      string `json:"dateRangeStart,omitempty"`
	DateRangeEnd        string `json:"dateRangeEnd,omitempty"`
}

// HearingLocation is a candidate venue for listing.
type HearingLocation struct {
	LocationID   string `json:"locationId"`
	LocationType string `json:"locationType"`
}

// PanelRequirements constrains the judicial panel.
type PanelRequirements struct {
	RoleTypes             []string `json:"roleType"`
	AuthorisationTypes    []string `json:"authorisationTypes"`
	AuthorisationSubTypes []string `json:"authorisationSubType"`
	PanelSpecialisms      []string `json:"panelSpecialisms"`
}

// CaseDetails identifies the case to the scheduler.
type CaseDetails struct {
	HmctsServiceCode            string         `json:"hmctsServiceCode"`
	CaseID                      string         `json:"caseRef"`
	CaseDeepLink                string         `json:"caseDeepLink,omitempty"`
	HmctsInternalCaseName       string         `json:"hmctsInternalCaseName"`
	PublicCaseName              string         `json:"publicCaseName"`
	CaseAdditionalSecurityFlag  bool           `json:"caseAdditionalSecurityFlag"`
	CaseInterpreterRequiredFlag bool           `json:"caseInterpreterRequiredFlag"`
	CaseCategories              []CaseCategory `json:"caseCategories"`
	CaseManagementLocationCode  string         `json:"caseManagementLocationCode,omitempty"`
	CaseRestrictedFlag          bool           `json:"caserestrictedFlag"`
	CaseSlaStartDate            string         `json:"caseSLAStartDate,omitempty"`
}

// CaseCategory is a type or subtype classification of the case.
type CaseCategory struct {
	CategoryType   string `json:"categoryType"`
	CategoryValue  string `json:"categoryValue"`
	CategoryParent string `json:"categoryParent,omitempty"`
}

// PartyDetails describes one participant in the hearing.
type PartyDetails struct {
	PartyID              string                `json:"partyID"`
	PartyType            string                `json:"partyType"`
	PartyRole            string                `json:"partyRole"`
	IndividualDetails    *IndividualDetails    `json:"individualDetails,omitempty"`
	OrganisationDetails  *OrganisationDetails  `json:"organisationDetails,omitempty"`
	UnavailabilityRanges []UnavailabilityRange `json:"unavailabilityRanges,omitempty"`
}

// IndividualDetails holds the personal details of an individual party.
type IndividualDetails struct {
	Title                   string         `json:"title,omitempty"`
	FirstName               string         `json:"firstName"`
	LastName                string         `json:"lastName"`
	PreferredHearingChannel string         `json:"preferredHearingChannel,omitempty"`
	InterpreterLanguage     string         `json:"interpreterLanguage,omitempty"`
	ReasonableAdjustments   []string       `json:"reasonableAdjustments,omitempty"`
	HearingChannelEmail     []string       `json:"hearingChannelEmail,omitempty"`
	HearingChannelPhone     []string       `json:"hearingChannelPhone,omitempty"`
	RelatedParties          []RelatedParty `json:"relatedParties,omitempty"`
}

// RelatedParty links an individual to another party.
type RelatedParty struct {
	RelatedPartyID   string `json:"relatedPartyID"`
	RelationshipType string `json:"relationshipType"`
}

// OrganisationDetails describes an organisation party.
type OrganisationDetails struct {
	Name              string `json:"name"`
	OrganisationType  string `json:"organisationType"`
	CftOrganisationID string `json:"cftOrganisationID,omitempty"`
}

// UnavailabilityRange is a period a party cannot attend.
type UnavailabilityRange struct {
	UnavailableFromDate string `json:"unavailableFromDate"`
	UnavailableToDate   string `json:"unavailableToDate"`
	UnavailabilityType  string `json:"unavailabilityType"`
}

// ServiceHearingValues is returned to the scheduler when it asks how this service
// would list a case.
type ServiceHearingValues struct {
	HmctsServiceID             string            `json:"hmctsServiceID"`
	HmctsInternalCaseName      string            `json:"hmctsInternalCaseName"`
	PublicCaseName             string            `json:"publicCaseName"`
	CaseType                   string            `json:"caseType"`
	CaseCategories             []CaseCategory    `json:"caseCategories"`
	CaseManagementLocationCode string            `json:"caseManagementLocationCode,omitempty"`
	CaseRestrictedFlag         bool              `json:"caserestrictedFlag"`
	CaseSlaStartDate           string            `json:"caseSLAStartDate,omitempty"`
	AutoListFlag               bool              `json:"autoListFlag"`
	HearingType                string            `json:"hearingType"`
	HearingWindow              HearingWindow     `json:"hearingWindow"`
	Duration                   int               `json:"duration"`
	HearingPriorityType        string            `json:"hearingPriorityType"`
	NumberOfPhysicalAttendees  int               `json:"numberOfPhysicalAttendees"`
	HearingInWelshFlag         bool              `json:"hearingInWelshFlag"`
	HearingLocations           []HearingLocation `json:"hearingLocations"`
	FacilitiesRequired         []string          `json:"facilitiesRequired"`
	ListingComments            string            `json:"listingComments,omitempty"`
	PanelRequirements          PanelRequirements `json:"judiciary"`
	HearingIsLinkedFlag        bool              `json:"hearingIsLinkedFlag"`
	Parties                    []PartyDetails    `json:"parties"`
	HearingChannels            []string          `json:"hearingChannels,omitempty"`
}

// ServiceLinkedCase is a case linked to the one being listed.
type ServiceLinkedCase struct {
	CaseReference string   `json:"caseReference"`
	CaseName      string   `json:"caseName,omitempty"`
	Reasons       []string `json:"reasonsForLink,omitempty"`
}
