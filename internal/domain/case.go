package domain

import (
	"strings"
	"time"
)

// State is the lifecycle state recorded on a case.
type State string

const (
	StateUnknown            State = "unknown"
	StateHearing            State = "hearing"
	StateReadyToList        State = "readyToList"
	StateDormantAppealState State = "dormantAppealState"
	StateHandlingError      State = "handlingError"
)

// IsKnown reports whether the state may be written to a case.
func (s State) IsKnown() bool {
	return s != "" && s != StateUnknown
}

// CaseData is the case record held by the case store. Version is the optimistic
// concurrency token: writes are rejected when the stored version has moved on.
type CaseData struct {
	CaseID        string `json:"ccdCaseId"`
	CaseReference string `json:"caseReference,omitempty"`
	Version       int64  `json:"version"`
	State         State  `json:"state,omitempty"`
	BenefitCode   string `json:"benefitCode,omitempty"`
	IssueCode     string `json:"issueCode,omitempty"`
	CaseCreated   string `json:"caseCreated,omitempty"`

	Appeal       Appeal       `json:"appeal"`
	OtherParties []OtherParty `json:"otherParties,omitempty"`
	JointParty   JointParty   `json:"jointParty"`
	Hearings     []Hearing    `json:"hearings,omitempty"`
	Events       []Event      `json:"events,omitempty"`
	LinkedCases  []CaseLink   `json:"linkedCase,omitempty"`

	CaseManagementLocation CaseManagementLocation `json:"caseManagementLocation"`
	ProcessingVenue        string                 `json:"processingVenue,omitempty"`

	UrgentCase            YesNo  `json:"urgentCase,omitempty"`
	DwpIsOfficerAttending YesNo  `json:"dwpIsOfficerAttending,omitempty"`
	IsFqpmRequired        YesNo  `json:"isFqpmRequired,omitempty"`
	LanguagePreference    string `json:"languagePreferenceWelsh,omitempty"`

	ElementsDisputed []string             `json:"elementsDisputed,omitempty"`
	IndustrialInjury IndustrialInjury     `json:"sscsIndustrialInjuriesData"`
	Adjournment      Adjournment          `json:"adjournment"`
	Listing          SchedulingAndListing `json:"schedulingAndListingFields"`
}

// Appeal holds the appellant and their hearing preferences.
type Appeal struct {
	Appellant      *Appellant      `json:"appellant,omitempty"`
	Rep            *Representative `json:"rep,omitempty"`
	HearingOptions *HearingOptions `json:"hearingOptions,omitempty"`
	HearingType    string          `json:"hearingType,omitempty"`
	HearingSubtype *HearingSubtype `json:"hearingSubtype,omitempty"`
	BenefitType    string          `json:"benefitType,omitempty"`
}

// Name is a person's name as captured on the case.
type Name struct {
	Title     string `json:"title,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// FullName joins the non-empty name components.
func (n Name) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{n.Title, n.FirstName, n.LastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// Contact carries channels a party can be reached on.
type Contact struct {
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// Role is a free-text role label overriding the default party role description.
type Role struct {
	Name string `json:"name,omitempty"`
}

// Appellant is the party bringing the appeal.
type Appellant struct {
	ID           string     `json:"id,omitempty"`
	Name         Name       `json:"name"`
	Contact      *Contact   `json:"contact,omitempty"`
	Organisation string     `json:"organisation,omitempty"`
	Role         *Role      `json:"role,omitempty"`
	IsAppointee  YesNo      `json:"isAppointee,omitempty"`
	Appointee    *Appointee `json:"appointee,omitempty"`
}

// Appointee acts on behalf of a party.
type Appointee struct {
	ID           string   `json:"id,omitempty"`
	Name         Name     `json:"name"`
	Contact      *Contact `json:"contact,omitempty"`
	Organisation string   `json:"organisation,omitempty"`
}

// Representative represents a party at the hearing.
type Representative struct {
	ID                string   `json:"id,omitempty"`
	HasRepresentative YesNo    `json:"hasRepresentative,omitempty"`
	Name              Name     `json:"name"`
	Contact           *Contact `json:"contact,omitempty"`
	Organisation      string   `json:"organisation,omitempty"`
}

// OtherParty is any further party joined to the appeal.
type OtherParty struct {
	ID             string          `json:"id,omitempty"`
	Name           Name            `json:"name"`
	Contact        *Contact        `json:"contact,omitempty"`
	Organisation   string          `json:"organisation,omitempty"`
	Role           *Role           `json:"role,omitempty"`
	IsAppointee    YesNo           `json:"isAppointee,omitempty"`
	Appointee      *Appointee      `json:"appointee,omitempty"`
	Rep            *Representative `json:"rep,omitempty"`
	HearingOptions *HearingOptions `json:"hearingOptions,omitempty"`
	HearingSubtype *HearingSubtype `json:"hearingSubtype,omitempty"`
}

// JointParty is a partner claiming jointly with the appellant.
type JointParty struct {
	ID            string   `json:"id,omitempty"`
	HasJointParty YesNo    `json:"hasJointParty,omitempty"`
	Name          Name     `json:"name"`
	Contact       *Contact `json:"contact,omitempty"`
}

// HearingOptions are a party's stated preferences for attending.
type HearingOptions struct {
	WantsToAttend       YesNo       `json:"wantsToAttend,omitempty"`
	LanguageInterpreter YesNo       `json:"languageInterpreter,omitempty"`
	Languages           string      `json:"languages,omitempty"`
	SignLanguageType    string      `json:"signLanguageType,omitempty"`
	Arrangements        []string    `json:"arrangements,omitempty"`
	Other               string      `json:"other,omitempty"`
	ExcludeDates        []DateRange `json:"excludeDates,omitempty"`
}

// HearingSubtype captures the channels a party is willing to use.
type HearingSubtype struct {
	WantsHearingTypeFaceToFace YesNo `json:"wantsHearingTypeFaceToFace,omitempty"`
	WantsHearingTypeVideo      YesNo `json:"wantsHearingTypeVideo,omitempty"`
	WantsHearingTypeTelephone  YesNo `json:"wantsHearingTypeTelephone,omitempty"`
}

// DateRange is an inclusive ISO-8601 date range.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CaseManagementLocation identifies the court managing the case.
type CaseManagementLocation struct {
	BaseLocation string `json:"baseLocation,omitempty"`
	Region       string `json:"region,omitempty"`
}

// CaseLink references another case linked to this one.
type CaseLink struct {
	CaseReference string `json:"caseReference"`
}

// IndustrialInjury holds panel doctor specialisms for industrial injuries cases.
type IndustrialInjury struct {
	PanelDoctorSpecialism       string `json:"panelDoctorSpecialism,omitempty"`
	SecondPanelDoctorSpecialism string `json:"secondPanelDoctorSpecialism,omitempty"`
}

// Adjournment carries overrides recorded when a previous hearing was adjourned.
type Adjournment struct {
	NextHearingListingDuration      string `json:"nextHearingListingDuration,omitempty"`
	NextHearingListingDurationUnits string `json:"nextHearingListingDurationUnits,omitempty"`
	InterpreterRequired             YesNo  `json:"interpreterRequired,omitempty"`
	PanelMembersExcluded            YesNo  `json:"panelMembersExcluded,omitempty"`
}

// SchedulingAndListing holds caseworker supplied listing values.
type SchedulingAndListing struct {
	OverrideDuration *int `json:"overrideDuration,omitempty"`
	DefaultDuration  *int `json:"defaultDuration,omitempty"`
}

// Event is an entry in the case history.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
}

// LatestEventOfType returns the most recent event of the given type, or nil.
func (c *CaseData) LatestEventOfType(eventType EventType) *Event {
	if c == nil {
		return nil
	}
	var latest *Event
	for i := range c.Events {
		event := &c.Events[i]
		if event.Type != eventType {
			continue
		}
		if latest == nil || event.Date.After(latest.Date) {
			latest = event
		}
	}
	return latest
}

// WantsToAttend reports whether the appellant intends to attend the hearing.
func (c *CaseData) WantsToAttend() bool {
	return c != nil && c.Appeal.HearingOptions != nil && IsYes(c.Appeal.HearingOptions.WantsToAttend)
}

// InterpreterRequired reports whether any interpreter has been requested for the hearing.
func (c *CaseData) InterpreterRequired() bool {
	if c == nil {
		return false
	}
	if IsYes(c.Adjournment.InterpreterRequired) {
		return true
	}
	if needsInterpreter(c.Appeal.HearingOptions) {
		return true
	}
	for _, party := range c.OtherParties {
		if needsInterpreter(party.HearingOptions) {
			return true
		}
	}
	return false
}

func needsInterpreter(options *HearingOptions) bool {
	if options == nil {
		return false
	}
	return IsYes(options.LanguageInterpreter) || strings.TrimSpace(options.SignLanguageType) != ""
}

// Clone returns a deep copy sufficient to compare before/after mutation.
func (c *CaseData) Clone() *CaseData {
	if c == nil {
		return nil
	}
	out := *c
	if c.Appeal.Appellant != nil {
		appellant := *c.Appeal.Appellant
		if appellant.Appointee != nil {
			appointee := *appellant.Appointee
			appellant.Appointee = &appointee
		}
		out.Appeal.Appellant = &appellant
	}
	if c.Appeal.Rep != nil {
		rep := *c.Appeal.Rep
		out.Appeal.Rep = &rep
	}
	if c.OtherParties != nil {
		out.OtherParties = make([]OtherParty, len(c.OtherParties))
		for i, party := range c.OtherParties {
			if party.Appointee != nil {
				appointee := *party.Appointee
				party.Appointee = &appointee
			}
			if party.Rep != nil {
				rep := *party.Rep
				party.Rep = &rep
			}
			out.OtherParties[i] = party
		}
	}
	if c.Hearings != nil {
		out.Hearings = make([]Hearing, len(c.Hearings))
		for i, hearing := range c.Hearings {
			if hearing.Venue != nil {
				venue := *hearing.Venue
				hearing.Venue = &venue
			}
			out.Hearings[i] = hearing
		}
	}
	if c.Events != nil {
		out.Events = append([]Event(nil), c.Events...)
	}
	return &out
}
