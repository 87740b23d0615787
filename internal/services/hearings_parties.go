package services

import (
	"strings"

	domain "github.com/hmcts/sscs-hearings-api/internal/domain"
)

// HearingChannel is how a party attends the hearing.
type HearingChannel string

const (
	ChannelFaceToFace HearingChannel = "INTER"
	ChannelVideo      HearingChannel = "VID"
	ChannelTelephone  HearingChannel = "TEL"
	ChannelPaper      HearingChannel = "ONPPRS"
)

const (
	dwpPartyID          = "DWP"
	dwpOrganisationType = "OGD"
	partyTypeIndividual = "IND"
	partyTypeOrg        = "ORG"
	unavailableAllDay   = "All Day"
)

// hearingChannel derives the case's channel from the appellant's preferences.
// Face to face wins over video, video over telephone.
func hearingChannel(caseData *CaseData) HearingChannel {
	if strings.EqualFold(strings.TrimSpace(caseData.Appeal.HearingType), hearingTypePaper) {
		return ChannelPaper
	}
	return preferredChannel(caseData.Appeal.HearingSubtype, caseData.Appeal.HearingOptions)
}

func preferredChannel(subtype *domain.HearingSubtype, options *domain.HearingOptions) HearingChannel {
	if subtype != nil {
		switch {
		case domain.IsYes(subtype.WantsHearingTypeFaceToFace):
			return ChannelFaceToFace
		case domain.IsYes(subtype.WantsHearingTypeVideo):
			return ChannelVideo
		case domain.IsYes(subtype.WantsHearingTypeTelephone):
			return ChannelTelephone
		}
	}
	if options != nil && domain.IsYes(options.WantsToAttend) {
		return ChannelFaceToFace
	}
	return ChannelPaper
}

// physicalAttendees counts people expected in the room. Only face to face
// hearings have physical attendees.
func physicalAttendees(caseData *CaseData, channel HearingChannel) int {
	if channel != ChannelFaceToFace {
		return 0
	}
	count := 0
	if caseData.WantsToAttend() {
		count++
		if rep := caseData.Appeal.Rep; rep != nil && domain.IsYes(rep.HasRepresentative) {
			count++
		}
		if domain.IsYes(caseData.JointParty.HasJointParty) {
			count++
		}
	}
	for _, party := range caseData.OtherParties {
		if party.HearingOptions != nil && domain.IsYes(party.HearingOptions.WantsToAttend) {
			count++
		}
	}
	if domain.IsYes(caseData.DwpIsOfficerAttending) {
		count++
	}
	if caseData.InterpreterRequired() {
		count++
	}
	return count
}

func (m *HearingsMapper) partiesDetails(caseData *CaseData) []domain.PartyDetails {
	parties := []domain.PartyDetails{}
	if domain.IsYes(caseData.DwpIsOfficerAttending) {
		parties = append(parties, domain.PartyDetails{
			PartyID:   dwpPartyID,
			PartyType: partyTypeOrg,
			PartyRole: domain.PartyRoleRespondent.HmcKey(),
			OrganisationDetails: &domain.OrganisationDetails{
				Name:             dwpPartyID,
				OrganisationType: dwpOrganisationType,
			},
		})
	}
	for _, entity := range caseData.PartyEntities() {
		if !entity.Active {
			continue
		}
		parties = append(parties, individualParty(entity))
	}
	if joint, ok := caseData.JointPartyEntity(); ok {
		parties = append(parties, individualParty(joint))
	}
	return parties
}

func individualParty(entity domain.PartyEntity) domain.PartyDetails {
	individual := &domain.IndividualDetails{
		Title:                   entity.Name.Title,
		FirstName:               entity.Name.FirstName,
		LastName:                entity.Name.LastName,
		PreferredHearingChannel: string(preferredChannel(entity.HearingSubtype, entity.HearingOptions)),
	}
	if options := entity.HearingOptions; options != nil {
		if domain.IsYes(options.LanguageInterpreter) {
			individual.InterpreterLanguage = strings.TrimSpace(options.Languages)
		}
		individual.ReasonableAdjustments = append([]string(nil), options.Arrangements...)
	}
	if contact := entity.Contact; contact != nil {
		if email := strings.TrimSpace(contact.Email); email != "" {
			individual.HearingChannelEmail = []string{email}
		}
		for _, phone := range []string{contact.Mobile, contact.Phone} {
			if phone = strings.TrimSpace(phone); phone != "" {
				individual.HearingChannelPhone = append(individual.HearingChannelPhone, phone)
			}
		}
	}
	if entity.PrincipalIDRef != nil && strings.TrimSpace(*entity.PrincipalIDRef) != "" {
		individual.RelatedParties = []domain.RelatedParty{{
			RelatedPartyID:   strings.TrimSpace(*entity.PrincipalIDRef),
			RelationshipType: entity.Role.ParentRole(),
		}}
	}

	return domain.PartyDetails{
		PartyID:              entity.ID(),
		PartyType:            partyTypeIndividual,
		PartyRole:            entity.Role.HmcKey(),
		IndividualDetails:    individual,
		UnavailabilityRanges: unavailability(entity.HearingOptions),
	}
}

func unavailability(options *domain.HearingOptions) []domain.UnavailabilityRange {
	if options == nil || len(options.ExcludeDates) == 0 {
		return nil
	}
	ranges := make([]domain.UnavailabilityRange, 0, len(options.ExcludeDates))
	for _, excluded := range options.ExcludeDates {
		end := excluded.End
		if strings.TrimSpace(end) == "" {
			end = excluded.Start
		}
		ranges = append(ranges, domain.UnavailabilityRange{
			UnavailableFromDate: excluded.Start,
			UnavailableToDate:   end,
			UnavailabilityType:  unavailableAllDay,
		})
	}
	return ranges
}
