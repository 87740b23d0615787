package domain

import "strings"

// PartyRole is the role a party plays in the hearing.
type PartyRole string

const (
	PartyRoleAppellant      PartyRole = "APPELLANT"
	PartyRoleAppointee      PartyRole = "APPOINTEE"
	PartyRoleRepresentative PartyRole = "REPRESENTATIVE"
	PartyRoleJointParty     PartyRole = "JOINT_PARTY"
	PartyRoleOtherParty     PartyRole = "OTHER_PARTY"
	PartyRoleRespondent     PartyRole = "RESPONDENT"
)

type partyRoleInfo struct {
	hmcKey      string
	description string
	parentRole  string
}

var partyRoles = map[PartyRole]partyRoleInfo{
	PartyRoleAppellant:      {"APEL", "Appellant", ""},
	PartyRoleAppointee:      {"APIN", "Appointee", "applicant"},
	PartyRoleRepresentative: {"RPTT", "Representative", "applicant"},
	PartyRoleJointParty:     {"JOPA", "Joint Party", "applicant"},
	PartyRoleOtherParty:     {"OTPA", "Other Party", "applicant"},
	PartyRoleRespondent:     {"RESP", "Respondent", ""},
}

// HmcKey returns the role code understood by the scheduler.
func (r PartyRole) HmcKey() string {
	return partyRoles[r].hmcKey
}

// Description returns the English display name of the role.
func (r PartyRole) Description() string {
	return partyRoles[r].description
}

// ParentRole returns the relationship type used when linking to the party's principal.
func (r PartyRole) ParentRole() string {
	return partyRoles[r].parentRole
}

// PartyEntity is a view over one party on a case. IDRef points at the party's id
// field on the underlying case data so callers can assign ids in place.
type PartyEntity struct {
	Role           PartyRole
	IDRef          *string
	Name           Name
	Contact        *Contact
	Organisation   string
	RoleLabel      string
	HearingOptions *HearingOptions
	HearingSubtype *HearingSubtype
	// PrincipalIDRef is the id of the party this entity acts for, when it is an
	// appointee or representative.
	PrincipalIDRef *string
	// Active is false for appointees and representatives recorded on the case but
	// not flagged as acting.
	Active bool
}

// ID returns the current id, or an empty string.
func (p PartyEntity) ID() string {
	if p.IDRef == nil {
		return ""
	}
	return strings.TrimSpace(*p.IDRef)
}

// PartyEntities lists every party on the case that carries an identifier, in
// the order ids are allocated: the appellant, their appointee and representative,
// then each other party followed by its appointee and representative. Joint
// parties are listed by JointPartyEntity.
func (c *CaseData) PartyEntities() []PartyEntity {
	if c == nil {
		return nil
	}
	var entities []PartyEntity
	appeal := &c.Appeal
	if appellant := appeal.Appellant; appellant != nil {
		entities = append(entities, PartyEntity{
			Role:           PartyRoleAppellant,
			IDRef:          &appellant.ID,
			Name:           appellant.Name,
			Contact:        appellant.Contact,
			Organisation:   appellant.Organisation,
			RoleLabel:      roleLabel(appellant.Role),
			HearingOptions: appeal.HearingOptions,
			HearingSubtype: appeal.HearingSubtype,
			Active:         true,
		})
		if appointee := appellant.Appointee; appointee != nil {
			entities = append(entities, PartyEntity{
				Role:           PartyRoleAppointee,
				IDRef:          &appointee.ID,
				Name:           appointee.Name,
				Contact:        appointee.Contact,
				Organisation:   appointee.Organisation,
				HearingOptions: appeal.HearingOptions,
				HearingSubtype: appeal.HearingSubtype,
				PrincipalIDRef: &appellant.ID,
				Active:         IsYes(appellant.IsAppointee),
			})
		}
		if rep := appeal.Rep; rep != nil {
			entities = append(entities, PartyEntity{
				Role:           PartyRoleRepresentative,
				IDRef:          &rep.ID,
				Name:           rep.Name,
				Contact:        rep.Contact,
				Organisation:   rep.Organisation,
				HearingOptions: appeal.HearingOptions,
				HearingSubtype: appeal.HearingSubtype,
				PrincipalIDRef: &appellant.ID,
				Active:         IsYes(rep.HasRepresentative),
			})
		}
	}
	for i := range c.OtherParties {
		party := &c.OtherParties[i]
		entities = append(entities, PartyEntity{
			Role:           PartyRoleOtherParty,
			IDRef:          &party.ID,
			Name:           party.Name,
			Contact:        party.Contact,
			Organisation:   party.Organisation,
			RoleLabel:      roleLabel(party.Role),
			HearingOptions: party.HearingOptions,
			HearingSubtype: party.HearingSubtype,
			Active:         true,
		})
		if appointee := party.Appointee; appointee != nil {
			entities = append(entities, PartyEntity{
				Role:           PartyRoleAppointee,
				IDRef:          &appointee.ID,
				Name:           appointee.Name,
				Contact:        appointee.Contact,
				Organisation:   appointee.Organisation,
				HearingOptions: party.HearingOptions,
				HearingSubtype: party.HearingSubtype,
				PrincipalIDRef: &party.ID,
				Active:         IsYes(party.IsAppointee),
			})
		}
		if rep := party.Rep; rep != nil {
			entities = append(entities, PartyEntity{
				Role:           PartyRoleRepresentative,
				IDRef:          &rep.ID,
				Name:           rep.Name,
				Contact:        rep.Contact,
				Organisation:   rep.Organisation,
				HearingOptions: party.HearingOptions,
				HearingSubtype: party.HearingSubtype,
				PrincipalIDRef: &party.ID,
				Active:         IsYes(rep.HasRepresentative),
			})
		}
	}
	return entities
}

// JointPartyEntity returns the joint party when the case has one.
func (c *CaseData) JointPartyEntity() (PartyEntity, bool) {
	if c == nil || !IsYes(c.JointParty.HasJointParty) {
		return PartyEntity{}, false
	}
	var principal *string
	if c.Appeal.Appellant != nil {
		principal = &c.Appeal.Appellant.ID
	}
	return PartyEntity{
		Role:           PartyRoleJointParty,
		IDRef:          &c.JointParty.ID,
		Name:           c.JointParty.Name,
		Contact:        c.JointParty.Contact,
		HearingOptions: c.Appeal.HearingOptions,
		HearingSubtype: c.Appeal.HearingSubtype,
		PrincipalIDRef: principal,
		Active:         true,
	}, true
}

func roleLabel(role *Role) string {
	if role == nil {
		return ""
	}
	return strings.TrimSpace(role.Name)
}
