package domain

import (
	"strconv"
	"strings"
)

// Hearing is the case-side record of a hearing request held with the scheduler.
// HearingID is empty until the first successful create.
type Hearing struct {
	HearingID     string    `json:"hearingId"`
	VersionNumber int64     `json:"versionNumber,omitempty"`
	Status        HmcStatus `json:"status,omitempty"`
	HearingDate   string    `json:"hearingDate,omitempty"`
	Time          string    `json:"time,omitempty"`
	Adjourned     YesNo     `json:"adjourned,omitempty"`
	EventDate     string    `json:"eventDate,omitempty"`
	VenueID       string    `json:"venueId,omitempty"`
	Venue         *Venue    `json:"venue,omitempty"`
}

// Venue is the display form of a hearing venue.
type Venue struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// Address is a postal address.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Town     string `json:"town,omitempty"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// HearingByID returns the hearing recorded under hearingID. The hearings slice is
// initialised on first access so callers can append without nil checks.
func (c *CaseData) HearingByID(hearingID string) *Hearing {
	if c == nil {
		return nil
	}
	if c.Hearings == nil {
		c.Hearings = []Hearing{}
	}
	id := strings.TrimSpace(hearingID)
	if id == "" {
		return nil
	}
	for i := range c.Hearings {
		if c.Hearings[i].HearingID == id {
			return &c.Hearings[i]
		}
	}
	return nil
}

// AddHearing appends a new hearing entry and returns a pointer to it.
func (c *CaseData) AddHearing(hearingID string) *Hearing {
	c.Hearings = append(c.Hearings, Hearing{HearingID: strings.TrimSpace(hearingID)})
	return &c.Hearings[len(c.Hearings)-1]
}

// LatestHearing returns the hearing with the highest numeric id, which is the
// most recently requested one.
func (c *CaseData) LatestHearing() *Hearing {
	if c == nil {
		return nil
	}
	var (
		latest   *Hearing
		latestID int64 = -1
	)
	for i := range c.Hearings {
		id, err := strconv.ParseInt(c.Hearings[i].HearingID, 10, 64)
		if err != nil {
			continue
		}
		if id > latestID {
			latestID = id
			latest = &c.Hearings[i]
		}
	}
	return latest
}

// LatestHearingID returns the id of LatestHearing or an empty string.
func (c *CaseData) LatestHearingID() string {
	if hearing := c.LatestHearing(); hearing != nil {
		return hearing.HearingID
	}
	return ""
}
