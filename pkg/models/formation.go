package models

import "time"

// Status lifecycle state of a formation
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// SessionType distinguishes inter-company from in-house sessions
type SessionType string

const (
	SessionInter SessionType = "inter"
	SessionIntra SessionType = "intra"
)

// Coordinates geographic point (WGS84)
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Participant one enrolled attendee
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Location where the session takes place
type Location struct {
	Name        string       `json:"name,omitempty"`
	Address     string       `json:"address,omitempty"`
	Room        string       `json:"room,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Access connection credentials communicated for the session
type Access struct {
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
}

// Billing invoicing details
type Billing struct {
	Entity       string `json:"entity,omitempty"`
	OrderRef     string `json:"orderRef,omitempty"`
	AgreementRef string `json:"agreementRef,omitempty"`
}

// Contact operational contact for the session
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Formation is the canonical training-session record, merged from one or
// more analyzed emails. Natural key: (ExtendedCode, StartDate).
type Formation struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title,omitempty"`
	ShortCode          string        `json:"shortCode,omitempty"`
	ExtendedCode       string        `json:"extendedCode,omitempty"`
	Status             Status        `json:"status"`
	StartDate          string        `json:"startDate,omitempty"` // ISO date, e.g. 2026-02-04
	EndDate            string        `json:"endDate,omitempty"`
	SessionDates       []string      `json:"sessionDates,omitempty"` // deduplicated, ascending
	DayCount           int           `json:"dayCount,omitempty"`
	HourCount          float64       `json:"hourCount,omitempty"`
	SessionType        SessionType   `json:"sessionType,omitempty"`
	CustomizationLevel string        `json:"customizationLevel,omitempty"`
	ClientName         string        `json:"clientName,omitempty"`
	ParticipantCount   int           `json:"participantCount,omitempty"`
	Participants       []Participant `json:"participants,omitempty"`
	Location           Location      `json:"location"`
	Access             Access        `json:"access"`
	Billing            *Billing      `json:"billing,omitempty"`
	Contact            *Contact      `json:"contact,omitempty"`
	EmailIDs           []string      `json:"emailIds,omitempty"` // contributing source emails, deduplicated
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy, so merges never alias the caller's record.
func (f *Formation) Clone() *Formation {
	c := *f
	c.SessionDates = append([]string(nil), f.SessionDates...)
	c.Participants = append([]Participant(nil), f.Participants...)
	c.EmailIDs = append([]string(nil), f.EmailIDs...)
	if f.Location.Coordinates != nil {
		coords := *f.Location.Coordinates
		c.Location.Coordinates = &coords
	}
	if f.Billing != nil {
		b := *f.Billing
		c.Billing = &b
	}
	if f.Contact != nil {
		ct := *f.Contact
		c.Contact = &ct
	}
	return &c
}
