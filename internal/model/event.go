package model

import "time"

// Event is the collaborator half of the RSVP domain: the ledger only needs
// capacity and the RSVP deadline, templates need the display fields.
type Event struct {
	Model
	Title        string     `json:"title" gorm:"not null"`
	Description  string     `json:"description" gorm:"type:text"`
	Location     string     `json:"location"`
	StartsAt     time.Time  `json:"starts_at" gorm:"index"`
	Capacity     int        `json:"capacity"` // 0 means unbounded
	RsvpDeadline *time.Time `json:"rsvp_deadline"`
}
