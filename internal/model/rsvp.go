package model

import "github.com/google/uuid"

type RsvpStatus string

const (
	RsvpGoing      RsvpStatus = "going"
	RsvpMaybe      RsvpStatus = "maybe"
	RsvpDeclined   RsvpStatus = "declined"
	RsvpWaitlisted RsvpStatus = "waitlisted" // ledger-assigned, never submitted
)

// Rsvp holds one response per (event, user) pair, upserted on resubmission.
// CreatedAt is set once and never touched on update: it is the FIFO key for
// waitlist promotion.
type Rsvp struct {
	Model
	EventID      uuid.UUID  `json:"event_id" gorm:"type:char(36);index:idx_rsvp_event_user,unique;not null"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:char(36);index:idx_rsvp_event_user,unique;not null"`
	Status       RsvpStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	GuestCount   int        `json:"guest_count" gorm:"default:0"`
	DietaryNotes string     `json:"dietary_notes"`
	Comment      string     `json:"comment" gorm:"type:text"`
}

// Weight is the seats this response occupies when confirmed.
func (r *Rsvp) Weight() int {
	return 1 + r.GuestCount
}
