package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TriggerKind string

const (
	TriggerEventCreated  TriggerKind = "event_created"
	TriggerRsvpResponded TriggerKind = "rsvp_responded"
	TriggerPasswordReset TriggerKind = "password_reset"
)

type JobStatus string

const (
	JobPending      JobStatus = "pending"
	JobDelivered    JobStatus = "delivered"
	JobDeadLettered JobStatus = "dead_lettered"
)

type RecipientStatus string

const (
	RecipientPending   RecipientStatus = "pending"
	RecipientDelivered RecipientStatus = "delivered"
	RecipientFailed    RecipientStatus = "failed"
)

// NotificationJob is one fan-out unit covering every recipient of a single
// triggering domain event. The recipient set is frozen at dispatch time.
type NotificationJob struct {
	ID              uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	TriggerKind     TriggerKind    `json:"trigger_kind" gorm:"type:varchar(32);not null;index"`
	SubjectEntityID uuid.UUID      `json:"subject_entity_id" gorm:"type:char(36);index"`
	Payload         datatypes.JSON `json:"payload"`
	Status          JobStatus      `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	CreatedAt       time.Time      `json:"created_at"`
	LastAttemptAt   *time.Time     `json:"last_attempt_at"`

	Recipients []JobRecipient `json:"recipients,omitempty" gorm:"foreignKey:JobID"`
}

// JobRecipient is the per-(job, recipient) delivery ledger. Subject and body
// are rendered once at dispatch and immutable afterward; only status,
// attempt bookkeeping and last_error evolve.
type JobRecipient struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	JobID         uuid.UUID       `json:"job_id" gorm:"type:char(36);index:idx_job_recipient,unique;not null"`
	RecipientID   uuid.UUID       `json:"recipient_id" gorm:"type:char(36);index:idx_job_recipient,unique;not null"`
	Address       string          `json:"address" gorm:"not null"`
	Subject       string          `json:"subject"`
	Body          string          `json:"body" gorm:"type:text"`
	Status        RecipientStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	AttemptCount  int             `json:"attempt_count" gorm:"default:0"`
	NextAttemptAt *time.Time      `json:"next_attempt_at" gorm:"index"`
	LastError     *string         `json:"last_error"`
}
