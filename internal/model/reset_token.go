package model

import (
	"time"

	"github.com/google/uuid"
)

// ResetToken is a single-use password reset secret. A token is live while it
// is neither used, superseded nor expired; issuing a new token for the same
// principal supersedes every prior live one.
type ResetToken struct {
	Model
	Token       string     `json:"-" gorm:"uniqueIndex;not null"`
	PrincipalID uuid.UUID  `json:"principal_id" gorm:"type:char(36);index;not null"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null"`
	Used        bool       `json:"used" gorm:"default:false"`
	UsedAt      *time.Time `json:"used_at"`
	Superseded  bool       `json:"superseded" gorm:"default:false"`
}
