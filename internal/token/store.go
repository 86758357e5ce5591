package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalid covers every failed lookup: unknown, used, superseded or
// expired tokens are indistinguishable to the caller.
var ErrInvalid = errors.New("invalid or expired token")

const rawTokenBytes = 32

// Store issues, validates and consumes single-use password reset tokens.
// At most one live token exists per principal: issuing supersedes the rest.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Issue generates a fresh token for the principal and supersedes any prior
// live ones in the same transaction. The raw value is returned exactly once.
func (s *Store) Issue(ctx context.Context, principalID uuid.UUID, ttl time.Duration) (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lazy GC: dead tokens for this principal are dropped on every issue.
		if err := tx.Where("principal_id = ? AND (used = ? OR superseded = ? OR expires_at <= ?)",
			principalID, true, true, now).
			Delete(&model.ResetToken{}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.ResetToken{}).
			Where("principal_id = ? AND used = ? AND superseded = ?", principalID, false, false).
			Update("superseded", true).Error; err != nil {
			return err
		}

		entry := model.ResetToken{
			Token:       raw,
			PrincipalID: principalID,
			ExpiresAt:   now.Add(ttl),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("principal_id", principalID).Error("failed to issue reset token")
		return "", err
	}
	return raw, nil
}

// Validate is the read-only check used to pre-render a reset form. It never
// mutates state.
func (s *Store) Validate(ctx context.Context, raw string) (uuid.UUID, error) {
	var entry model.ResetToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND used = ? AND superseded = ? AND expires_at > ?", raw, false, false, s.now()).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrInvalid
		}
		return uuid.Nil, err
	}
	return entry.PrincipalID, nil
}

// Consume marks the token used. The conditional update guarantees exactly
// one winner when two consumers race on the same token.
func (s *Store) Consume(ctx context.Context, raw string) (uuid.UUID, error) {
	principalID, err := s.Validate(ctx, raw)
	if err != nil {
		return uuid.Nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&model.ResetToken{}).
		Where("token = ? AND used = ? AND superseded = ? AND expires_at > ?", raw, false, false, now).
		Updates(map[string]interface{}{"used": true, "used_at": &now})
	if res.Error != nil {
		return uuid.Nil, res.Error
	}
	if res.RowsAffected != 1 {
		return uuid.Nil, ErrInvalid
	}
	return principalID, nil
}
