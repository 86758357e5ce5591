package handler

import (
	"context"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/ledger"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/notify"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/ratelimit"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler bundles the engagement core behind the HTTP surface. The web
// layer's own concerns (sessions, rendering) live elsewhere; these handlers
// only translate requests into core operations.
type Handler struct {
	DB       *gorm.DB
	Ledger   *ledger.Ledger
	Tokens   *token.Store
	Limiter  *ratelimit.Limiter
	Engine   *notify.Engine
	ResetTTL time.Duration
	BaseURL  string
}

func New(db *gorm.DB, l *ledger.Ledger, t *token.Store, rl *ratelimit.Limiter, e *notify.Engine, baseURL string) *Handler {
	return &Handler{
		DB:       db,
		Ledger:   l,
		Tokens:   t,
		Limiter:  rl,
		Engine:   e,
		ResetTTL: time.Hour,
		BaseURL:  baseURL,
	}
}

// activeAdmins resolves the recipient set for RSVP response fan-out.
func (h *Handler) activeAdmins(ctx context.Context) ([]notify.Recipient, error) {
	var admins []model.User
	if err := h.DB.WithContext(ctx).
		Where("is_admin = ? AND is_active = ?", true, true).
		Find(&admins).Error; err != nil {
		return nil, err
	}
	out := make([]notify.Recipient, 0, len(admins))
	for _, a := range admins {
		out = append(out, notify.Recipient{ID: a.ID, Name: a.Name, Address: a.Email})
	}
	return out, nil
}

func (h *Handler) usersByID(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := h.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}
