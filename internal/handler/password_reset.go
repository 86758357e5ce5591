package handler

import (
	"errors"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/notify"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/ratelimit"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const genericResetMessage = "If an account with that email exists, password reset instructions have been sent."

// RequestPasswordReset issues a reset token and mails the link. The response
// body is identical whether or not the account exists, so the endpoint
// cannot be used to enumerate accounts.
func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	if !h.Limiter.Allow(ratelimit.ActionResetRequest, c.IP()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": false, "error": "too many requests"})
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "email is required"})
	}

	var user model.User
	err := h.DB.WithContext(c.Context()).Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Error("password reset user lookup failed")
		}
		return c.JSON(fiber.Map{"status": true, "message": genericResetMessage})
	}

	raw, err := h.Tokens.Issue(c.Context(), user.ID, h.ResetTTL)
	if err != nil {
		// Still the generic body: internal failure must not leak existence.
		return c.JSON(fiber.Map{"status": true, "message": genericResetMessage})
	}

	resetURL := h.BaseURL + "/reset-password/" + raw
	recipient := []notify.Recipient{{ID: user.ID, Name: user.Name, Address: user.Email}}
	if _, err := h.Engine.Dispatch(c.Context(), model.TriggerPasswordReset, user.ID, recipient,
		nil, notify.PasswordResetRenderer(resetURL, h.ResetTTL)); err != nil {
		logrus.WithError(err).Error("failed to dispatch password reset mail")
	}

	return c.JSON(fiber.Map{"status": true, "message": genericResetMessage})
}

// ValidateResetToken is the read-only pre-check used before rendering a
// reset form.
func (h *Handler) ValidateResetToken(c *fiber.Ctx) error {
	principalID, err := h.Tokens.Validate(c.Context(), c.Params("token"))
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			return c.JSON(fiber.Map{"status": true, "valid": false})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not validate token"})
	}
	return c.JSON(fiber.Map{"status": true, "valid": true, "principal_id": principalID})
}

// SubmitNewPassword consumes the token and rewrites the credential. A used,
// superseded or expired token always yields the same invalid response.
func (h *Handler) SubmitNewPassword(c *fiber.Ctx) error {
	if !h.Limiter.Allow(ratelimit.ActionResetSubmit, c.IP()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": false, "error": "too many requests"})
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	if len(req.Password) < 6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "password must be at least 6 characters long"})
	}

	principalID, err := h.Tokens.Consume(c.Context(), c.Params("token"))
	if err != nil {
		if errors.Is(err, token.ErrInvalid) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": false, "error": "invalid or expired reset token"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not reset password"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not reset password"})
	}
	if err := h.DB.WithContext(c.Context()).Model(&model.User{}).
		Where("id = ?", principalID).
		Update("password_hash", string(hash)).Error; err != nil {
		logrus.WithError(err).WithField("principal_id", principalID).Error("failed to store new password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not reset password"})
	}

	return c.JSON(fiber.Map{"status": true, "message": "password updated"})
}
