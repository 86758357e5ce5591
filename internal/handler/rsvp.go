package handler

import (
	"errors"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/ledger"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SubmitRsvpRequest struct {
	UserID       string `json:"user_id"`
	Intent       string `json:"intent"`
	GuestCount   int    `json:"guest_count"`
	DietaryNotes string `json:"dietary_notes"`
	Comment      string `json:"comment"`
}

// SubmitRsvp applies the RSVP transition and, on success, fans out the
// response to active admins, confirms to the submitter, and notifies anyone
// the withdrawal promoted off the waitlist. The response always carries the
// status the ledger actually assigned, which may differ from the intent.
func (h *Handler) SubmitRsvp(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid event id"})
	}

	var req SubmitRsvpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid user id"})
	}

	outcome, err := h.Ledger.Submit(c.Context(), eventID, userID, model.RsvpStatus(req.Intent), req.GuestCount, req.DietaryNotes, req.Comment)
	switch {
	case errors.Is(err, ledger.ErrEventNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "event not found"})
	case errors.Is(err, ledger.ErrEventClosed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": false, "error": "RSVP window has closed"})
	case errors.Is(err, ledger.ErrInvalidIntent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "intent must be going, maybe or declined"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not record RSVP"})
	}

	h.notifyRsvpOutcome(c, eventID, userID, outcome)

	promotedIDs := make([]uuid.UUID, 0, len(outcome.Promoted))
	for _, p := range outcome.Promoted {
		promotedIDs = append(promotedIDs, p.UserID)
	}
	return c.JSON(fiber.Map{
		"status":            true,
		"final_status":      outcome.Rsvp.Status,
		"promoted_user_ids": promotedIDs,
	})
}

// notifyRsvpOutcome runs the fan-outs triggered by one accepted submission.
// All dispatch failures are logged, never surfaced: the state transition
// already happened and the caller's response must reflect that.
func (h *Handler) notifyRsvpOutcome(c *fiber.Ctx, eventID, userID uuid.UUID, outcome ledger.Outcome) {
	ctx := c.Context()

	var event model.Event
	if err := h.DB.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		logrus.WithError(err).WithField("event_id", eventID).Error("failed to load event for RSVP fan-out")
		return
	}
	var responder model.User
	if err := h.DB.WithContext(ctx).First(&responder, "id = ?", userID).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("failed to load responder for RSVP fan-out")
		return
	}

	if admins, err := h.activeAdmins(ctx); err != nil {
		logrus.WithError(err).Error("failed to resolve admin recipients")
	} else if len(admins) > 0 {
		_, err := h.Engine.Dispatch(ctx, model.TriggerRsvpResponded, eventID, admins,
			outcome.Rsvp, notify.RsvpRespondedRenderer(event, responder, outcome.Rsvp))
		if err != nil {
			logrus.WithError(err).Error("failed to dispatch admin RSVP notification")
		}
	}

	self := []notify.Recipient{{ID: responder.ID, Name: responder.Name, Address: responder.Email}}
	if _, err := h.Engine.Dispatch(ctx, model.TriggerRsvpResponded, eventID, self,
		outcome.Rsvp, notify.RsvpConfirmationRenderer(event, outcome.Rsvp)); err != nil {
		logrus.WithError(err).Error("failed to dispatch RSVP confirmation")
	}

	for _, p := range outcome.Promoted {
		var promotedUser model.User
		if err := h.DB.WithContext(ctx).First(&promotedUser, "id = ?", p.UserID).Error; err != nil {
			logrus.WithError(err).WithField("user_id", p.UserID).Error("failed to load promoted user")
			continue
		}
		recipient := []notify.Recipient{{ID: promotedUser.ID, Name: promotedUser.Name, Address: promotedUser.Email}}
		if _, err := h.Engine.Dispatch(ctx, model.TriggerRsvpResponded, eventID, recipient,
			p, notify.PromotionRenderer(event)); err != nil {
			logrus.WithError(err).Error("failed to dispatch promotion notification")
		}
	}
}

// EventRsvps is the admin view: stats plus the full response list.
func (h *Handler) EventRsvps(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid event id"})
	}

	stats, err := h.Ledger.Stats(c.Context(), eventID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	rsvps, err := h.Ledger.ListByEvent(c.Context(), eventID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": true, "stats": stats, "rsvps": rsvps})
}
