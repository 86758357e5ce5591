package handler

import (
	"errors"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotifyEventCreatedRequest struct {
	RecipientIDs []string `json:"recipient_ids"`
}

// NotifyEventCreated fans the announcement out to the alumni selected on the
// event. Fire-and-forget: the caller's own persistence already succeeded and
// the job id is only returned for operational tracing.
func (h *Handler) NotifyEventCreated(c *fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid event id"})
	}

	var req NotifyEventCreatedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid request body"})
	}

	ids := make([]uuid.UUID, 0, len(req.RecipientIDs))
	for _, raw := range req.RecipientIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid recipient id: " + raw})
		}
		ids = append(ids, id)
	}

	var event model.Event
	if err := h.DB.WithContext(c.Context()).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "event not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not load event"})
	}

	users, err := h.usersByID(c.Context(), ids)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not resolve recipients"})
	}
	recipients := make([]notify.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, notify.Recipient{ID: u.ID, Name: u.Name, Address: u.Email})
	}
	if len(recipients) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "no resolvable recipients"})
	}

	jobID, err := h.Engine.Dispatch(c.Context(), model.TriggerEventCreated, eventID, recipients,
		event, notify.EventCreatedRenderer(event))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": "could not dispatch notification"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": true, "job_id": jobID})
}
