package handler

import (
	"errors"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobQuery struct {
	Trigger string `query:"trigger"`
	Status  string `query:"status"`
	Limit   int    `query:"limit"`
	Page    int    `query:"page"`
}

func (query *JobQuery) Parse(c *fiber.Ctx) {
	if err := c.QueryParser(query); err != nil {
		query.Limit = 10
		query.Page = 1
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 10
	}
}

// ListJobs is the operational window into the fan-out engine: delivery
// failures are terminal job state, not caller errors, so this is where an
// operator sees them.
func (h *Handler) ListJobs(c *fiber.Ctx) error {
	var query JobQuery
	query.Parse(c)

	db := h.DB.WithContext(c.Context()).Model(&model.NotificationJob{})
	if query.Trigger != "" {
		db = db.Where("trigger_kind = ?", query.Trigger)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}

	var jobs []model.NotificationJob
	if err := db.Order("created_at DESC").
		Limit(query.Limit).
		Offset((query.Page - 1) * query.Limit).
		Find(&jobs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": true, "data": jobs, "total": total})
}

// GetJob returns one job with its full per-recipient delivery ledger.
func (h *Handler) GetJob(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": false, "error": "invalid job id"})
	}

	var job model.NotificationJob
	err = h.DB.WithContext(c.Context()).
		Preload("Recipients").
		First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": false, "error": "job not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": true, "data": job})
}
