package router

import (
	"fmt"

	mainapp "github.com/techyogeshchauhan/alumni-scheduler/app"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/handler"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Setup(h *handler.Handler) {
	app := fiber.New(fiber.Config{})
	app.Use(cors.New())
	app.Use(recover.New())
	setupRouter(app, h)
	port := mainapp.Config("WEB_PORT")
	if len(port) == 0 {
		port = "3636"
	}
	fmt.Println("port=", port)
	app.Listen(":" + port)
}

func setupRouter(fiber_app *fiber.App, h *handler.Handler) {
	api := fiber_app.Group("/api", logger.New())

	api.Get("/test.json", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": true, "message": "Pong"})
	})

	// RSVP
	api.Post("/events/:id/rsvp", h.SubmitRsvp)

	// Password reset
	api.Post("/password-reset/request", h.RequestPasswordReset)
	api.Get("/password-reset/:token", h.ValidateResetToken)
	api.Post("/password-reset/:token", h.SubmitNewPassword)

	// Admin / operational
	admin := api.Group("", middleware.APIKeyAuth())
	admin.Post("/events/:id/notify-created", h.NotifyEventCreated)
	admin.Get("/events/:id/rsvps", h.EventRsvps)
	admin.Get("/jobs", h.ListJobs)
	admin.Get("/jobs/:id", h.GetJob)
}
