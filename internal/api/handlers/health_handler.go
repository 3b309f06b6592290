package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type PendingCounter interface {
	Pending() int
}

type HealthHandler struct {
	jobs PendingCounter
}

func NewHealthHandler(jobs PendingCounter) *HealthHandler {
	return &HealthHandler{jobs: jobs}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":      "ok",
		"pendingJobs": h.jobs.Pending(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
