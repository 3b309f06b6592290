package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type SchedulerHandler struct {
	s service.PostService
}

func NewSchedulerHandler(service service.PostService) *SchedulerHandler {
	return &SchedulerHandler{s: service}
}

func (h *SchedulerHandler) Schedule(c *fiber.Ctx) error {
	var body transfer.ScheduleRequest
	if err := c.BodyParser(&body); err != nil || body.PostID == "" || body.ScheduledAt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "postId and scheduledAt are required",
		})
	}

	scheduledAt, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "scheduledAt must be an RFC 3339 timestamp",
		})
	}

	post, err := h.s.Schedule(c.Context(), body.PostID, GetUserID(c), scheduledAt)
	if err != nil {
		return postError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"postId":      post.ID,
		"scheduledAt": scheduledAt.UTC().Format(time.RFC3339),
		"message":     "Post scheduled successfully",
	})
}

func (h *SchedulerHandler) Cancel(c *fiber.Ctx) error {
	var body transfer.CancelRequest
	if err := c.BodyParser(&body); err != nil || body.PostID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "postId is required",
		})
	}

	if _, err := h.s.Cancel(c.Context(), body.PostID, GetUserID(c)); err != nil {
		return postError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Schedule cancelled",
	})
}

func (h *SchedulerHandler) Upcoming(c *fiber.Ctx) error {
	posts, err := h.s.ListUpcoming(c.Context(), GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch scheduled posts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}
