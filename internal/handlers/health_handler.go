package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/database"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db      *gorm.DB
	pingers map[string]func(context.Context) error
}

// NewHealthHandler reports the database plus every named pinger.
func NewHealthHandler(db *gorm.DB, pingers map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{db: db, pingers: pingers}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := database.Health(c.UserContext(), h.db, h.pingers, healthTimeout)

	code := fiber.StatusOK
	overall := "ok"
	for _, s := range status {
		if s != "up" {
			code = fiber.StatusServiceUnavailable
			overall = "degraded"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"success":  code == fiber.StatusOK,
		"status":   overall,
		"services": status,
	})
}
