package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type AnnouncementHandler struct {
	service   services.AnnouncementService
	validator *validator.Validate
}

func NewAnnouncementHandler(service services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *AnnouncementHandler) Create(c *fiber.Ctx) error {
	var req models.AnnouncementCreateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	announcement, err := h.service.Create(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "Announcement created", models.ToAnnouncementResponse(announcement))
}

// List is reachable anonymously; visibility follows the optional caller.
func (h *AnnouncementHandler) List(c *fiber.Ctx) error {
	announcements, err := h.service.List(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.AnnouncementResponse, 0, len(announcements))
	for i := range announcements {
		out = append(out, models.ToAnnouncementResponse(&announcements[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Announcements retrieved", out)
}

func (h *AnnouncementHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	announcement, err := h.service.Get(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Announcement retrieved", models.ToAnnouncementResponse(announcement))
}

func (h *AnnouncementHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.AnnouncementUpdateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	announcement, err := h.service.Update(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Announcement updated", models.ToAnnouncementResponse(announcement))
}

func (h *AnnouncementHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.service.Delete(c.UserContext(), middleware.CallerFrom(c), id); err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Announcement deleted", nil)
}
