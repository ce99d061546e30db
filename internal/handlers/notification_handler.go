package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type NotificationHandler struct {
	service   services.NotificationService
	validator *validator.Validate
}

func NewNotificationHandler(service services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	rows, unread, err := h.service.List(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return handleError(c, err)
	}

	out := models.NotificationListResponse{
		Notifications: make([]models.NotificationResponse, 0, len(rows)),
		UnreadCount:   unread,
	}
	for i := range rows {
		out.Notifications = append(out.Notifications, models.ToNotificationResponse(&rows[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Notifications retrieved", out)
}

// MarkRead marks the listed notifications, or all of them when none are given.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	var req models.MarkReadRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validator, &req); err != nil {
			return handleError(c, err)
		}
	}

	updated, err := h.service.MarkRead(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Notifications marked as read", fiber.Map{"updated": updated})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return handleError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Unread count retrieved", fiber.Map{"unread_count": count})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.service.Delete(c.UserContext(), middleware.CallerFrom(c), id); err != nil {
		return handleError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Notification deleted", nil)
}
