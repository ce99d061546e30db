package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type ActionLogHandler struct {
	service services.ActionLogService
}

func NewActionLogHandler(service services.ActionLogService) *ActionLogHandler {
	return &ActionLogHandler{service: service}
}

// ListActionLogs handles GET /action-logs
func (h *ActionLogHandler) ListActionLogs(c *fiber.Ctx) error {
	page, limit := pagination(c)
	filter := &models.ActionLogFilter{
		Action:     c.Query("action"),
		Module:     c.Query("module"),
		Status:     c.Query("status"),
		ResourceID: c.Query("resource_id"),
		Page:       page,
		Limit:      limit,
	}

	userID, err := queryUUID(c, "user_id")
	if err != nil {
		return handleError(c, err)
	}
	filter.UserID = userID

	if startDate := c.Query("start_date"); startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return handleError(c, apperr.Validation("Invalid start_date"))
		}
		filter.StartDate = &t
	}
	if endDate := c.Query("end_date"); endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return handleError(c, apperr.Validation("Invalid end_date"))
		}
		// Set to end of day
		t = t.Add(24*time.Hour - time.Second)
		filter.EndDate = &t
	}

	logs, total, err := h.service.ListActionLogs(c.UserContext(), middleware.CallerFrom(c), filter)
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.ActionLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, models.ToActionLogResponse(&logs[i]))
	}
	return utils.PaginatedSuccessResponse(c, out, page, limit, total)
}

// GetActionLog handles GET /action-logs/:id
func (h *ActionLogHandler) GetActionLog(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	log, err := h.service.GetActionLog(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Action log retrieved successfully", models.ToActionLogResponse(log))
}
