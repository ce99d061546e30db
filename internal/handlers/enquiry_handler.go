package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type EnquiryHandler struct {
	service   services.EnquiryService
	validator *validator.Validate
}

func NewEnquiryHandler(service services.EnquiryService) *EnquiryHandler {
	return &EnquiryHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Create handles the public POST /enquiries
func (h *EnquiryHandler) Create(c *fiber.Ctx) error {
	var req models.EnquiryCreateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	enquiry, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "Enquiry submitted successfully", enquiry)
}

// Search handles the public GET /enquiries/search?email=&mobile=
func (h *EnquiryHandler) Search(c *fiber.Ctx) error {
	enquiries, err := h.service.Search(c.UserContext(), c.Query("email"), c.Query("mobile"))
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Enquiries retrieved", enquiries)
}

func (h *EnquiryHandler) List(c *fiber.Ctx) error {
	page, limit := pagination(c)
	filter := &models.EnquiryFilter{
		Email:  c.Query("email"),
		Mobile: c.Query("mobile"),
		Page:   page,
		Limit:  limit,
	}
	if status := c.Query("status"); status != "" {
		s := models.EnquiryStatus(status)
		filter.Status = &s
	}

	enquiries, total, err := h.service.List(c.UserContext(), middleware.CallerFrom(c), filter)
	if err != nil {
		return handleError(c, err)
	}

	return utils.PaginatedSuccessResponse(c, enquiries, page, limit, total)
}

func (h *EnquiryHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	enquiry, err := h.service.Get(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Enquiry retrieved", enquiry)
}

func (h *EnquiryHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.EnquiryStatusRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	enquiry, err := h.service.UpdateStatus(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Enquiry status updated", enquiry)
}
