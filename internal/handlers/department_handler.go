package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type DepartmentHandler struct {
	service   services.DepartmentService
	validator *validator.Validate
}

func NewDepartmentHandler(service services.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *DepartmentHandler) Create(c *fiber.Ctx) error {
	var req models.DepartmentCreateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	department, err := h.service.Create(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "Department created", models.ToDepartmentResponse(department))
}

func (h *DepartmentHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	department, err := h.service.Get(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Department retrieved", models.ToDepartmentResponse(department))
}

func (h *DepartmentHandler) List(c *fiber.Ctx) error {
	departments, err := h.service.List(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.DepartmentResponse, 0, len(departments))
	for i := range departments {
		out = append(out, models.ToDepartmentResponse(&departments[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Departments retrieved", out)
}

func (h *DepartmentHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.DepartmentUpdateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	department, err := h.service.Update(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Department updated", models.ToDepartmentResponse(department))
}

func (h *DepartmentHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.service.Delete(c.UserContext(), middleware.CallerFrom(c), id); err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Department deleted", nil)
}

// AssignStaff handles POST /departments/:id/assign-staff
func (h *DepartmentHandler) AssignStaff(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.AssignStaffRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.service.AssignStaff(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Staff member assigned", models.ToUserResponse(user))
}

// ListStaff handles GET /departments/:id/staff
func (h *DepartmentHandler) ListStaff(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	staff, err := h.service.ListStaff(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.UserResponse, 0, len(staff))
	for i := range staff {
		out = append(out, models.ToUserResponse(&staff[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Staff retrieved", out)
}

// ListCategories handles GET /departments/categories/all
func (h *DepartmentHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Categories retrieved", categories)
}
