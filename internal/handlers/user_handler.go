package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type UserHandler struct {
	userService services.UserService
	jwtManager  *utils.JWTManager
	validator   *validator.Validate
}

func NewUserHandler(userService services.UserService, jwtManager *utils.JWTManager) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtManager:  jwtManager,
		validator:   newValidator(),
	}
}

func (h *UserHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	response, err := h.userService.Register(c.UserContext(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "User registered successfully", response)
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	response, err := h.userService.Login(c.UserContext(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Login successful", response)
}

func (h *UserHandler) Logout(c *fiber.Ctx) error {
	token, claims := middleware.TokenFrom(c)
	if claims == nil {
		return handleError(c, apperr.Unauthorized("Authentication required"))
	}

	if err := h.userService.Logout(c.UserContext(), middleware.CallerFrom(c), token, h.jwtManager.RemainingValidity(claims)); err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, err := h.userService.Me(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Profile retrieved successfully", models.ToUserResponse(user))
}

// GetPreferences handles GET /complaints/notifications/preferences and
// /detailed-preferences
func (h *UserHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.userService.GetPreferences(c.UserContext(), middleware.CallerFrom(c))
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Notification preferences retrieved", prefs)
}

// UpdatePreferences handles PUT /complaints/notifications/preferences and
// /detailed-preferences
func (h *UserHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req models.PreferencesUpdateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	prefs, err := h.userService.UpdatePreferences(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Notification preferences updated", prefs)
}

// ToggleEmail handles PUT /complaints/notifications/toggle. Without a body
// the e-mail switch is flipped.
func (h *UserHandler) ToggleEmail(c *fiber.Ctx) error {
	var req models.ToggleEmailRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, h.validator, &req); err != nil {
			return handleError(c, err)
		}
	}

	prefs, err := h.userService.ToggleEmail(c.UserContext(), middleware.CallerFrom(c), req.Enabled)
	if err != nil {
		return handleError(c, err)
	}

	message := "Email notifications disabled"
	if prefs.Email.Enabled {
		message = "Email notifications enabled"
	}
	return utils.SuccessResponse(c, fiber.StatusOK, message, prefs)
}

func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	page, limit := pagination(c)
	filter := &models.UserFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	}
	if role := c.Query("role"); role != "" {
		r := models.Role(role)
		filter.Role = &r
	}
	departmentID, err := queryUUID(c, "department_id")
	if err != nil {
		return handleError(c, err)
	}
	filter.DepartmentID = departmentID

	users, total, err := h.userService.List(c.UserContext(), middleware.CallerFrom(c), filter)
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, models.ToUserResponse(&users[i]))
	}
	return utils.PaginatedSuccessResponse(c, out, page, limit, total)
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	user, err := h.userService.Get(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", models.ToUserResponse(user))
}

func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req models.UserCreateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.userService.Create(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "User created successfully", models.ToUserResponse(user))
}

func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.UserUpdateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.userService.Update(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "User updated successfully", models.ToUserResponse(user))
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.userService.Delete(c.UserContext(), middleware.CallerFrom(c), id); err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "User deleted successfully", nil)
}
