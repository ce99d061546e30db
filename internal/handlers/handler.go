package handlers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/pkg/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// handleError writes the envelope for a service error. Internal and
// dependency failures are logged and reported without their cause.
func handleError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.Get().Error("request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return utils.ErrorResponse(c, status, apperr.PublicMessage(err))
}

// ErrorHandler is the fiber fallback for errors returned by handlers and
// middleware, including fiber's own routing errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.ErrorResponse(c, fe.Code, fe.Message)
	}
	return handleError(c, err)
}

// parseBody decodes the JSON body into req and runs its validate tags.
func parseBody(c *fiber.Ctx, v *validator.Validate, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := v.Struct(req); err != nil {
		return apperr.Validation(validationMessage(err))
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid ID")
	}
	return id, nil
}

// queryUUID reads the first of names present in the query string.
func queryUUID(c *fiber.Ctx, names ...string) (*uuid.UUID, error) {
	for _, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("Invalid " + name)
		}
		return &id, nil
	}
	return nil, nil
}

func pagination(c *fiber.Ctx) (page, limit int) {
	page, limit = 1, defaultPageSize
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
