package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/services"
)

type ActionLoggerConfig struct {
	Enabled     bool
	SkipPaths   []string
	SkipMethods []string
	LogService  services.ActionLogService
}

// ActionLogger records every authenticated request in the audit log. Must run
// after the auth middleware so the caller is known.
func ActionLogger(config ActionLoggerConfig) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	skipMethods := make(map[string]bool)
	for _, method := range config.SkipMethods {
		skipMethods[method] = true
	}

	log := logger.WithComponent("audit")

	return func(c *fiber.Ctx) error {
		if !config.Enabled || config.LogService == nil {
			return c.Next()
		}
		if skipPaths[c.Path()] || skipMethods[c.Method()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Milliseconds()

		caller := CallerFrom(c)
		if caller == nil {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// fiber reuses the context once the handler returns.
		path := strings.Clone(c.Path())
		method := strings.Clone(c.Method())
		params := &services.LogActionParams{
			UserID:     caller.UserID,
			Role:       caller.Role,
			Action:     actionFor(method, path),
			Module:     moduleFromPath(path),
			ResourceID: strings.Clone(c.Params("id")),
			Method:     method,
			Path:       path,
			StatusCode: status,
			IPAddress:  c.IP(),
			UserAgent:  strings.Clone(c.Get("User-Agent")),
			Duration:   duration,
		}

		go func() {
			if logErr := config.LogService.LogAction(context.Background(), params); logErr != nil {
				log.Warn("failed to record action", "path", params.Path, "error", logErr)
			}
		}()

		return err
	}
}

var subActions = map[string]string{
	"status":       "status",
	"assign":       "assign",
	"comment":      "comment",
	"comments":     "comment",
	"feedback":     "feedback",
	"attachments":  "upload",
	"assign-staff": "assign",
	"read":         "read",
	"logout":       "logout",
}

func actionFor(method, path string) string {
	if method == fiber.MethodPost || method == fiber.MethodPut || method == fiber.MethodPatch {
		segments := splitPath(path)
		if len(segments) > 0 {
			if a, ok := subActions[segments[len(segments)-1]]; ok {
				return a
			}
		}
	}

	switch method {
	case fiber.MethodPost:
		return "create"
	case fiber.MethodPut, fiber.MethodPatch:
		return "update"
	case fiber.MethodDelete:
		return "delete"
	case fiber.MethodGet:
		return "view"
	default:
		return "other"
	}
}

// moduleFromPath maps /api/v1/complaints/<id>/status to "complaints".
func moduleFromPath(path string) string {
	for _, seg := range splitPath(path) {
		if seg != "api" && seg != "v1" && seg != "admin" && !isUUID(seg) {
			return seg
		}
	}
	return "unknown"
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
