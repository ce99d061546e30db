package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/pkg/utils"
)

const (
	localsCaller = "caller"
	localsUserID = "user_id"
	localsToken  = "token"
	localsClaims = "claims"
)

// TokenBlacklist reports tokens revoked by logout.
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthMiddleware struct {
	jwtManager *utils.JWTManager
	blacklist  TokenBlacklist
	userRepo   repository.UserRepository
	enforcer   *access.Enforcer
}

// NewAuthMiddleware accepts a nil blacklist, in which case revocation is not
// checked.
func NewAuthMiddleware(jwtManager *utils.JWTManager, blacklist TokenBlacklist, userRepo repository.UserRepository, enforcer *access.Enforcer) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		blacklist:  blacklist,
		userRepo:   userRepo,
		enforcer:   enforcer,
	}
}

// CallerFrom returns the authenticated caller, or nil for anonymous requests.
func CallerFrom(c *fiber.Ctx) *access.Caller {
	caller, _ := c.Locals(localsCaller).(*access.Caller)
	return caller
}

// TokenFrom returns the bearer token and its claims for the current request.
func TokenFrom(c *fiber.Ctx) (string, *utils.Claims) {
	token, _ := c.Locals(localsToken).(string)
	claims, _ := c.Locals(localsClaims).(*utils.Claims)
	return token, claims
}

func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// Attachment links are opened directly by the browser.
	return c.Query("token")
}

// resolve turns a token into a caller. The user is reloaded so role and
// department changes apply without a new login.
func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*access.Caller, *utils.Claims, error) {
	if m.blacklist != nil {
		revoked, err := m.blacklist.IsTokenBlacklisted(ctx, token)
		if err != nil {
			return nil, nil, apperr.Dependency("Failed to validate token", err)
		}
		if revoked {
			return nil, nil, apperr.Unauthorized("Token has been revoked")
		}
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, nil, apperr.Unauthorized("Invalid or expired token")
	}

	user, err := m.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.Unauthorized("User no longer exists")
		}
		return nil, nil, err
	}

	return access.CallerFromUser(user), claims, nil
}

func setCaller(c *fiber.Ctx, caller *access.Caller, claims *utils.Claims, token string) {
	c.Locals(localsCaller, caller)
	c.Locals(localsUserID, caller.UserID)
	c.Locals(localsClaims, claims)
	c.Locals(localsToken, token)
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Missing authorization token")
		}

		caller, claims, err := m.resolve(c.UserContext(), token)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				logger.WithComponent("auth").Error("token validation failed", "error", err)
			}
			return utils.ErrorResponse(c, apperr.HTTPStatus(err), apperr.PublicMessage(err))
		}

		setCaller(c, caller, claims, token)
		return c.Next()
	}
}

// OptionalAuth attaches a caller when a valid token is present and lets the
// request through anonymously otherwise.
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Next()
		}

		caller, claims, err := m.resolve(c.UserContext(), token)
		if err != nil {
			return c.Next()
		}

		setCaller(c, caller, claims, token)
		return c.Next()
	}
}

func (m *AuthMiddleware) RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := access.RequireRole(CallerFrom(c), roles...); err != nil {
			return utils.ErrorResponse(c, apperr.HTTPStatus(err), apperr.PublicMessage(err))
		}
		return c.Next()
	}
}

// RequirePermission checks the caller's role against the casbin policy.
func (m *AuthMiddleware) RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := CallerFrom(c)
		if caller == nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required")
		}

		allowed, err := m.enforcer.Allowed(caller.Role, resource, action)
		if err != nil {
			logger.WithComponent("auth").Error("permission check failed",
				"role", caller.Role, "resource", resource, "action", action, "error", err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error")
		}
		if !allowed {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Access denied")
		}

		return c.Next()
	}
}

// UserIDFrom returns the caller's id or uuid.Nil.
func UserIDFrom(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localsUserID).(uuid.UUID)
	return id
}
