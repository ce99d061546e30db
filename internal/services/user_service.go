package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/pkg/utils"
)

// SessionStore is the redis backed token blacklist.
type SessionStore interface {
	BlacklistToken(ctx context.Context, token string, expiration time.Duration) error
}

type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context, caller *access.Caller, token string, remaining time.Duration) error
	Me(ctx context.Context, caller *access.Caller) (*models.User, error)

	GetPreferences(ctx context.Context, caller *access.Caller) (*models.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, caller *access.Caller, req *models.PreferencesUpdateRequest) (*models.NotificationPreferences, error)
	ToggleEmail(ctx context.Context, caller *access.Caller, enabled *bool) (*models.NotificationPreferences, error)

	List(ctx context.Context, caller *access.Caller, filter *models.UserFilter) ([]models.User, int64, error)
	Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, caller *access.Caller, req *models.UserCreateRequest) (*models.User, error)
	Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.UserUpdateRequest) (*models.User, error)
	Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error
}

type userService struct {
	userRepo     repository.UserRepository
	deptRepo     repository.DepartmentRepository
	jwtManager   *utils.JWTManager
	sessionStore SessionStore
	log          *slog.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	deptRepo repository.DepartmentRepository,
	jwtManager *utils.JWTManager,
	sessionStore SessionStore,
) UserService {
	return &userService{
		userRepo:     userRepo,
		deptRepo:     deptRepo,
		jwtManager:   jwtManager,
		sessionStore: sessionStore,
		log:          logger.WithComponent("users"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("Email already registered")
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Name:                    strings.TrimSpace(req.Name),
		Email:                   email,
		Password:                hashedPassword,
		Mobile:                  strings.TrimSpace(req.Mobile),
		Address:                 strings.TrimSpace(req.Address),
		Role:                    models.RoleCitizen,
		NotificationPreferences: models.DefaultNotificationPreferences(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("citizen registered", "user_id", user.ID)
	return s.issueToken(ctx, user)
}

func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid email or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	now := time.Now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = &now

	return s.issueToken(ctx, user)
}

func (s *userService) issueToken(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	token, expiresAt, err := s.jwtManager.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperr.Internal("failed to generate token", err)
	}

	return &models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.ToUserResponse(user),
	}, nil
}

// Logout blacklists token for the rest of its validity.
func (s *userService) Logout(ctx context.Context, caller *access.Caller, token string, remaining time.Duration) error {
	if caller == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if s.sessionStore == nil {
		return apperr.Dependency("Session store is not available", nil)
	}
	if remaining > 0 {
		if err := s.sessionStore.BlacklistToken(ctx, token, remaining); err != nil {
			return apperr.Dependency("Failed to revoke token", err)
		}
	}
	return nil
}

func (s *userService) Me(ctx context.Context, caller *access.Caller) (*models.User, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return s.userRepo.FindByIDWithRelations(ctx, caller.UserID)
}

func (s *userService) GetPreferences(ctx context.Context, caller *access.Caller) (*models.NotificationPreferences, error) {
	user, err := s.Me(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &user.NotificationPreferences, nil
}

func (s *userService) UpdatePreferences(ctx context.Context, caller *access.Caller, req *models.PreferencesUpdateRequest) (*models.NotificationPreferences, error) {
	user, err := s.Me(ctx, caller)
	if err != nil {
		return nil, err
	}
	if req.InApp == nil && req.Email == nil {
		return nil, apperr.Validation("No preferences provided")
	}

	prefs := user.NotificationPreferences
	req.InApp.ApplyTo(&prefs.InApp)
	req.Email.ApplyTo(&prefs.Email)

	if err := s.userRepo.UpdatePreferences(ctx, user.ID, prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (s *userService) ToggleEmail(ctx context.Context, caller *access.Caller, enabled *bool) (*models.NotificationPreferences, error) {
	if enabled == nil {
		current, err := s.GetPreferences(ctx, caller)
		if err != nil {
			return nil, err
		}
		flipped := !current.Email.Enabled
		enabled = &flipped
	}
	return s.UpdatePreferences(ctx, caller, &models.PreferencesUpdateRequest{
		Email: &models.ChannelPreferencesPatch{Enabled: enabled},
	})
}

func (s *userService) List(ctx context.Context, caller *access.Caller, filter *models.UserFilter) ([]models.User, int64, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, 0, err
	}
	if filter.Role != nil && !filter.Role.IsValid() {
		return nil, 0, apperr.Validation("Invalid role")
	}
	return s.userRepo.List(ctx, filter)
}

// requireSelfOrAdmin lets users reach their own record.
func requireSelfOrAdmin(caller *access.Caller, id uuid.UUID) error {
	if caller != nil && caller.UserID == id {
		return nil
	}
	return access.RequireRole(caller, models.RoleAdmin)
}

func (s *userService) Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.User, error) {
	if err := requireSelfOrAdmin(caller, id); err != nil {
		return nil, err
	}
	return s.userRepo.FindByIDWithRelations(ctx, id)
}

// resolveDepartment enforces that department staff reference an existing
// department and that other roles carry none.
func (s *userService) resolveDepartment(ctx context.Context, role models.Role, departmentID *uuid.UUID) (*uuid.UUID, error) {
	if role != models.RoleDepartment {
		return nil, nil
	}
	if departmentID == nil {
		return nil, apperr.Validation("Department ID is required for department users")
	}
	if _, err := s.deptRepo.FindByID(ctx, *departmentID); err != nil {
		return nil, err
	}
	return departmentID, nil
}

func (s *userService) Create(ctx context.Context, caller *access.Caller, req *models.UserCreateRequest) (*models.User, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !req.Role.IsValid() {
		return nil, apperr.Validation("Invalid role")
	}
	departmentID, err := s.resolveDepartment(ctx, req.Role, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Name:                    strings.TrimSpace(req.Name),
		Email:                   normalizeEmail(req.Email),
		Password:                hashedPassword,
		Mobile:                  strings.TrimSpace(req.Mobile),
		Address:                 strings.TrimSpace(req.Address),
		Role:                    req.Role,
		DepartmentID:            departmentID,
		NotificationPreferences: models.DefaultNotificationPreferences(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user created", "user_id", user.ID, "role", user.Role, "actor_id", caller.UserID)
	return s.userRepo.FindByIDWithRelations(ctx, user.ID)
}

// Update lets users edit their own profile. Only admins change roles and
// departments.
func (s *userService) Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.UserUpdateRequest) (*models.User, error) {
	if err := requireSelfOrAdmin(caller, id); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && (req.Role != nil || req.DepartmentID != nil) {
		return nil, apperr.Forbidden("Only administrators can change roles and departments")
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Mobile != nil {
		user.Mobile = strings.TrimSpace(*req.Mobile)
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
	}
	if req.Password != nil {
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, apperr.Internal("failed to hash password", err)
		}
		user.Password = hashed
	}

	role := user.Role
	if req.Role != nil {
		if !req.Role.IsValid() {
			return nil, apperr.Validation("Invalid role")
		}
		if user.ID == caller.UserID && *req.Role != user.Role {
			return nil, apperr.Validation("You cannot change your own role")
		}
		role = *req.Role
	}
	departmentID := user.DepartmentID
	if req.DepartmentID != nil {
		departmentID = req.DepartmentID
	}
	departmentID, err = s.resolveDepartment(ctx, role, departmentID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.DepartmentID = departmentID
	user.Department = nil

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user updated", "user_id", user.ID, "actor_id", caller.UserID)
	return s.userRepo.FindByIDWithRelations(ctx, user.ID)
}

func (s *userService) Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if id == caller.UserID {
		return apperr.Validation("You cannot delete your own account")
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", id, "actor_id", caller.UserID)
	return nil
}
