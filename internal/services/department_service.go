package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

type DepartmentService interface {
	List(ctx context.Context) ([]models.Department, error)
	Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Department, error)
	Create(ctx context.Context, caller *access.Caller, req *models.DepartmentCreateRequest) (*models.Department, error)
	Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.DepartmentUpdateRequest) (*models.Department, error)
	Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error
	AssignStaff(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AssignStaffRequest) (*models.User, error)
	ListStaff(ctx context.Context, caller *access.Caller, id uuid.UUID) ([]models.User, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type departmentService struct {
	deptRepo repository.DepartmentRepository
	userRepo repository.UserRepository
	log      *slog.Logger
}

func NewDepartmentService(deptRepo repository.DepartmentRepository, userRepo repository.UserRepository) DepartmentService {
	return &departmentService{
		deptRepo: deptRepo,
		userRepo: userRepo,
		log:      logger.WithComponent("departments"),
	}
}

func (s *departmentService) List(ctx context.Context) ([]models.Department, error) {
	return s.deptRepo.List(ctx)
}

// Get includes the staff roster for admins and the department's own staff.
func (s *departmentService) Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Department, error) {
	if caller.IsAdmin() || caller.BelongsTo(id) {
		return s.deptRepo.FindByIDWithStaff(ctx, id)
	}
	return s.deptRepo.FindByID(ctx, id)
}

func (s *departmentService) Create(ctx context.Context, caller *access.Caller, req *models.DepartmentCreateRequest) (*models.Department, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("Department name is required")
	}
	if len(repository.NormalizeCategories(req.Categories)) == 0 {
		return nil, apperr.Validation("At least one category is required")
	}

	dept := &models.Department{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
	}
	if err := s.deptRepo.Create(ctx, dept, req.Categories); err != nil {
		return nil, err
	}

	s.log.Info("department created", "department_id", dept.ID, "name", dept.Name, "categories", len(dept.Categories))
	return dept, nil
}

func (s *departmentService) Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.DepartmentUpdateRequest) (*models.Department, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	dept, err := s.deptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("Department name is required")
		}
		dept.Name = name
	}
	if req.Description != nil {
		dept.Description = strings.TrimSpace(*req.Description)
	}
	if req.ContactEmail != nil {
		dept.ContactEmail = strings.TrimSpace(*req.ContactEmail)
	}
	if req.ContactPhone != nil {
		dept.ContactPhone = strings.TrimSpace(*req.ContactPhone)
	}
	if req.Categories != nil && len(repository.NormalizeCategories(req.Categories)) == 0 {
		return nil, apperr.Validation("At least one category is required")
	}

	if err := s.deptRepo.Update(ctx, dept, req.Categories); err != nil {
		return nil, err
	}

	s.log.Info("department updated", "department_id", dept.ID)
	return s.deptRepo.FindByID(ctx, dept.ID)
}

func (s *departmentService) Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	staff, err := s.userRepo.CountDepartmentStaff(ctx, id)
	if err != nil {
		return err
	}
	if staff > 0 {
		return apperr.Conflict("Department still has staff assigned")
	}
	if err := s.deptRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("department deleted", "department_id", id, "actor_id", caller.UserID)
	return nil
}

func (s *departmentService) AssignStaff(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AssignStaffRequest) (*models.User, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, apperr.Validation("Invalid user ID")
	}
	if _, err := s.deptRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, apperr.Validation("Administrators cannot be assigned to a department")
	}

	if err := s.userRepo.AssignToDepartment(ctx, userID, id); err != nil {
		return nil, err
	}

	s.log.Info("staff assigned", "department_id", id, "user_id", userID, "actor_id", caller.UserID)
	return s.userRepo.FindByIDWithRelations(ctx, userID)
}

func (s *departmentService) ListStaff(ctx context.Context, caller *access.Caller, id uuid.UUID) ([]models.User, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.BelongsTo(id) {
		return nil, apperr.Forbidden("Access denied")
	}
	if _, err := s.deptRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.userRepo.ListDepartmentStaff(ctx, id)
}

func (s *departmentService) ListCategories(ctx context.Context) ([]string, error) {
	return s.deptRepo.ListCategories(ctx)
}
