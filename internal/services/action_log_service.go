package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

type ActionLogService interface {
	LogAction(ctx context.Context, params *LogActionParams) error
	GetActionLog(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.ActionLog, error)
	ListActionLogs(ctx context.Context, caller *access.Caller, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error)
	CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error)
}

type LogActionParams struct {
	UserID     uuid.UUID
	Role       models.Role
	Action     string
	Module     string
	ResourceID string
	Method     string
	Path       string
	StatusCode int
	IPAddress  string
	UserAgent  string
	Duration   int64
}

type actionLogService struct {
	repo repository.ActionLogRepository
}

func NewActionLogService(repo repository.ActionLogRepository) ActionLogService {
	return &actionLogService{repo: repo}
}

func (s *actionLogService) LogAction(ctx context.Context, params *LogActionParams) error {
	status := "success"
	if params.StatusCode >= 400 {
		status = "failed"
	}

	log := &models.ActionLog{
		UserID:     params.UserID,
		Role:       params.Role,
		Action:     params.Action,
		Module:     params.Module,
		ResourceID: params.ResourceID,
		Method:     params.Method,
		Path:       params.Path,
		StatusCode: params.StatusCode,
		Status:     status,
		IPAddress:  params.IPAddress,
		UserAgent:  params.UserAgent,
		Duration:   params.Duration,
		CreatedAt:  time.Now(),
	}

	return s.repo.Create(ctx, log)
}

func (s *actionLogService) GetActionLog(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.ActionLog, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *actionLogService) ListActionLogs(ctx context.Context, caller *access.Caller, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

func (s *actionLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteOlderThan(ctx, cutoffDate)
}
