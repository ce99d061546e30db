package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

type EnquiryService interface {
	Create(ctx context.Context, req *models.EnquiryCreateRequest) (*models.Enquiry, error)
	// Search finds enquiries by the contact details they were filed with.
	Search(ctx context.Context, email, mobile string) ([]models.Enquiry, error)
	List(ctx context.Context, caller *access.Caller, filter *models.EnquiryFilter) ([]models.Enquiry, int64, error)
	Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Enquiry, error)
	UpdateStatus(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.EnquiryStatusRequest) (*models.Enquiry, error)
}

type enquiryService struct {
	repo    repository.EnquiryRepository
	content *ContentPolicy
	log     *slog.Logger
}

func NewEnquiryService(repo repository.EnquiryRepository, content *ContentPolicy) EnquiryService {
	return &enquiryService{
		repo:    repo,
		content: content,
		log:     logger.WithComponent("enquiries"),
	}
}

func (s *enquiryService) Create(ctx context.Context, req *models.EnquiryCreateRequest) (*models.Enquiry, error) {
	e := &models.Enquiry{
		Name:        s.content.PlainText(req.Name),
		Mobile:      strings.TrimSpace(req.Mobile),
		Address:     s.content.PlainText(req.Address),
		Email:       normalizeEmail(req.Email),
		Description: s.content.PlainText(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Date:        time.Now(),
		Status:      models.EnquiryPending,
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
	if e.Name == "" || e.Mobile == "" || e.Description == "" {
		return nil, apperr.Validation("Name, mobile and description are required")
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("enquiry filed", "enquiry_id", e.ID)
	return e, nil
}

func (s *enquiryService) Search(ctx context.Context, email, mobile string) ([]models.Enquiry, error) {
	email = normalizeEmail(email)
	mobile = strings.TrimSpace(mobile)
	if email == "" && mobile == "" {
		return nil, apperr.Validation("Email or mobile is required")
	}
	rows, _, err := s.repo.List(ctx, &models.EnquiryFilter{Email: email, Mobile: mobile, Limit: 100})
	return rows, err
}

func (s *enquiryService) List(ctx context.Context, caller *access.Caller, filter *models.EnquiryFilter) ([]models.Enquiry, int64, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter)
}

func (s *enquiryService) Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Enquiry, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *enquiryService) UpdateStatus(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.EnquiryStatusRequest) (*models.Enquiry, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}
	switch req.Status {
	case models.EnquiryPending, models.EnquiryInProgress, models.EnquiryResolved, models.EnquiryClosed:
	default:
		return nil, apperr.Validation("Invalid status provided")
	}

	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Status = req.Status
	if resp := s.content.PlainText(req.Response); resp != "" {
		e.Response = resp
	}
	e.HandledByID = &caller.UserID

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("enquiry updated", "enquiry_id", e.ID, "status", e.Status, "actor_id", caller.UserID)
	return e, nil
}
