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

type AnnouncementService interface {
	Create(ctx context.Context, caller *access.Caller, req *models.AnnouncementCreateRequest) (*models.Announcement, error)
	List(ctx context.Context, caller *access.Caller) ([]models.Announcement, error)
	Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Announcement, error)
	Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AnnouncementUpdateRequest) (*models.Announcement, error)
	Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error
	ArchiveExpired(ctx context.Context) (int64, error)
}

type announcementService struct {
	tx            repository.Transactor
	announcements repository.AnnouncementRepository
	departments   repository.DepartmentRepository
	outbox        repository.OutboxRepository
	signal        EventSignaler
	content       *ContentPolicy
	now           func() time.Time
	log           *slog.Logger
}

func NewAnnouncementService(
	tx repository.Transactor,
	announcements repository.AnnouncementRepository,
	departments repository.DepartmentRepository,
	outbox repository.OutboxRepository,
	signal EventSignaler,
	content *ContentPolicy,
) AnnouncementService {
	return &announcementService{
		tx:            tx,
		announcements: announcements,
		departments:   departments,
		outbox:        outbox,
		signal:        signal,
		content:       content,
		now:           time.Now,
		log:           logger.WithComponent("announcements"),
	}
}

// scopeFor maps a caller to the visibilities it may read. Anonymous callers
// and citizens see public announcements only.
func scopeFor(caller *access.Caller) models.AnnouncementScope {
	switch {
	case caller.IsAdmin():
		return models.AnnouncementScope{All: true}
	case caller.Is(models.RoleDepartment):
		return models.AnnouncementScope{DepartmentID: caller.DepartmentID}
	}
	return models.AnnouncementScope{}
}

func canManage(caller *access.Caller, a *models.Announcement) bool {
	return caller.IsAdmin() || caller.BelongsTo(a.DepartmentID)
}

func visibleTo(caller *access.Caller, a *models.Announcement) bool {
	if canManage(caller, a) {
		return true
	}
	return a.Visibility == models.VisibilityPublic
}

func (s *announcementService) Create(ctx context.Context, caller *access.Caller, req *models.AnnouncementCreateRequest) (*models.Announcement, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}

	a := &models.Announcement{
		Title:      s.content.PlainText(req.Title),
		Content:    strings.TrimSpace(req.Content),
		AuthorID:   caller.UserID,
		Visibility: req.Visibility,
		Status:     models.AnnouncementActive,
		Priority:   req.Priority,
		ExpiryDate: req.ExpiryDate,
	}
	if a.Title == "" || a.Content == "" {
		return nil, apperr.Validation("Title and content are required")
	}
	if a.Visibility == "" {
		a.Visibility = models.VisibilityPublic
	}
	if a.Priority == "" {
		a.Priority = models.AnnouncementPriorityNormal
	}
	a.PublishDate = s.now()
	if req.PublishDate != nil {
		a.PublishDate = *req.PublishDate
	}
	if a.ExpiryDate != nil && !a.ExpiryDate.After(a.PublishDate) {
		return nil, apperr.Validation("Expiry date must be after the publish date")
	}

	switch {
	case caller.Is(models.RoleDepartment):
		if caller.DepartmentID == nil {
			return nil, apperr.Forbidden("No department assigned to this account")
		}
		a.DepartmentID = *caller.DepartmentID
	case req.DepartmentID == nil:
		return nil, apperr.Validation("Department ID is required")
	default:
		if _, err := s.departments.FindByID(ctx, *req.DepartmentID); err != nil {
			return nil, err
		}
		a.DepartmentID = *req.DepartmentID
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.announcements.Create(ctx, a); err != nil {
			return err
		}
		if a.Visibility != models.VisibilityPublic {
			return nil
		}
		return s.outbox.Enqueue(ctx, models.NewOutboxEvent(models.EventAnnouncement, a.ID, nil, caller.UserID, caller.Role))
	})
	if err != nil {
		return nil, err
	}
	if a.Visibility == models.VisibilityPublic && s.signal != nil {
		s.signal.Kick()
	}

	s.log.Info("announcement created", "announcement_id", a.ID, "visibility", a.Visibility, "department_id", a.DepartmentID)
	return s.announcements.FindByID(ctx, a.ID)
}

func (s *announcementService) List(ctx context.Context, caller *access.Caller) ([]models.Announcement, error) {
	return s.announcements.ListActive(ctx, scopeFor(caller), s.now())
}

// Get hides announcements the caller may not read behind NotFound.
func (s *announcementService) Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Announcement, error) {
	a, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(caller, a) {
		return nil, apperr.NotFound("Announcement not found")
	}
	if !canManage(caller, a) && (a.Status != models.AnnouncementActive || a.IsExpired(s.now()) || a.PublishDate.After(s.now())) {
		return nil, apperr.NotFound("Announcement not found")
	}
	return a, nil
}

func (s *announcementService) Update(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AnnouncementUpdateRequest) (*models.Announcement, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}
	a, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, a) {
		return nil, apperr.Forbidden("You can only manage your department's announcements")
	}

	if req.Title != nil {
		a.Title = s.content.PlainText(*req.Title)
	}
	if req.Content != nil {
		a.Content = strings.TrimSpace(*req.Content)
	}
	if a.Title == "" || a.Content == "" {
		return nil, apperr.Validation("Title and content are required")
	}
	if req.Visibility != nil {
		a.Visibility = *req.Visibility
	}
	if req.Priority != nil {
		a.Priority = *req.Priority
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
	if req.PublishDate != nil {
		a.PublishDate = *req.PublishDate
	}
	if req.ExpiryDate != nil {
		a.ExpiryDate = req.ExpiryDate
	}
	if a.ExpiryDate != nil && !a.ExpiryDate.After(a.PublishDate) {
		return nil, apperr.Validation("Expiry date must be after the publish date")
	}
	a.Department = nil
	a.Author = nil

	if err := s.announcements.Update(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("announcement updated", "announcement_id", a.ID, "actor_id", caller.UserID)
	return s.announcements.FindByID(ctx, a.ID)
}

func (s *announcementService) Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return err
	}
	a, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(caller, a) {
		return apperr.Forbidden("You can only manage your department's announcements")
	}
	if err := s.announcements.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("announcement deleted", "announcement_id", id, "actor_id", caller.UserID)
	return nil
}

func (s *announcementService) ArchiveExpired(ctx context.Context) (int64, error) {
	n, err := s.announcements.ArchiveExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired announcements archived", "count", n)
	}
	return n, nil
}
