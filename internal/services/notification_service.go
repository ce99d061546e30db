package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

const inboxLimit = 50

// NotificationService is the caller's in-app inbox.
type NotificationService interface {
	List(ctx context.Context, caller *access.Caller) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, caller *access.Caller, req *models.MarkReadRequest) (int64, error)
	UnreadCount(ctx context.Context, caller *access.Caller) (int64, error)
	Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// List returns the latest notifications and the unread total.
func (s *notificationService) List(ctx context.Context, caller *access.Caller) ([]models.Notification, int64, error) {
	if caller == nil {
		return nil, 0, apperr.Unauthorized("Authentication required")
	}
	rows, err := s.repo.ListForUser(ctx, caller.UserID, inboxLimit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, caller.UserID)
	if err != nil {
		return nil, 0, err
	}
	return rows, unread, nil
}

// MarkRead marks the listed notifications read, or all of them when the list
// is empty.
func (s *notificationService) MarkRead(ctx context.Context, caller *access.Caller, req *models.MarkReadRequest) (int64, error) {
	if caller == nil {
		return 0, apperr.Unauthorized("Authentication required")
	}
	ids := make([]uuid.UUID, 0, len(req.NotificationIDs))
	for _, raw := range req.NotificationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return 0, apperr.Validation("Invalid notification ID: " + raw)
		}
		ids = append(ids, id)
	}
	return s.repo.MarkRead(ctx, caller.UserID, ids)
}

func (s *notificationService) UnreadCount(ctx context.Context, caller *access.Caller) (int64, error) {
	if caller == nil {
		return 0, apperr.Unauthorized("Authentication required")
	}
	return s.repo.CountUnread(ctx, caller.UserID)
}

func (s *notificationService) Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error {
	if caller == nil {
		return apperr.Unauthorized("Authentication required")
	}
	return s.repo.Delete(ctx, caller.UserID, id)
}
