package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/models"
)

type NotificationLogRepository interface {
	Create(ctx context.Context, log *models.NotificationLog) error
	ListByRecipient(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationLog, error)
}

type notificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Create(ctx context.Context, log *models.NotificationLog) error {
	return conn(ctx, r.db).Create(log).Error
}

func (r *notificationLogRepository) ListByRecipient(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationLog, error) {
	var logs []models.NotificationLog
	err := conn(ctx, r.db).
		Where("recipient_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
