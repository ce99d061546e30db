package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/models"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *models.OutboxEvent) error
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error)
	MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkRetry records a failed attempt; status becomes failed once
	// giveUp is set.
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastErr string, next time.Time, giveUp bool) error
	CountByStatus(ctx context.Context, status models.OutboxStatus) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	return conn(ctx, r.db).Create(event).Error
}

func (r *outboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := conn(ctx, r.db).
		Where("status = ? AND next_attempt_at <= ?", models.OutboxPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepository) MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error {
	return conn(ctx, r.db).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.OutboxDone,
			"processed_at": at,
		}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, lastErr string, next time.Time, giveUp bool) error {
	status := models.OutboxPending
	if giveUp {
		status = models.OutboxFailed
	}
	return conn(ctx, r.db).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"attempts":        attempts,
			"last_error":      lastErr,
			"next_attempt_at": next,
		}).Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status models.OutboxStatus) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.OutboxEvent{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
