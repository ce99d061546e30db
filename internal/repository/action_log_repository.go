package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/models"
)

type ActionLogRepository interface {
	Create(ctx context.Context, log *models.ActionLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ActionLog, error)
	List(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error)
	DeleteOlderThan(ctx context.Context, date time.Time) (int64, error)
}

type actionLogRepository struct {
	db *gorm.DB
}

func NewActionLogRepository(db *gorm.DB) ActionLogRepository {
	return &actionLogRepository{db: db}
}

func (r *actionLogRepository) Create(ctx context.Context, entry *models.ActionLog) error {
	return conn(ctx, r.db).Omit("User").Create(entry).Error
}

func (r *actionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ActionLog, error) {
	var entry models.ActionLog
	if err := conn(ctx, r.db).Preload("User").First(&entry, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Action log not found")
	}
	return &entry, nil
}

func (r *actionLogRepository) List(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error) {
	scope := actionLogFilter(filter)

	var total int64
	if err := conn(ctx, r.db).Model(&models.ActionLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.ActionLog
	offset := paginate(&filter.Page, &filter.Limit)
	if err := conn(ctx, r.db).Scopes(scope).Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// actionLogFilter narrows the audit trail. Empty fields match everything.
func actionLogFilter(f *models.ActionLogFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.UserID != nil {
			db = db.Where("user_id = ?", *f.UserID)
		}
		for column, value := range map[string]string{
			"action":      f.Action,
			"module":      f.Module,
			"status":      f.Status,
			"resource_id": f.ResourceID,
		} {
			if value != "" {
				db = db.Where(column+" = ?", value)
			}
		}
		return createdBetween(f.StartDate, f.EndDate)(db)
	}
}

func createdBetween(from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}

// DeleteOlderThan trims the trail for the retention job.
func (r *actionLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := conn(ctx, r.db).Where("created_at < ?", cutoff).Delete(&models.ActionLog{})
	return res.RowsAffected, res.Error
}
