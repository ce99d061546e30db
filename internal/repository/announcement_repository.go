package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
)

const announcementNotFound = "Announcement not found"

type AnnouncementRepository interface {
	Create(ctx context.Context, a *models.Announcement) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
	// ListActive returns published, unexpired, active announcements visible
	// within scope, highest priority first.
	ListActive(ctx context.Context, scope models.AnnouncementScope, now time.Time) ([]models.Announcement, error)
	Update(ctx context.Context, a *models.Announcement) error
	Delete(ctx context.Context, id uuid.UUID) error
	ArchiveExpired(ctx context.Context, now time.Time) (int64, error)
	ClaimNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type announcementRepository struct {
	db *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) Create(ctx context.Context, a *models.Announcement) error {
	return conn(ctx, r.db).Omit("Department", "Author").Create(a).Error
}

func (r *announcementRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	var a models.Announcement
	err := conn(ctx, r.db).
		Preload("Department").
		Preload("Author").
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, announcementNotFound)
	}
	return &a, nil
}

func (r *announcementRepository) ListActive(ctx context.Context, scope models.AnnouncementScope, now time.Time) ([]models.Announcement, error) {
	var rows []models.Announcement

	query := conn(ctx, r.db).
		Where("status = ?", models.AnnouncementActive).
		Where("publish_date <= ?", now).
		Where("expiry_date IS NULL OR expiry_date > ?", now)

	if !scope.All {
		if scope.DepartmentID != nil {
			query = query.Where("visibility = ? OR (visibility = ? AND department_id = ?)",
				models.VisibilityPublic, models.VisibilityDepartmentOnly, *scope.DepartmentID)
		} else {
			query = query.Where("visibility = ?", models.VisibilityPublic)
		}
	}

	err := query.
		Preload("Department").
		Preload("Author").
		Order("priority_rank DESC").
		Order("publish_date DESC").
		Find(&rows).Error
	return rows, err
}

func (r *announcementRepository) Update(ctx context.Context, a *models.Announcement) error {
	return conn(ctx, r.db).Omit("Department", "Author").Save(a).Error
}

func (r *announcementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Delete(&models.Announcement{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(announcementNotFound)
	}
	return nil
}

func (r *announcementRepository) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	res := conn(ctx, r.db).Model(&models.Announcement{}).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", models.AnnouncementActive, now).
		Update("status", models.AnnouncementArchived)
	return res.RowsAffected, res.Error
}

func (r *announcementRepository) ClaimNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return claim(conn(ctx, r.db).Model(&models.Announcement{}), "notified_at", id, at)
}
