package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/models"
)

type EnquiryRepository interface {
	Create(ctx context.Context, e *models.Enquiry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Enquiry, error)
	List(ctx context.Context, filter *models.EnquiryFilter) ([]models.Enquiry, int64, error)
	Update(ctx context.Context, e *models.Enquiry) error
}

type enquiryRepository struct {
	db *gorm.DB
}

func NewEnquiryRepository(db *gorm.DB) EnquiryRepository {
	return &enquiryRepository{db: db}
}

func (r *enquiryRepository) Create(ctx context.Context, e *models.Enquiry) error {
	return conn(ctx, r.db).Create(e).Error
}

func (r *enquiryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Enquiry, error) {
	var e models.Enquiry
	if err := conn(ctx, r.db).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Enquiry not found")
	}
	return &e, nil
}

func (r *enquiryRepository) List(ctx context.Context, filter *models.EnquiryFilter) ([]models.Enquiry, int64, error) {
	var rows []models.Enquiry
	var total int64

	query := conn(ctx, r.db).Model(&models.Enquiry{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Email != "" {
		query = query.Where("email = ?", filter.Email)
	}
	if filter.Mobile != "" {
		query = query.Where("mobile = ?", filter.Mobile)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := paginate(&filter.Page, &filter.Limit)
	err := query.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *enquiryRepository) Update(ctx context.Context, e *models.Enquiry) error {
	return conn(ctx, r.db).Save(e).Error
}
