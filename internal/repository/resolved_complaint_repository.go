package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/models"
)

type ResolvedComplaintRepository interface {
	Create(ctx context.Context, resolved *models.ResolvedComplaint) error
	ListByComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.ResolvedComplaint, error)
	List(ctx context.Context, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error)
	// MirrorFeedback copies feedback onto every archive row of the complaint
	// and reports how many rows were touched.
	MirrorFeedback(ctx context.Context, complaintID uuid.UUID, feedback models.CitizenFeedback) (int64, error)
}

type resolvedComplaintRepository struct {
	db *gorm.DB
}

func NewResolvedComplaintRepository(db *gorm.DB) ResolvedComplaintRepository {
	return &resolvedComplaintRepository{db: db}
}

func (r *resolvedComplaintRepository) Create(ctx context.Context, resolved *models.ResolvedComplaint) error {
	return conn(ctx, r.db).Create(resolved).Error
}

func (r *resolvedComplaintRepository) ListByComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.ResolvedComplaint, error) {
	var rows []models.ResolvedComplaint
	err := conn(ctx, r.db).
		Where("complaint_id = ?", complaintID).
		Order("resolved_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *resolvedComplaintRepository) List(ctx context.Context, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error) {
	var rows []models.ResolvedComplaint
	var total int64

	query := conn(ctx, r.db).Model(&models.ResolvedComplaint{})
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.ComplaintID != nil {
		query = query.Where("complaint_id = ?", *filter.ComplaintID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := paginate(&filter.Page, &filter.Limit)
	err := query.Order("resolved_at DESC").Offset(offset).Limit(filter.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *resolvedComplaintRepository) MirrorFeedback(ctx context.Context, complaintID uuid.UUID, feedback models.CitizenFeedback) (int64, error) {
	res := conn(ctx, r.db).Model(&models.ResolvedComplaint{}).
		Where("complaint_id = ?", complaintID).
		Updates(map[string]interface{}{
			"citizen_feedback_feedback":     feedback.Feedback,
			"citizen_feedback_rating":       feedback.Rating,
			"citizen_feedback_submitted_at": feedback.SubmittedAt,
		})
	return res.RowsAffected, res.Error
}
