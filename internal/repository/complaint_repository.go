package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
)

const complaintNotFound = "Complaint not found"

// ComplaintRepository persists complaints and their append-only logs. Every
// append runs in one transaction that bumps the log counter on the complaint
// row, so entries are numbered in the order they were accepted.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	List(ctx context.Context, filter *models.ComplaintFilter) ([]models.Complaint, int64, error)

	AppendStatusUpdate(ctx context.Context, id uuid.UUID, update *models.ComplaintStatusUpdate) error
	AppendComment(ctx context.Context, id uuid.UUID, comment *models.ComplaintComment, mirror *models.ComplaintStatusUpdate) error
	SetDepartment(ctx context.Context, id, departmentID uuid.UUID, update *models.ComplaintStatusUpdate) error
	SetFeedback(ctx context.Context, id uuid.UUID, feedback models.CitizenFeedback, update *models.ComplaintStatusUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateAttachment(ctx context.Context, attachment *models.ComplaintAttachment) error
	ListAttachments(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintAttachment, error)

	FindStatusUpdate(ctx context.Context, id uuid.UUID) (*models.ComplaintStatusUpdate, error)
	FindComment(ctx context.Context, id uuid.UUID) (*models.ComplaintComment, error)
	ClaimCreatedNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ClaimStatusUpdateNotification(ctx context.Context, updateID uuid.UUID, at time.Time) (bool, error)
	ClaimCommentNotification(ctx context.Context, commentID uuid.UUID, at time.Time) (bool, error)
}

type complaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) ComplaintRepository {
	return &complaintRepository{db: db}
}

// Create routes the complaint by category, then inserts it with status pending
// and the seed status update.
func (r *complaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.Name == "" || complaint.Category == "" || complaint.Description == "" {
		return apperr.Validation("Name, category and description are required")
	}

	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		departmentID, err := routeCategory(tx, complaint.Category)
		if err != nil {
			return err
		}

		now := time.Now()
		complaint.DepartmentID = departmentID
		complaint.Status = models.ComplaintStatusPending
		complaint.UpdateCount = 1
		if complaint.Date.IsZero() {
			complaint.Date = now
		}
		if complaint.Priority == "" {
			complaint.Priority = models.PriorityMedium
		}
		complaint.StatusUpdates = nil
		complaint.Comments = nil

		if err := tx.Omit("User", "Department", "Attachments").Create(complaint).Error; err != nil {
			return err
		}

		seed := models.ComplaintStatusUpdate{
			ComplaintID: complaint.ID,
			Position:    1,
			Status:      models.ComplaintStatusPending,
			Message:     models.RegisteredMessage,
			UpdatedByID: complaint.UserID,
			Timestamp:   now,
		}
		if err := tx.Omit("UpdatedBy").Create(&seed).Error; err != nil {
			return err
		}
		complaint.StatusUpdates = []models.ComplaintStatusUpdate{seed}
		return nil
	})
}

// routeCategory returns the department owning category when exactly one does.
func routeCategory(tx *gorm.DB, category string) (*uuid.UUID, error) {
	var matches []uuid.UUID
	err := tx.Model(&models.DepartmentCategory{}).
		Joins("JOIN departments ON departments.id = department_categories.department_id").
		Where("department_categories.name = ?", category).
		Order("departments.name ASC").
		Pluck("department_categories.department_id", &matches).Error
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, nil
	}
	return &matches[0], nil
}

func (r *complaintRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := conn(ctx, r.db).First(&complaint, "id = ?", id).Error; err != nil {
		return nil, notFound(err, complaintNotFound)
	}
	return &complaint, nil
}

func (r *complaintRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var complaint models.Complaint
	err := conn(ctx, r.db).
		Preload("User").
		Preload("Department").
		Preload("StatusUpdates", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("StatusUpdates.UpdatedBy").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Comments.PostedBy").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&complaint, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, complaintNotFound)
	}
	return &complaint, nil
}

func (r *complaintRepository) List(ctx context.Context, filter *models.ComplaintFilter) ([]models.Complaint, int64, error) {
	var complaints []models.Complaint
	var total int64

	query := conn(ctx, r.db).Model(&models.Complaint{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := paginate(&filter.Page, &filter.Limit)
	err := query.
		Preload("Department").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&complaints).Error
	if err != nil {
		return nil, 0, err
	}

	return complaints, total, nil
}

type logCounters struct {
	Status       models.ComplaintStatus
	UpdateCount  int
	CommentCount int
}

// bump applies fields to the complaint row, increments the requested log
// counters and returns the counters and status as seen inside tx.
func bump(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}, updates, comments bool) (*logCounters, error) {
	if updates {
		fields["update_count"] = gorm.Expr("update_count + 1")
	}
	if comments {
		fields["comment_count"] = gorm.Expr("comment_count + 1")
	}
	fields["updated_at"] = time.Now()

	res := tx.Model(&models.Complaint{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound(complaintNotFound)
	}

	var counters logCounters
	err := tx.Model(&models.Complaint{}).
		Select("status", "update_count", "comment_count").
		Where("id = ?", id).
		Take(&counters).Error
	if err != nil {
		return nil, err
	}
	return &counters, nil
}

func insertUpdate(tx *gorm.DB, id uuid.UUID, counters *logCounters, update *models.ComplaintStatusUpdate) error {
	update.ComplaintID = id
	update.Position = counters.UpdateCount
	update.Status = counters.Status
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	return tx.Omit("UpdatedBy").Create(update).Error
}

func (r *complaintRepository) AppendStatusUpdate(ctx context.Context, id uuid.UUID, update *models.ComplaintStatusUpdate) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		counters, err := bump(tx, id, map[string]interface{}{"status": update.Status}, true, false)
		if err != nil {
			return err
		}
		return insertUpdate(tx, id, counters, update)
	})
}

// AppendComment writes the comment and mirrors it into the status log with
// the current status.
func (r *complaintRepository) AppendComment(ctx context.Context, id uuid.UUID, comment *models.ComplaintComment, mirror *models.ComplaintStatusUpdate) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		counters, err := bump(tx, id, map[string]interface{}{}, true, true)
		if err != nil {
			return err
		}

		comment.ComplaintID = id
		comment.Position = counters.CommentCount
		if comment.Timestamp.IsZero() {
			comment.Timestamp = time.Now()
		}
		if err := tx.Omit("PostedBy").Create(comment).Error; err != nil {
			return err
		}

		return insertUpdate(tx, id, counters, mirror)
	})
}

func (r *complaintRepository) SetDepartment(ctx context.Context, id, departmentID uuid.UUID, update *models.ComplaintStatusUpdate) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		counters, err := bump(tx, id, map[string]interface{}{"department_id": departmentID}, true, false)
		if err != nil {
			return err
		}
		return insertUpdate(tx, id, counters, update)
	})
}

func (r *complaintRepository) SetFeedback(ctx context.Context, id uuid.UUID, feedback models.CitizenFeedback, update *models.ComplaintStatusUpdate) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{
			"citizen_feedback_feedback":     feedback.Feedback,
			"citizen_feedback_rating":       feedback.Rating,
			"citizen_feedback_submitted_at": feedback.SubmittedAt,
		}
		counters, err := bump(tx, id, fields, true, false)
		if err != nil {
			return err
		}
		return insertUpdate(tx, id, counters, update)
	})
}

// Delete removes the complaint and its logs. Archive rows are kept.
func (r *complaintRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Complaint{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(complaintNotFound)
		}
		for _, child := range []interface{}{
			&models.ComplaintStatusUpdate{},
			&models.ComplaintComment{},
			&models.ComplaintAttachment{},
		} {
			if err := tx.Where("complaint_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *complaintRepository) CreateAttachment(ctx context.Context, attachment *models.ComplaintAttachment) error {
	return conn(ctx, r.db).Create(attachment).Error
}

func (r *complaintRepository) ListAttachments(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintAttachment, error) {
	var attachments []models.ComplaintAttachment
	err := conn(ctx, r.db).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

func (r *complaintRepository) FindStatusUpdate(ctx context.Context, id uuid.UUID) (*models.ComplaintStatusUpdate, error) {
	var update models.ComplaintStatusUpdate
	if err := conn(ctx, r.db).First(&update, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Status update not found")
	}
	return &update, nil
}

func (r *complaintRepository) FindComment(ctx context.Context, id uuid.UUID) (*models.ComplaintComment, error) {
	var comment models.ComplaintComment
	if err := conn(ctx, r.db).First(&comment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Comment not found")
	}
	return &comment, nil
}

// The Claim methods mark an entry as notified. Only the first caller for an
// entry gets true.

func (r *complaintRepository) ClaimCreatedNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return claim(conn(ctx, r.db).Model(&models.Complaint{}), "created_notified_at", id, at)
}

func (r *complaintRepository) ClaimStatusUpdateNotification(ctx context.Context, updateID uuid.UUID, at time.Time) (bool, error) {
	return claim(conn(ctx, r.db).Model(&models.ComplaintStatusUpdate{}), "notified_at", updateID, at)
}

func (r *complaintRepository) ClaimCommentNotification(ctx context.Context, commentID uuid.UUID, at time.Time) (bool, error) {
	return claim(conn(ctx, r.db).Model(&models.ComplaintComment{}), "notified_at", commentID, at)
}

func claim(q *gorm.DB, column string, id uuid.UUID, at time.Time) (bool, error) {
	res := q.Where("id = ? AND "+column+" IS NULL", id).UpdateColumn(column, at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
