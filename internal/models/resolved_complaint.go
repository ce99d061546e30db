package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResolvedComplaint is a snapshot written each time a complaint transitions
// into resolved. It is never deleted with the original complaint.
type ResolvedComplaint struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"complaint_id"`
	UserID            uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Name              string          `gorm:"size:100" json:"name"`
	Category          string          `gorm:"size:100;index" json:"category"`
	Description       string          `gorm:"type:text" json:"description"`
	Date              time.Time       `json:"date"`
	DepartmentID      *uuid.UUID      `gorm:"type:uuid;index" json:"department_id"`
	AttachmentPaths   string          `gorm:"type:text" json:"attachment_paths,omitempty"` // JSON array of object paths
	ResolvedByID      uuid.UUID       `gorm:"type:uuid;not null" json:"resolved_by_id"`
	ResolvedAt        time.Time       `gorm:"index" json:"resolved_at"`
	ResolutionComment string          `gorm:"type:text" json:"resolution_comment"`
	Feedback          CitizenFeedback `gorm:"embedded;embeddedPrefix:citizen_feedback_" json:"citizen_feedback"`
	CreatedAt         time.Time       `json:"created_at"`
}

func (r *ResolvedComplaint) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type ResolvedComplaintFilter struct {
	DepartmentID *uuid.UUID
	ComplaintID  *uuid.UUID
	Page         int
	Limit        int
}
