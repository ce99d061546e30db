package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnnouncementVisibility string

const (
	VisibilityPublic         AnnouncementVisibility = "public"
	VisibilityDepartmentOnly AnnouncementVisibility = "department-only"
	VisibilityAdminOnly      AnnouncementVisibility = "admin-only"
)

type AnnouncementStatus string

const (
	AnnouncementActive   AnnouncementStatus = "active"
	AnnouncementArchived AnnouncementStatus = "archived"
)

type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "low"
	AnnouncementPriorityNormal AnnouncementPriority = "normal"
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
	AnnouncementPriorityUrgent AnnouncementPriority = "urgent"
)

// Rank orders priorities for listing, highest first.
func (p AnnouncementPriority) Rank() int {
	switch p {
	case AnnouncementPriorityUrgent:
		return 3
	case AnnouncementPriorityHigh:
		return 2
	case AnnouncementPriorityNormal:
		return 1
	}
	return 0
}

type Announcement struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	Title        string                 `gorm:"size:255;not null" json:"title"`
	Content      string                 `gorm:"type:text;not null" json:"content"`
	DepartmentID uuid.UUID              `gorm:"type:uuid;index;not null" json:"department_id"`
	Department   *Department            `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AuthorID     uuid.UUID              `gorm:"type:uuid;not null" json:"author_id"`
	Author       *User                  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Visibility   AnnouncementVisibility `gorm:"size:20;index;not null" json:"visibility"`
	Status       AnnouncementStatus     `gorm:"size:20;index;not null" json:"status"`
	Priority     AnnouncementPriority   `gorm:"size:20;not null" json:"priority"`
	PriorityRank int                    `gorm:"index" json:"-"`
	PublishDate  time.Time              `gorm:"index" json:"publish_date"`
	ExpiryDate   *time.Time             `gorm:"index" json:"expiry_date"`
	NotifiedAt   *time.Time             `json:"-"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (a *Announcement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Announcement) BeforeSave(tx *gorm.DB) error {
	a.PriorityRank = a.Priority.Rank()
	return nil
}

func (a *Announcement) IsExpired(now time.Time) bool {
	return a.ExpiryDate != nil && !a.ExpiryDate.After(now)
}

type AnnouncementCreateRequest struct {
	Title        string                 `json:"title" validate:"required,max=255"`
	Content      string                 `json:"content" validate:"required"`
	DepartmentID *uuid.UUID             `json:"department_id"`
	Visibility   AnnouncementVisibility `json:"visibility" validate:"omitempty,oneof=public department-only admin-only"`
	Priority     AnnouncementPriority   `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	PublishDate  *time.Time             `json:"publish_date"`
	ExpiryDate   *time.Time             `json:"expiry_date"`
}

type AnnouncementUpdateRequest struct {
	Title       *string                 `json:"title" validate:"omitempty,max=255"`
	Content     *string                 `json:"content"`
	Visibility  *AnnouncementVisibility `json:"visibility" validate:"omitempty,oneof=public department-only admin-only"`
	Priority    *AnnouncementPriority   `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Status      *AnnouncementStatus     `json:"status" validate:"omitempty,oneof=active archived"`
	PublishDate *time.Time              `json:"publish_date"`
	ExpiryDate  *time.Time              `json:"expiry_date"`
}

// AnnouncementScope selects which visibilities a listing may include.
type AnnouncementScope struct {
	All          bool
	DepartmentID *uuid.UUID
}

type AnnouncementResponse struct {
	ID          uuid.UUID              `json:"id"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	Department  *DepartmentSummary     `json:"department,omitempty"`
	AuthorID    uuid.UUID              `json:"author_id"`
	AuthorName  string                 `json:"author_name,omitempty"`
	Visibility  AnnouncementVisibility `json:"visibility"`
	Status      AnnouncementStatus     `json:"status"`
	Priority    AnnouncementPriority   `json:"priority"`
	PublishDate time.Time              `json:"publish_date"`
	ExpiryDate  *time.Time             `json:"expiry_date,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func ToAnnouncementResponse(a *Announcement) AnnouncementResponse {
	resp := AnnouncementResponse{
		ID:          a.ID,
		Title:       a.Title,
		Content:     a.Content,
		AuthorID:    a.AuthorID,
		Visibility:  a.Visibility,
		Status:      a.Status,
		Priority:    a.Priority,
		PublishDate: a.PublishDate,
		ExpiryDate:  a.ExpiryDate,
		CreatedAt:   a.CreatedAt,
	}
	if a.Department != nil {
		resp.Department = &DepartmentSummary{ID: a.Department.ID, Name: a.Department.Name}
	}
	if a.Author != nil {
		resp.AuthorName = a.Author.Name
	}
	return resp
}
