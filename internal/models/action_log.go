package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActionLog is the audit trail of mutating API requests.
type ActionLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role       Role      `gorm:"size:20" json:"role"`
	Action     string    `gorm:"size:50;index;not null" json:"action"` // create, update, delete, assign, comment, feedback
	Module     string    `gorm:"size:50;index;not null" json:"module"` // complaints, departments, users, ...
	ResourceID string    `gorm:"size:36;index" json:"resource_id"`
	Method     string    `gorm:"size:10" json:"method"`
	Path       string    `gorm:"size:500" json:"path"`
	StatusCode int       `json:"status_code"`
	Status     string    `gorm:"size:20" json:"status"` // success, failed
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	UserAgent  string    `gorm:"size:500" json:"user_agent"`
	Duration   int64     `json:"duration"` // milliseconds
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *ActionLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type ActionLogFilter struct {
	UserID     *uuid.UUID
	Action     string
	Module     string
	Status     string
	ResourceID string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	Limit      int
}

type ActionLogResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	User       *ActorResponse `json:"user,omitempty"`
	Role       Role           `json:"role"`
	Action     string         `json:"action"`
	Module     string         `json:"module"`
	ResourceID string         `json:"resource_id"`
	Method     string         `json:"method"`
	Path       string         `json:"path"`
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	IPAddress  string         `json:"ip_address"`
	Duration   int64          `json:"duration"`
	CreatedAt  time.Time      `json:"created_at"`
}

func ToActionLogResponse(log *ActionLog) ActionLogResponse {
	return ActionLogResponse{
		ID:         log.ID,
		UserID:     log.UserID,
		User:       toActor(log.User),
		Role:       log.Role,
		Action:     log.Action,
		Module:     log.Module,
		ResourceID: log.ResourceID,
		Method:     log.Method,
		Path:       log.Path,
		StatusCode: log.StatusCode,
		Status:     log.Status,
		IPAddress:  log.IPAddress,
		Duration:   log.Duration,
		CreatedAt:  log.CreatedAt,
	}
}
