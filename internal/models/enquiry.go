package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnquiryStatus string

const (
	EnquiryPending    EnquiryStatus = "pending"
	EnquiryInProgress EnquiryStatus = "in-progress"
	EnquiryResolved   EnquiryStatus = "resolved"
	EnquiryClosed     EnquiryStatus = "closed"
)

// Enquiry is an anonymous question filed without an account.
type Enquiry struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	Name        string        `gorm:"size:100;not null" json:"name"`
	Mobile      string        `gorm:"size:20;index;not null" json:"mobile"`
	Address     string        `gorm:"size:500" json:"address"`
	Email       string        `gorm:"size:255;index" json:"email"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Category    string        `gorm:"size:100" json:"category"`
	Date        time.Time     `json:"date"`
	Status      EnquiryStatus `gorm:"size:20;index;not null" json:"status"`
	Response    string        `gorm:"type:text" json:"response,omitempty"`
	HandledByID *uuid.UUID    `gorm:"type:uuid" json:"handled_by_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (e *Enquiry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type EnquiryCreateRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Mobile      string     `json:"mobile" validate:"required,max=20"`
	Address     string     `json:"address" validate:"max=500"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Description string     `json:"description" validate:"required"`
	Category    string     `json:"category" validate:"max=100"`
	Date        *time.Time `json:"date"`
}

type EnquiryStatusRequest struct {
	Status   EnquiryStatus `json:"status" validate:"required,oneof=pending in-progress resolved closed"`
	Response string        `json:"response"`
}

type EnquiryFilter struct {
	Status *EnquiryStatus
	Email  string
	Mobile string
	Page   int
	Limit  int
}
