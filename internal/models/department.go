package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Department is a triage target. Complaints are auto-routed to the department
// that owns their category string.
type Department struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key" json:"id"`
	Name         string               `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description  string               `gorm:"size:500" json:"description"`
	ContactEmail string               `gorm:"size:255" json:"contact_email"`
	ContactPhone string               `gorm:"size:20" json:"contact_phone"`
	Categories   []DepartmentCategory `gorm:"foreignKey:DepartmentID" json:"-"`
	Staff        []User               `gorm:"foreignKey:DepartmentID" json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (d *Department) CategoryNames() []string {
	names := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// DepartmentCategory owns one routing category. The unique index on Name keeps
// a category from belonging to two departments.
type DepartmentCategory struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DepartmentID uuid.UUID `gorm:"type:uuid;index;not null" json:"department_id"`
	Name         string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (c *DepartmentCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type DepartmentCreateRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=100"`
	Description  string   `json:"description" validate:"required,max=500"`
	Categories   []string `json:"categories" validate:"required,min=1,dive,required,max=100"`
	ContactEmail string   `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string   `json:"contact_phone" validate:"omitempty,max=20"`
}

type DepartmentUpdateRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
	Categories   []string `json:"categories" validate:"omitempty,dive,required,max=100"`
	ContactEmail *string  `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string  `json:"contact_phone" validate:"omitempty,max=20"`
}

type AssignStaffRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type DepartmentSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type DepartmentResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Categories   []string       `json:"categories"`
	ContactEmail string         `json:"contact_email"`
	ContactPhone string         `json:"contact_phone"`
	Staff        []UserResponse `json:"staff,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func ToDepartmentResponse(d *Department) DepartmentResponse {
	resp := DepartmentResponse{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Categories:   d.CategoryNames(),
		ContactEmail: d.ContactEmail,
		ContactPhone: d.ContactPhone,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	for i := range d.Staff {
		resp.Staff = append(resp.Staff, ToUserResponse(&d.Staff[i]))
	}
	return resp
}
