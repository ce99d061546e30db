package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleAdmin      Role = "admin"
	RoleDepartment Role = "department"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleDepartment:
		return true
	}
	return false
}

// Label is the actor label used in notification text.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RoleDepartment:
		return "Department"
	default:
		return "Citizen"
	}
}

// PreferenceTopic selects the per-type toggle of a channel.
type PreferenceTopic string

const (
	TopicStatusUpdates PreferenceTopic = "status_updates"
	TopicAnnouncements PreferenceTopic = "announcements"
	TopicComments      PreferenceTopic = "comments"
)

type ChannelPreferences struct {
	Enabled       bool `json:"enabled"`
	StatusUpdates bool `json:"status_updates"`
	Announcements bool `json:"announcements"`
	Comments      bool `json:"comments"`
}

// Allows reports whether the channel is on and the topic toggle is set.
func (p ChannelPreferences) Allows(topic PreferenceTopic) bool {
	if !p.Enabled {
		return false
	}
	switch topic {
	case TopicStatusUpdates:
		return p.StatusUpdates
	case TopicAnnouncements:
		return p.Announcements
	case TopicComments:
		return p.Comments
	}
	return true
}

type NotificationPreferences struct {
	InApp ChannelPreferences `gorm:"embedded;embeddedPrefix:in_app_" json:"in_app"`
	Email ChannelPreferences `gorm:"embedded;embeddedPrefix:email_" json:"email"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	all := ChannelPreferences{Enabled: true, StatusUpdates: true, Announcements: true, Comments: true}
	return NotificationPreferences{InApp: all, Email: all}
}

// User preference booleans carry no gorm default tag: gorm skips zero values
// for columns with a default, which would turn an explicit false into true.
type User struct {
	ID                      uuid.UUID               `gorm:"type:uuid;primary_key" json:"id"`
	Name                    string                  `gorm:"size:100;not null" json:"name"`
	Email                   string                  `gorm:"uniqueIndex;not null" json:"email"`
	Password                string                  `gorm:"not null" json:"-"`
	Mobile                  string                  `gorm:"size:20" json:"mobile"`
	Address                 string                  `gorm:"size:500" json:"address"`
	Role                    Role                    `gorm:"size:20;index;not null" json:"role"`
	DepartmentID            *uuid.UUID              `gorm:"type:uuid;index" json:"department_id"`
	Department              *Department             `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	NotificationPreferences NotificationPreferences `gorm:"embedded;embeddedPrefix:pref_" json:"notification_preferences"`
	LastLoginAt             *time.Time              `json:"last_login_at"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsStaffOf reports whether u is department staff of departmentID.
func (u *User) IsStaffOf(departmentID uuid.UUID) bool {
	return u.Role == RoleDepartment && u.DepartmentID != nil && *u.DepartmentID == departmentID
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Mobile   string `json:"mobile" validate:"omitempty,max=20"`
	Address  string `json:"address" validate:"max=500"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserCreateRequest is used by admins.
type UserCreateRequest struct {
	Name         string     `json:"name" validate:"required,min=2,max=100"`
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,min=6"`
	Mobile       string     `json:"mobile" validate:"omitempty,max=20"`
	Address      string     `json:"address" validate:"max=500"`
	Role         Role       `json:"role" validate:"required,oneof=citizen admin department"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

type UserUpdateRequest struct {
	Name         *string    `json:"name" validate:"omitempty,min=2,max=100"`
	Mobile       *string    `json:"mobile" validate:"omitempty,max=20"`
	Address      *string    `json:"address" validate:"omitempty,max=500"`
	Password     *string    `json:"password" validate:"omitempty,min=6"`
	Role         *Role      `json:"role" validate:"omitempty,oneof=citizen admin department"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

// ChannelPreferencesPatch updates only the fields that are present.
type ChannelPreferencesPatch struct {
	Enabled       *bool `json:"enabled"`
	StatusUpdates *bool `json:"status_updates"`
	Announcements *bool `json:"announcements"`
	Comments      *bool `json:"comments"`
}

func (p *ChannelPreferencesPatch) ApplyTo(c *ChannelPreferences) {
	if p == nil {
		return
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.StatusUpdates != nil {
		c.StatusUpdates = *p.StatusUpdates
	}
	if p.Announcements != nil {
		c.Announcements = *p.Announcements
	}
	if p.Comments != nil {
		c.Comments = *p.Comments
	}
}

type PreferencesUpdateRequest struct {
	InApp *ChannelPreferencesPatch `json:"in_app"`
	Email *ChannelPreferencesPatch `json:"email"`
}

// ToggleEmailRequest sets the e-mail master switch. A nil Enabled flips it.
type ToggleEmailRequest struct {
	Enabled *bool `json:"enabled"`
}

type UserResponse struct {
	ID                      uuid.UUID               `json:"id"`
	Name                    string                  `json:"name"`
	Email                   string                  `json:"email"`
	Mobile                  string                  `json:"mobile"`
	Address                 string                  `json:"address"`
	Role                    Role                    `json:"role"`
	DepartmentID            *uuid.UUID              `json:"department_id,omitempty"`
	Department              *DepartmentSummary      `json:"department,omitempty"`
	NotificationPreferences NotificationPreferences `json:"notification_preferences"`
	LastLoginAt             *time.Time              `json:"last_login_at,omitempty"`
	CreatedAt               time.Time               `json:"created_at"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func ToUserResponse(u *User) UserResponse {
	resp := UserResponse{
		ID:                      u.ID,
		Name:                    u.Name,
		Email:                   u.Email,
		Mobile:                  u.Mobile,
		Address:                 u.Address,
		Role:                    u.Role,
		DepartmentID:            u.DepartmentID,
		NotificationPreferences: u.NotificationPreferences,
		LastLoginAt:             u.LastLoginAt,
		CreatedAt:               u.CreatedAt,
	}
	if u.Department != nil {
		resp.Department = &DepartmentSummary{ID: u.Department.ID, Name: u.Department.Name}
	}
	return resp
}

type UserFilter struct {
	Role         *Role
	DepartmentID *uuid.UUID
	Search       string
	Page         int
	Limit        int
}
