package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeComplaint    NotificationType = "complaint"
	NotificationTypeAnnouncement NotificationType = "announcement"
	NotificationTypeFeedback     NotificationType = "feedback"
	NotificationTypeSystem       NotificationType = "system"
	NotificationTypeStatusUpdate NotificationType = "status-update"
)

// RelatedKind discriminates the entity a notification points at.
type RelatedKind string

const (
	RelatedNone         RelatedKind = ""
	RelatedComplaint    RelatedKind = "complaint"
	RelatedAnnouncement RelatedKind = "announcement"
)

type RelatedEntity struct {
	Kind RelatedKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

func ComplaintRef(id uuid.UUID) *RelatedEntity {
	return &RelatedEntity{Kind: RelatedComplaint, ID: id}
}

func AnnouncementRef(id uuid.UUID) *RelatedEntity {
	return &RelatedEntity{Kind: RelatedAnnouncement, ID: id}
}

type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID      uuid.UUID        `gorm:"type:uuid;index:idx_notification_user_read;not null" json:"user_id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	Type        NotificationType `gorm:"size:20;not null" json:"type"`
	RelatedKind RelatedKind      `gorm:"size:20" json:"-"`
	RelatedID   *uuid.UUID       `gorm:"type:uuid" json:"-"`
	IsRead      bool             `gorm:"index:idx_notification_user_read;not null" json:"is_read"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// SetRelated stores ref into the discriminator and id columns.
func (n *Notification) SetRelated(ref *RelatedEntity) {
	if ref == nil {
		n.RelatedKind, n.RelatedID = RelatedNone, nil
		return
	}
	id := ref.ID
	n.RelatedKind, n.RelatedID = ref.Kind, &id
}

func (n *Notification) Related() *RelatedEntity {
	if n.RelatedKind == RelatedNone || n.RelatedID == nil {
		return nil
	}
	return &RelatedEntity{Kind: n.RelatedKind, ID: *n.RelatedID}
}

type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids" validate:"omitempty,dive,uuid"`
}

type NotificationResponse struct {
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Related   *RelatedEntity   `json:"related,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int64                  `json:"unread_count"`
}

func ToNotificationResponse(n *Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Related:   n.Related(),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
