package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "pending"
	ComplaintStatusInProgress ComplaintStatus = "in-progress"
	ComplaintStatusResolved   ComplaintStatus = "resolved"
	ComplaintStatusRejected   ComplaintStatus = "rejected"
)

func (s ComplaintStatus) IsValid() bool {
	switch s {
	case ComplaintStatusPending, ComplaintStatusInProgress, ComplaintStatusResolved, ComplaintStatusRejected:
		return true
	}
	return false
}

type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
	PriorityUrgent ComplaintPriority = "urgent"
)

const RegisteredMessage = "Complaint registered"

type Location struct {
	Address   string   `gorm:"size:500" json:"address"`
	City      string   `gorm:"size:100" json:"city"`
	State     string   `gorm:"size:100" json:"state"`
	ZipCode   string   `gorm:"size:20" json:"zip_code"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// CitizenFeedback is set when SubmittedAt is non-nil.
type CitizenFeedback struct {
	Feedback    string     `gorm:"type:text" json:"feedback"`
	Rating      int        `json:"rating"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

func (f CitizenFeedback) IsSet() bool { return f.SubmittedAt != nil }

// Complaint is the central entity. StatusUpdates and Comments are append-only;
// UpdateCount and CommentCount hold the position of the latest entry in each log.
type Complaint struct {
	ID           uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	User         *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name         string            `gorm:"size:100;not null" json:"name"`
	Mobile       string            `gorm:"size:20" json:"mobile"`
	Category     string            `gorm:"size:100;index;not null" json:"category"`
	Description  string            `gorm:"type:text;not null" json:"description"`
	Date         time.Time         `json:"date"`
	Status       ComplaintStatus   `gorm:"size:20;index;not null" json:"status"`
	Priority     ComplaintPriority `gorm:"size:20;not null" json:"priority"`
	DepartmentID *uuid.UUID        `gorm:"type:uuid;index" json:"department_id"`
	Department   *Department       `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Location     Location          `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Feedback     CitizenFeedback   `gorm:"embedded;embeddedPrefix:citizen_feedback_" json:"citizen_feedback"`

	UpdateCount  int `gorm:"not null" json:"-"`
	CommentCount int `gorm:"not null" json:"-"`
	// CreatedNotifiedAt is claimed once the new-complaint fan-out has run.
	CreatedNotifiedAt *time.Time `json:"-"`

	StatusUpdates []ComplaintStatusUpdate `gorm:"foreignKey:ComplaintID" json:"status_updates,omitempty"`
	Comments      []ComplaintComment      `gorm:"foreignKey:ComplaintID" json:"comments,omitempty"`
	Attachments   []ComplaintAttachment   `gorm:"foreignKey:ComplaintID" json:"attachments,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Complaint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TicketNumber is the short reference shown to citizens.
func (c *Complaint) TicketNumber() string {
	id := c.ID.String()
	return id[len(id)-8:]
}

func (c *Complaint) IsOwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}

type ComplaintStatusUpdate struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_status_update_position" json:"complaint_id"`
	Position    int             `gorm:"not null;uniqueIndex:idx_status_update_position" json:"position"`
	Status      ComplaintStatus `gorm:"size:20;not null" json:"status"`
	Message     string          `gorm:"type:text" json:"message"`
	UpdatedByID uuid.UUID       `gorm:"type:uuid;index;not null" json:"updated_by_id"`
	UpdatedBy   *User           `gorm:"foreignKey:UpdatedByID" json:"updated_by,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	NotifiedAt  *time.Time      `json:"-"`
}

func (u *ComplaintStatusUpdate) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type ComplaintComment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_comment_position" json:"complaint_id"`
	Position    int        `gorm:"not null;uniqueIndex:idx_comment_position" json:"position"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	PostedByID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"posted_by_id"`
	PostedBy    *User      `gorm:"foreignKey:PostedByID" json:"posted_by,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	NotifiedAt  *time.Time `json:"-"`
}

func (c *ComplaintComment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ComplaintAttachment struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ComplaintID  uuid.UUID `gorm:"type:uuid;index;not null" json:"complaint_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	FilePath     string    `gorm:"size:500;not null" json:"file_path"`
	MimeType     string    `gorm:"size:100" json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	UploadedByID uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (a *ComplaintAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type ComplaintCreateRequest struct {
	Name        string            `json:"name" validate:"required,max=100"`
	Mobile      string            `json:"mobile" validate:"omitempty,max=20"`
	Category    string            `json:"category" validate:"required,max=100"`
	Description string            `json:"description" validate:"required"`
	Date        *time.Time        `json:"date"`
	Priority    ComplaintPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Location    *Location         `json:"location"`
}

type StatusUpdateRequest struct {
	Status  string `json:"status"`
	Message string `json:"message" validate:"max=2000"`
}

type AssignDepartmentRequest struct {
	DepartmentID      string `json:"departmentId"`
	DepartmentIDAlias string `json:"department_id"`
}

// Department returns the requested department id, accepting either spelling.
func (r *AssignDepartmentRequest) Department() string {
	if id := strings.TrimSpace(r.DepartmentID); id != "" {
		return id
	}
	return strings.TrimSpace(r.DepartmentIDAlias)
}

type CommentRequest struct {
	Message string `json:"message" validate:"max=5000"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"max=5000"`
	Rating   *int   `json:"rating"`
}

// ComplaintFilter scopes a listing. UserID and DepartmentID scoping is applied
// by the service from the caller's role before reaching the repository.
type ComplaintFilter struct {
	UserID       *uuid.UUID
	DepartmentID *uuid.UUID
	Status       *ComplaintStatus
	Category     string
	Page         int
	Limit        int
}

type StatusUpdateResponse struct {
	ID        uuid.UUID       `json:"id"`
	Status    ComplaintStatus `json:"status"`
	Message   string          `json:"message"`
	UpdatedBy *ActorResponse  `json:"updated_by,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type CommentResponse struct {
	ID        uuid.UUID      `json:"id"`
	Text      string         `json:"text"`
	PostedBy  *ActorResponse `json:"posted_by,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type ActorResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

type AttachmentResponse struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ComplaintResponse struct {
	ID              uuid.UUID              `json:"id"`
	TicketNumber    string                 `json:"ticket_number"`
	UserID          uuid.UUID              `json:"user_id"`
	Name            string                 `json:"name"`
	Mobile          string                 `json:"mobile"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
	Date            time.Time              `json:"date"`
	Status          ComplaintStatus        `json:"status"`
	Priority        ComplaintPriority      `json:"priority"`
	DepartmentID    *uuid.UUID             `json:"department_id"`
	Department      *DepartmentSummary     `json:"department,omitempty"`
	Location        Location               `json:"location"`
	CitizenFeedback *CitizenFeedback       `json:"citizen_feedback,omitempty"`
	StatusUpdates   []StatusUpdateResponse `json:"status_updates"`
	Comments        []CommentResponse      `json:"comments"`
	Attachments     []AttachmentResponse   `json:"attachments"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func toActor(u *User) *ActorResponse {
	if u == nil {
		return nil
	}
	return &ActorResponse{ID: u.ID, Name: u.Name, Role: u.Role}
}

// ToComplaintResponse maps a complaint; urlFor may be nil when attachment
// links are not needed.
func ToComplaintResponse(c *Complaint, urlFor func(path string) string) ComplaintResponse {
	resp := ComplaintResponse{
		ID:            c.ID,
		TicketNumber:  c.TicketNumber(),
		UserID:        c.UserID,
		Name:          c.Name,
		Mobile:        c.Mobile,
		Category:      c.Category,
		Description:   c.Description,
		Date:          c.Date,
		Status:        c.Status,
		Priority:      c.Priority,
		DepartmentID:  c.DepartmentID,
		Location:      c.Location,
		StatusUpdates: make([]StatusUpdateResponse, 0, len(c.StatusUpdates)),
		Comments:      make([]CommentResponse, 0, len(c.Comments)),
		Attachments:   make([]AttachmentResponse, 0, len(c.Attachments)),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Department != nil {
		resp.Department = &DepartmentSummary{ID: c.Department.ID, Name: c.Department.Name}
	}
	if c.Feedback.IsSet() {
		fb := c.Feedback
		resp.CitizenFeedback = &fb
	}
	for i := range c.StatusUpdates {
		u := &c.StatusUpdates[i]
		resp.StatusUpdates = append(resp.StatusUpdates, StatusUpdateResponse{
			ID:        u.ID,
			Status:    u.Status,
			Message:   u.Message,
			UpdatedBy: toActor(u.UpdatedBy),
			Timestamp: u.Timestamp,
		})
	}
	for i := range c.Comments {
		cm := &c.Comments[i]
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        cm.ID,
			Text:      cm.Text,
			PostedBy:  toActor(cm.PostedBy),
			Timestamp: cm.Timestamp,
		})
	}
	for i := range c.Attachments {
		a := &c.Attachments[i]
		ar := AttachmentResponse{
			ID:        a.ID,
			FileName:  a.FileName,
			MimeType:  a.MimeType,
			FileSize:  a.FileSize,
			CreatedAt: a.CreatedAt,
		}
		if urlFor != nil {
			ar.URL = urlFor(a.FilePath)
		}
		resp.Attachments = append(resp.Attachments, ar)
	}
	return resp
}

// StatusChangedMessage is the default status update text.
func StatusChangedMessage(status ComplaintStatus) string {
	return fmt.Sprintf("Status changed to %s", status)
}

// FeedbackMessage formats the status update appended for citizen feedback.
// A zero rating is treated as absent.
func FeedbackMessage(feedback string, rating int) string {
	if rating > 0 {
		return fmt.Sprintf("Citizen Feedback: %s (Rating: %d/5)", feedback, rating)
	}
	return "Citizen Feedback: " + feedback
}
