package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/internal/storage"
)

const (
	MaxAttachmentSize = 10 << 20
	maxAttachments    = 5
)

var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// AttachmentStore is the object storage holding complaint attachments.
type AttachmentStore interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
	URL(objectName string) string
}

type AttachmentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ComplaintService drives the complaint lifecycle. Every mutation commits the
// complaint change, its log entry and its outbox event together.
type ComplaintService interface {
	Submit(ctx context.Context, caller *access.Caller, req *models.ComplaintCreateRequest) (*models.Complaint, error)
	Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Complaint, error)
	List(ctx context.Context, caller *access.Caller, filter *models.ComplaintFilter) ([]models.Complaint, int64, error)
	UpdateStatus(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.StatusUpdateRequest) (*models.Complaint, error)
	AssignDepartment(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AssignDepartmentRequest) (*models.Complaint, error)
	AddComment(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.CommentRequest) (*models.Complaint, error)
	AddFeedback(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.FeedbackRequest) (*models.Complaint, error)
	Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error
	AddAttachment(ctx context.Context, caller *access.Caller, id uuid.UUID, upload *AttachmentUpload) (*models.ComplaintAttachment, error)
	ListResolved(ctx context.Context, caller *access.Caller, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error)
	AttachmentURL(path string) string
}

type complaintService struct {
	tx          repository.Transactor
	complaints  repository.ComplaintRepository
	departments repository.DepartmentRepository
	outbox      repository.OutboxRepository
	archive     ArchiveService
	signal      EventSignaler
	store       AttachmentStore
	content     *ContentPolicy
	log         *slog.Logger
}

func NewComplaintService(
	tx repository.Transactor,
	complaints repository.ComplaintRepository,
	departments repository.DepartmentRepository,
	outbox repository.OutboxRepository,
	archive ArchiveService,
	signal EventSignaler,
	store AttachmentStore,
	content *ContentPolicy,
) ComplaintService {
	return &complaintService{
		tx:          tx,
		complaints:  complaints,
		departments: departments,
		outbox:      outbox,
		archive:     archive,
		signal:      signal,
		store:       store,
		content:     content,
		log:         logger.WithComponent("complaints"),
	}
}

func (s *complaintService) notify() {
	if s.signal != nil {
		s.signal.Kick()
	}
}

func (s *complaintService) enqueue(ctx context.Context, kind models.EventKind, complaintID uuid.UUID, entryID *uuid.UUID, caller *access.Caller) error {
	return s.outbox.Enqueue(ctx, models.NewOutboxEvent(kind, complaintID, entryID, caller.UserID, caller.Role))
}

func (s *complaintService) Submit(ctx context.Context, caller *access.Caller, req *models.ComplaintCreateRequest) (*models.Complaint, error) {
	if err := access.RequireRole(caller, models.RoleCitizen, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}

	complaint := &models.Complaint{
		UserID:      caller.UserID,
		Name:        s.content.PlainText(req.Name),
		Mobile:      strings.TrimSpace(req.Mobile),
		Category:    strings.TrimSpace(req.Category),
		Description: s.content.PlainText(req.Description),
		Priority:    req.Priority,
	}
	if req.Date != nil {
		complaint.Date = *req.Date
	}
	if req.Location != nil {
		complaint.Location = *req.Location
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.complaints.Create(ctx, complaint); err != nil {
			return err
		}
		return s.enqueue(ctx, models.EventNewComplaint, complaint.ID, nil, caller)
	})
	if err != nil {
		return nil, err
	}
	s.notify()

	s.log.Info("complaint submitted",
		"complaint_id", complaint.ID, "user_id", caller.UserID,
		"category", complaint.Category, "department_id", complaint.DepartmentID)
	return s.complaints.FindByIDWithRelations(ctx, complaint.ID)
}

func (s *complaintService) Get(ctx context.Context, caller *access.Caller, id uuid.UUID) (*models.Complaint, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	complaint, err := s.complaints.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(caller, complaint) {
		return nil, apperr.Forbidden("Access denied")
	}
	return complaint, nil
}

// List scopes citizens to their own complaints and department staff to their
// department. Admins may filter by department.
func (s *complaintService) List(ctx context.Context, caller *access.Caller, filter *models.ComplaintFilter) ([]models.Complaint, int64, error) {
	if caller == nil {
		return nil, 0, apperr.Unauthorized("Authentication required")
	}
	// An unknown status filters nothing.
	if filter.Status != nil && !filter.Status.IsValid() {
		filter.Status = nil
	}

	switch caller.Role {
	case models.RoleCitizen:
		filter.UserID = &caller.UserID
		filter.DepartmentID = nil
	case models.RoleDepartment:
		if caller.DepartmentID == nil {
			return nil, 0, apperr.Forbidden("No department assigned to this account")
		}
		filter.UserID = nil
		filter.DepartmentID = caller.DepartmentID
	case models.RoleAdmin:
	default:
		return nil, 0, apperr.Forbidden("Access denied")
	}

	return s.complaints.List(ctx, filter)
}

func (s *complaintService) UpdateStatus(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.StatusUpdateRequest) (*models.Complaint, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, err
	}
	status := models.ComplaintStatus(strings.TrimSpace(req.Status))
	if !status.IsValid() {
		return nil, apperr.Validation("Invalid status provided")
	}

	complaint, err := s.complaints.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireDepartmentMatch(caller, complaint.DepartmentID); err != nil {
		return nil, err
	}

	message := s.content.PlainText(req.Message)
	update := &models.ComplaintStatusUpdate{
		Status:      status,
		Message:     message,
		UpdatedByID: caller.UserID,
	}
	if update.Message == "" {
		update.Message = models.StatusChangedMessage(status)
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.complaints.AppendStatusUpdate(ctx, complaint.ID, update); err != nil {
			return err
		}
		if status == models.ComplaintStatusResolved {
			complaint.Status = status
			if _, err := s.archive.Archive(ctx, complaint, caller.UserID, message); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, models.EventStatusUpdate, complaint.ID, &update.ID, caller)
	})
	if err != nil {
		return nil, err
	}
	s.notify()

	s.log.Info("complaint status updated",
		"complaint_id", complaint.ID, "status", status, "actor_id", caller.UserID, "actor_role", caller.Role)
	return s.complaints.FindByIDWithRelations(ctx, complaint.ID)
}

func (s *complaintService) AssignDepartment(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.AssignDepartmentRequest) (*models.Complaint, error) {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return nil, err
	}
	raw := req.Department()
	if raw == "" {
		return nil, apperr.Validation("Department ID is required")
	}
	departmentID, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid department ID")
	}

	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dept, err := s.departments.FindByID(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	update := &models.ComplaintStatusUpdate{
		Message:     "Complaint assigned to " + dept.Name + " department",
		UpdatedByID: caller.UserID,
	}
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.complaints.SetDepartment(ctx, complaint.ID, dept.ID, update); err != nil {
			return err
		}
		return s.enqueue(ctx, models.EventStatusUpdate, complaint.ID, &update.ID, caller)
	})
	if err != nil {
		return nil, err
	}
	s.notify()

	s.log.Info("complaint assigned", "complaint_id", complaint.ID, "department_id", dept.ID, "actor_id", caller.UserID)
	return s.complaints.FindByIDWithRelations(ctx, complaint.ID)
}

func (s *complaintService) AddComment(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.CommentRequest) (*models.Complaint, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	text := s.content.PlainText(req.Message)
	if text == "" {
		return nil, apperr.Validation("Comment message is required")
	}

	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch caller.Role {
	case models.RoleCitizen:
		if !complaint.IsOwnedBy(caller.UserID) {
			return nil, apperr.Forbidden("You can only comment on your own complaints")
		}
	case models.RoleDepartment:
		if err := access.RequireDepartmentMatch(caller, complaint.DepartmentID); err != nil {
			return nil, err
		}
	case models.RoleAdmin:
	default:
		return nil, apperr.Forbidden("Access denied")
	}

	now := time.Now()
	comment := &models.ComplaintComment{
		Text:       text,
		PostedByID: caller.UserID,
		Timestamp:  now,
	}
	mirror := &models.ComplaintStatusUpdate{
		Message:     text,
		UpdatedByID: caller.UserID,
		Timestamp:   now,
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.complaints.AppendComment(ctx, complaint.ID, comment, mirror); err != nil {
			return err
		}
		return s.enqueue(ctx, models.EventComment, complaint.ID, &comment.ID, caller)
	})
	if err != nil {
		return nil, err
	}
	s.notify()

	s.log.Info("comment added", "complaint_id", complaint.ID, "actor_id", caller.UserID, "actor_role", caller.Role)
	return s.complaints.FindByIDWithRelations(ctx, complaint.ID)
}

func (s *complaintService) AddFeedback(ctx context.Context, caller *access.Caller, id uuid.UUID, req *models.FeedbackRequest) (*models.Complaint, error) {
	if err := access.RequireRole(caller, models.RoleCitizen); err != nil {
		return nil, err
	}
	text := s.content.PlainText(req.Feedback)
	if text == "" {
		return nil, apperr.Validation("Feedback message is required")
	}
	rating := 0
	if req.Rating != nil {
		rating = *req.Rating
	}
	if rating < 0 || rating > 5 {
		return nil, apperr.Validation("Rating must be between 0 and 5")
	}

	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !complaint.IsOwnedBy(caller.UserID) {
		return nil, apperr.Forbidden("You can only give feedback on your own complaints")
	}

	now := time.Now()
	feedback := models.CitizenFeedback{
		Feedback:    text,
		Rating:      rating,
		SubmittedAt: &now,
	}
	update := &models.ComplaintStatusUpdate{
		Message:     models.FeedbackMessage(text, rating),
		UpdatedByID: caller.UserID,
		Timestamp:   now,
	}
	if err := s.complaints.SetFeedback(ctx, complaint.ID, feedback, update); err != nil {
		return nil, err
	}

	s.archive.MirrorFeedback(ctx, complaint.ID, feedback)

	s.log.Info("feedback submitted", "complaint_id", complaint.ID, "rating", rating)
	return s.complaints.FindByIDWithRelations(ctx, complaint.ID)
}

func (s *complaintService) Delete(ctx context.Context, caller *access.Caller, id uuid.UUID) error {
	if err := access.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	attachments, err := s.complaints.ListAttachments(ctx, id)
	if err != nil {
		return err
	}
	if err := s.complaints.Delete(ctx, id); err != nil {
		return err
	}

	// Resolved snapshots may still reference the objects.
	archived, err := s.archivedPaths(ctx, id)
	if err != nil {
		s.log.Warn("failed to read archived attachment paths", "complaint_id", id, "error", err)
		archived = nil
	}
	if s.store != nil && archived != nil {
		for _, a := range attachments {
			if archived[a.FilePath] {
				continue
			}
			if err := s.store.Delete(ctx, a.FilePath); err != nil {
				s.log.Warn("failed to delete attachment object", "complaint_id", id, "path", a.FilePath, "error", err)
			}
		}
	}

	s.log.Info("complaint deleted", "complaint_id", id, "actor_id", caller.UserID)
	return nil
}

func (s *complaintService) archivedPaths(ctx context.Context, complaintID uuid.UUID) (map[string]bool, error) {
	rows, err := s.archive.Snapshots(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	paths := map[string]bool{}
	for i := range rows {
		for _, p := range AttachmentPaths(&rows[i]) {
			paths[p] = true
		}
	}
	return paths, nil
}

func (s *complaintService) AddAttachment(ctx context.Context, caller *access.Caller, id uuid.UUID, upload *AttachmentUpload) (*models.ComplaintAttachment, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	if s.store == nil {
		return nil, apperr.Dependency("Attachment storage is not configured", nil)
	}
	if upload.Size <= 0 || upload.Size > MaxAttachmentSize {
		return nil, apperr.Validation("Attachment must be between 1 byte and 10 MB")
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	if !allowedAttachmentTypes[contentType] {
		return nil, apperr.Validation("Only JPEG, PNG, WEBP and PDF attachments are allowed")
	}

	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(caller, complaint) {
		return nil, apperr.Forbidden("Access denied")
	}
	existing, err := s.complaints.ListAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxAttachments {
		return nil, apperr.Validation("A complaint can have at most 5 attachments")
	}

	objectName := storage.AttachmentObjectName(complaint.ID, upload.FileName)
	if err := s.store.Upload(ctx, objectName, upload.Body, upload.Size, contentType); err != nil {
		return nil, apperr.Dependency("Failed to store attachment", err)
	}

	attachment := &models.ComplaintAttachment{
		ComplaintID:  complaint.ID,
		FileName:     upload.FileName,
		FilePath:     objectName,
		MimeType:     contentType,
		FileSize:     upload.Size,
		UploadedByID: caller.UserID,
	}
	if err := s.complaints.CreateAttachment(ctx, attachment); err != nil {
		if delErr := s.store.Delete(ctx, objectName); delErr != nil {
			s.log.Warn("failed to clean up attachment object", "path", objectName, "error", delErr)
		}
		return nil, err
	}
	return attachment, nil
}

func (s *complaintService) ListResolved(ctx context.Context, caller *access.Caller, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error) {
	return s.archive.List(ctx, caller, filter)
}

func (s *complaintService) AttachmentURL(path string) string {
	if s.store == nil {
		return ""
	}
	return s.store.URL(path)
}

