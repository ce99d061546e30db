package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

const defaultResolutionComment = "Issue resolved"

// ArchiveService keeps the snapshot of resolved complaints.
type ArchiveService interface {
	// Archive writes a snapshot of complaint. It joins the caller's
	// transaction when ctx carries one.
	Archive(ctx context.Context, complaint *models.Complaint, resolvedBy uuid.UUID, resolutionComment string) (*models.ResolvedComplaint, error)
	// MirrorFeedback copies feedback onto existing snapshots. Failures are
	// logged, never returned.
	MirrorFeedback(ctx context.Context, complaintID uuid.UUID, feedback models.CitizenFeedback)
	List(ctx context.Context, caller *access.Caller, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error)
	// Snapshots returns every archive row of one complaint, oldest first.
	Snapshots(ctx context.Context, complaintID uuid.UUID) ([]models.ResolvedComplaint, error)
}

type archiveService struct {
	resolved repository.ResolvedComplaintRepository
	log      *slog.Logger
}

func NewArchiveService(resolved repository.ResolvedComplaintRepository) ArchiveService {
	return &archiveService{
		resolved: resolved,
		log:      logger.WithComponent("archive"),
	}
}

func (s *archiveService) Archive(ctx context.Context, complaint *models.Complaint, resolvedBy uuid.UUID, resolutionComment string) (*models.ResolvedComplaint, error) {
	if resolutionComment == "" {
		resolutionComment = defaultResolutionComment
	}

	paths := make([]string, 0, len(complaint.Attachments))
	for _, a := range complaint.Attachments {
		paths = append(paths, a.FilePath)
	}
	encoded, err := json.Marshal(paths)
	if err != nil {
		return nil, apperr.Internal("failed to encode attachment paths", err)
	}

	snapshot := &models.ResolvedComplaint{
		ComplaintID:       complaint.ID,
		UserID:            complaint.UserID,
		Name:              complaint.Name,
		Category:          complaint.Category,
		Description:       complaint.Description,
		Date:              complaint.Date,
		DepartmentID:      complaint.DepartmentID,
		AttachmentPaths:   string(encoded),
		ResolvedByID:      resolvedBy,
		ResolvedAt:        time.Now(),
		ResolutionComment: resolutionComment,
		Feedback:          complaint.Feedback,
	}
	if err := s.resolved.Create(ctx, snapshot); err != nil {
		return nil, err
	}

	s.log.Info("complaint archived", "complaint_id", complaint.ID, "resolved_by", resolvedBy)
	return snapshot, nil
}

func (s *archiveService) MirrorFeedback(ctx context.Context, complaintID uuid.UUID, feedback models.CitizenFeedback) {
	n, err := s.resolved.MirrorFeedback(ctx, complaintID, feedback)
	if err != nil {
		s.log.Warn("failed to mirror feedback to archive", "complaint_id", complaintID, "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("feedback mirrored to archive", "complaint_id", complaintID, "rows", n)
	}
}

func (s *archiveService) List(ctx context.Context, caller *access.Caller, filter *models.ResolvedComplaintFilter) ([]models.ResolvedComplaint, int64, error) {
	if err := access.RequireRole(caller, models.RoleAdmin, models.RoleDepartment); err != nil {
		return nil, 0, err
	}
	if caller.Is(models.RoleDepartment) {
		if caller.DepartmentID == nil {
			return []models.ResolvedComplaint{}, 0, nil
		}
		filter.DepartmentID = caller.DepartmentID
	}
	return s.resolved.List(ctx, filter)
}

func (s *archiveService) Snapshots(ctx context.Context, complaintID uuid.UUID) ([]models.ResolvedComplaint, error) {
	return s.resolved.ListByComplaint(ctx, complaintID)
}

// AttachmentPaths decodes the stored snapshot paths.
func AttachmentPaths(r *models.ResolvedComplaint) []string {
	var paths []string
	if r.AttachmentPaths == "" {
		return paths
	}
	if err := json.Unmarshal([]byte(r.AttachmentPaths), &paths); err != nil {
		return nil
	}
	return paths
}
