package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/pkg/utils"
)

type ComplaintHandler struct {
	service   services.ComplaintService
	validator *validator.Validate
}

func NewComplaintHandler(service services.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{
		service:   service,
		validator: newValidator(),
	}
}

func (h *ComplaintHandler) respond(c *fiber.Ctx, status int, message string, complaint *models.Complaint) error {
	return utils.SuccessResponse(c, status, message, models.ToComplaintResponse(complaint, h.service.AttachmentURL))
}

// Submit handles POST /complaints
func (h *ComplaintHandler) Submit(c *fiber.Ctx) error {
	var req models.ComplaintCreateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.Submit(c.UserContext(), middleware.CallerFrom(c), &req)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusCreated, "Complaint submitted successfully", complaint)
}

// List handles GET /complaints
func (h *ComplaintHandler) List(c *fiber.Ctx) error {
	page, limit := pagination(c)
	filter := &models.ComplaintFilter{
		Category: c.Query("category"),
		Page:     page,
		Limit:    limit,
	}
	if status := c.Query("status"); status != "" {
		s := models.ComplaintStatus(status)
		filter.Status = &s
	}
	departmentID, err := queryUUID(c, "departmentId", "department_id")
	if err != nil {
		return handleError(c, err)
	}
	filter.DepartmentID = departmentID

	complaints, total, err := h.service.List(c.UserContext(), middleware.CallerFrom(c), filter)
	if err != nil {
		return handleError(c, err)
	}

	out := make([]models.ComplaintResponse, 0, len(complaints))
	for i := range complaints {
		out = append(out, models.ToComplaintResponse(&complaints[i], h.service.AttachmentURL))
	}
	return utils.PaginatedSuccessResponse(c, out, page, limit, total)
}

// Get handles GET /complaints/:id
func (h *ComplaintHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.Get(c.UserContext(), middleware.CallerFrom(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusOK, "Complaint retrieved successfully", complaint)
}

// UpdateStatus handles PUT /complaints/:id/status
func (h *ComplaintHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.StatusUpdateRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.UpdateStatus(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusOK, "Complaint status updated successfully", complaint)
}

// AssignDepartment handles PUT /complaints/:id/assign
func (h *ComplaintHandler) AssignDepartment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.AssignDepartmentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.AssignDepartment(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusOK, "Complaint assigned successfully", complaint)
}

// AddComment handles POST /complaints/:id/comment
func (h *ComplaintHandler) AddComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.CommentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.AddComment(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusOK, "Comment added successfully", complaint)
}

// AddFeedback handles POST /complaints/:id/feedback
func (h *ComplaintHandler) AddFeedback(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req models.FeedbackRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.service.AddFeedback(c.UserContext(), middleware.CallerFrom(c), id, &req)
	if err != nil {
		return handleError(c, err)
	}
	return h.respond(c, fiber.StatusOK, "Feedback submitted successfully", complaint)
}

// Delete handles DELETE /complaints/:id
func (h *ComplaintHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.service.Delete(c.UserContext(), middleware.CallerFrom(c), id); err != nil {
		return handleError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Complaint deleted successfully", nil)
}

// UploadAttachment handles POST /complaints/:id/attachments (multipart "file")
func (h *ComplaintHandler) UploadAttachment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return handleError(c, apperr.Validation("File is required"))
	}
	src, err := file.Open()
	if err != nil {
		return handleError(c, apperr.Validation("Failed to read uploaded file"))
	}
	defer src.Close()

	attachment, err := h.service.AddAttachment(c.UserContext(), middleware.CallerFrom(c), id, &services.AttachmentUpload{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        src,
	})
	if err != nil {
		return handleError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusCreated, "Attachment uploaded successfully", models.AttachmentResponse{
		ID:        attachment.ID,
		FileName:  attachment.FileName,
		MimeType:  attachment.MimeType,
		FileSize:  attachment.FileSize,
		URL:       h.service.AttachmentURL(attachment.FilePath),
		CreatedAt: attachment.CreatedAt,
	})
}

// ListResolved handles GET /complaints/resolved
func (h *ComplaintHandler) ListResolved(c *fiber.Ctx) error {
	page, limit := pagination(c)
	filter := &models.ResolvedComplaintFilter{Page: page, Limit: limit}

	var err error
	if filter.DepartmentID, err = queryUUID(c, "departmentId", "department_id"); err != nil {
		return handleError(c, err)
	}
	if filter.ComplaintID, err = queryUUID(c, "complaint_id"); err != nil {
		return handleError(c, err)
	}

	rows, total, err := h.service.ListResolved(c.UserContext(), middleware.CallerFrom(c), filter)
	if err != nil {
		return handleError(c, err)
	}
	return utils.PaginatedSuccessResponse(c, rows, page, limit, total)
}
