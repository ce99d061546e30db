package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/middleware"
)

// Handlers groups every HTTP handler mounted under /api/v1.
type Handlers struct {
	Health        *HealthHandler
	Users         *UserHandler
	Complaints    *ComplaintHandler
	Departments   *DepartmentHandler
	Announcements *AnnouncementHandler
	Enquiries     *EnquiryHandler
	Notifications *NotificationHandler
	ActionLogs    *ActionLogHandler
}

// RegisterRoutes mounts the API. audit runs after authentication on every
// protected group; pass a no-op handler to disable it.
func RegisterRoutes(app *fiber.App, h *Handlers, authMiddleware *middleware.AuthMiddleware, audit fiber.Handler) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	authenticated := []fiber.Handler{authMiddleware.Authenticate(), audit}
	can := authMiddleware.RequirePermission

	// Health routes
	v1.Get("/health", h.Health.Health)

	// Auth routes
	auth := v1.Group("/auth")
	auth.Post("/register", h.Users.Register)
	auth.Post("/login", h.Users.Login)
	auth.Post("/logout", authMiddleware.Authenticate(), h.Users.Logout)
	auth.Get("/me", authMiddleware.Authenticate(), h.Users.Me)

	// User routes
	users := v1.Group("/users", authenticated...)
	users.Get("/", can(access.ResourceUsers, access.ActionRead), h.Users.ListUsers)
	users.Post("/", can(access.ResourceUsers, access.ActionCreate), h.Users.CreateUser)
	users.Get("/:id", h.Users.GetUser)
	users.Put("/:id", h.Users.UpdateUser)
	users.Delete("/:id", can(access.ResourceUsers, access.ActionDelete), h.Users.DeleteUser)

	// Complaint routes
	complaints := v1.Group("/complaints", authenticated...)
	complaints.Get("/notifications/preferences", h.Users.GetPreferences)
	complaints.Get("/notifications/detailed-preferences", h.Users.GetPreferences)
	complaints.Put("/notifications/preferences", h.Users.UpdatePreferences)
	complaints.Put("/notifications/detailed-preferences", h.Users.UpdatePreferences)
	complaints.Put("/notifications/toggle", h.Users.ToggleEmail)
	complaints.Get("/resolved", can(access.ResourceComplaints, access.ActionArchive), h.Complaints.ListResolved)
	complaints.Post("/", can(access.ResourceComplaints, access.ActionCreate), h.Complaints.Submit)
	complaints.Get("/", can(access.ResourceComplaints, access.ActionRead), h.Complaints.List)
	complaints.Get("/:id", can(access.ResourceComplaints, access.ActionRead), h.Complaints.Get)
	complaints.Put("/:id/status", can(access.ResourceComplaints, access.ActionStatus), h.Complaints.UpdateStatus)
	complaints.Put("/:id/assign", can(access.ResourceComplaints, access.ActionAssign), h.Complaints.AssignDepartment)
	complaints.Post("/:id/comment", can(access.ResourceComplaints, access.ActionComment), h.Complaints.AddComment)
	complaints.Post("/:id/comments", can(access.ResourceComplaints, access.ActionComment), h.Complaints.AddComment)
	complaints.Post("/:id/feedback", can(access.ResourceComplaints, access.ActionFeedback), h.Complaints.AddFeedback)
	complaints.Post("/:id/attachments", can(access.ResourceComplaints, access.ActionCreate), h.Complaints.UploadAttachment)
	complaints.Delete("/:id", can(access.ResourceComplaints, access.ActionDelete), h.Complaints.Delete)

	// Notification inbox
	notifications := v1.Group("/notifications", authenticated...)
	notifications.Get("/", h.Notifications.List)
	notifications.Get("/unread-count", h.Notifications.UnreadCount)
	notifications.Put("/mark-read", h.Notifications.MarkRead)
	notifications.Delete("/:id", h.Notifications.Delete)

	// Department routes: reads are public
	departments := v1.Group("/departments")
	departments.Get("/", h.Departments.List)
	departments.Get("/categories/all", h.Departments.ListCategories)
	departments.Get("/:id", authMiddleware.OptionalAuth(), h.Departments.GetByID)
	departments.Post("/", append(authenticated, can(access.ResourceDepartments, access.ActionCreate), h.Departments.Create)...)
	departments.Put("/:id", append(authenticated, can(access.ResourceDepartments, access.ActionUpdate), h.Departments.Update)...)
	departments.Delete("/:id", append(authenticated, can(access.ResourceDepartments, access.ActionDelete), h.Departments.Delete)...)
	departments.Post("/:id/assign-staff", append(authenticated, can(access.ResourceDepartments, access.ActionAssign), h.Departments.AssignStaff)...)
	departments.Get("/:id/staff", append(authenticated, can(access.ResourceDepartments, access.ActionStaff), h.Departments.ListStaff)...)

	// Announcement routes: reads are public, scoped by the optional caller
	announcements := v1.Group("/announcements")
	announcements.Get("/", authMiddleware.OptionalAuth(), h.Announcements.List)
	announcements.Get("/:id", authMiddleware.OptionalAuth(), h.Announcements.Get)
	announcements.Post("/", append(authenticated, can(access.ResourceAnnouncements, access.ActionCreate), h.Announcements.Create)...)
	announcements.Put("/:id", append(authenticated, can(access.ResourceAnnouncements, access.ActionUpdate), h.Announcements.Update)...)
	announcements.Delete("/:id", append(authenticated, can(access.ResourceAnnouncements, access.ActionDelete), h.Announcements.Delete)...)

	// Enquiry routes: filing and lookup by contact details are public
	enquiries := v1.Group("/enquiries")
	enquiries.Post("/", h.Enquiries.Create)
	enquiries.Get("/search", h.Enquiries.Search)
	enquiries.Get("/", append(authenticated, can(access.ResourceEnquiries, access.ActionRead), h.Enquiries.List)...)
	enquiries.Get("/:id", append(authenticated, can(access.ResourceEnquiries, access.ActionRead), h.Enquiries.Get)...)
	enquiries.Put("/:id/status", append(authenticated, can(access.ResourceEnquiries, access.ActionUpdate), h.Enquiries.UpdateStatus)...)

	// Action Log routes
	actionLogs := v1.Group("/action-logs", authenticated...)
	actionLogs.Get("/", can(access.ResourceActionLogs, access.ActionRead), h.ActionLogs.ListActionLogs)
	actionLogs.Get("/:id", can(access.ResourceActionLogs, access.ActionRead), h.ActionLogs.GetActionLog)
}
