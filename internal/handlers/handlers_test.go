package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/middleware"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/internal/services"
	"github.com/civicdesk/backend/internal/testutil"
	"github.com/civicdesk/backend/pkg/utils"
)

type noopSignal struct{}

func (noopSignal) Kick() {}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	jwt *utils.JWTManager

	roads      *models.Department
	sanitation *models.Department

	admin      *models.User
	roadsStaff *models.User
	citizen    *models.User
	other      *models.User
}

func newTestServer(t *testing.T, pingers map[string]func(context.Context) error) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	jwt := utils.NewJWTManager("handler-secret", 1)
	enforcer, err := access.NewEnforcer()
	require.NoError(t, err)

	tx := repository.NewTransactionManager(db)
	complaintRepo := repository.NewComplaintRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	content := services.NewContentPolicy()
	actionLogs := services.NewActionLogService(repository.NewActionLogRepository(db))

	complaints := services.NewComplaintService(tx, complaintRepo, deptRepo, outboxRepo,
		services.NewArchiveService(repository.NewResolvedComplaintRepository(db)), noopSignal{}, nil, content)

	h := &Handlers{
		Health:        NewHealthHandler(db, pingers),
		Users:         NewUserHandler(services.NewUserService(userRepo, deptRepo, jwt, nil), jwt),
		Complaints:    NewComplaintHandler(complaints),
		Departments:   NewDepartmentHandler(services.NewDepartmentService(deptRepo, userRepo)),
		Announcements: NewAnnouncementHandler(services.NewAnnouncementService(tx, repository.NewAnnouncementRepository(db), deptRepo, outboxRepo, noopSignal{}, content)),
		Enquiries:     NewEnquiryHandler(services.NewEnquiryService(repository.NewEnquiryRepository(db), content)),
		Notifications: NewNotificationHandler(services.NewNotificationService(repository.NewNotificationRepository(db))),
		ActionLogs:    NewActionLogHandler(actionLogs),
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	audit := middleware.ActionLogger(middleware.ActionLoggerConfig{
		Enabled:     true,
		SkipMethods: []string{fiber.MethodGet},
		LogService:  actionLogs,
	})
	RegisterRoutes(app, h, middleware.NewAuthMiddleware(jwt, nil, userRepo, enforcer), audit)

	s := &testServer{app: app, db: db, jwt: jwt}
	s.roads = testutil.CreateDepartment(t, db, "Roads & Infrastructure", "potholes")
	s.sanitation = testutil.CreateDepartment(t, db, "Sanitation", "garbage")
	s.admin = testutil.CreateUser(t, db, models.RoleAdmin, nil)
	s.roadsStaff = testutil.CreateUser(t, db, models.RoleDepartment, &s.roads.ID)
	s.citizen = testutil.CreateUser(t, db, models.RoleCitizen, nil)
	s.other = testutil.CreateUser(t, db, models.RoleCitizen, nil)
	return s
}

func (s *testServer) token(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := s.jwt.GenerateToken(u.ID, u.Email, string(u.Role))
	require.NoError(t, err)
	return token
}

// do sends body as JSON and decodes the envelope. A nil user is anonymous.
func (s *testServer) do(t *testing.T, method, path string, u *models.User, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, u))
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if len(env.Data) == 0 {
		// Empty collections are dropped by the envelope's omitempty.
		return v
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *testServer) submit(t *testing.T, u *models.User, category string) models.ComplaintResponse {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/complaints", u, map[string]interface{}{
		"name":        "Asha",
		"category":    category,
		"description": "Deep pothole outside house 42",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return decode[models.ComplaintResponse](t, env)
}

func TestComplaintRoutes_Submit(t *testing.T) {
	s := newTestServer(t, nil)

	c := s.submit(t, s.citizen, "potholes")
	assert.Equal(t, models.ComplaintStatusPending, c.Status)
	require.NotNil(t, c.DepartmentID)
	assert.Equal(t, s.roads.ID, *c.DepartmentID)
	assert.Len(t, c.StatusUpdates, 1)

	code, env := s.do(t, http.MethodPost, "/api/v1/complaints", s.citizen, map[string]string{"name": "Asha"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "category is required; description is required", env.Error)

	code, env = s.do(t, http.MethodPost, "/api/v1/complaints", nil, map[string]string{"name": "Asha"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing authorization token", env.Error)
}

func TestComplaintRoutes_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.submit(t, s.citizen, "potholes")
	base := "/api/v1/complaints/" + c.ID.String()

	code, env := s.do(t, http.MethodPut, base+"/status", s.citizen, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied", env.Error)

	code, _ = s.do(t, http.MethodPut, base+"/status", s.roadsStaff, map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPut, base+"/status", s.roadsStaff, map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPut, base+"/status", s.roadsStaff, map[string]string{"status": "resolved", "message": "Fixed"})
	require.Equal(t, http.StatusOK, code)
	resolved := decode[models.ComplaintResponse](t, env)
	assert.Equal(t, models.ComplaintStatusResolved, resolved.Status)
	assert.Len(t, resolved.StatusUpdates, 3)

	code, _ = s.do(t, http.MethodPost, base+"/comment", s.other, map[string]string{"message": "me too"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, base+"/feedback", s.citizen, map[string]interface{}{"feedback": "Thanks", "rating": 7})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, base+"/feedback", s.citizen, map[string]interface{}{"feedback": "Thanks", "rating": 5})
	require.Equal(t, http.StatusOK, code)
	final := decode[models.ComplaintResponse](t, env)
	require.Len(t, final.StatusUpdates, 4)
	assert.Equal(t, "Citizen Feedback: Thanks (Rating: 5/5)", final.StatusUpdates[3].Message)
	require.NotNil(t, final.CitizenFeedback)
	assert.Equal(t, 5, final.CitizenFeedback.Rating)

	code, env = s.do(t, http.MethodGet, "/api/v1/complaints/resolved", s.roadsStaff, nil)
	require.Equal(t, http.StatusOK, code)
	archive := decode[[]models.ResolvedComplaint](t, env)
	require.Len(t, archive, 1)
	assert.Equal(t, "Fixed", archive[0].ResolutionComment)
}

func TestComplaintRoutes_AssignAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.submit(t, s.citizen, "potholes")
	base := "/api/v1/complaints/" + c.ID.String()

	code, _ := s.do(t, http.MethodPut, base+"/assign", s.roadsStaff, map[string]string{"department_id": s.sanitation.ID.String()})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPut, base+"/assign", s.admin, map[string]string{"department_id": s.admin.ID.String()})
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(t, http.MethodPut, base+"/assign", s.admin, map[string]string{"department_id": s.sanitation.ID.String()})
	require.Equal(t, http.StatusOK, code)
	assigned := decode[models.ComplaintResponse](t, env)
	require.NotNil(t, assigned.DepartmentID)
	assert.Equal(t, s.sanitation.ID, *assigned.DepartmentID)

	// Roads staff lost access once the complaint moved.
	code, _ = s.do(t, http.MethodGet, base, s.roadsStaff, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodDelete, base, s.citizen, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodDelete, base, s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, base, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/complaints/not-a-uuid", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid ID", env.Error)
}

func TestComplaintRoutes_ListIsPaginatedAndScoped(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, s.citizen, "potholes")
	s.submit(t, s.citizen, "garbage")
	s.submit(t, s.other, "potholes")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, s.citizen))
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var page utils.PaginatedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 1)

	code, env := s.do(t, http.MethodGet, "/api/v1/complaints", s.roadsStaff, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.ComplaintResponse](t, env), 2)

	code, env = s.do(t, http.MethodGet, "/api/v1/complaints?status=bogus", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.ComplaintResponse](t, env), 3)
}

func TestComplaintRoutes_DepartmentIDSpellings(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.submit(t, s.citizen, "garbage")
	s.submit(t, s.citizen, "garbage")
	base := "/api/v1/complaints/" + c.ID.String()

	code, env := s.do(t, http.MethodPut, base+"/assign", s.admin, map[string]string{"departmentId": s.roads.ID.String()})
	require.Equal(t, http.StatusOK, code, env.Error)
	assigned := decode[models.ComplaintResponse](t, env)
	require.NotNil(t, assigned.DepartmentID)
	assert.Equal(t, s.roads.ID, *assigned.DepartmentID)

	code, env = s.do(t, http.MethodGet, "/api/v1/complaints?departmentId="+s.roads.ID.String(), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	rows := decode[[]models.ComplaintResponse](t, env)
	require.Len(t, rows, 1)
	assert.Equal(t, c.ID, rows[0].ID)

	code, env = s.do(t, http.MethodGet, "/api/v1/complaints?department_id="+s.sanitation.ID.String(), s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.ComplaintResponse](t, env), 1)

	code, _ = s.do(t, http.MethodGet, "/api/v1/complaints?departmentId=nope", s.admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestValidationMessage(t *testing.T) {
	v := newValidator()

	err := v.Struct(&models.DepartmentCreateRequest{
		Name:         "Parks",
		Description:  "Parks and gardens",
		ContactEmail: "not-an-email",
	})
	msg := validationMessage(err)
	assert.Equal(t, "categories is required; contact_email must be a valid email address", msg)
	assert.NotContains(t, msg, "DepartmentCreateRequest")

	err = v.Struct(&models.RegisterRequest{Name: "A", Email: "a@b.co", Password: "secret1"})
	assert.Equal(t, "name must be at least 2 characters long", validationMessage(err))

	assert.Equal(t, "Invalid request body", validationMessage(errors.New("boom")))
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodGet, "/api/v1/departments/categories/all", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"garbage", "potholes"}, decode[[]string](t, env))

	code, env = s.do(t, http.MethodGet, "/api/v1/departments", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.DepartmentResponse](t, env), 2)

	code, _ = s.do(t, http.MethodPost, "/api/v1/departments", s.roadsStaff, map[string]interface{}{
		"name": "Parks", "description": "Parks", "categories": []string{"trees"},
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/enquiries", nil, map[string]string{
		"name": "Lata", "mobile": "9000000001", "description": "Water timings?",
	})
	require.Equal(t, http.StatusCreated, code)
	code, env = s.do(t, http.MethodGet, "/api/v1/enquiries/search?mobile=9000000001", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.Enquiry](t, env), 1)
	code, _ = s.do(t, http.MethodGet, "/api/v1/enquiries", s.citizen, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/announcements", s.admin, map[string]interface{}{
		"title": "Water cut", "content": "Tuesday", "department_id": s.roads.ID, "visibility": "department-only",
	})
	require.Equal(t, http.StatusCreated, code)
	code, env = s.do(t, http.MethodGet, "/api/v1/announcements", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.AnnouncementResponse](t, env))
	code, env = s.do(t, http.MethodGet, "/api/v1/announcements", s.roadsStaff, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.AnnouncementResponse](t, env), 1)
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	code, env := s.do(t, http.MethodPost, "/api/v1/auth/register", nil, map[string]string{
		"name": "Asha", "email": "asha@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code)
	auth := decode[models.AuthResponse](t, env)
	assert.NotEmpty(t, auth.Token)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", nil, map[string]string{
		"name": "Asha", "email": "asha@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", nil, map[string]string{"email": "asha@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = s.do(t, http.MethodGet, "/api/v1/auth/me", s.citizen, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, s.citizen.ID, decode[models.UserResponse](t, env).ID)

	code, _ = s.do(t, http.MethodGet, "/api/v1/users", s.citizen, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/api/v1/users", s.admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPut, "/api/v1/complaints/notifications/toggle", s.citizen, map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Email notifications disabled", env.Message)
	assert.False(t, decode[models.NotificationPreferences](t, env).Email.Enabled)

	code, env = s.do(t, http.MethodPut, "/api/v1/complaints/notifications/toggle", s.citizen, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Email notifications enabled", env.Message)

	off := false
	code, env = s.do(t, http.MethodPut, "/api/v1/complaints/notifications/preferences", s.citizen, map[string]interface{}{
		"in_app": map[string]*bool{"comments": &off},
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, env = s.do(t, http.MethodGet, "/api/v1/complaints/notifications/detailed-preferences", s.citizen, nil)
	require.Equal(t, http.StatusOK, code)
	prefs := decode[models.NotificationPreferences](t, env)
	assert.False(t, prefs.InApp.Comments)
	assert.True(t, prefs.Email.Enabled)

	code, env = s.do(t, http.MethodGet, "/api/v1/notifications", s.citizen, nil)
	require.Equal(t, http.StatusOK, code)
	inbox := decode[models.NotificationListResponse](t, env)
	assert.Empty(t, inbox.Notifications)
	assert.Zero(t, inbox.UnreadCount)
}

func TestAuditTrail(t *testing.T) {
	s := newTestServer(t, nil)
	c := s.submit(t, s.citizen, "potholes")

	code, _ := s.do(t, http.MethodPut, "/api/v1/complaints/"+c.ID.String()+"/status", s.citizen, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusForbidden, code)

	require.Eventually(t, func() bool {
		return testutil.CountRows(t, s.db, &models.ActionLog{}, "") == 2
	}, 2*time.Second, 10*time.Millisecond)

	var created, denied models.ActionLog
	require.NoError(t, s.db.First(&created, "action = ?", "create").Error)
	assert.Equal(t, "complaints", created.Module)
	assert.Equal(t, "success", created.Status)
	assert.Equal(t, s.citizen.ID, created.UserID)

	require.NoError(t, s.db.First(&denied, "action = ?", "status").Error)
	assert.Equal(t, c.ID.String(), denied.ResourceID)
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)
	assert.Equal(t, "failed", denied.Status)

	code, env := s.do(t, http.MethodGet, "/api/v1/action-logs", s.admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]models.ActionLogResponse](t, env), 2)
	code, _ = s.do(t, http.MethodGet, "/api/v1/action-logs", s.roadsStaff, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"database": "up", "redis": "down"}, body.Services)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newTestServer(t, nil)
	code, env := s.do(t, http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}
