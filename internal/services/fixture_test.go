package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicdesk/backend/internal/access"
	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
	"github.com/civicdesk/backend/internal/testutil"
	"github.com/civicdesk/backend/pkg/utils"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = buf.Bytes()
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	s.deleted = append(s.deleted, objectName)
	return nil
}

func (s *memoryStore) URL(objectName string) string {
	return "https://files.test/" + objectName
}

type countingSignal struct {
	kicks atomic.Int32
}

func (s *countingSignal) Kick() { s.kicks.Add(1) }

type fixture struct {
	db *gorm.DB

	complaintRepo repository.ComplaintRepository
	outboxRepo    repository.OutboxRepository

	complaints    ComplaintService
	departments   DepartmentService
	users         UserService
	announcements AnnouncementService
	notifications NotificationService
	fanout        *NotificationFanout
	dispatcher    OutboxDispatcher
	mailer        *MockMailer
	store         *memoryStore
	signal        *countingSignal

	roads      *models.Department
	sanitation *models.Department

	admin           *models.User
	roadsStaff      *models.User
	sanitationStaff *models.User
	citizen         *models.User
	otherCitizen    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	tx := repository.NewTransactionManager(db)
	complaintRepo := repository.NewComplaintRepository(db)
	deptRepo := repository.NewDepartmentRepository(db)
	userRepo := repository.NewUserRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	content := NewContentPolicy()
	mailer := NewMockMailer()
	email := NewEmailService(mailer, repository.NewNotificationLogRepository(db), content, "https://portal.test")
	fanout := NewNotificationFanout(complaintRepo, announcementRepo, userRepo, notificationRepo, email)
	dispatcher := NewOutboxDispatcher(outboxRepo, fanout, &config.NotificationConfig{
		PollInterval: 20 * time.Millisecond,
		BatchSize:    50,
		MaxAttempts:  3,
		RetryBackoff: time.Minute,
	})
	signal := &countingSignal{}
	store := newMemoryStore()
	archive := NewArchiveService(repository.NewResolvedComplaintRepository(db))

	f := &fixture{
		db:            db,
		complaintRepo: complaintRepo,
		outboxRepo:    outboxRepo,
		complaints:    NewComplaintService(tx, complaintRepo, deptRepo, outboxRepo, archive, signal, store, content),
		departments:   NewDepartmentService(deptRepo, userRepo),
		users:         NewUserService(userRepo, deptRepo, utils.NewJWTManager("test-secret", 1), nil),
		announcements: NewAnnouncementService(tx, announcementRepo, deptRepo, outboxRepo, signal, content),
		notifications: NewNotificationService(notificationRepo),
		fanout:        fanout,
		dispatcher:    dispatcher,
		mailer:        mailer,
		store:         store,
		signal:        signal,
	}

	f.roads = testutil.CreateDepartment(t, db, "Roads & Infrastructure", "potholes", "streetlights")
	f.sanitation = testutil.CreateDepartment(t, db, "Sanitation", "garbage")
	f.admin = testutil.CreateUser(t, db, models.RoleAdmin, nil)
	f.roadsStaff = testutil.CreateUser(t, db, models.RoleDepartment, &f.roads.ID)
	f.sanitationStaff = testutil.CreateUser(t, db, models.RoleDepartment, &f.sanitation.ID)
	f.citizen = testutil.CreateUser(t, db, models.RoleCitizen, nil)
	f.otherCitizen = testutil.CreateUser(t, db, models.RoleCitizen, nil)
	return f
}

func as(u *models.User) *access.Caller {
	return access.CallerFromUser(u)
}

func (f *fixture) submit(t *testing.T, by *models.User, category string) *models.Complaint {
	t.Helper()
	c, err := f.complaints.Submit(context.Background(), as(by), &models.ComplaintCreateRequest{
		Name:        by.Name,
		Mobile:      "9876543210",
		Category:    category,
		Description: "Deep pothole outside house 42",
	})
	require.NoError(t, err)
	return c
}

// drain runs the dispatcher until no due events remain.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, err := f.dispatcher.ProcessPending(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return
		}
	}
	t.Fatal("outbox did not drain")
}

func (f *fixture) notificationsFor(t *testing.T, u *models.User) []models.Notification {
	t.Helper()
	var rows []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", u.ID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) emailsTo(u *models.User) []EmailMessage {
	var out []EmailMessage
	for _, m := range f.mailer.Sent() {
		if m.To == u.Email {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) setPreference(t *testing.T, u *models.User, column string, value bool) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update(column, value).Error)
}

func (f *fixture) reload(t *testing.T, id interface{}) *models.Complaint {
	t.Helper()
	var c models.Complaint
	require.NoError(t, f.db.
		Preload("StatusUpdates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&c, "id = ?", id).Error)
	return &c
}
