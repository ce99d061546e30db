package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/testutil"
)

func newComplaint(userID uuid.UUID, category string) *models.Complaint {
	return &models.Complaint{
		UserID:      userID,
		Name:        "Asha",
		Mobile:      "9999999999",
		Category:    category,
		Description: "Large pothole near the school gate",
	}
}

func TestComplaintRepository_CreateRoutesAndSeeds(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	ctx := context.Background()

	roads := testutil.CreateDepartment(t, db, "Roads & Infrastructure", "potholes", "roads")
	testutil.CreateDepartment(t, db, "Sanitation", "garbage")
	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)

	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.FindByIDWithRelations(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusPending, got.Status)
	assert.Equal(t, models.PriorityMedium, got.Priority)
	require.NotNil(t, got.DepartmentID)
	assert.Equal(t, roads.ID, *got.DepartmentID)
	require.Len(t, got.StatusUpdates, 1)
	assert.Equal(t, models.ComplaintStatusPending, got.StatusUpdates[0].Status)
	assert.Equal(t, models.RegisteredMessage, got.StatusUpdates[0].Message)
	assert.Equal(t, citizen.ID, got.StatusUpdates[0].UpdatedByID)
}

func TestComplaintRepository_CreateUnknownCategoryStaysUnassigned(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)

	testutil.CreateDepartment(t, db, "Sanitation", "garbage")
	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)

	c := newComplaint(citizen.ID, "Garbage")
	require.NoError(t, repo.Create(context.Background(), c))
	assert.Nil(t, c.DepartmentID, "routing is an exact match")
}

func TestComplaintRepository_CreateRequiresFields(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)

	c := newComplaint(uuid.New(), "")
	err := repo.Create(context.Background(), c)

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, testutil.CountRows(t, db, &models.Complaint{}, ""))
}

func TestComplaintRepository_AppendsKeepOrderAndStatus(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	admin := testutil.CreateUser(t, db, models.RoleAdmin, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))

	require.NoError(t, repo.AppendStatusUpdate(ctx, c.ID, &models.ComplaintStatusUpdate{
		Status: models.ComplaintStatusInProgress, Message: "On it", UpdatedByID: admin.ID,
	}))
	require.NoError(t, repo.AppendComment(ctx, c.ID,
		&models.ComplaintComment{Text: "Crew dispatched", PostedByID: admin.ID},
		&models.ComplaintStatusUpdate{Message: "Crew dispatched", UpdatedByID: admin.ID},
	))
	dept := testutil.CreateDepartment(t, db, "Roads", "roads")
	require.NoError(t, repo.SetDepartment(ctx, c.ID, dept.ID, &models.ComplaintStatusUpdate{
		Message: "Complaint assigned to Roads department", UpdatedByID: admin.ID,
	}))

	got, err := repo.FindByIDWithRelations(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, got.StatusUpdates, 4)
	for i, u := range got.StatusUpdates {
		assert.Equal(t, i+1, u.Position)
	}
	assert.Equal(t, models.ComplaintStatusInProgress, got.Status)
	assert.Equal(t, models.ComplaintStatusInProgress, got.StatusUpdates[2].Status, "mirror carries current status")
	assert.Equal(t, got.Status, got.StatusUpdates[3].Status)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "Crew dispatched", got.Comments[0].Text)
	assert.Equal(t, dept.ID, *got.DepartmentID)
}

func TestComplaintRepository_AppendToMissingComplaint(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)

	err := repo.AppendStatusUpdate(context.Background(), uuid.New(), &models.ComplaintStatusUpdate{
		Status: models.ComplaintStatusResolved, UpdatedByID: uuid.New(),
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, testutil.CountRows(t, db, &models.ComplaintStatusUpdate{}, ""))
}

func TestComplaintRepository_SetFeedback(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))

	now := time.Now()
	fb := models.CitizenFeedback{Feedback: "Thanks", Rating: 4, SubmittedAt: &now}
	require.NoError(t, repo.SetFeedback(ctx, c.ID, fb, &models.ComplaintStatusUpdate{
		Message: models.FeedbackMessage("Thanks", 4), UpdatedByID: citizen.ID,
	}))

	got, err := repo.FindByIDWithRelations(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Feedback.IsSet())
	assert.Equal(t, 4, got.Feedback.Rating)
	assert.Len(t, got.StatusUpdates, 2)
}

func TestComplaintRepository_List(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	ctx := context.Background()

	roads := testutil.CreateDepartment(t, db, "Roads", "potholes")
	alice := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	bob := testutil.CreateUser(t, db, models.RoleCitizen, nil)

	require.NoError(t, repo.Create(ctx, newComplaint(alice.ID, "potholes")))
	require.NoError(t, repo.Create(ctx, newComplaint(alice.ID, "noise")))
	bobs := newComplaint(bob.ID, "potholes")
	require.NoError(t, repo.Create(ctx, bobs))
	require.NoError(t, repo.AppendStatusUpdate(ctx, bobs.ID, &models.ComplaintStatusUpdate{
		Status: models.ComplaintStatusResolved, UpdatedByID: bob.ID,
	}))

	own, total, err := repo.List(ctx, &models.ComplaintFilter{UserID: &alice.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, own, 2)

	_, total, err = repo.List(ctx, &models.ComplaintFilter{DepartmentID: &roads.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	resolved := models.ComplaintStatusResolved
	rows, total, err := repo.List(ctx, &models.ComplaintFilter{DepartmentID: &roads.ID, Status: &resolved, Category: "potholes"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, bobs.ID, rows[0].ID)
}

func TestComplaintRepository_DeleteKeepsArchive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	archive := NewResolvedComplaintRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))
	require.NoError(t, archive.Create(ctx, &models.ResolvedComplaint{
		ComplaintID: c.ID, UserID: citizen.ID, ResolvedByID: citizen.ID, ResolvedAt: time.Now(),
	}))

	require.NoError(t, repo.Delete(ctx, c.ID))

	_, err := repo.FindByID(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, testutil.CountRows(t, db, &models.ComplaintStatusUpdate{}, "complaint_id = ?", c.ID))
	assert.EqualValues(t, 1, testutil.CountRows(t, db, &models.ResolvedComplaint{}, "complaint_id = ?", c.ID))

	assert.ErrorIs(t, repo.Delete(ctx, c.ID), apperr.ErrNotFound)
}

func TestResolvedComplaintRepository_ListByComplaint(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	archive := NewResolvedComplaintRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))
	other := newComplaint(citizen.ID, "garbage")
	require.NoError(t, repo.Create(ctx, other))

	first := time.Now().Add(-time.Hour)
	for _, snap := range []*models.ResolvedComplaint{
		{ComplaintID: c.ID, UserID: citizen.ID, ResolvedByID: citizen.ID, ResolvedAt: first.Add(time.Minute), ResolutionComment: "second"},
		{ComplaintID: c.ID, UserID: citizen.ID, ResolvedByID: citizen.ID, ResolvedAt: first, ResolutionComment: "first"},
		{ComplaintID: other.ID, UserID: citizen.ID, ResolvedByID: citizen.ID, ResolvedAt: first},
	} {
		require.NoError(t, archive.Create(ctx, snap))
	}

	rows, err := archive.ListByComplaint(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].ResolutionComment)
	assert.Equal(t, "second", rows[1].ResolutionComment)
}

func TestComplaintRepository_ClaimsAreOneShot(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewComplaintRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))

	ok, err := repo.ClaimCreatedNotification(ctx, c.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimCreatedNotification(ctx, c.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	seed := c.StatusUpdates[0]
	ok, err = repo.ClaimStatusUpdateNotification(ctx, seed.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ClaimStatusUpdateNotification(ctx, seed.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionManager_RollsBackAllRepositories(t *testing.T) {
	db := testutil.NewDB(t)
	tm := NewTransactionManager(db)
	repo := NewComplaintRepository(db)
	outbox := NewOutboxRepository(db)
	ctx := context.Background()

	citizen := testutil.CreateUser(t, db, models.RoleCitizen, nil)
	c := newComplaint(citizen.ID, "potholes")
	require.NoError(t, repo.Create(ctx, c))

	err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := repo.AppendStatusUpdate(ctx, c.ID, &models.ComplaintStatusUpdate{
			Status: models.ComplaintStatusRejected, UpdatedByID: citizen.ID,
		}); err != nil {
			return err
		}
		if err := outbox.Enqueue(ctx, models.NewOutboxEvent(models.EventStatusUpdate, c.ID, nil, citizen.ID, models.RoleAdmin)); err != nil {
			return err
		}
		return apperr.Validation("abort")
	})
	require.Error(t, err)

	got, err := repo.FindByIDWithRelations(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusPending, got.Status)
	assert.Len(t, got.StatusUpdates, 1)
	assert.Zero(t, testutil.CountRows(t, db, &models.OutboxEvent{}, ""))
}
