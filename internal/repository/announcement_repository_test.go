package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/testutil"
)

func TestAnnouncementRepository_ListActiveScopes(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAnnouncementRepository(db)
	ctx := context.Background()
	now := time.Now()

	roads := testutil.CreateDepartment(t, db, "Roads", "potholes")
	water := testutil.CreateDepartment(t, db, "Water", "water supply")
	author := uuid.New()

	create := func(title string, dept uuid.UUID, vis models.AnnouncementVisibility, prio models.AnnouncementPriority, expiry *time.Time) {
		require.NoError(t, repo.Create(ctx, &models.Announcement{
			Title: title, Content: "body", DepartmentID: dept, AuthorID: author,
			Visibility: vis, Status: models.AnnouncementActive, Priority: prio,
			PublishDate: now.Add(-time.Hour), ExpiryDate: expiry,
		}))
	}
	past := now.Add(-time.Minute)
	create("public-normal", roads.ID, models.VisibilityPublic, models.AnnouncementPriorityNormal, nil)
	create("public-urgent", water.ID, models.VisibilityPublic, models.AnnouncementPriorityUrgent, nil)
	create("roads-internal", roads.ID, models.VisibilityDepartmentOnly, models.AnnouncementPriorityHigh, nil)
	create("water-internal", water.ID, models.VisibilityDepartmentOnly, models.AnnouncementPriorityLow, nil)
	create("admins", roads.ID, models.VisibilityAdminOnly, models.AnnouncementPriorityLow, nil)
	create("expired", roads.ID, models.VisibilityPublic, models.AnnouncementPriorityUrgent, &past)

	titles := func(rows []models.Announcement) []string {
		out := make([]string, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Title)
		}
		return out
	}

	public, err := repo.ListActive(ctx, models.AnnouncementScope{}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"public-urgent", "public-normal"}, titles(public))

	staff, err := repo.ListActive(ctx, models.AnnouncementScope{DepartmentID: &roads.ID}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"public-urgent", "public-normal", "roads-internal"}, titles(staff))

	all, err := repo.ListActive(ctx, models.AnnouncementScope{All: true}, now)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	archived, err := repo.ArchiveExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, archived)
}
