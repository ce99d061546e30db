package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/testutil"
)

func titles(rows []models.Notification) []string {
	out := make([]string, 0, len(rows))
	for _, n := range rows {
		out = append(out, n.Title)
	}
	return out
}

func TestFanout_NewComplaintAudience(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, f.citizen, "potholes")
	f.drain(t)

	adminNotes := f.notificationsFor(t, f.admin)
	require.Len(t, adminNotes, 1)
	assert.Equal(t, "New Complaint Submitted", adminNotes[0].Title)
	assert.Equal(t, "A new complaint has been submitted in category: potholes", adminNotes[0].Message)
	assert.Equal(t, models.ComplaintRef(c.ID), adminNotes[0].Related())

	staffNotes := f.notificationsFor(t, f.roadsStaff)
	require.Len(t, staffNotes, 1)
	assert.Equal(t, "New Complaint Assigned", staffNotes[0].Title)
	assert.Equal(t, "A new complaint has been assigned to your department in category: potholes", staffNotes[0].Message)

	assert.Empty(t, f.notificationsFor(t, f.sanitationStaff))
	assert.Empty(t, f.notificationsFor(t, f.citizen), "the submitter only gets an e-mail")

	emails := f.emailsTo(f.citizen)
	require.Len(t, emails, 1)
	assert.Equal(t, "Complaint Submitted - Ticket #"+c.TicketNumber(), emails[0].Subject)
	assert.Contains(t, emails[0].TextBody, "Category: potholes")
	assert.Contains(t, emails[0].HTMLBody, "https://portal.test/complaints/"+c.ID.String())
	assert.Empty(t, f.emailsTo(f.admin))

	assert.EqualValues(t, 1, testutil.CountRows(t, f.db, &models.NotificationLog{},
		"template_code = ? AND status = ? AND provider = ?", TemplateComplaintSubmitted, "mock-sent", "mock"))
	assert.EqualValues(t, 1, testutil.CountRows(t, f.db, &models.OutboxEvent{}, "status = ?", models.OutboxDone))
}

func TestFanout_UnassignedComplaintNotifiesAdminsOnly(t *testing.T) {
	f := newFixture(t)
	f.submit(t, f.citizen, "stray dogs")
	f.drain(t)

	assert.Len(t, f.notificationsFor(t, f.admin), 1)
	assert.Empty(t, f.notificationsFor(t, f.roadsStaff))
	assert.Empty(t, f.notificationsFor(t, f.sanitationStaff))
}

func TestFanout_StatusUpdateNotifiesCitizen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, f.citizen, "potholes")
	f.drain(t)

	_, err := f.complaints.UpdateStatus(ctx, as(f.roadsStaff), c.ID, &models.StatusUpdateRequest{Status: "in-progress", Message: "Crew dispatched"})
	require.NoError(t, err)
	f.drain(t)

	notes := f.notificationsFor(t, f.citizen)
	require.Len(t, notes, 1)
	assert.Equal(t, "Complaint Status Updated", notes[0].Title)
	assert.Equal(t, `Your complaint regarding "potholes" has been updated to: in-progress`, notes[0].Message)
	assert.Equal(t, models.NotificationTypeStatusUpdate, notes[0].Type)

	emails := f.emailsTo(f.citizen)
	require.Len(t, emails, 2)
	assert.Equal(t, "Complaint Status Updated - Ticket #"+c.TicketNumber(), emails[1].Subject)
	assert.Contains(t, emails[1].TextBody, "Crew dispatched")

	assert.Len(t, f.notificationsFor(t, f.admin), 1, "staff are not told about status changes")
	assert.Len(t, f.notificationsFor(t, f.roadsStaff), 1)
}

func TestFanout_AssignmentNotifiesCitizen(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, f.citizen, "stray dogs")
	f.drain(t)

	_, err := f.complaints.AssignDepartment(context.Background(), as(f.admin), c.ID, &models.AssignDepartmentRequest{DepartmentID: f.sanitation.ID.String()})
	require.NoError(t, err)
	f.drain(t)

	notes := f.notificationsFor(t, f.citizen)
	require.Len(t, notes, 1)
	assert.Equal(t, `Your complaint regarding "stray dogs" has been updated to: pending`, notes[0].Message)
}

func TestFanout_RespectsPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.setPreference(t, f.citizen, "pref_in_app_enabled", false)
	f.setPreference(t, f.citizen, "pref_email_status_updates", false)
	f.setPreference(t, f.admin, "pref_in_app_status_updates", false)

	c := f.submit(t, f.citizen, "potholes")
	f.drain(t)
	_, err := f.complaints.UpdateStatus(ctx, as(f.admin), c.ID, &models.StatusUpdateRequest{Status: "rejected"})
	require.NoError(t, err)
	f.drain(t)

	assert.Empty(t, f.notificationsFor(t, f.citizen))
	assert.Empty(t, f.emailsTo(f.citizen), "submission and status e-mails share the status toggle")
	assert.Empty(t, f.notificationsFor(t, f.admin))
	assert.Len(t, f.notificationsFor(t, f.roadsStaff), 1)

	// Comments are a separate topic.
	_, err = f.complaints.AddComment(ctx, as(f.admin), c.ID, &models.CommentRequest{Message: "Duplicate of another report"})
	require.NoError(t, err)
	f.drain(t)

	assert.Empty(t, f.notificationsFor(t, f.citizen))
	emails := f.emailsTo(f.citizen)
	require.Len(t, emails, 1)
	assert.Equal(t, "New Response on Your Complaint - Ticket #"+c.TicketNumber(), emails[0].Subject)
}

func TestFanout_EmailMasterSwitch(t *testing.T) {
	f := newFixture(t)
	off := false
	_, err := f.users.ToggleEmail(context.Background(), as(f.citizen), &off)
	require.NoError(t, err)

	f.submit(t, f.citizen, "potholes")
	f.drain(t)

	assert.Empty(t, f.emailsTo(f.citizen))
	assert.Zero(t, testutil.CountRows(t, f.db, &models.NotificationLog{}, ""))
}

func TestFanout_CitizenCommentNotifiesStaff(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, f.citizen, "potholes")
	f.drain(t)

	_, err := f.complaints.AddComment(context.Background(), as(f.citizen), c.ID, &models.CommentRequest{Message: "It is getting worse"})
	require.NoError(t, err)
	f.drain(t)

	for _, u := range []*models.User{f.admin, f.roadsStaff} {
		notes := f.notificationsFor(t, u)
		require.Len(t, notes, 2)
		assert.Equal(t, "New Comment on Complaint", notes[1].Title)
		assert.Equal(t, "The citizen added a comment to complaint #"+c.ID.String(), notes[1].Message)

		emails := f.emailsTo(u)
		require.Len(t, emails, 1)
		assert.Equal(t, "New Comment on Complaint - Ticket #"+c.TicketNumber(), emails[0].Subject)
		assert.Contains(t, emails[0].TextBody, "It is getting worse")
	}
	assert.Empty(t, f.notificationsFor(t, f.sanitationStaff))
	assert.Empty(t, f.notificationsFor(t, f.citizen))
}

func TestFanout_StaffCommentNotifiesCitizenOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, f.citizen, "potholes")
	f.drain(t)

	_, err := f.complaints.AddComment(ctx, as(f.roadsStaff), c.ID, &models.CommentRequest{Message: "Scheduled for Monday"})
	require.NoError(t, err)
	_, err = f.complaints.AddComment(ctx, as(f.admin), c.ID, &models.CommentRequest{Message: "Escalated"})
	require.NoError(t, err)
	f.drain(t)

	notes := f.notificationsFor(t, f.citizen)
	require.Len(t, notes, 2)
	assert.ElementsMatch(t, []string{
		"Department has added a comment to your complaint",
		"Administrator has added a comment to your complaint",
	}, []string{notes[0].Message, notes[1].Message})
	assert.Equal(t, []string{"New Comment on Your Complaint", "New Comment on Your Complaint"}, titles(notes))

	assert.Len(t, f.notificationsFor(t, f.admin), 1)
	assert.Len(t, f.notificationsFor(t, f.roadsStaff), 1)
}

func TestFanout_ClaimPreventsDuplicateDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, f.citizen, "potholes")
	_, err := f.complaints.UpdateStatus(ctx, as(f.admin), c.ID, &models.StatusUpdateRequest{Status: "in-progress"})
	require.NoError(t, err)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&events).Error)
	require.Len(t, events, 2)

	for i := 0; i < 2; i++ {
		for j := range events {
			require.NoError(t, f.fanout.Dispatch(ctx, &events[j]))
		}
	}

	assert.Len(t, f.notificationsFor(t, f.admin), 1)
	assert.Len(t, f.notificationsFor(t, f.roadsStaff), 1)
	assert.Len(t, f.notificationsFor(t, f.citizen), 1)
	assert.Len(t, f.emailsTo(f.citizen), 2)
}

func TestFanout_EmailFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.mailer.Fail = errors.New("smtp: connection refused")

	f.submit(t, f.citizen, "potholes")
	f.drain(t)

	assert.Len(t, f.notificationsFor(t, f.admin), 1)
	assert.Len(t, f.notificationsFor(t, f.roadsStaff), 1)

	var entry models.NotificationLog
	require.NoError(t, f.db.Where("template_code = ?", TemplateComplaintSubmitted).First(&entry).Error)
	assert.Equal(t, "failed", entry.Status)
	assert.Equal(t, "smtp: connection refused", entry.ErrorMessage)
	assert.Equal(t, f.citizen.Email, entry.Recipient)

	assert.EqualValues(t, 1, testutil.CountRows(t, f.db, &models.OutboxEvent{}, "status = ?", models.OutboxDone))
}

func TestFanout_DeletedComplaintIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.submit(t, f.citizen, "potholes")
	require.NoError(t, f.complaints.Delete(ctx, as(f.admin), c.ID))
	f.drain(t)

	assert.Empty(t, f.notificationsFor(t, f.admin))
	assert.Empty(t, f.mailer.Sent())
	assert.EqualValues(t, 1, testutil.CountRows(t, f.db, &models.OutboxEvent{}, "status = ?", models.OutboxDone))
}

func TestFanout_UnknownKindIsIgnored(t *testing.T) {
	f := newFixture(t)
	err := f.fanout.Dispatch(context.Background(), &models.OutboxEvent{ID: uuid.New(), Kind: "mystery", AggregateID: uuid.New()})
	assert.NoError(t, err)
}

func TestFanout_PublicAnnouncementReachesCitizens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.announcements.Create(ctx, as(f.roadsStaff), &models.AnnouncementCreateRequest{
		Title:   "Road closure on MG Road",
		Content: "MG Road is **closed** until Friday.\n\n<script>alert(1)</script>",
	})
	require.NoError(t, err)
	f.drain(t)

	for _, u := range []*models.User{f.citizen, f.otherCitizen} {
		notes := f.notificationsFor(t, u)
		require.Len(t, notes, 1)
		assert.Equal(t, "New Announcement", notes[0].Title)
		assert.Equal(t, "Road closure on MG Road", notes[0].Message)
		assert.Equal(t, models.AnnouncementRef(a.ID), notes[0].Related())

		emails := f.emailsTo(u)
		require.Len(t, emails, 1)
		assert.Equal(t, "New Announcement - Road closure on MG Road", emails[0].Subject)
		assert.Contains(t, emails[0].HTMLBody, "<strong>closed</strong>")
		assert.False(t, strings.Contains(emails[0].HTMLBody, "<script>"))
	}
	assert.Empty(t, f.notificationsFor(t, f.admin))
	assert.Empty(t, f.notificationsFor(t, f.roadsStaff))
}

func TestFanout_RestrictedAnnouncementIsNotBroadcast(t *testing.T) {
	f := newFixture(t)
	_, err := f.announcements.Create(context.Background(), as(f.admin), &models.AnnouncementCreateRequest{
		Title:        "Staff meeting",
		Content:      "Thursday 10am",
		DepartmentID: &f.roads.ID,
		Visibility:   models.VisibilityDepartmentOnly,
	})
	require.NoError(t, err)
	f.drain(t)

	assert.Zero(t, testutil.CountRows(t, f.db, &models.OutboxEvent{}, ""))
	assert.Empty(t, f.notificationsFor(t, f.citizen))
}

func TestFanout_ExpiredAnnouncementIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)
	_, err := f.announcements.Create(ctx, as(f.admin), &models.AnnouncementCreateRequest{
		Title:        "Water supply interruption",
		Content:      "Tonight only",
		DepartmentID: &f.sanitation.ID,
		ExpiryDate:   &expiry,
	})
	require.NoError(t, err)

	f.fanout.now = func() time.Time { return expiry.Add(time.Minute) }
	f.drain(t)

	assert.Empty(t, f.notificationsFor(t, f.citizen))
	assert.Empty(t, f.mailer.Sent())
}
