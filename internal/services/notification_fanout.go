package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

// EventHandler consumes one outbox event. A returned error schedules a retry.
type EventHandler interface {
	Dispatch(ctx context.Context, event *models.OutboxEvent) error
}

type EmailNotifier interface {
	ComplaintSubmitted(ctx context.Context, to *models.User, c *models.Complaint) error
	StatusUpdated(ctx context.Context, to *models.User, c *models.Complaint, update *models.ComplaintStatusUpdate) error
	CommentPosted(ctx context.Context, to *models.User, c *models.Complaint, comment *models.ComplaintComment, actor models.Role) error
	AnnouncementPublished(ctx context.Context, to *models.User, a *models.Announcement) error
}

// NotificationFanout turns committed lifecycle events into in-app
// notifications and e-mails. The audience is resolved before the event's
// entry is claimed, so a failed lookup leaves the event retryable; once
// claimed, the entry is never fanned out again. Delivery failures for one
// recipient do not stop the others.
type NotificationFanout struct {
	complaints    repository.ComplaintRepository
	announcements repository.AnnouncementRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	email         EmailNotifier
	now           func() time.Time
	log           *slog.Logger
}

func NewNotificationFanout(
	complaints repository.ComplaintRepository,
	announcements repository.AnnouncementRepository,
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	email EmailNotifier,
) *NotificationFanout {
	return &NotificationFanout{
		complaints:    complaints,
		announcements: announcements,
		users:         users,
		notifications: notifications,
		email:         email,
		now:           time.Now,
		log:           logger.WithComponent("fanout"),
	}
}

type delivery struct {
	recipient models.User
	note      *models.Notification // nil for e-mail only
	topic     models.PreferenceTopic
	email     func(ctx context.Context, to *models.User) error
}

func (f *NotificationFanout) Dispatch(ctx context.Context, event *models.OutboxEvent) error {
	var (
		deliveries []delivery
		claim      func() (bool, error)
		err        error
	)

	switch event.Kind {
	case models.EventNewComplaint:
		deliveries, claim, err = f.newComplaint(ctx, event)
	case models.EventStatusUpdate:
		deliveries, claim, err = f.statusUpdate(ctx, event)
	case models.EventComment:
		deliveries, claim, err = f.comment(ctx, event)
	case models.EventAnnouncement:
		deliveries, claim, err = f.announcement(ctx, event)
	default:
		f.log.Warn("unknown outbox event kind", "kind", event.Kind, "event_id", event.ID)
		return nil
	}

	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			f.log.Info("fan-out target no longer exists", "kind", event.Kind, "aggregate_id", event.AggregateID)
			return nil
		}
		return err
	}
	if claim == nil {
		return nil
	}

	claimed, err := claim()
	if err != nil {
		return err
	}
	if !claimed {
		f.log.Debug("fan-out already claimed", "kind", event.Kind, "aggregate_id", event.AggregateID)
		return nil
	}

	for i := range deliveries {
		f.deliver(ctx, &deliveries[i])
	}
	f.log.Info("fan-out complete", "kind", event.Kind, "aggregate_id", event.AggregateID, "recipients", len(deliveries))
	return nil
}

func (f *NotificationFanout) deliver(ctx context.Context, d *delivery) {
	prefs := d.recipient.NotificationPreferences

	if d.note != nil && prefs.InApp.Allows(d.topic) {
		note := *d.note
		note.UserID = d.recipient.ID
		if err := f.notifications.Create(ctx, &note); err != nil {
			f.log.Warn("failed to create notification", "user_id", d.recipient.ID, "error", err)
		}
	}

	if d.email != nil && d.recipient.Email != "" && prefs.Email.Allows(d.topic) {
		if err := d.email(ctx, &d.recipient); err != nil {
			f.log.Warn("failed to send notification e-mail", "user_id", d.recipient.ID, "error", err)
		}
	}
}

func (f *NotificationFanout) staffAudience(ctx context.Context, departmentID *uuid.UUID) ([]models.User, []models.User, error) {
	admins, err := f.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}
	if departmentID == nil {
		return admins, nil, nil
	}
	staff, err := f.users.ListDepartmentStaff(ctx, *departmentID)
	if err != nil {
		return nil, nil, err
	}
	return admins, staff, nil
}

func (f *NotificationFanout) newComplaint(ctx context.Context, event *models.OutboxEvent) ([]delivery, func() (bool, error), error) {
	c, err := f.complaints.FindByID(ctx, event.AggregateID)
	if err != nil {
		return nil, nil, err
	}
	admins, staff, err := f.staffAudience(ctx, c.DepartmentID)
	if err != nil {
		return nil, nil, err
	}

	ref := models.ComplaintRef(c.ID)
	var out []delivery
	for _, u := range admins {
		out = append(out, delivery{
			recipient: u,
			topic:     models.TopicStatusUpdates,
			note: newNotification("New Complaint Submitted",
				"A new complaint has been submitted in category: "+c.Category,
				models.NotificationTypeComplaint, ref),
		})
	}
	for _, u := range staff {
		out = append(out, delivery{
			recipient: u,
			topic:     models.TopicStatusUpdates,
			note: newNotification("New Complaint Assigned",
				"A new complaint has been assigned to your department in category: "+c.Category,
				models.NotificationTypeComplaint, ref),
		})
	}

	// The citizen receives an e-mail confirmation only.
	citizen, err := f.users.FindByID(ctx, c.UserID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, err
	}
	if citizen != nil {
		out = append(out, delivery{
			recipient: *citizen,
			topic:     models.TopicStatusUpdates,
			email: func(ctx context.Context, to *models.User) error {
				return f.email.ComplaintSubmitted(ctx, to, c)
			},
		})
	}

	return out, func() (bool, error) {
		return f.complaints.ClaimCreatedNotification(ctx, c.ID, f.now())
	}, nil
}

func (f *NotificationFanout) statusUpdate(ctx context.Context, event *models.OutboxEvent) ([]delivery, func() (bool, error), error) {
	if event.EntryID == nil {
		return nil, nil, nil
	}
	c, err := f.complaints.FindByID(ctx, event.AggregateID)
	if err != nil {
		return nil, nil, err
	}
	update, err := f.complaints.FindStatusUpdate(ctx, *event.EntryID)
	if err != nil {
		return nil, nil, err
	}
	citizen, err := f.users.FindByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}

	d := delivery{
		recipient: *citizen,
		topic:     models.TopicStatusUpdates,
		note: newNotification("Complaint Status Updated",
			fmt.Sprintf(`Your complaint regarding "%s" has been updated to: %s`, c.Category, update.Status),
			models.NotificationTypeStatusUpdate, models.ComplaintRef(c.ID)),
		email: func(ctx context.Context, to *models.User) error {
			return f.email.StatusUpdated(ctx, to, c, update)
		},
	}
	return []delivery{d}, func() (bool, error) {
		return f.complaints.ClaimStatusUpdateNotification(ctx, update.ID, f.now())
	}, nil
}

func (f *NotificationFanout) comment(ctx context.Context, event *models.OutboxEvent) ([]delivery, func() (bool, error), error) {
	if event.EntryID == nil {
		return nil, nil, nil
	}
	c, err := f.complaints.FindByID(ctx, event.AggregateID)
	if err != nil {
		return nil, nil, err
	}
	comment, err := f.complaints.FindComment(ctx, *event.EntryID)
	if err != nil {
		return nil, nil, err
	}

	ref := models.ComplaintRef(c.ID)
	sendEmail := func(ctx context.Context, to *models.User) error {
		return f.email.CommentPosted(ctx, to, c, comment, event.ActorRole)
	}

	var out []delivery
	if event.ActorRole == models.RoleCitizen {
		admins, staff, err := f.staffAudience(ctx, c.DepartmentID)
		if err != nil {
			return nil, nil, err
		}
		for _, u := range append(admins, staff...) {
			if u.ID == event.ActorID {
				continue
			}
			out = append(out, delivery{
				recipient: u,
				topic:     models.TopicComments,
				note: newNotification("New Comment on Complaint",
					"The citizen added a comment to complaint #"+c.ID.String(),
					models.NotificationTypeComplaint, ref),
				email: sendEmail,
			})
		}
	} else {
		citizen, err := f.users.FindByID(ctx, c.UserID)
		if err != nil {
			return nil, nil, err
		}
		if citizen.ID != event.ActorID {
			out = append(out, delivery{
				recipient: *citizen,
				topic:     models.TopicComments,
				note: newNotification("New Comment on Your Complaint",
					event.ActorRole.Label()+" has added a comment to your complaint",
					models.NotificationTypeComplaint, ref),
				email: sendEmail,
			})
		}
	}

	return out, func() (bool, error) {
		return f.complaints.ClaimCommentNotification(ctx, comment.ID, f.now())
	}, nil
}

func (f *NotificationFanout) announcement(ctx context.Context, event *models.OutboxEvent) ([]delivery, func() (bool, error), error) {
	a, err := f.announcements.FindByID(ctx, event.AggregateID)
	if err != nil {
		return nil, nil, err
	}
	if a.Visibility != models.VisibilityPublic || a.Status != models.AnnouncementActive || a.IsExpired(f.now()) {
		return nil, nil, nil
	}

	citizens, err := f.users.ListByRole(ctx, models.RoleCitizen)
	if err != nil {
		return nil, nil, err
	}

	out := make([]delivery, 0, len(citizens))
	for _, u := range citizens {
		out = append(out, delivery{
			recipient: u,
			topic:     models.TopicAnnouncements,
			note: newNotification("New Announcement", a.Title,
				models.NotificationTypeAnnouncement, models.AnnouncementRef(a.ID)),
			email: func(ctx context.Context, to *models.User) error {
				return f.email.AnnouncementPublished(ctx, to, a)
			},
		})
	}
	return out, func() (bool, error) {
		return f.announcements.ClaimNotification(ctx, a.ID, f.now())
	}, nil
}

func newNotification(title, message string, kind models.NotificationType, related *models.RelatedEntity) *models.Notification {
	n := &models.Notification{
		Title:   title,
		Message: message,
		Type:    kind,
	}
	n.SetRelated(related)
	return n
}
