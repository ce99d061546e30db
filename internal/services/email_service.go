package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"text/template"

	"github.com/civicdesk/backend/internal/apperr"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

const (
	TemplateComplaintSubmitted = "complaint_submitted"
	TemplateStatusUpdated      = "complaint_status_updated"
	TemplateCitizenComment     = "complaint_comment_citizen"
	TemplateStaffComment       = "complaint_comment_staff"
	TemplateAnnouncement       = "announcement_published"
)

type emailTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

type emailSource struct {
	subject, text, html string
}

const emailLayout = `<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #222;">
<p>Dear {{.RecipientName}},</p>
{{block "content" .}}{{end}}
{{if .PortalURL}}<p><a href="{{.PortalURL}}">Open the citizen portal</a></p>{{end}}
<p>Thank you,<br>Civic Desk</p>
</body></html>`

var emailSources = map[string]emailSource{
	TemplateComplaintSubmitted: {
		subject: "Complaint Submitted - Ticket #{{.TicketNumber}}",
		text: `Dear {{.RecipientName}},

Your complaint has been registered.
Ticket: #{{.TicketNumber}}
Category: {{.Category}}
Status: {{.Status}}

We will keep you informed about its progress.`,
		html: `{{define "content"}}<p>Your complaint has been registered.</p>
<table>
<tr><td><b>Ticket</b></td><td>#{{.TicketNumber}}</td></tr>
<tr><td><b>Category</b></td><td>{{.Category}}</td></tr>
<tr><td><b>Status</b></td><td>{{.Status}}</td></tr>
</table>
<p>We will keep you informed about its progress.</p>{{end}}`,
	},
	TemplateStatusUpdated: {
		subject: "Complaint Status Updated - Ticket #{{.TicketNumber}}",
		text: `Dear {{.RecipientName}},

Your complaint regarding "{{.Category}}" has been updated.
Ticket: #{{.TicketNumber}}
Status: {{.Status}}
{{if .Message}}Update: {{.Message}}{{end}}`,
		html: `{{define "content"}}<p>Your complaint regarding "{{.Category}}" has been updated.</p>
<table>
<tr><td><b>Ticket</b></td><td>#{{.TicketNumber}}</td></tr>
<tr><td><b>Status</b></td><td>{{.Status}}</td></tr>
</table>
{{if .Message}}<p>{{.Message}}</p>{{end}}{{end}}`,
	},
	TemplateStaffComment: {
		subject: "New Response on Your Complaint - Ticket #{{.TicketNumber}}",
		text: `Dear {{.RecipientName}},

{{.Actor}} has added a comment to your complaint #{{.TicketNumber}}:

{{.Message}}`,
		html: `{{define "content"}}<p>{{.Actor}} has added a comment to your complaint #{{.TicketNumber}}:</p>
<blockquote>{{.Message}}</blockquote>{{end}}`,
	},
	TemplateCitizenComment: {
		subject: "New Comment on Complaint - Ticket #{{.TicketNumber}}",
		text: `Dear {{.RecipientName}},

The citizen added a comment to complaint #{{.TicketNumber}} ({{.Category}}):

{{.Message}}`,
		html: `{{define "content"}}<p>The citizen added a comment to complaint #{{.TicketNumber}} ({{.Category}}):</p>
<blockquote>{{.Message}}</blockquote>{{end}}`,
	},
	TemplateAnnouncement: {
		subject: "New Announcement - {{.Title}}",
		text: `Dear {{.RecipientName}},

{{.Title}}

{{.Message}}`,
		html: `{{define "content"}}<h2>{{.Title}}</h2>
{{.ContentHTML}}{{end}}`,
	},
}

type emailData struct {
	RecipientName string
	TicketNumber  string
	Category      string
	Status        string
	Message       string
	Actor         string
	Title         string
	ContentHTML   htmltemplate.HTML
	PortalURL     string
}

// EmailService renders the transactional e-mails and records every attempt in
// the notification log.
type EmailService struct {
	mailer    Mailer
	logRepo   repository.NotificationLogRepository
	content   *ContentPolicy
	portalURL string
	templates map[string]*emailTemplate
	log       *slog.Logger
}

func NewEmailService(
	mailer Mailer,
	logRepo repository.NotificationLogRepository,
	content *ContentPolicy,
	portalURL string,
) *EmailService {
	templates := make(map[string]*emailTemplate, len(emailSources))
	for code, src := range emailSources {
		layout := htmltemplate.Must(htmltemplate.New(code).Parse(emailLayout))
		templates[code] = &emailTemplate{
			subject: template.Must(template.New(code + "_subject").Option("missingkey=zero").Parse(src.subject)),
			text:    template.Must(template.New(code + "_text").Option("missingkey=zero").Parse(src.text)),
			html:    htmltemplate.Must(layout.Parse(src.html)),
		}
	}

	return &EmailService{
		mailer:    mailer,
		logRepo:   logRepo,
		content:   content,
		portalURL: strings.TrimRight(portalURL, "/"),
		templates: templates,
		log:       logger.WithComponent("email"),
	}
}

func (s *EmailService) complaintURL(c *models.Complaint) string {
	if s.portalURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/complaints/%s", s.portalURL, c.ID)
}

// ComplaintSubmitted confirms a new complaint to the citizen who filed it.
func (s *EmailService) ComplaintSubmitted(ctx context.Context, to *models.User, c *models.Complaint) error {
	return s.send(ctx, to, TemplateComplaintSubmitted, emailData{
		TicketNumber: c.TicketNumber(),
		Category:     c.Category,
		Status:       string(c.Status),
		PortalURL:    s.complaintURL(c),
	})
}

func (s *EmailService) StatusUpdated(ctx context.Context, to *models.User, c *models.Complaint, update *models.ComplaintStatusUpdate) error {
	return s.send(ctx, to, TemplateStatusUpdated, emailData{
		TicketNumber: c.TicketNumber(),
		Category:     c.Category,
		Status:       string(update.Status),
		Message:      update.Message,
		PortalURL:    s.complaintURL(c),
	})
}

// CommentPosted tells the other side of the complaint about a new comment.
// actor is the role of the comment author.
func (s *EmailService) CommentPosted(ctx context.Context, to *models.User, c *models.Complaint, comment *models.ComplaintComment, actor models.Role) error {
	code := TemplateStaffComment
	if actor == models.RoleCitizen {
		code = TemplateCitizenComment
	}
	return s.send(ctx, to, code, emailData{
		TicketNumber: c.TicketNumber(),
		Category:     c.Category,
		Message:      comment.Text,
		Actor:        actor.Label(),
		PortalURL:    s.complaintURL(c),
	})
}

func (s *EmailService) AnnouncementPublished(ctx context.Context, to *models.User, a *models.Announcement) error {
	rendered, err := s.content.MarkdownHTML(a.Content)
	if err != nil {
		return apperr.Internal("failed to render announcement", err)
	}
	return s.send(ctx, to, TemplateAnnouncement, emailData{
		Title:       a.Title,
		Message:     a.Content,
		ContentHTML: htmltemplate.HTML(rendered),
		PortalURL:   s.portalURL,
	})
}

func (s *EmailService) send(ctx context.Context, to *models.User, code string, data emailData) error {
	tpl, ok := s.templates[code]
	if !ok {
		return apperr.Internal("unknown e-mail template "+code, nil)
	}
	data.RecipientName = to.Name

	msg, err := render(tpl, to.Email, data)
	if err != nil {
		return apperr.Internal("failed to render e-mail", err)
	}

	entry := &models.NotificationLog{
		Channel:         "email",
		TemplateCode:    code,
		RecipientUserID: &to.ID,
		Recipient:       to.Email,
		Subject:         msg.Subject,
		Body:            msg.TextBody,
		Provider:        s.mailer.Provider(),
		Status:          "sent",
	}
	if entry.Provider == "mock" {
		entry.Status = "mock-sent"
	}

	sendErr := s.mailer.Send(ctx, msg)
	if sendErr != nil {
		entry.Status = "failed"
		entry.ErrorMessage = sendErr.Error()
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.log.Error("failed to write notification log", "template", code, "recipient", to.Email, "error", err)
	}

	if sendErr != nil {
		s.log.Warn("e-mail delivery failed", "template", code, "recipient", to.Email, "error", sendErr)
		return apperr.Dependency("e-mail delivery failed", sendErr)
	}
	s.log.Debug("e-mail sent", "template", code, "recipient", to.Email, "provider", entry.Provider)
	return nil
}

func render(tpl *emailTemplate, to string, data emailData) (*EmailMessage, error) {
	var subject, text, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := tpl.html.Execute(&body, data); err != nil {
		return nil, err
	}
	return &EmailMessage{
		To:       to,
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: body.String(),
	}, nil
}
