package services

import (
	"context"
	"sync"

	"gopkg.in/gomail.v2"

	"github.com/civicdesk/backend/internal/config"
)

type EmailMessage struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
	Provider() string
}

// NewMailer returns the SMTP mailer, or the mock mailer when no SMTP host is
// configured.
func NewMailer(cfg *config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return NewMockMailer()
	}
	return NewSMTPMailer(cfg)
}

type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(cfg *config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

func (m *SMTPMailer) Provider() string { return "smtp" }

func (m *SMTPMailer) Send(ctx context.Context, msg *EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetAddressHeader("From", m.from, m.fromName)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		message.AddAlternative("text/html", msg.HTMLBody)
	}

	return m.dialer.DialAndSend(message)
}

// MockMailer records messages instead of delivering them.
type MockMailer struct {
	mu   sync.Mutex
	sent []EmailMessage
	// Fail, when set, is returned by Send.
	Fail error
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Provider() string { return "mock" }

func (m *MockMailer) Send(ctx context.Context, msg *EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.sent = append(m.sent, *msg)
	return nil
}

func (m *MockMailer) Sent() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
