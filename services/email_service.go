package services

import (
	"fmt"
	"net/smtp"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/utils"
)

// EmailSender delivers transactional mail (verification OTPs, password
// reset links).
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

var emailSenderInstance EmailSender

// InitEmailSender installs the SMTP sender from configuration. Without
// SMTP settings mail is logged instead of sent, which keeps local
// development working.
func InitEmailSender(cfg *config.Config) EmailSender {
	if cfg.SMTPHost == "" || cfg.SMTPUser == "" {
		log.Warn("SMTP not configured, emails will be logged only")
		emailSenderInstance = &logEmailSender{}
		return emailSenderInstance
	}
	emailSenderInstance = &SMTPEmailSender{
		from:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
	}
	return emailSenderInstance
}

// GetEmailSender returns the installed sender.
func GetEmailSender() EmailSender {
	return emailSenderInstance
}

// SetEmailSender installs a sender (primarily for testing)
func SetEmailSender(sender EmailSender) {
	emailSenderInstance = sender
}

// SMTPEmailSender sends HTML mail over authenticated SMTP. Sends are
// retried with the shared backoff helper.
type SMTPEmailSender struct {
	from     string
	password string
	host     string
	port     string
}

// SendEmail sends an HTML email with subject and body
func (s *SMTPEmailSender) SendEmail(to, subject, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"utf-8\"\r\n"+
			"\r\n%s\r\n",
		s.from, to, subject, body,
	))

	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	return utils.Retry(func() error {
		return smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{to}, msg)
	})
}

// logEmailSender is the development fallback: mail goes to the log.
type logEmailSender struct{}

func (l *logEmailSender) SendEmail(to, subject, body string) error {
	log.Infof("Email to %s: %s\n%s", to, subject, body)
	return nil
}

// MockEmailSender records sent mail for assertions in tests.
type MockEmailSender struct {
	mu   sync.Mutex
	Sent []MockEmail
}

// MockEmail is one recorded message.
type MockEmail struct {
	To      string
	Subject string
	Body    string
}

// NewMockEmailSender creates an empty mock sender.
func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

// SendEmail records the message.
func (m *MockEmailSender) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, MockEmail{To: to, Subject: subject, Body: body})
	return nil
}

// LastTo returns the recipient of the most recent message, or "".
func (m *MockEmailSender) LastTo() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ""
	}
	return m.Sent[len(m.Sent)-1].To
}
