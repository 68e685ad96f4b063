package mailer

import (
	"context"
	"net/smtp"

	"github.com/go-faster/errors"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Configured reports whether a relay host is set.
func (c SMTPConfig) Configured() bool {
	return c.Host != ""
}

// SMTPSender delivers mail through a plain-auth SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender creates an SMTPSender from relay settings.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg}
}

// SendEmail sends a single HTML email.
func (s *SMTPSender) SendEmail(_ context.Context, to, subject, body string) error {
	addr := s.cfg.Host + ":" + s.cfg.Port
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := []byte(
		"From: " + s.cfg.From + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body,
	)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

// NopSender drops every email. Used when no SMTP relay is configured so
// local environments work without one.
type NopSender struct{}

var _ Sender = NopSender{}

// SendEmail discards the message.
func (NopSender) SendEmail(_ context.Context, _, _, _ string) error { return nil }
