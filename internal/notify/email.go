// Package notify sends outbound email over SMTP.
package notify

import (
	"fmt"
	"net/smtp"

	"memberhub-api/internal/config"
)

// SMTPSender sends HTML mail through a plain-auth SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates a sender from SMTP config.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one HTML message to a single recipient.
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp not configured")
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	mime := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n"
	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n%s%s",
		to, s.cfg.From, subject, mime, htmlBody))

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
}
