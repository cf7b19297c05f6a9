// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"net/mail"

	"github.com/dalemusser/waffle/pantry/email"
	"go.uber.org/zap"
)

// Email is one outbound message with a plain-text and an HTML body.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers an Email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// ErrNoRecipient is returned when Email.To is empty or unparsable.
var ErrNoRecipient = errors.New("mailer: missing or invalid recipient")

// New returns an SMTP sender, or a log-only sender when no host is configured.
func New(cfg Config, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		logger.Warn("mail_smtp_host not set; outbound email will only be logged")
		return &LogSender{Log: logger}
	}
	return &SMTP{sender: email.NewSender(smtpConfig(cfg)), log: logger}
}

// smtpConfig maps our settings onto the pantry sender. Port 465 uses
// implicit TLS; every other port requires STARTTLS.
func smtpConfig(cfg Config) email.Config {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return email.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.User,
		Password:    cfg.Pass,
		FromAddress: from,
		FromName:    cfg.FromName,
		UseSSL:      cfg.Port == 465,
	}
}

// SMTP sends mail through the waffle email sender.
type SMTP struct {
	sender *email.Sender
	log    *zap.Logger
}

// Send delivers e, honoring ctx for the dial and overall deadline.
func (m *SMTP) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	if _, err := mail.ParseAddress(e.To); err != nil {
		return ErrNoRecipient
	}
	return m.sender.Send(ctx, message(e))
}

func message(e Email) email.Message {
	return email.Message{
		To:       []string{e.To},
		Subject:  e.Subject,
		TextBody: e.TextBody,
		HTMLBody: e.HTMLBody,
	}
}

// LogSender records messages in the log instead of sending them.
// Used in development when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(_ context.Context, e Email) error {
	if e.To == "" {
		return ErrNoRecipient
	}
	s.Log.Info("email (not sent: smtp disabled)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	s.Log.Debug("email body", zap.String("text", e.TextBody))
	return nil
}
