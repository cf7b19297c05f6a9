package mailer

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestBuildVerificationEmail(t *testing.T) {
	e := BuildVerificationEmail("citizen@example.com", VerificationEmailData{
		SiteName:  "EkoMurojaat",
		Username:  "alice",
		Code:      "123456",
		CheckURL:  "https://eko.example/check-code/",
		ExpiresIn: "10 minutes",
	})

	if e.To != "citizen@example.com" {
		t.Errorf("To = %q", e.To)
	}
	if !strings.Contains(e.Subject, "EkoMurojaat") {
		t.Errorf("Subject = %q", e.Subject)
	}
	for _, body := range []string{e.TextBody, e.HTMLBody} {
		if !strings.Contains(body, "123456") {
			t.Error("body missing code")
		}
		if !strings.Contains(body, "https://eko.example/check-code/") {
			t.Error("body missing check url")
		}
		if !strings.Contains(body, "10 minutes") {
			t.Error("body missing expiry")
		}
	}
}

func TestBuildVerificationEmail_EscapesHTML(t *testing.T) {
	e := BuildVerificationEmail("x@example.com", VerificationEmailData{
		SiteName: "EkoMurojaat", Username: "<b>bob</b>", Code: "000111", ExpiresIn: "10 minutes",
	})
	if strings.Contains(e.HTMLBody, "<b>bob</b>") {
		t.Error("username was not escaped in html body")
	}
}

func TestSMTPConfig(t *testing.T) {
	cfg := smtpConfig(Config{Host: "smtp.eko.example", Port: 587, User: "mailer@eko.example", Pass: "pw", FromName: "EkoMurojaat"})
	if cfg.FromAddress != "mailer@eko.example" {
		t.Errorf("FromAddress = %q, want the smtp user when mail_from is blank", cfg.FromAddress)
	}
	if cfg.UseSSL {
		t.Error("port 587 should not use implicit TLS")
	}
	if cfg.Username != "mailer@eko.example" || cfg.Password != "pw" || cfg.FromName != "EkoMurojaat" {
		t.Errorf("unexpected config %+v", cfg)
	}

	cfg = smtpConfig(Config{Host: "smtp.eko.example", Port: 465, User: "u", From: "noreply@eko.example"})
	if !cfg.UseSSL {
		t.Error("port 465 should use implicit TLS")
	}
	if cfg.FromAddress != "noreply@eko.example" {
		t.Errorf("FromAddress = %q", cfg.FromAddress)
	}
}

func TestMessage(t *testing.T) {
	msg := message(Email{To: "citizen@example.com", Subject: "Hello", TextBody: "plain body", HTMLBody: "<p>html body</p>"})
	if len(msg.To) != 1 || msg.To[0] != "citizen@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	if msg.Subject != "Hello" || msg.TextBody != "plain body" || msg.HTMLBody != "<p>html body</p>" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestNew_NoHostLogsOnly(t *testing.T) {
	s := New(Config{}, zap.NewNop())
	if _, ok := s.(*LogSender); !ok {
		t.Fatalf("expected *LogSender, got %T", s)
	}
	if err := s.Send(context.Background(), Email{To: "a@example.com", Subject: "x"}); err != nil {
		t.Errorf("Send: %v", err)
	}
	if err := s.Send(context.Background(), Email{}); err != ErrNoRecipient {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSMTP_InvalidRecipient(t *testing.T) {
	s := New(Config{Host: "localhost"}, zap.NewNop())
	if err := s.Send(context.Background(), Email{To: "not an address"}); err != ErrNoRecipient {
		t.Errorf("expected ErrNoRecipient, got %v", err)
	}
}
