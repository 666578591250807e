package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       []string
}

// EmailNotifier sends reminders via SMTP.
type EmailNotifier struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:  cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (s *EmailNotifier) message(r Reminder) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = s.cfg.To
	e.Subject = fmt.Sprintf("%s payment due %s", r.Card.Name, r.DueDate.Format("Jan 2"))

	var body strings.Builder
	fmt.Fprintf(&body, "Hello,\n\n")
	fmt.Fprintf(&body, "Your %s installments for %s add up to %s and are due on %s.\n",
		r.Card.Name, r.Period.FirstDay().Format("January 2006"),
		r.Amount.Decimal().StringFixed(2), r.DueDate.Format("Monday, January 2"))
	fmt.Fprintf(&body, "Mark the card as paid on the dashboard once settled.\n")
	e.Text = []byte(body.String())
	return e
}

func (s *EmailNotifier) Notify(ctx context.Context, r Reminder) error {
	e := s.message(r)
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(e, addr, auth); err != nil {
		slog.ErrorContext(ctx, "Failed to send email", "to", strings.Join(s.cfg.To, ","), "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.InfoContext(ctx, "Email sent", "to", strings.Join(s.cfg.To, ","), "subject", e.Subject)
	return nil
}
