package notification

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"rsi-tracker/internal/signal"
)

// EmailNotifier sends alerts through an SMTP relay.
type EmailNotifier struct {
	server     string
	port       int
	username   string
	password   string
	recipients []string
}

// NewEmailNotifier creates an email notifier. username doubles as the
// From address.
func NewEmailNotifier(server string, port int, username, password string, recipients []string) *EmailNotifier {
	return &EmailNotifier{
		server:     server,
		port:       port,
		username:   username,
		password:   password,
		recipients: recipients,
	}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, sig signal.Signal) error {
	if e.server == "" || e.username == "" || len(e.recipients) == 0 {
		return fmt.Errorf("email: %w", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	body := strings.ReplaceAll(messageText(sig), "\n", "\r\n")
	msg := strings.Join([]string{
		"From: " + e.username,
		"To: " + strings.Join(e.recipients, ", "),
		"Subject: " + subjectLine(sig),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
		"",
		"Generated by rsi-tracker. This is not financial advice.",
	}, "\r\n")

	// net/smtp has no context support; the dial is bounded by the
	// relay's own timeouts.
	addr := fmt.Sprintf("%s:%d", e.server, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.server)
	if err := smtp.SendMail(addr, auth, e.username, e.recipients, []byte(msg)); err != nil {
		return fmt.Errorf("email: send: %w", err)
	}

	log.Printf("[email] sent alert for %s to %d recipients", sig.Symbol, len(e.recipients))
	return nil
}
