package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailNotifier sends plain-text mail over SMTP with optional auth.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers text to the recipient address. The subject line is fixed;
// these are short alert messages, not templated mail.
func (e *EmailNotifier) Send(ctx context.Context, recipient, text string) error {
	if e.host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + recipient,
		"Subject: IoT device alert",
		"",
		text,
	}, "\r\n")

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	// smtp.SendMail has no context support; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := smtp.SendMail(addr, auth, e.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
