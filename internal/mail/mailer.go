package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer dispatches outbound email. Implementations may queue or send
// asynchronously; callers must not treat delivery failure as fatal.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer implements Mailer over a plain SMTP relay.
type SMTPMailer struct {
	addr   string
	from   string
	auth   smtp.Auth
	logger zerolog.Logger
}

// NewSMTPMailer creates an SMTP-backed mailer. Username may be empty for
// unauthenticated relays.
func NewSMTPMailer(host string, port int, username, password, from string, logger zerolog.Logger) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		auth:   auth,
		logger: logger.With().Str("component", "smtp-mailer").Logger(),
	}
}

// Send delivers the message through the configured relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		m.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Debug().Str("subject", msg.Subject).Msg("email sent")

	return nil
}

// LogMailer implements Mailer by logging message metadata only. Used in
// development when no SMTP relay is configured. Bodies are not logged; they
// may carry verification codes.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer creates a log-only mailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{
		logger: logger.With().Str("component", "log-mailer").Logger(),
	}
}

// Send logs the message metadata and discards the body.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email dispatch suppressed (no SMTP relay configured)")
	return nil
}
