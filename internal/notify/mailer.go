package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"clubhub/internal/config"
	"clubhub/internal/logger"
)

// Message is a plain-text email to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msgs ...Message) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer returns an SMTP mailer, or a logging mailer when SMTP is not configured.
func NewMailer(settings config.SMTPSettings, log logger.Logger) Mailer {
	if settings.Host == "" {
		return &logMailer{log: log}
	}
	return &smtpMailer{
		dialer: gomail.NewDialer(settings.Host, settings.Port, settings.Username, settings.Password),
		from:   settings.From,
	}
}

// Send delivers all messages over one SMTP connection.
func (m *smtpMailer) Send(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sender, err := m.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer sender.Close()

	for _, msg := range msgs {
		gm := gomail.NewMessage()
		gm.SetHeader("From", m.from)
		gm.SetHeader("To", msg.To)
		gm.SetHeader("Subject", msg.Subject)
		gm.SetBody("text/plain", msg.Body)
		if err := gomail.Send(sender, gm); err != nil {
			return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
		}
	}
	return nil
}

type logMailer struct {
	log logger.Logger
}

func (m *logMailer) Send(_ context.Context, msgs ...Message) error {
	for _, msg := range msgs {
		m.log.Info("email (smtp disabled) to=", msg.To, " subject=", msg.Subject)
	}
	return nil
}
