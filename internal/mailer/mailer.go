package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer delivers operator alerts. Best-effort at every call site:
// callers log a send failure and move on.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   string
	to     string
	logger *zap.Logger
}

func NewSendGridMailer(apiKey, from, to string, logger *zap.Logger) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		to:     to,
		logger: logger,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("", m.from),
		subject,
		mail.NewEmail("", m.to),
		body,
		body,
	)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert email rejected with status %d: %s", resp.StatusCode, resp.Body)
	}

	m.logger.Info("alert email sent", zap.String("subject", subject))
	return nil
}
