package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender logs emails instead of sending them. Used in development.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email (development)",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return nil
}

// ResendSender sends emails via the Resend API. Used in production.
type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender outside production, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env != "production" {
		return &LogSender{logger: logger.With("component", "email")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}
