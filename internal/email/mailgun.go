package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobmatch-be/shared/logger"
	"github.com/mailgun/mailgun-go/v4"
)

const sendTimeout = 30 * time.Second

// MailgunSender sends email through the Mailgun API
type MailgunSender struct {
	from   string
	client *mailgun.MailgunImpl
	log    *slog.Logger
}

func NewMailgunSender(cfg Config, log *slog.Logger) *MailgunSender {
	client := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	if cfg.MailgunAPIBase != "" {
		client.SetAPIBase(cfg.MailgunAPIBase)
	}

	return &MailgunSender{
		from:   cfg.From,
		client: client,
		log:    log.With(logger.Scope("email.mailgun")),
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	message := s.client.NewMessage(s.from, msg.Subject, msg.Text, msg.recipient())
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, messageID, err := s.client.Send(sendCtx, message)
	if err != nil {
		s.log.Error("Failed to send email",
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("mailgun send failed: %w", err)
	}

	s.log.Info("Email sent",
		slog.String("to", msg.To),
		slog.String("message_id", messageID),
	)
	return messageID, nil
}
