// Package email sends transactional mail through Mailgun or Amazon SES,
// falling back to a logging sender when no provider is configured.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/cuongbtq/jobmatch-be/shared/logger"
)

const (
	ProviderMailgun = "mailgun"
	ProviderSES     = "ses"
)

// ErrInvalidMessage is returned before any provider call
var ErrInvalidMessage = errors.New("invalid email message")

// Message is one outbound email
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	if addr, err := mail.ParseAddress(m.To); err != nil || addr.Address != m.To {
		return fmt.Errorf("%w: bad recipient address", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidMessage)
	}
	return nil
}

// recipient formats the To header. Display names are quoted or RFC 2047
// encoded so commas and diacritics survive.
func (m Message) recipient() string {
	if m.ToName == "" {
		return m.To
	}
	return (&mail.Address{Name: m.ToName, Address: m.To}).String()
}

// Sender delivers a message and returns the provider's message id
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Config selects a provider
type Config struct {
	Provider       string
	From           string
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string
	SESRegion      string
}

// NewSender builds the sender for cfg.Provider. An empty provider, or
// Mailgun without an API key, yields a LogSender.
func NewSender(ctx context.Context, cfg Config, log *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case ProviderMailgun:
		if cfg.MailgunAPIKey == "" {
			log.Warn("Mailgun API key not set, emails will only be logged")
			return NewLogSender(log), nil
		}
		return NewMailgunSender(cfg, log), nil
	case ProviderSES:
		return NewSESSender(ctx, cfg, log)
	case "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %q", cfg.Provider)
	}
}

// LogSender writes messages to the log instead of sending them
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{logger: log.With(logger.Scope("email.log"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}
	s.logger.Info("Email not sent, no provider configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return "", nil
}
