package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/cuongbtq/jobmatch-be/shared/logger"
)

const charsetUTF8 = "UTF-8"

// SESAPI is the slice of the SES client the sender uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends email through Amazon SES
type SESSender struct {
	from   string
	client SESAPI
	log    *slog.Logger
}

// NewSESSender loads AWS credentials from the default chain
func NewSESSender(ctx context.Context, cfg Config, log *slog.Logger) (*SESSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSESSenderWithClient(ses.NewFromConfig(awsCfg), cfg.From, log), nil
}

func NewSESSenderWithClient(client SESAPI, from string, log *slog.Logger) *SESSender {
	return &SESSender{
		from:   from,
		client: client,
		log:    log.With(logger.Scope("email.ses")),
	}
}

func (s *SESSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	body := &types.Body{
		Text: &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Text)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.HTML)}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	out, err := s.client.SendEmail(sendCtx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.recipient()},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		s.log.Error("Failed to send email",
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("ses send failed: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	s.log.Info("Email sent",
		slog.String("to", msg.To),
		slog.String("message_id", messageID),
	)
	return messageID, nil
}
