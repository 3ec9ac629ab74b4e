package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/email"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/cuongbtq/jobmatch-be/internal/metrics"
	"github.com/cuongbtq/jobmatch-be/internal/worker/domain"
)

// processNotification emails the recipient of a new message unless it was
// read already. A returned RetryableError asks for a requeue.
func (w *Worker) processNotification(ctx context.Context, job *domain.NotificationJob) error {
	ev := job.Event
	messageID := job.MessageID()

	w.logger.Info("Processing notification",
		slog.String("message_id", messageID),
		slog.String("recipient_id", ev.RecipientID),
		slog.String("worker_id", w.workerID),
	)

	// Step 1: Claim the notification (new, FAILED or stale SENDING → SENDING)
	attempt, err := w.storage.ClaimNotification(ctx, messageID, ev.RecipientID, w.workerID, 3*w.heartbeatInterval)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyNotified) {
			w.logger.Warn("Notification already handled, skipping",
				slog.String("message_id", messageID),
			)
			return err
		}
		if errors.Is(err, domain.ErrNotificationInFlight) {
			// the holder may have crashed; retry until its claim goes stale
			return domain.NewRetryableError(err)
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim notification: %w", err))
	}

	// Step 2: Nothing to say if the recipient has seen it
	read, err := w.storage.IsMessageRead(ctx, messageID)
	if err != nil {
		return w.fail(ctx, messageID, attempt, err)
	}
	if read {
		w.logger.Info("Message already read, skipping email",
			slog.String("message_id", messageID),
		)
		w.mark(ctx, messageID, domain.NotificationStatusSkipped, "", "message already read")
		return nil
	}

	// Step 3: Resolve both parties
	recipient, err := w.storage.GetRecipient(ctx, ev.RecipientID)
	if err != nil {
		if errors.Is(err, domain.ErrRecipientNotFound) {
			w.mark(ctx, messageID, domain.NotificationStatusFailed, "", err.Error())
			return err
		}
		return w.fail(ctx, messageID, attempt, err)
	}
	if recipient.Email == "" {
		w.mark(ctx, messageID, domain.NotificationStatusSkipped, "", "recipient has no email")
		return nil
	}

	senderName := ""
	if sender, err := w.storage.GetRecipient(ctx, ev.Message.SenderID); err == nil {
		senderName = sender.FullName
	} else if !errors.Is(err, domain.ErrRecipientNotFound) {
		return w.fail(ctx, messageID, attempt, err)
	}

	msg := w.buildEmail(recipient, senderName, ev.Message.ConversationID, ev.Message.Body)

	// Step 4: Send under the job timeout with a heartbeat on the claim
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendHeartbeat(jobCtx, messageID, heartbeatDone)
	defer close(heartbeatDone)

	providerID, err := w.sender.Send(jobCtx, msg)
	if err != nil {
		if errors.Is(err, email.ErrInvalidMessage) {
			w.mark(ctx, messageID, domain.NotificationStatusFailed, "", err.Error())
			metrics.NotificationsFailed.WithLabelValues("false").Inc()
			return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
		}
		return w.fail(ctx, messageID, attempt, err)
	}

	// Step 5: Record success
	w.mark(ctx, messageID, domain.NotificationStatusSent, providerID, "")
	metrics.NotificationsSent.Inc()

	w.logger.Info("Notification sent",
		slog.String("message_id", messageID),
		slog.String("provider_id", providerID),
		slog.Int("attempt", attempt),
	)

	return nil
}

// fail records a FAILED attempt and decides whether the broker should
// redeliver it
func (w *Worker) fail(ctx context.Context, messageID string, attempt int, cause error) error {
	w.logger.Error("Notification attempt failed",
		slog.String("message_id", messageID),
		slog.Int("attempt", attempt),
		slog.String("error", cause.Error()),
	)

	w.mark(ctx, messageID, domain.NotificationStatusFailed, "", cause.Error())

	if attempt < domain.MaxAttempts {
		metrics.NotificationsFailed.WithLabelValues("true").Inc()
		return domain.NewRetryableError(fmt.Errorf("notification failed: %w", cause))
	}

	w.logger.Warn("Notification exceeded max attempts",
		slog.String("message_id", messageID),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", domain.MaxAttempts),
	)
	metrics.NotificationsFailed.WithLabelValues("false").Inc()
	return fmt.Errorf("%w: %w", domain.ErrMaxRetriesExceeded, cause)
}

func (w *Worker) mark(ctx context.Context, messageID, status, providerID, errorMsg string) {
	if err := w.storage.MarkNotification(ctx, messageID, status, providerID, errorMsg); err != nil {
		w.logger.Error("Failed to update notification status",
			slog.String("message_id", messageID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

// buildEmail renders the new message email in the recipient's language
func (w *Worker) buildEmail(recipient *domain.Recipient, senderName, conversationID, body string) email.Message {
	locale, ok := i18n.ParseLocale(recipient.Locale)
	if !ok {
		locale = i18n.DefaultLocale
	}

	params := map[string]string{
		"name":    recipient.FullName,
		"sender":  senderName,
		"preview": preview(body),
		"url":     strings.TrimRight(w.baseURL, "/") + "/messages/" + conversationID,
	}

	return email.Message{
		To:      recipient.Email,
		ToName:  recipient.FullName,
		Subject: w.translator.T(locale, "email.new_message.subject", params),
		Text:    w.translator.T(locale, "email.new_message.body", params),
	}
}

// preview cuts body to PreviewLength runes
func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= domain.PreviewLength {
		return body
	}
	return string(runes[:domain.PreviewLength]) + "…"
}

// sendHeartbeat keeps the claim fresh while the provider call is in flight
func (w *Worker) sendHeartbeat(ctx context.Context, messageID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.TouchNotification(ctx, messageID); err != nil {
				w.logger.Warn("Failed to update notification heartbeat",
					slog.String("message_id", messageID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
