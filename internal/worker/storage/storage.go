package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the notifier
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetRecipient loads the profile an email is addressed to
func (s *Storage) GetRecipient(ctx context.Context, userID string) (*domain.Recipient, error) {
	query := `
		SELECT id, email, full_name, COALESCE(locale, '') AS locale
		FROM profiles
		WHERE id = $1
	`

	var r domain.Recipient
	if err := s.db.GetContext(ctx, &r, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecipientNotFound
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	return &r, nil
}

// IsMessageRead reports whether the recipient already read the message
func (s *Storage) IsMessageRead(ctx context.Context, messageID string) (bool, error) {
	query := `SELECT read_at IS NOT NULL FROM messages WHERE id = $1`

	var read bool
	if err := s.db.QueryRowContext(ctx, query, messageID).Scan(&read); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// deleted since; nothing to tell anyone about
			return true, nil
		}
		return false, fmt.Errorf("failed to check message: %w", err)
	}

	return read, nil
}

// ClaimNotification takes the right to email about a message. A new row
// starts at attempt 1; a FAILED row, or a SENDING row whose heartbeat is
// older than staleAfter, is taken over with the attempt count bumped.
// Returns the attempt number, ErrNotificationInFlight while a fresh SENDING
// claim exists, or ErrAlreadyNotified once the row is final.
func (s *Storage) ClaimNotification(ctx context.Context, messageID, recipientID, workerID string, staleAfter time.Duration) (int, error) {
	query := `
		INSERT INTO message_notifications (
			message_id, recipient_id, worker_id, status, attempts, updated_at
		) VALUES (
			$1, $2, $3, $4, 1, NOW()
		)
		ON CONFLICT (message_id) DO UPDATE
		SET worker_id = EXCLUDED.worker_id,
		    status = EXCLUDED.status,
		    attempts = message_notifications.attempts + 1,
		    updated_at = NOW()
		WHERE message_notifications.status = $5
		   OR (message_notifications.status = $4
		       AND message_notifications.updated_at < NOW() - make_interval(secs => $6))
		RETURNING attempts
	`

	var attempts int
	err := s.db.QueryRowContext(ctx, query,
		messageID, recipientID, workerID,
		domain.NotificationStatusSending, domain.NotificationStatusFailed,
		staleAfter.Seconds(),
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, s.claimConflict(ctx, messageID, workerID)
		}
		return 0, fmt.Errorf("failed to claim notification: %w", err)
	}

	s.logger.Debug("Notification claimed",
		slog.String("message_id", messageID),
		slog.String("worker_id", workerID),
		slog.Int("attempt", attempts),
	)

	return attempts, nil
}

// claimConflict explains why a claim matched no row
func (s *Storage) claimConflict(ctx context.Context, messageID, workerID string) error {
	var status string
	query := `SELECT status FROM message_notifications WHERE message_id = $1`
	if err := s.db.QueryRowContext(ctx, query, messageID).Scan(&status); err != nil {
		return fmt.Errorf("failed to read notification status: %w", err)
	}

	if status == domain.NotificationStatusSending {
		s.logger.Warn("Failed to claim notification - another worker is sending",
			slog.String("message_id", messageID),
			slog.String("worker_id", workerID),
		)
		return domain.ErrNotificationInFlight
	}

	s.logger.Warn("Failed to claim notification - already handled",
		slog.String("message_id", messageID),
		slog.String("worker_id", workerID),
		slog.String("status", status),
	)
	return domain.ErrAlreadyNotified
}

// MarkNotification records the outcome of a send
func (s *Storage) MarkNotification(ctx context.Context, messageID, status, providerID, errorMsg string) error {
	query := `
		UPDATE message_notifications
		SET status = $1::text,
			provider_message_id = NULLIF($2, ''),
			error_message = NULLIF($3, ''),
			sent_at = CASE WHEN $1::text = $4::text THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE message_id = $5
	`

	_, err := s.db.ExecContext(ctx, query, status, providerID, errorMsg, domain.NotificationStatusSent, messageID)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	s.logger.Info("Notification status updated",
		slog.String("message_id", messageID),
		slog.String("status", status),
	)

	return nil
}

// TouchNotification refreshes the heartbeat of a claim that is still sending
func (s *Storage) TouchNotification(ctx context.Context, messageID string) error {
	query := `
		UPDATE message_notifications
		SET updated_at = NOW()
		WHERE message_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, messageID, domain.NotificationStatusSending)
	if err != nil {
		return fmt.Errorf("failed to update notification heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Notification heartbeat update - no rows affected",
			slog.String("message_id", messageID),
		)
	}

	return nil
}
