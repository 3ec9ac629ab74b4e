package messaging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cuongbtq/jobmatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

// Store reads and writes conversations and messages
type Store struct {
	pg *postgresql.Client
	db *sqlx.DB
}

func NewStore(pg *postgresql.Client) *Store {
	return &Store{
		pg: pg,
		db: pg.GetDB(),
	}
}

const messageColumns = `id, conversation_id, sender_id, body, created_at, read_at`

// ListMessages returns up to limit messages of a conversation starting after
// cursor in the given order. A nil cursor starts from the newest (Desc) or
// oldest (Asc) message. The page is returned oldest first either way.
func (s *Store) ListMessages(ctx context.Context, conversationID string, cursor *Cursor, order Order, limit int) (Page, error) {
	if limit <= 0 {
		limit = PageSize
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1`
	args := []interface{}{conversationID}
	argIdx := 2

	cmp, dir := "<", "DESC"
	if order == Asc {
		cmp, dir = ">", "ASC"
	}

	if cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) %s ($%d, $%d)", cmp, argIdx, argIdx+1)
		args = append(args, cursor.CreatedAt, cursor.ID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at %s, id %s", dir, dir)

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit+1)

	var messages []Message
	if err := s.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return Page{}, fmt.Errorf("failed to list messages: %w", err)
	}

	page := Page{HasMore: len(messages) > limit}
	if page.HasMore {
		messages = messages[:limit]
	}
	if order == Desc {
		slices.Reverse(messages)
	}
	page.Messages = messages

	return page, nil
}

// CreateMessage stores a message and bumps the conversation's
// last_message_at in one transaction
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	var msg Message
	err := s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO messages (conversation_id, sender_id, body)
			VALUES ($1, $2, $3)
			RETURNING ` + messageColumns

		if err := tx.GetContext(ctx, &msg, insert, conversationID, senderID, body); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		update := `UPDATE conversations SET last_message_at = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, conversationID, msg.CreatedAt); err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &msg, nil
}

// MarkRead stamps read_at on every unread message the other side sent
func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	query := `
		UPDATE messages SET read_at = now()
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return n, nil
}

const conversationColumns = `id, worker_id, factory_id, job_id, created_at, last_message_at`

// GetConversation loads a conversation by id
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	if err := s.db.GetContext(ctx, &conv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// GetOrCreateConversation returns the conversation between a worker and a
// factory about jobID, creating it when needed. created reports whether a
// new row was inserted.
func (s *Store) GetOrCreateConversation(ctx context.Context, workerID, factoryID string, jobID *string) (conv *Conversation, created bool, err error) {
	if conv, err = s.findConversation(ctx, workerID, factoryID, jobID); err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return nil, false, err
	}

	var c Conversation
	insert := `
		INSERT INTO conversations (worker_id, factory_id, job_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING ` + conversationColumns

	err = s.db.GetContext(ctx, &c, insert, workerID, factoryID, jobID)
	switch {
	case err == nil:
		return &c, true, nil
	case errors.Is(err, sql.ErrNoRows):
		// another request created it first
		conv, err = s.findConversation(ctx, workerID, factoryID, jobID)
		return conv, false, err
	default:
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}
}

func (s *Store) findConversation(ctx context.Context, workerID, factoryID string, jobID *string) (*Conversation, error) {
	var conv Conversation
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE worker_id = $1 AND factory_id = $2 AND job_id IS NOT DISTINCT FROM $3
	`

	if err := s.db.GetContext(ctx, &conv, query, workerID, factoryID, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns the user's inbox, most recently active first
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.worker_id, c.factory_id, c.job_id, c.created_at, c.last_message_at,
			w.full_name AS worker_name,
			f.full_name AS factory_name,
			(
				SELECT COUNT(*) FROM messages m
				WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL
			) AS unread_count
		FROM conversations c
		JOIN profiles w ON w.id = c.worker_id
		JOIN profiles f ON f.id = c.factory_id
		WHERE c.worker_id = $1 OR c.factory_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
	`

	convs := []ConversationSummary{}
	if err := s.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}
