// Package messaging holds worker/factory conversations: storage with keyset
// pagination, an in-process live hub fed from RabbitMQ, and a per-viewer
// View that merges history with live delivery.
package messaging

import (
	"errors"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/pagination"
)

// PageSize is how many messages one history page holds
const PageSize = 50

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyBody            = errors.New("message body is empty")
)

// Message is one chat line
type Message struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	Body           string     `db:"body" json:"body"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// before reports whether m sorts ahead of other in (created_at, id) order
func (m Message) before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Cursor is a keyset position in a conversation's message log
type Cursor = pagination.Cursor

// CursorOf returns the position of m
func CursorOf(m Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Order is the direction of a keyset scan
type Order int

const (
	// Desc walks from the newest message backwards
	Desc Order = iota
	// Asc walks forward from the cursor
	Asc
)

// Page is one slice of history, always in chronological order
type Page struct {
	Messages []Message
	HasMore  bool
}

// Conversation links one worker and one factory, optionally about a job
type Conversation struct {
	ID            string     `db:"id" json:"id"`
	WorkerID      string     `db:"worker_id" json:"worker_id"`
	FactoryID     string     `db:"factory_id" json:"factory_id"`
	JobID         *string    `db:"job_id" json:"job_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
}

// HasParticipant reports whether userID is one side of the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.WorkerID == userID || c.FactoryID == userID)
}

// Counterpart returns the other side's id
func (c *Conversation) Counterpart(userID string) string {
	if c.WorkerID == userID {
		return c.FactoryID
	}
	return c.WorkerID
}

// ConversationSummary is a row of a user's inbox
type ConversationSummary struct {
	Conversation
	WorkerName  string `db:"worker_name" json:"worker_name"`
	FactoryName string `db:"factory_name" json:"factory_name"`
	UnreadCount int    `db:"unread_count" json:"unread_count"`
}
