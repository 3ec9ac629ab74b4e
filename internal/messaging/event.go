package messaging

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventMessageCreated is published after a message is stored
const EventMessageCreated = "message.created"

const eventContentType = "application/json"

// Event is the wire payload on the message exchange
type Event struct {
	Type        string  `json:"type"`
	Message     Message `json:"message"`
	RecipientID string  `json:"recipient_id"`
}

// Publisher sends raw event bodies to the broker. Publish is called on the
// request path and must not retry.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// PublishCreated announces a stored message to every API process and the
// notifier
func PublishCreated(ctx context.Context, pub Publisher, msg Message, recipientID string) error {
	body, err := json.Marshal(Event{
		Type:        EventMessageCreated,
		Message:     msg,
		RecipientID: recipientID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return pub.Publish(ctx, body, eventContentType)
}

// DecodeEvent parses an event body
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if ev.Type == "" || ev.Message.ID == "" || ev.Message.ConversationID == "" {
		return Event{}, fmt.Errorf("incomplete event")
	}
	return ev, nil
}
