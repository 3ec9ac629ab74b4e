package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource yields broker deliveries
type DeliverySource interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Bridge feeds message events from the broker into the local Hub
type Bridge struct {
	source DeliverySource
	hub    *Hub
	tag    string
	logger *slog.Logger

	running atomic.Bool
}

func NewBridge(source DeliverySource, hub *Hub, consumerTag string, logger *slog.Logger) *Bridge {
	return &Bridge{
		source: source,
		hub:    hub,
		tag:    consumerTag,
		logger: logger,
	}
}

// Run consumes until ctx is done or the delivery channel closes
func (b *Bridge) Run(ctx context.Context) error {
	deliveries, err := b.source.Consume(b.tag)
	if err != nil {
		return fmt.Errorf("failed to start bridge consumer: %w", err)
	}

	b.running.Store(true)
	defer b.running.Store(false)

	b.logger.Info("Message bridge started",
		slog.String("consumer_tag", b.tag),
	)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Message bridge stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			b.handle(d)
		}
	}
}

// Healthy reports whether Run is consuming. Live streams stop receiving
// other processes' messages once it turns false.
func (b *Bridge) Healthy() bool {
	return b.running.Load()
}

func (b *Bridge) handle(d amqp.Delivery) {
	ev, err := DecodeEvent(d.Body)
	if err != nil {
		b.logger.Warn("Discarding malformed message event",
			slog.Any("error", err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			b.logger.Error("Failed to NACK event", slog.Any("error", nackErr))
		}
		return
	}

	if ev.Type == EventMessageCreated {
		n := b.hub.Publish(ev.Message)
		b.logger.Debug("Relayed message event",
			slog.String("conversation_id", ev.Message.ConversationID),
			slog.String("message_id", ev.Message.ID),
			slog.Int("subscribers", n),
		)
	}

	if err := d.Ack(false); err != nil {
		b.logger.Error("Failed to ACK event", slog.Any("error", err))
	}
}
