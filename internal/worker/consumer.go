package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumer starts consuming the notifier queue. Prefetch is applied
// by the broker client when the queue is declared.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// Create unique consumer tag using worker ID
	consumerTag := w.workerID

	deliveries, err := w.source.Consume(consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", consumerTag),
		slog.String("worker_id", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to RabbitMQ deliveries and dispatches
// events to the worker pool. It reports true when the delivery channel
// closed underneath it.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return false

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return true
			}

			ev, err := messaging.DecodeEvent(delivery.Body)
			if err != nil {
				w.logger.Error("Failed to parse event",
					slog.String("error", fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err).Error()),
					slog.String("body", string(delivery.Body)),
				)
				// NACK message without requeue - malformed messages should go to DLQ
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ev.Type != messaging.EventMessageCreated || ev.RecipientID == "" {
				w.logger.Debug("Ignoring event",
					slog.String("type", ev.Type),
					slog.String("message_id", ev.Message.ID),
				)
				if ackErr := delivery.Ack(false); ackErr != nil {
					w.logger.Error("Failed to ACK ignored event",
						slog.String("error", ackErr.Error()),
					)
				}
				continue
			}

			job := &domain.NotificationJob{
				Event:    ev,
				Delivery: delivery,
			}

			// Send to worker pool via jobsChan
			select {
			case w.jobsChan <- job:
				w.logger.Debug("Notification dispatched to worker pool",
					slog.String("message_id", job.MessageID()),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching")
				// NACK the message so it can be reprocessed
				if nackErr := delivery.Nack(false, true); nackErr != nil && !errors.Is(nackErr, amqp.ErrClosed) {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return false
			}
		}
	}
}
