package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
		slog.Int("worker_num", workerNum),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case job, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handleJob(ctx, workerName, job)
		}
	}
}

// handleJob processes one notification and settles its delivery
func (w *Worker) handleJob(ctx context.Context, workerName string, job *domain.NotificationJob) {
	w.logger.Info("Worker received notification",
		slog.String("worker_name", workerName),
		slog.String("message_id", job.MessageID()),
		slog.Uint64("delivery_tag", job.Delivery.DeliveryTag),
	)

	err := w.processNotification(ctx, job)
	if err == nil {
		if ackErr := job.Delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("message_id", job.MessageID()),
				slog.String("error", ackErr.Error()),
			)
			return
		}
		w.logger.Info("Notification handled",
			slog.String("worker_name", workerName),
			slog.String("message_id", job.MessageID()),
		)
		return
	}

	w.logger.Error("Notification processing failed",
		slog.String("worker_name", workerName),
		slog.String("message_id", job.MessageID()),
		slog.String("error", err.Error()),
	)

	requeue := shouldRequeue(err)
	if requeue && errors.Is(err, domain.ErrNotificationInFlight) {
		w.holdInFlight(ctx)
	}

	if nackErr := job.Delivery.Nack(false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("message_id", job.MessageID()),
			slog.String("error", nackErr.Error()),
		)
		return
	}
	w.logger.Info("Message NACKed",
		slog.String("worker_name", workerName),
		slog.String("message_id", job.MessageID()),
		slog.Bool("requeue", requeue),
	)
}

// holdInFlight delays the requeue of a delivery another worker is sending,
// so it is not redelivered in a tight loop while that claim is fresh
func (w *Worker) holdInFlight(ctx context.Context) {
	timer := time.NewTimer(w.inFlightDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-w.stopChan:
	}
}

// shouldRequeue determines if a delivery should be requeued based on the error type
func shouldRequeue(err error) bool {
	// Another worker owns it or already sent it
	if errors.Is(err, domain.ErrAlreadyNotified) {
		return false
	}

	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	if errors.Is(err, domain.ErrInvalidPayload) {
		return false
	}

	if errors.Is(err, domain.ErrRecipientNotFound) {
		return false
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}
