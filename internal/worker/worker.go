// Package worker runs the notifier: a pool that consumes message events
// and emails the recipient about each new message.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/email"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/worker/domain"
	"github.com/google/uuid"
)

// Storage is the persistence the notifier needs
type Storage interface {
	GetRecipient(ctx context.Context, userID string) (*domain.Recipient, error)
	IsMessageRead(ctx context.Context, messageID string) (bool, error)
	ClaimNotification(ctx context.Context, messageID, recipientID, workerID string, staleAfter time.Duration) (int, error)
	MarkNotification(ctx context.Context, messageID, status, providerID, errorMsg string) error
	TouchNotification(ctx context.Context, messageID string) error
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Storage           Storage
	Source            messaging.DeliverySource
	QueueName         string
	Sender            email.Sender
	Translator        *i18n.Translator
	BaseURL           string
	Concurrency       int
	MaxJobs           int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	// InFlightRetryDelay is how long to hold a delivery whose notification
	// another worker is still sending before requeueing it. Defaults to
	// HeartbeatInterval.
	InFlightRetryDelay time.Duration
}

// Worker represents the background notification worker
type Worker struct {
	logger            *slog.Logger
	storage           Storage
	source            messaging.DeliverySource
	queueName         string
	sender            email.Sender
	translator        *i18n.Translator
	baseURL           string
	workerID          string
	concurrency       int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	inFlightDelay     time.Duration
	jobsChan          chan *domain.NotificationJob
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	inFlightDelay := cfg.InFlightRetryDelay
	if inFlightDelay <= 0 {
		inFlightDelay = heartbeat
	}

	return &Worker{
		logger:            cfg.Logger,
		storage:           cfg.Storage,
		source:            cfg.Source,
		queueName:         cfg.QueueName,
		sender:            cfg.Sender,
		translator:        cfg.Translator,
		baseURL:           cfg.BaseURL,
		workerID:          "notifier-" + uuid.NewString(),
		concurrency:       cfg.Concurrency,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		inFlightDelay:     inFlightDelay,
		jobsChan:          make(chan *domain.NotificationJob, cfg.MaxJobs),
		stopChan:          make(chan struct{}),
	}
}

// Start consumes events until ctx is canceled or the broker closes the
// delivery channel
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	if closed := w.startMessageDispatcher(ctx, deliveries); closed {
		return fmt.Errorf("delivery channel closed")
	}

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
