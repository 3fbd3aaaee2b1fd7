package outbox

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/localmart/order/internal/dal/interfaces/ioutboxrepo"
	"github.com/localmart/order/internal/dal/rabbitmq"
	"github.com/spf13/viper"
)

// Worker drains the outbox table into RabbitMQ. Order state and its events
// commit together; this poller is the asynchronous half that makes the
// events actually leave the database.
type Worker struct {
	outboxRepo   ioutboxrepo.IOutboxRepository
	rabbitClient *rabbitmq.Client
	pollInterval time.Duration
	batchSize    int
	stopCh       chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(
	outboxRepo ioutboxrepo.IOutboxRepository,
	rabbitClient *rabbitmq.Client,
) *Worker {
	pollIntervalSeconds := viper.GetInt("rabbitmq.outbox.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 5
	}

	batchSize := viper.GetInt("rabbitmq.outbox.batch_size")
	if batchSize == 0 {
		batchSize = 100
	}

	return &Worker{
		outboxRepo:   outboxRepo,
		rabbitClient: rabbitClient,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		batchSize:    batchSize,
		stopCh:       make(chan struct{}),
	}
}

// Start begins publishing messages from the outbox.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.pollInterval, "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.publishPending(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) publishPending(ctx context.Context) {
	messages, err := w.outboxRepo.GetPendingMessages(ctx, w.batchSize)
	if err != nil {
		slog.Error("Failed to get pending messages from outbox", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Info("Publishing outbox messages", "count", len(messages))

	for _, msg := range messages {
		err := w.rabbitClient.Publish(rabbitmq.PublishConfig{
			Exchange:    msg.ExchangeName,
			RoutingKey:  msg.RoutingKey,
			ContentType: msg.ContentType,
			Body:        msg.Payload,
		})
		if err != nil {
			w.recordFailure(ctx, msg.ID, msg.RetryCount, msg.MaxRetries, err)

			continue
		}

		if err := w.outboxRepo.Delete(ctx, msg.ID); err != nil {
			slog.Error("Failed to delete published message from outbox",
				"outbox_id", msg.ID,
				"error", err,
			)
		}
	}
}

// recordFailure schedules the next attempt with exponential backoff, or
// drops the message once its retries are exhausted.
func (w *Worker) recordFailure(ctx context.Context, id int64, retryCount, maxRetries int, pubErr error) {
	newRetryCount := retryCount + 1

	if maxRetries > 0 && newRetryCount >= maxRetries {
		slog.Error("Dropping outbox message after exhausting retries",
			"outbox_id", id,
			"retry_count", newRetryCount,
			"error", pubErr,
		)
		if err := w.outboxRepo.Delete(ctx, id); err != nil {
			slog.Error("Failed to drop exhausted outbox message", "outbox_id", id, "error", err)
		}

		return
	}

	backoffSeconds := math.Pow(2, float64(newRetryCount)) * 15
	nextRetryAt := time.Now().Add(time.Duration(backoffSeconds) * time.Second)

	slog.Warn("Failed to publish message from outbox, will retry",
		"outbox_id", id,
		"retry_count", newRetryCount,
		"next_retry", nextRetryAt,
		"error", pubErr,
	)

	if err := w.outboxRepo.UpdateRetry(ctx, id, newRetryCount, pubErr.Error(), nextRetryAt); err != nil {
		slog.Error("Failed to update retry information", "outbox_id", id, "error", err)
	}
}
