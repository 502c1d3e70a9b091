package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/metrics"
	"github.com/prototrack/prototrack/pkg/model"
)

type Repository interface {
	ListPending(ctx context.Context, limit int) ([]model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, sendErr error, maxAttempts int) error
}

// Relay drains the notification outbox. It runs in its own process:
// delivery happens after, and independently of, the transaction that
// enqueued the row. Send failures are recorded and retried up to
// maxAttempts; they never reach the operation that triggered them.
type Relay struct {
	repo         Repository
	mailer       Mailer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

func NewRelay(repo Repository, mailer Mailer, logger *zap.Logger, pollInterval time.Duration, batchSize, maxAttempts int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Relay{
		repo:         repo,
		mailer:       mailer,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("notification relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("notification relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

func (r *Relay) ProcessPending(ctx context.Context) {
	notifications, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending notifications", zap.Error(err))
		return
	}

	for _, notification := range notifications {
		if err := r.deliver(ctx, notification); err != nil {
			r.logger.Warn("failed to deliver notification",
				zap.Error(err),
				zap.String("notification_id", notification.ID.String()),
				zap.String("kind", notification.Kind),
			)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, notification model.Notification) error {
	if err := r.mailer.Send(notification.Recipient, notification.Subject, notification.Body); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		if markErr := r.repo.MarkRetry(ctx, notification.ID, err, r.maxAttempts); markErr != nil {
			r.logger.Warn("failed to record delivery failure", zap.Error(markErr), zap.String("notification_id", notification.ID.String()))
		}
		return err
	}

	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	if err := r.repo.MarkSent(ctx, notification.ID, time.Now()); err != nil {
		r.logger.Warn("failed to mark notification sent", zap.Error(err), zap.String("notification_id", notification.ID.String()))
		return err
	}

	return nil
}
