package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var notifications []model.Notification
	err := r.db.WithContext(ctx).
		Where("status = ?", model.NotificationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	updates := map[string]interface{}{
		"status":       model.NotificationStatusSent,
		"delivered_at": deliveredAt,
		"attempts":     gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkRetry records a failed attempt but leaves the row pending; once
// attempts reach maxAttempts the row is marked failed for good.
func (r *NotificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, sendErr error, maxAttempts int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var notification model.Notification
		if err := tx.First(&notification, "id = ?", id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{
			"attempts":   notification.Attempts + 1,
			"last_error": sendErr.Error(),
		}
		if notification.Attempts+1 >= maxAttempts {
			updates["status"] = model.NotificationStatusFailed
		}
		return tx.Model(&model.Notification{}).Where("id = ?", id).Updates(updates).Error
	})
}
