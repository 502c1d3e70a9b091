package postgres

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

// AuditFilter narrows the audit-trail listing. Number and Actor are
// case-insensitive substring matches; the date range bounds OccurredAt
// and DateTo is inclusive of the whole day.
type AuditFilter struct {
	Number   string
	Actor    string
	DateFrom *time.Time
	DateTo   *time.Time
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// List pages through audit entries newest-first across all protocols.
// Entries are append-only, so this is the full compliance trail.
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.AuditEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.AuditEntry{}).
		Joins("JOIN protocols ON protocols.id = audit_entries.protocol_id").
		Joins("JOIN users ON users.id = audit_entries.actor_id")

	if filter.Number != "" {
		query = query.Where("LOWER(protocols.number) LIKE ?", "%"+strings.ToLower(filter.Number)+"%")
	}
	if filter.Actor != "" {
		term := "%" + strings.ToLower(filter.Actor) + "%"
		query = query.Where("LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ?", term, term)
	}
	if filter.DateFrom != nil {
		query = query.Where("audit_entries.occurred_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		end := filter.DateTo.AddDate(0, 0, 1)
		query = query.Where("audit_entries.occurred_at < ?", end)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.AuditEntry
	err := query.
		Select("audit_entries.*").
		Preload("Protocol").
		Preload("Actor").
		Order("audit_entries.occurred_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error

	return entries, total, err
}
