package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

// Scope restricts queries to protocols the caller may see: admins see
// everything, everyone else sees what they created, what is routed to
// their department, and what is routed to them directly. The listing,
// Kanban, and export paths all build on the same scope so an export can
// never show rows the screen would not.
type Scope struct {
	Admin        bool
	UserID       uuid.UUID
	DepartmentID *uuid.UUID
}

type ProtocolFilter struct {
	Term       string
	Status     model.ProtocolStatus
	TemplateID *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
}

type ProtocolRepository struct {
	db *gorm.DB
}

func NewProtocolRepository(db *gorm.DB) *ProtocolRepository {
	return &ProtocolRepository{db: db}
}

func (r *ProtocolRepository) scoped(ctx context.Context, scope Scope) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.Protocol{})
	if scope.Admin {
		return query
	}
	if scope.DepartmentID != nil {
		return query.Where(
			"created_by_id = ? OR destination_department_id = ? OR destination_user_id = ?",
			scope.UserID, *scope.DepartmentID, scope.UserID,
		)
	}
	return query.Where("created_by_id = ? OR destination_user_id = ?", scope.UserID, scope.UserID)
}

func applyFilter(query *gorm.DB, filter ProtocolFilter) *gorm.DB {
	if filter.Term != "" {
		term := "%" + filter.Term + "%"
		query = query.Where("subject ILIKE ? OR description ILIKE ? OR number ILIKE ?", term, term, term)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		end := filter.DateTo.AddDate(0, 0, 1)
		query = query.Where("created_at < ?", end)
	}
	return query
}

func (r *ProtocolRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Protocol, error) {
	var protocol model.Protocol
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("DestinationDepartment").
		Preload("DestinationUser").
		Preload("Template").
		Preload("Template.Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Preload("Attachments").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		Preload("History.Actor").
		First(&protocol, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &protocol, nil
}

func (r *ProtocolRepository) List(ctx context.Context, scope Scope, filter ProtocolFilter, limit, offset int) ([]model.Protocol, int64, error) {
	var protocols []model.Protocol
	var total int64

	query := applyFilter(r.scoped(ctx, scope), filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Template").
		Preload("CreatedBy").
		Preload("DestinationDepartment").
		Preload("DestinationUser").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&protocols).Error

	return protocols, total, err
}

// ListAll returns every scoped match without pagination, in the same
// order as List. Used by the Kanban grouping and the Excel export.
func (r *ProtocolRepository) ListAll(ctx context.Context, scope Scope, filter ProtocolFilter) ([]model.Protocol, error) {
	var protocols []model.Protocol
	err := applyFilter(r.scoped(ctx, scope), filter).
		Preload("Template").
		Preload("CreatedBy").
		Preload("DestinationDepartment").
		Preload("DestinationUser").
		Order("created_at DESC").
		Find(&protocols).Error
	return protocols, err
}

// PendingByUser returns the caller's unsettled protocols split into
// sent (created by them) and received (routed to them or their
// department).
func (r *ProtocolRepository) PendingByUser(ctx context.Context, user *model.User) (sent, received []model.Protocol, err error) {
	active := []model.ProtocolStatus{model.ProtocolOpen, model.ProtocolInAnalysis, model.ProtocolPending}

	err = r.db.WithContext(ctx).
		Preload("Template").
		Where("created_by_id = ? AND status IN ?", user.ID, active).
		Order("created_at DESC").
		Find(&sent).Error
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Preload("Template").Where("status IN ?", active)
	if user.DepartmentID != nil {
		query = query.Where("destination_department_id = ? OR destination_user_id = ?", *user.DepartmentID, user.ID)
	} else {
		query = query.Where("destination_user_id = ?", user.ID)
	}
	err = query.Order("created_at DESC").Find(&received).Error
	if err != nil {
		return nil, nil, err
	}

	return sent, received, nil
}

type StatusCount struct {
	Status model.ProtocolStatus
	Total  int64
}

type DepartmentCount struct {
	Name  string
	Total int64
}

type MonthCount struct {
	Month string
	Total int64
}

func (r *ProtocolRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).Model(&model.Protocol{}).
		Select("status, COUNT(id) AS total").
		Group("status").
		Order("total DESC").
		Scan(&counts).Error
	return counts, err
}

func (r *ProtocolRepository) CountByDepartment(ctx context.Context) ([]DepartmentCount, error) {
	var counts []DepartmentCount
	err := r.db.WithContext(ctx).Model(&model.Protocol{}).
		Select("departments.name AS name, COUNT(protocols.id) AS total").
		Joins("JOIN departments ON departments.id = protocols.destination_department_id").
		Group("departments.name").
		Order("total DESC").
		Scan(&counts).Error
	return counts, err
}

func (r *ProtocolRepository) CountByMonth(ctx context.Context, since time.Time) ([]MonthCount, error) {
	var counts []MonthCount
	err := r.db.WithContext(ctx).Model(&model.Protocol{}).
		Select("to_char(created_at, 'YYYY-MM') AS month, COUNT(id) AS total").
		Where("created_at >= ?", since).
		Group("to_char(created_at, 'YYYY-MM')").
		Order("month ASC").
		Scan(&counts).Error
	return counts, err
}
