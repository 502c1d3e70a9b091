package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) Create(ctx context.Context, department *model.Department) error {
	return r.db.WithContext(ctx).Create(department).Error
}

func (r *DepartmentRepository) Update(ctx context.Context, department *model.Department) error {
	result := r.db.WithContext(ctx).Model(&model.Department{}).
		Where("id = ?", department.ID).
		Update("name", department.Name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	var department model.Department
	err := r.db.WithContext(ctx).First(&department, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &department, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]model.Department, error) {
	var departments []model.Department
	err := r.db.WithContext(ctx).Order("name ASC").Find(&departments).Error
	return departments, err
}

// Delete is a referential guard, not a cascade: a department with
// employees or destined protocols stays.
func (r *DepartmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employees int64
		if err := tx.Model(&model.User{}).Where("department_id = ?", id).Count(&employees).Error; err != nil {
			return err
		}
		if employees > 0 {
			return ErrInUse
		}
		var destined int64
		if err := tx.Model(&model.Protocol{}).Where("destination_department_id = ?", id).Count(&destined).Error; err != nil {
			return err
		}
		if destined > 0 {
			return ErrInUse
		}
		result := tx.Delete(&model.Department{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
