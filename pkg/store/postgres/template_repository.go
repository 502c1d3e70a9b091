package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

// ErrInUse is returned by deletion guards when dependent rows still
// reference the target.
var ErrInUse = errors.New("record is referenced by dependent rows")

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, template *model.Template) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *TemplateRepository) Update(ctx context.Context, template *model.Template) error {
	return r.db.WithContext(ctx).Model(&model.Template{}).
		Where("id = ?", template.ID).
		Updates(map[string]interface{}{
			"name":              template.Name,
			"description":       template.Description,
			"row_check_enabled": template.RowCheckEnabled,
		}).Error
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	var template model.Template
	err := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Preload("OwnerDepartment").
		First(&template, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]model.Template, error) {
	var templates []model.Template
	err := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Order("name ASC").
		Find(&templates).Error
	return templates, err
}

// Delete refuses to remove a template any protocol references; a used
// template is immutable-after-use.
func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var used int64
		if err := tx.Model(&model.Protocol{}).Where("template_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return ErrInUse
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.TemplateField{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.Template{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AddField appends at the current field count.
func (r *TemplateRepository) AddField(ctx context.Context, templateID uuid.UUID, field *model.TemplateField) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.TemplateField{}).Where("template_id = ?", templateID).Count(&count).Error; err != nil {
			return err
		}
		field.TemplateID = templateID
		field.Order = int(count)
		return tx.Create(field).Error
	})
}

func (r *TemplateRepository) UpdateField(ctx context.Context, field *model.TemplateField) error {
	result := r.db.WithContext(ctx).Model(&model.TemplateField{}).
		Where("id = ? AND template_id = ?", field.ID, field.TemplateID).
		Updates(map[string]interface{}{
			"name":     field.Name,
			"type":     field.Type,
			"required": field.Required,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteField does not renumber the survivors: order may become sparse
// after a deletion. Reorder is the operation that restores density.
func (r *TemplateRepository) DeleteField(ctx context.Context, templateID, fieldID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND template_id = ?", fieldID, templateID).
		Delete(&model.TemplateField{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

var ErrBadPermutation = errors.New("field ids are not a full permutation of the template's fields")

// ReorderFields assigns order = position for the supplied permutation.
// The list must name every field of the template exactly once; anything
// else is rejected without partial application.
func (r *TemplateRepository) ReorderFields(ctx context.Context, templateID uuid.UUID, orderedFieldIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fields []model.TemplateField
		if err := tx.Where("template_id = ?", templateID).Find(&fields).Error; err != nil {
			return err
		}

		if len(fields) != len(orderedFieldIDs) {
			return ErrBadPermutation
		}
		existing := make(map[uuid.UUID]bool, len(fields))
		for _, f := range fields {
			existing[f.ID] = true
		}
		seen := make(map[uuid.UUID]bool, len(orderedFieldIDs))
		for _, id := range orderedFieldIDs {
			if !existing[id] || seen[id] {
				return ErrBadPermutation
			}
			seen[id] = true
		}

		for position, id := range orderedFieldIDs {
			if err := tx.Model(&model.TemplateField{}).
				Where("id = ?", id).
				Update("display_order", position).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
