package model

import (
	"time"

	"github.com/google/uuid"
)

type FieldType string

const (
	FieldShortText FieldType = "SHORT_TEXT"
	FieldLongText  FieldType = "LONG_TEXT"
	FieldNumber    FieldType = "NUMBER"
	FieldDate      FieldType = "DATE"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldShortText, FieldLongText, FieldNumber, FieldDate:
		return true
	default:
		return false
	}
}

// Template is a user-authored schema for a protocol's repeating data
// rows. Once any protocol references a template it can no longer be
// deleted.
type Template struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name              string    `gorm:"not null"`
	Description       string
	OwnerDepartmentID uuid.UUID   `gorm:"type:uuid;not null"`
	OwnerDepartment   *Department `gorm:"foreignKey:OwnerDepartmentID"`
	RowCheckEnabled   bool        `gorm:"default:false"`
	Fields            []TemplateField `gorm:"foreignKey:TemplateID"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TemplateField order is a plain persisted integer, not implicit list
// position. Reorder rewrites the full permutation densely; deleting a
// field leaves the remaining order values sparse.
type TemplateField struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TemplateID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"not null"`
	Type       FieldType `gorm:"type:varchar(20);not null"`
	Required   bool      `gorm:"default:false"`
	Order      int       `gorm:"column:display_order;not null;default:0"`
}
