package model

import (
	"time"

	"github.com/google/uuid"
)

type Department struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Users     []User     `gorm:"foreignKey:DepartmentID"`
	Templates []Template `gorm:"foreignKey:OwnerDepartmentID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
